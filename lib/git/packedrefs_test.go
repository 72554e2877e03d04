// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"strings"
	"testing"
)

const (
	shaA = "1111111111111111111111111111111111111111"
	shaB = "2222222222222222222222222222222222222222"
	shaC = "3333333333333333333333333333333333333333"
	shaD = "4444444444444444444444444444444444444444"

	packedRefsHeader = "# pack-refs with: peeled fully-peeled sorted "
)

func TestRewritePackedRefs(t *testing.T) {
	input := []string{
		packedRefsHeader,
		shaA + " refs/heads/master",
		shaB + " refs/heads/baserock/morph",
		shaC + " refs/remotes/origin/stale",
		shaD + " refs/tags/v1.2.8",
		"^" + shaA,
		shaB + " refs/notes/commits",
	}

	got := RewritePackedRefs(input)
	want := []string{
		packedRefsHeader,
		shaA + " refs/remotes/origin/master",
		shaB + " refs/remotes/origin/baserock/morph",
		shaD + " refs/tags/v1.2.8",
		"^" + shaA,
		shaB + " refs/notes/commits",
	}

	if len(got) != len(want) {
		t.Fatalf("RewritePackedRefs =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRewritePackedRefs_HeaderKeptVerbatim(t *testing.T) {
	// The first line is never interpreted, even if it looks like a ref.
	input := []string{shaA + " refs/heads/master", shaB + " refs/heads/next"}
	got := RewritePackedRefs(input)
	if got[0] != input[0] {
		t.Errorf("header = %q, want %q", got[0], input[0])
	}
	if got[1] != shaB+" refs/remotes/origin/next" {
		t.Errorf("line 1 = %q", got[1])
	}
}

func TestRewritePackedRefs_Empty(t *testing.T) {
	if got := RewritePackedRefs(nil); got != nil {
		t.Errorf("RewritePackedRefs(nil) = %v, want nil", got)
	}
	got := RewritePackedRefs([]string{packedRefsHeader})
	if len(got) != 1 || got[0] != packedRefsHeader {
		t.Errorf("header-only rewrite = %v", got)
	}
}

func TestRewritePackedRefs_Closure(t *testing.T) {
	input := []string{
		packedRefsHeader,
		shaA + " refs/heads/master",
		shaB + " refs/heads/feature",
		shaC + " refs/remotes/origin/master",
		shaD + " refs/tags/v1",
	}

	once := RewritePackedRefs(input)
	twice := RewritePackedRefs(once)

	for _, output := range [][]string{once, twice} {
		seen := make(map[string]bool)
		for _, line := range output[1:] {
			if seen[line] {
				t.Errorf("duplicate line %q in %v", line, output)
			}
			seen[line] = true
			if strings.Contains(line, " refs/heads/") {
				t.Errorf("dangling refs/heads entry %q in %v", line, output)
			}
		}
		if output[0] != packedRefsHeader {
			t.Errorf("header changed: %q", output[0])
		}
	}

	// Tags survive any number of passes.
	if twice[len(twice)-1] != shaD+" refs/tags/v1" {
		t.Errorf("tag lost after second pass: %v", twice)
	}
}

func TestSplitJoinLines(t *testing.T) {
	content := packedRefsHeader + "\n" + shaA + " refs/heads/master\n"
	lines := splitLines(content)
	if len(lines) != 2 {
		t.Fatalf("splitLines = %q", lines)
	}
	if joinLines(lines) != content {
		t.Errorf("joinLines(splitLines(x)) = %q, want %q", joinLines(lines), content)
	}
	if splitLines("") != nil {
		t.Error("splitLines(\"\") should be nil")
	}
	if joinLines(nil) != "" {
		t.Error("joinLines(nil) should be empty")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"strings"
)

const (
	headsPrefix        = "refs/heads/"
	remotesPrefix      = "refs/remotes/"
	originRemotePrefix = "refs/remotes/origin/"

	// objectIDLength is the length of a hex SHA-1 object id.
	objectIDLength = 40
)

// RewritePackedRefs turns the packed-refs lines of a copied mirror into
// those of a conventional clone of that mirror.
//
// The first line (the format header) is kept verbatim. Lines naming a
// ref under refs/remotes/ are dropped. Lines naming refs/heads/<name>
// become refs/remotes/origin/<name>, keeping the 40 character object id
// and a single separating space. Every other line (tags, peeled "^"
// lines, other namespaces) passes through unchanged.
//
// Applying the function to its own output never produces a
// refs/heads/ entry or a duplicate line.
func RewritePackedRefs(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}

	result := make([]string, 0, len(lines))
	result = append(result, lines[0])

	for _, line := range lines[1:] {
		if strings.Contains(line, " "+remotesPrefix) {
			continue
		}
		if strings.Contains(line, " "+headsPrefix) && len(line) > objectIDLength+1 {
			objectID, ref := line[:objectIDLength], line[objectIDLength+1:]
			if name, ok := strings.CutPrefix(ref, headsPrefix); ok {
				ref = originRemotePrefix + name
			}
			line = objectID + " " + ref
		}
		result = append(result, line)
	}
	return result
}

// splitLines splits file content into lines, dropping the empty element
// a trailing newline would produce.
func splitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// joinLines is the inverse of splitLines.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

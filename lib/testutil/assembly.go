// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// PrepareAssembly creates dir/dev/null as an empty regular file so
// that entering a sandbox scope skips device node creation. Returns
// dir.
func PrepareAssembly(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "dev"), 0755); err != nil {
		t.Fatalf("creating assembly dev: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "dev", "null"), nil, 0666); err != nil {
		t.Fatalf("creating placeholder null device: %v", err)
	}
	return dir
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"
)

// contentDomainKey separates content hashes from any other BLAKE3
// keyed hash. Changing it invalidates every existing cache key.
var contentDomainKey = [32]byte{
	'a', 's', 's', 'e', 'm', 'b', 'l', 'e', '.', 'c', 'a', 'c', 'h', 'e', '.',
	'c', 'o', 'n', 't', 'e', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ContentHash derives a component's content hash from the git tree id
// of its source and the cache keys of its build dependencies. The
// dependency order does not matter. Each input is length-prefixed so
// that no two distinct input lists serialize identically.
func ContentHash(treeID string, dependencyKeys []string) string {
	sorted := append([]string(nil), dependencyKeys...)
	sort.Strings(sorted)

	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic("cache: invalid content domain key: " + err.Error())
	}
	writeField(hasher, treeID)
	for _, key := range sorted {
		writeField(hasher, key)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func writeField(hasher *blake3.Hasher, field string) {
	var length [8]byte
	n := uint64(len(field))
	for i := range length {
		length[i] = byte(n >> (8 * i))
	}
	hasher.Write(length[:])
	hasher.Write([]byte(field))
}

// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package primemap

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// HashFn maps a key, widened to 64 bits, to a hash value. The bucket index is
// the hash value modulo the bucket count.
type HashFn func(key uint64) uint64

// IdentityHash is the default hash function. Every bit of the key takes part
// in bucket selection.
func IdentityHash(key uint64) uint64 {
	return key
}

// Truncate32Hash keeps only the low 32 bits of the key. Keys that differ only
// in their high bits collide. Use it where bucket placement has to match an
// implementation that reduces keys to 32 bits before taking the modulo.
func Truncate32Hash(key uint64) uint64 {
	return uint64(uint32(key))
}

// XXHash scrambles the key with xxHash64. It spreads keys that share factors
// with the bucket count (strided ids, aligned addresses) across buckets.
func XXHash(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

// XXH3Hash scrambles the key with XXH3.
func XXH3Hash(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxh3.Hash(buf[:])
}

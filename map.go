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

// Package primemap is a hash table from integer keys to values that does not
// use Go's builtin map. Collisions are handled by chaining, but a chain is a
// flat array of slots owned by its bucket rather than a linked list.
//
// # Layout
//
// A Map owns a fixed number of buckets. The bucket count is prime and is
// chosen when the Map is constructed; it never changes afterwards. A key is
// routed to exactly one bucket by hash(key) % bucketCount and everything else
// (scan, insert, update, delete, grow) happens inside that bucket:
//
//	 Map (bucketCount=3)
//	+---+
//	| 0 | --> [k0 v0 full][k3 v3 full][-- empty --]
//	+---+
//	| 1 | --> [k1 v1 full][-- tomb --][k7 v7 full]
//	+---+
//	| 2 | --> [-- empty --][-- empty --][-- empty --]
//	+---+
//
// Every bucket starts with the same prime number of slots. A slot carries an
// occupied flag. Deleting an entry clears the flag and leaves the slot where
// it is (a tombstone); a later insert into the bucket reuses the first
// unoccupied slot it finds. Nothing is ever compacted or shifted.
//
// # Growth
//
// A bucket grows only when an insert of a new key finds all of its slots
// occupied. The new capacity is NextPrime(2*capacity). The old slots are
// copied to the front of the new array, the remaining slots are unoccupied,
// and the old array is handed back to the Allocator. Growth touches a single
// bucket. There is no global rehash: as the number of entries grows relative
// to the fixed bucket count, chains get longer and lookups degrade linearly.
// Pick the bucket count with WithBucketCount when the expected size is known.
//
// Prime sizes reduce clustering when keys share a common factor with the
// bucket count, which is common for integer ids allocated with a stride.
package primemap

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"
)

// DefaultCapacity is the requested bucket count and per-bucket slot count of
// a Map constructed without options. Both are rounded up with NextPrime.
const DefaultCapacity = 3

// Slot holds a key, a value and whether the slot is occupied. The key and
// value of an unoccupied slot are meaningless.
type Slot[K constraints.Integer, V any] struct {
	key      K
	value    V
	occupied bool
}

type bucket[K constraints.Integer, V any] struct {
	// slots is capacity in length and was allocated by Map.allocator.
	slots []Slot[K, V]
	// The total number of slots. Always prime.
	capacity int
	// The number of occupied slots.
	used int
}

// Map is an unordered map from integer keys to values with Insert, Lookup,
// Remove, and All operations.
//
// A Map is NOT goroutine-safe. Callers sharing a Map between goroutines must
// guard it with their own lock.
type Map[K constraints.Integer, V any] struct {
	hash      HashFn
	allocator Allocator[K, V]
	// clone duplicates a value when its bucket grows. nil means assignment.
	clone  func(V) V
	logger zerolog.Logger
	// The number of buckets, prime, fixed at construction.
	bucketCount int
	// The initial number of slots per bucket, prime.
	slotCapacity int
	buckets      []bucket[K, V]
	// The number of occupied slots across all buckets.
	used int
	// The number of bucket growths since construction.
	growths int
}

// New constructs a new Map with NextPrime(DefaultCapacity) buckets of
// NextPrime(DefaultCapacity) slots each, unless overridden by options.
func New[K constraints.Integer, V any](options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:         IdentityHash,
		allocator:    defaultAllocator[K, V]{},
		logger:       zerolog.Nop(),
		bucketCount:  NextPrime(DefaultCapacity),
		slotCapacity: NextPrime(DefaultCapacity),
	}

	for _, op := range options {
		op.apply(m)
	}

	m.buckets = make([]bucket[K, V], m.bucketCount)
	for i := range m.buckets {
		b := &m.buckets[i]
		b.slots = m.allocSlots(m.slotCapacity)
		for j := range b.slots {
			b.slots[j] = Slot[K, V]{}
		}
		b.capacity = m.slotCapacity
		b.checkInvariants(m, i)
	}
	return m
}

// Close releases every slot array back to the configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator == nil {
		return
	}
	for i := range m.buckets {
		b := &m.buckets[i]
		if b.slots != nil {
			m.allocator.FreeSlots(b.slots)
		}
		b.slots = nil
		b.capacity = 0
		b.used = 0
	}
	m.logger.Debug().
		Int("buckets", m.bucketCount).
		Int("len", m.used).
		Int("growths", m.growths).
		Msg("closed map")
	m.used = 0
	m.allocator = nil
}

// Insert inserts an entry into the map, overwriting the value of an existing
// entry with the same key. A new key goes into the first unoccupied slot of
// its bucket. If the bucket is full it is grown once and the insert retried.
//
// The returned error is non-nil only if the bucket was found in an
// inconsistent state; it then matches ErrCorrupted. A successful insert never
// returns an error.
func (m *Map[K, V]) Insert(key K, value V) error {
	i := m.bucketIndex(key)
	b := &m.buckets[i]

	for grown := false; ; grown = true {
		free := -1
		for j := 0; j < b.capacity; j++ {
			s := &b.slots[j]
			if !s.occupied {
				if free < 0 {
					free = j
				}
				continue
			}
			if s.key == key {
				s.value = value
				b.checkInvariants(m, i)
				return nil
			}
		}

		if b.used < b.capacity {
			if free < 0 {
				return m.corrupted(i, "no unoccupied slot although used < capacity")
			}
			s := &b.slots[free]
			s.key = key
			s.value = value
			s.occupied = true
			b.used++
			m.used++
			b.checkInvariants(m, i)
			return nil
		}

		// Growth strictly increases the capacity beyond used, so the retry
		// always finds a free slot.
		if grown {
			return m.corrupted(i, "bucket full after growth")
		}
		b.grow(m, i)
	}
}

// Lookup retrieves the value from the map for the specified key, returning
// ok=false if the key is not present. Removed entries are never returned even
// though their slots are retained.
func (m *Map[K, V]) Lookup(key K) (value V, ok bool) {
	b := &m.buckets[m.bucketIndex(key)]
	for j := 0; j < b.capacity; j++ {
		s := &b.slots[j]
		if s.occupied && s.key == key {
			return s.value, true
		}
	}
	return value, false
}

// Remove deletes the entry corresponding to the specified key from the map
// and reports whether it was present. Removing a non-existent key changes
// nothing. The slot is kept as a tombstone for reuse by a later insert.
func (m *Map[K, V]) Remove(key K) bool {
	i := m.bucketIndex(key)
	b := &m.buckets[i]
	for j := 0; j < b.capacity; j++ {
		s := &b.slots[j]
		if s.occupied && s.key == key {
			// Clear the slot so the GC does not retain a removed value.
			*s = Slot[K, V]{}
			b.used--
			m.used--
			b.checkInvariants(m, i)
			return true
		}
	}
	return false
}

// Clear deletes all entries from the map. Every slot becomes unoccupied and
// all bucket capacities are retained.
func (m *Map[K, V]) Clear() {
	for i := range m.buckets {
		b := &m.buckets[i]
		for j := 0; j < b.capacity; j++ {
			b.slots[j] = Slot[K, V]{}
		}
		b.used = 0
	}
	m.used = 0
}

// All calls yield sequentially for each key and value present in the map, in
// bucket and then slot order. If yield returns false, iteration stops. The
// map can be mutated during iteration, though there is no guarantee that the
// mutations will be visible to the iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i := range m.buckets {
		// Snapshot the slots so that iteration remains valid if the bucket
		// grows during iteration.
		b := &m.buckets[i]
		slots := b.slots[:b.capacity]
		for j := range slots {
			s := &slots[j]
			if s.occupied {
				if !yield(s.key, s.value) {
					return
				}
			}
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// BucketCount returns the number of buckets, which is fixed at construction.
func (m *Map[K, V]) BucketCount() int {
	return m.bucketCount
}

// capacity returns the total capacity of all map buckets.
func (m *Map[K, V]) capacity() int {
	var capacity int
	for i := range m.buckets {
		capacity += m.buckets[i].capacity
	}
	return capacity
}

// BucketStats describes a single bucket.
type BucketStats struct {
	Capacity int
	Used     int
}

// Stats is a snapshot of how entries are distributed over the buckets.
type Stats struct {
	// Len is the number of entries.
	Len int
	// Capacity is the total number of slots.
	Capacity int
	// Growths is the number of bucket growths since construction.
	Growths int
	// Buckets holds one entry per bucket, indexed by bucket number.
	Buckets []BucketStats
}

// Stats returns a snapshot of the bucket distribution.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{
		Len:      m.used,
		Capacity: m.capacity(),
		Growths:  m.growths,
		Buckets:  make([]BucketStats, len(m.buckets)),
	}
	for i := range m.buckets {
		s.Buckets[i] = BucketStats{
			Capacity: m.buckets[i].capacity,
			Used:     m.buckets[i].used,
		}
	}
	return s
}

// bucketIndex returns the index of the bucket key is routed to.
func (m *Map[K, V]) bucketIndex(key K) int {
	return int(m.hash(uint64(key)) % uint64(m.bucketCount))
}

// allocSlots allocates a slot array of exactly n slots.
func (m *Map[K, V]) allocSlots(n int) []Slot[K, V] {
	slots := m.allocator.AllocSlots(n)
	if len(slots) < n {
		panic(fmt.Sprintf("allocator returned %d slots, %d requested", len(slots), n))
	}
	return slots[:n:n]
}

func (m *Map[K, V]) cloneValue(v V) V {
	if m.clone == nil {
		return v
	}
	return m.clone(v)
}

// corrupted builds the error returned when bucket i is found inconsistent.
func (m *Map[K, V]) corrupted(i int, reason string) error {
	b := &m.buckets[i]
	err := &InvariantError{
		Bucket:   i,
		Capacity: b.capacity,
		Used:     b.used,
		Reason:   reason,
	}
	m.logger.Error().Err(err).Str("state", b.debugString()).Msg("bucket corrupted")
	return err
}

// grow replaces the slot array of the bucket at index i with one of
// NextPrime(2*capacity) slots. The occupied slots keep their positions and
// used is unchanged.
func (b *bucket[K, V]) grow(m *Map[K, V], i int) {
	oldCapacity := b.capacity
	newCapacity := NextPrime(2 * oldCapacity)
	oldSlots := b.slots
	newSlots := m.allocSlots(newCapacity)

	for j := 0; j < oldCapacity; j++ {
		s := &oldSlots[j]
		if s.occupied {
			newSlots[j] = Slot[K, V]{key: s.key, value: m.cloneValue(s.value), occupied: true}
		} else {
			newSlots[j] = Slot[K, V]{key: s.key}
		}
	}
	for j := oldCapacity; j < newCapacity; j++ {
		newSlots[j] = Slot[K, V]{}
	}

	b.slots = newSlots
	b.capacity = newCapacity
	m.allocator.FreeSlots(oldSlots)
	m.growths++

	m.logger.Debug().
		Int("bucket", i).
		Int("from", oldCapacity).
		Int("to", newCapacity).
		Int("used", b.used).
		Msg("grew bucket")

	b.checkInvariants(m, i)
}

func (b *bucket[K, V]) checkInvariants(m *Map[K, V], i int) {
	if invariants {
		if NextPrime(b.capacity) != b.capacity {
			panic(fmt.Sprintf("invariant failed: capacity %d is not prime\n%s", b.capacity, b.debugString()))
		}
		if len(b.slots) != b.capacity {
			panic(fmt.Sprintf("invariant failed: %d slots, but capacity is %d\n%s",
				len(b.slots), b.capacity, b.debugString()))
		}

		// Every occupied key must be routed to this bucket and appear once.
		var used int
		for j := 0; j < b.capacity; j++ {
			s := &b.slots[j]
			if !s.occupied {
				continue
			}
			used++
			if r := m.bucketIndex(s.key); r != i {
				panic(fmt.Sprintf("invariant failed: slot(%d): key %v belongs to bucket %d\n%s",
					j, s.key, r, b.debugString()))
			}
			for k := j + 1; k < b.capacity; k++ {
				if t := &b.slots[k]; t.occupied && t.key == s.key {
					panic(fmt.Sprintf("invariant failed: key %v in slots %d and %d\n%s",
						s.key, j, k, b.debugString()))
				}
			}
		}

		if used != b.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, b.used, b.debugString()))
		}

		var total int
		for k := range m.buckets {
			total += m.buckets[k].used
		}
		if total != m.used {
			panic(fmt.Sprintf("invariant failed: buckets hold %d entries, but map used count is %d",
				total, m.used))
		}
	}
}

func (b *bucket[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", b.capacity, b.used)
	for j := 0; j < b.capacity && j < len(b.slots); j++ {
		s := &b.slots[j]
		if s.occupied {
			fmt.Fprintf(&buf, "  %4d: %v\n", j, s.key)
		} else {
			fmt.Fprintf(&buf, "  %4d: free\n", j)
		}
	}
	return buf.String()
}

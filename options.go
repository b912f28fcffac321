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
	"github.com/rs/zerolog"
	"golang.org/x/exp/constraints"
)

// option provide an interface to do work on Map while it is being created.
type option[K constraints.Integer, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K constraints.Integer, V any] struct {
	hash HashFn
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function used to select a
// bucket for a key. See IdentityHash, Truncate32Hash, XXHash and XXH3Hash.
func WithHash[K constraints.Integer, V any](hash HashFn) option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing the slot
// arrays owned by the buckets of a Map. The default allocator utilizes Go's
// builtin make() and allows the GC to reclaim memory.
//
// Every slice returned by AllocSlots is handed back to FreeSlots exactly
// once: when the owning bucket grows, or when Map.Close is called. An
// allocator that manually manages memory requires Map.Close to be called.
type Allocator[K constraints.Integer, V any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[K,V], n).
	AllocSlots(n int) []Slot[K, V]

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K constraints.Integer, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) []Slot[K, V] {
	return make([]Slot[K, V], n)
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K constraints.Integer, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K constraints.Integer, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type cloneOption[K constraints.Integer, V any] struct {
	clone func(V) V
}

func (op cloneOption[K, V]) apply(m *Map[K, V]) {
	m.clone = op.clone
}

// WithClone is an option to specify how values are duplicated when a bucket
// grows and its entries are copied into the new slot array. Without it values
// are copied by assignment, which shares any memory a value refers to.
func WithClone[K constraints.Integer, V any](clone func(V) V) option[K, V] {
	return cloneOption[K, V]{clone}
}

type bucketCountOption[K constraints.Integer, V any] struct {
	n int
}

func (op bucketCountOption[K, V]) apply(m *Map[K, V]) {
	m.bucketCount = NextPrime(op.n)
}

// WithBucketCount is an option to specify the number of buckets. The count is
// rounded up to a prime and is fixed for the lifetime of the Map: there is no
// global rehash, so it bounds how well keys spread as the Map fills up.
func WithBucketCount[K constraints.Integer, V any](n int) option[K, V] {
	return bucketCountOption[K, V]{n}
}

type slotCapacityOption[K constraints.Integer, V any] struct {
	n int
}

func (op slotCapacityOption[K, V]) apply(m *Map[K, V]) {
	m.slotCapacity = NextPrime(op.n)
}

// WithSlotCapacity is an option to specify the initial number of slots in
// each bucket, rounded up to a prime.
func WithSlotCapacity[K constraints.Integer, V any](n int) option[K, V] {
	return slotCapacityOption[K, V]{n}
}

type loggerOption[K constraints.Integer, V any] struct {
	logger zerolog.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	m.logger = op.logger
}

// WithLogger is an option to receive bucket growth, close and corruption
// events. The default logger discards everything.
func WithLogger[K constraints.Integer, V any](logger zerolog.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}

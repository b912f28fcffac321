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
	"errors"
	"fmt"
)

// ErrCorrupted is matched by every error reporting a broken bucket invariant.
// It never signals an ordinary miss.
var ErrCorrupted = errors.New("primemap: corrupted bucket")

// InvariantError describes the bucket state observed when an operation found
// its invariants violated.
type InvariantError struct {
	Bucket   int
	Capacity int
	Used     int
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant failed: bucket %d (capacity=%d used=%d): %s",
		e.Bucket, e.Capacity, e.Used, e.Reason)
}

// Is reports whether target is ErrCorrupted.
func (e *InvariantError) Is(target error) bool {
	return target == ErrCorrupted
}

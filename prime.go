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

// NextPrime returns the smallest prime p >= max(n, 2). Primality is decided
// by plain trial division against every d in [2, n-1]; the first divisor found
// moves on to the next candidate n+1. There is no sieve and no memoization:
// bucket and slot counts stay small, so the quadratic worst case never
// matters in practice.
func NextPrime(n int) int {
	if n <= 2 {
		return 2
	}
outer:
	for ; ; n++ {
		for d := 2; d < n; d++ {
			if n%d == 0 {
				continue outer
			}
		}
		return n
	}
}

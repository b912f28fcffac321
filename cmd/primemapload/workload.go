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

package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cockroachdb/primemap"
	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
)

// Result summarizes a load run.
type Result struct {
	Inserts  int
	Updates  int
	Removes  int
	Lookups  int
	Hits     int
	Verified int
	Elapsed  time.Duration
	Stats    primemap.Stats
}

// chainSummary returns the most entries held by a single bucket and the
// number of empty buckets.
func (r Result) chainSummary() (longest, empty int) {
	for _, b := range r.Stats.Buckets {
		if b.Used > longest {
			longest = b.Used
		}
		if b.Used == 0 {
			empty++
		}
	}
	return longest, empty
}

// oracleSize sizes the verification cache so that its ring buffers never
// wrap during a run. Each appended entry costs a 24 byte header plus an 8 byte
// key and an 8 byte value; the factor of 4 absorbs uneven segment fill.
func oracleSize(cfg Config) int {
	return (cfg.Keys+cfg.Ops)*40*4 + 1<<20
}

func run(cfg Config, logger zerolog.Logger) (Result, error) {
	hash, err := hashByName(cfg.Hash)
	if err != nil {
		return Result{}, err
	}
	m := primemap.New[int64, int64](
		primemap.WithHash[int64, int64](hash),
		primemap.WithBucketCount[int64, int64](cfg.Buckets),
		primemap.WithSlotCapacity[int64, int64](cfg.Slots),
		primemap.WithLogger[int64, int64](logger),
	)
	defer m.Close()

	var oracle *freecache.Cache
	if cfg.Verify {
		oracle = freecache.NewCache(oracleSize(cfg))
	}

	var res Result
	rng := rand.New(rand.NewSource(cfg.Seed))
	start := time.Now()

	insert := func(k int64) error {
		v := rng.Int63()
		if _, ok := m.Lookup(k); ok {
			res.Updates++
		} else {
			res.Inserts++
		}
		if err := m.Insert(k, v); err != nil {
			return err
		}
		if oracle != nil {
			return oracle.SetInt(k, encodeValue(v), 0)
		}
		return nil
	}

	for _, k := range rng.Perm(cfg.KeySpace)[:cfg.Keys] {
		if err := insert(int64(k)); err != nil {
			return res, err
		}
	}
	logger.Debug().Int("len", m.Len()).Msg("preload done")

	for i := 0; i < cfg.Ops; i++ {
		k := rng.Int63n(int64(cfg.KeySpace))
		switch r := rng.Float64(); {
		case r < cfg.RemoveRatio:
			if m.Remove(k) {
				res.Removes++
			}
			if oracle != nil {
				oracle.DelInt(k)
			}
		case r < cfg.RemoveRatio+cfg.LookupRatio:
			res.Lookups++
			if _, ok := m.Lookup(k); ok {
				res.Hits++
			}
		default:
			if err := insert(k); err != nil {
				return res, err
			}
		}
	}
	res.Elapsed = time.Since(start)
	res.Stats = m.Stats()

	if oracle != nil {
		n, err := verify(m, oracle, cfg.KeySpace)
		res.Verified = n
		if err != nil {
			return res, err
		}
		logger.Debug().Int("verified", n).Msg("verification done")
	}
	return res, nil
}

// verify checks every key in [0, keySpace) against the oracle and returns the
// number of live entries found.
func verify(m *primemap.Map[int64, int64], oracle *freecache.Cache, keySpace int) (int, error) {
	if n := oracle.EvacuateCount(); n != 0 {
		return 0, fmt.Errorf("oracle evacuated %d entries", n)
	}
	var live int
	for k := int64(0); k < int64(keySpace); k++ {
		got, ok := m.Lookup(k)
		want, err := oracle.GetInt(k)
		switch {
		case errors.Is(err, freecache.ErrNotFound):
			if ok {
				return live, fmt.Errorf("key %d: present in map but removed", k)
			}
		case err != nil:
			return live, fmt.Errorf("key %d: %w", k, err)
		case !ok:
			return live, fmt.Errorf("key %d: missing from map", k)
		case decodeValue(want) != got:
			return live, fmt.Errorf("key %d: got %d, want %d", k, got, decodeValue(want))
		default:
			live++
		}
	}
	if live != m.Len() {
		return live, fmt.Errorf("map holds %d entries, verified %d", m.Len(), live)
	}
	return live, nil
}

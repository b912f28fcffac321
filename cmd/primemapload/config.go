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
	"fmt"
	"strings"

	"github.com/cockroachdb/primemap"
	"github.com/spf13/viper"
)

const envPrefix = "PRIMEMAP"

// Config parameterizes a load run. Every field is read from a PRIMEMAP_*
// environment variable, e.g. PRIMEMAP_KEY_SPACE.
type Config struct {
	// Keys is the number of distinct keys inserted before the mixed phase.
	Keys int
	// KeySpace bounds the keys used by the run to [0, KeySpace).
	KeySpace int
	// Ops is the number of operations in the mixed phase.
	Ops int
	// RemoveRatio and LookupRatio split the mixed phase; the rest are inserts.
	RemoveRatio float64
	LookupRatio float64
	// Hash is one of identity, truncate32, xxhash or xxh3.
	Hash     string
	Buckets  int
	Slots    int
	Seed     int64
	LogLevel string
	// Verify cross-checks the map against a freecache instance after the run.
	Verify bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("KEYS", 10000)
	v.SetDefault("KEY_SPACE", 50000)
	v.SetDefault("OPS", 100000)
	v.SetDefault("REMOVE_RATIO", 0.2)
	v.SetDefault("LOOKUP_RATIO", 0.4)
	v.SetDefault("HASH", "identity")
	v.SetDefault("BUCKETS", 1021)
	v.SetDefault("SLOTS", primemap.DefaultCapacity)
	v.SetDefault("SEED", 1)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("VERIFY", true)
}

func loadConfig(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Keys:        v.GetInt("KEYS"),
		KeySpace:    v.GetInt("KEY_SPACE"),
		Ops:         v.GetInt("OPS"),
		RemoveRatio: v.GetFloat64("REMOVE_RATIO"),
		LookupRatio: v.GetFloat64("LOOKUP_RATIO"),
		Hash:        strings.ToLower(v.GetString("HASH")),
		Buckets:     v.GetInt("BUCKETS"),
		Slots:       v.GetInt("SLOTS"),
		Seed:        v.GetInt64("SEED"),
		LogLevel:    strings.ToUpper(v.GetString("LOG_LEVEL")),
		Verify:      v.GetBool("VERIFY"),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.KeySpace <= 0 {
		return fmt.Errorf("key space must be positive, got %d", c.KeySpace)
	}
	if c.Keys < 0 || c.Keys > c.KeySpace {
		return fmt.Errorf("keys must be in [0, %d], got %d", c.KeySpace, c.Keys)
	}
	if c.Ops < 0 {
		return fmt.Errorf("ops must not be negative, got %d", c.Ops)
	}
	if c.RemoveRatio < 0 || c.LookupRatio < 0 || c.RemoveRatio+c.LookupRatio > 1 {
		return fmt.Errorf("remove ratio %.2f and lookup ratio %.2f must be non-negative and sum to at most 1",
			c.RemoveRatio, c.LookupRatio)
	}
	if c.Buckets <= 0 || c.Slots <= 0 {
		return fmt.Errorf("buckets and slots must be positive, got %d and %d", c.Buckets, c.Slots)
	}
	if _, err := hashByName(c.Hash); err != nil {
		return err
	}
	return nil
}

func hashByName(name string) (primemap.HashFn, error) {
	switch name {
	case "identity":
		return primemap.IdentityHash, nil
	case "truncate32":
		return primemap.Truncate32Hash, nil
	case "xxhash":
		return primemap.XXHash, nil
	case "xxh3":
		return primemap.XXH3Hash, nil
	default:
		return nil, fmt.Errorf("unknown hash %q", name)
	}
}

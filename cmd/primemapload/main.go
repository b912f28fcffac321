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

// Command primemapload drives a primemap.Map with a configurable mix of
// inserts, removes and lookups and reports how entries ended up distributed
// over the buckets. It is configured through PRIMEMAP_* environment
// variables; see Config.
package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func main() {
	cfg, err := loadConfig(viper.New())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := initLogger(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Int("keys", cfg.Keys).
		Int("keySpace", cfg.KeySpace).
		Int("ops", cfg.Ops).
		Str("hash", cfg.Hash).
		Int("buckets", cfg.Buckets).
		Int("slots", cfg.Slots).
		Msg("starting load")

	res, err := run(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("load failed")
	}

	longest, empty := res.chainSummary()
	log.Info().
		Int("len", res.Stats.Len).
		Int("capacity", res.Stats.Capacity).
		Int("growths", res.Stats.Growths).
		Int("inserts", res.Inserts).
		Int("updates", res.Updates).
		Int("removes", res.Removes).
		Int("lookups", res.Lookups).
		Int("hits", res.Hits).
		Int("longestBucket", longest).
		Int("emptyBuckets", empty).
		Int("verified", res.Verified).
		Dur("elapsed", res.Elapsed).
		Msg("load finished")
}

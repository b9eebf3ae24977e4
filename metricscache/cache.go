// Copyright 2024-2026
// SPDX-License-Identifier: Apache-2.0
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

package metricscache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes expensive metric computations. Entries live in a bounded
// local LRU with a time-to-live, optionally mirrored to redis. The cache is
// an explicit object with an injected clock, passed by reference to its
// consumers; there is no package-level instance.
type Cache struct {
	local *lru.Cache
	rdb   *redis.Client
	ttl   time.Duration
	clock func() time.Time
	group singleflight.Group
}

type entry struct {
	value    []byte
	storedAt time.Time
}

// New creates a cache holding at most size entries, each valid for ttl.
// When cache.redis is enabled in configuration a redis tier is added.
func New(size int, ttl time.Duration) (*Cache, error) {
	local, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	cache := &Cache{
		local: local,
		ttl:   ttl,
		clock: time.Now,
	}

	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return nil, err
		}
		cache.rdb = redis.NewClient(opt)
	}

	return cache, nil
}

// SetClock overrides the time source; used by tests
func (cache *Cache) SetClock(clock func() time.Time) {
	cache.clock = clock
}

// Key builds a deterministic cache key from its parts
func Key(parts ...string) string {
	hasher := blake3.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Get returns the cached value for key if it is younger than the ttl.
// Expired entries are evicted on read.
func (cache *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := cache.local.Get(key); ok {
		e := v.(entry)
		if cache.clock().Sub(e.storedAt) < cache.ttl {
			return e.value, true
		}
		cache.local.Remove(key)
	}

	if cache.rdb != nil {
		val, err := cache.rdb.Get(ctx, key).Bytes()
		if err == nil {
			// repopulate the local tier
			cache.local.Add(key, entry{value: val, storedAt: cache.clock()})
			return val, true
		}
	}

	return nil, false
}

// Set stores a value under key with the current timestamp. The LRU bound
// keeps memory finite with least-recently-used eviction.
func (cache *Cache) Set(ctx context.Context, key string, value []byte) {
	cache.local.Add(key, entry{value: value, storedAt: cache.clock()})

	if cache.rdb != nil {
		if err := cache.rdb.Set(ctx, key, value, cache.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("could not write to redis cache tier")
		}
	}
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Concurrent callers for the same key are coalesced: at most one
// computation is in flight per key, the rest share its result.
func (cache *Cache) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error) {
	if val, ok := cache.Get(ctx, key); ok {
		return val, nil
	}

	val, err, _ := cache.group.Do(key, func() (interface{}, error) {
		// re-check: another caller may have stored while we queued
		if val, ok := cache.Get(ctx, key); ok {
			return val, nil
		}

		computed, err := compute()
		if err != nil {
			return nil, err
		}
		cache.Set(ctx, key, computed)
		return computed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache compute failed: %w", err)
	}

	return val.([]byte), nil
}

// Len returns the number of entries in the local tier
func (cache *Cache) Len() int {
	return cache.local.Len()
}

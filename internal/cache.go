// Copyright 2023 UMH Systems GmbH
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

package internal

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/heptiolabs/healthcheck"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CacheOptions contains the settings of a TieredCache
type CacheOptions struct {
	// RedisURIs is empty for a memory only cache.
	// A single URI connects directly, more than one are treated as sentinels.
	RedisURIs     []string
	RedisPassword string
	RedisDB       int
	// MemoryExpiration defaults to TenSeconds
	MemoryExpiration time.Duration
	// RedisExpiration defaults to TwelveHours
	RedisExpiration time.Duration
}

// TieredCache is a memory cache in front of an optional redis instance.
// Redis failures never fail a caller, the cache simply reports a miss.
type TieredCache struct {
	rdb                  *redis.Client
	memCache             *cache.Cache
	memoryDataExpiration time.Duration
	redisDataExpiration  time.Duration
}

// NewTieredCache initializes the memory cache and, if configured, the redis client
func NewTieredCache(options CacheOptions) *TieredCache {
	c := &TieredCache{
		memoryDataExpiration: options.MemoryExpiration,
		redisDataExpiration:  options.RedisExpiration,
	}
	if c.memoryDataExpiration <= 0 {
		c.memoryDataExpiration = TenSeconds
	}
	if c.redisDataExpiration <= 0 {
		c.redisDataExpiration = TwelveHours
	}
	c.memCache = cache.New(c.memoryDataExpiration, 2*c.memoryDataExpiration)

	uris := make([]string, 0, len(options.RedisURIs))
	for _, uri := range options.RedisURIs {
		if uri != "" {
			uris = append(uris, uri)
		}
	}

	switch len(uris) {
	case 0:
		zap.S().Infof("No redis configured, using memory cache only")
	case 1:
		zap.S().Debugf("Initializing redis cache at %s", uris[0])
		c.rdb = redis.NewClient(&redis.Options{
			Addr:     uris[0],
			Password: options.RedisPassword,
			DB:       options.RedisDB,
		})
	default:
		var failOverOptions = redis.FailoverOptions{
			MasterName:       RedisMasterName,
			SentinelAddrs:    uris,
			SentinelPassword: options.RedisPassword,
			Password:         options.RedisPassword,
			DB:               options.RedisDB,
		}
		zap.S().Debugf("Initializing redis failover cache with sentinels: %v", uris)
		c.rdb = redis.NewFailoverClient(&failOverOptions)
	}

	return c
}

// IsRedisAvailable pings redis, it returns false for a memory only cache
func (c *TieredCache) IsRedisAvailable(ctx context.Context) bool {
	if c.rdb == nil {
		return false
	}
	timeout, cancel := context.WithTimeout(ctx, TenSeconds)
	defer cancel()

	statusCmd := c.rdb.Ping(timeout)
	if statusCmd.Val() == "PONG" {
		return true
	}
	zap.S().Debugf("Redis Error: %s", statusCmd)
	return false
}

// GetHealthCheck fails while a configured redis is unreachable. A memory only cache is always healthy.
func (c *TieredCache) GetHealthCheck() healthcheck.Check {
	return func() error {
		if c.rdb == nil || c.IsRedisAvailable(context.Background()) {
			return nil
		}
		return errors.New("healthcheck failed to reach redis")
	}
}

// GetTiered attempts to get key from the memory cache, if that fails it falls back to redis
func (c *TieredCache) GetTiered(ctx context.Context, key string) (value []byte, cached bool) {
	var v interface{}
	v, cached = c.memCache.Get(key)
	if cached {
		value, cached = v.([]byte)
		return
	}
	if c.rdb == nil {
		return nil, false
	}

	redisCtx, cancel := context.WithTimeout(ctx, c.memoryDataExpiration)
	defer cancel()

	value, err := c.rdb.Get(redisCtx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.S().Debugf("Redis lookup of %s failed: %s", key, err)
		}
		return nil, false
	}

	// Write back to memCache
	c.memCache.SetDefault(key, value)
	return value, true
}

// SetTiered sets the memory cache and redis, redis entries expire after redisExpiration
func (c *TieredCache) SetTiered(ctx context.Context, key string, value []byte, redisExpiration time.Duration) {
	c.memCache.SetDefault(key, value)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, value, redisExpiration).Err(); err != nil {
		zap.S().Warnf("Failed to write %s to redis: %s", key, err)
	}
}

// SetTieredLongTerm calls SetTiered with the default redis expiration
func (c *TieredCache) SetTieredLongTerm(ctx context.Context, key string, value []byte) {
	c.SetTiered(ctx, key, value, c.redisDataExpiration)
}

func (c *TieredCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

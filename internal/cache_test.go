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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTieredCacheMemoryOnly(t *testing.T) {
	c := NewTieredCache(CacheOptions{RedisURIs: []string{"", ""}})
	defer c.Close()

	ctx := context.Background()
	assert.False(t, c.IsRedisAvailable(ctx))

	_, cached := c.GetTiered(ctx, "missing")
	assert.False(t, cached)

	c.SetTieredLongTerm(ctx, "key", []byte("value"))
	value, cached := c.GetTiered(ctx, "key")
	assert.True(t, cached)
	assert.Equal(t, []byte("value"), value)
}

func TestTieredCacheHealthCheck(t *testing.T) {
	memoryOnly := NewTieredCache(CacheOptions{})
	assert.NoError(t, memoryOnly.GetHealthCheck()())

	// nothing listens on port 1
	unreachable := NewTieredCache(CacheOptions{RedisURIs: []string{"127.0.0.1:1"}})
	defer unreachable.Close()
	assert.False(t, unreachable.IsRedisAvailable(context.Background()))
	assert.EqualError(t, unreachable.GetHealthCheck()(), "healthcheck failed to reach redis")

	// redis failures are reported as misses
	_, cached := unreachable.GetTiered(context.Background(), "key")
	assert.False(t, cached)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(CacheKeyMetrics, []byte("snapshot"))
	b := CacheKey(CacheKeyMetrics, []byte("snapshot"))
	c := CacheKey(CacheKeyMetrics, []byte("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len(CacheKeyMetrics)+32)
}

func TestAsXXHashConcatenates(t *testing.T) {
	assert.Equal(t, AsXXHash([]byte("ab"), []byte("c")), AsXXHash([]byte("abc")))
	assert.Len(t, AsXXHash(), 16)
}

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

package postgresql

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/heptiolabs/healthcheck"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.uber.org/zap"
)

// ErrOrderNotFound is returned for orders without a work_order row
var ErrOrderNotFound = datamodel.ErrOrderNotFound

// PgxIface is the subset of pgxpool.Pool used by Connection, so that pgxmock can stand in
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Connection struct {
	db             PgxIface
	cycleTimeCache *lru.ARCCache
	lruHits        atomic.Uint64
	lruMisses      atomic.Uint64
}

var conn *Connection
var once sync.Once

const (
	connectRetries  = 10
	connectSlotTime = 100 * time.Millisecond
)

// GetOrInit connects to the database configured by the POSTGRES_* environment variables.
// It exits the process if the database stays unreachable.
func GetOrInit() *Connection {
	once.Do(func() {
		zap.S().Debugf("Setting up postgresql")
		PQHost, err := env.GetAsString("POSTGRES_HOST", false, "db")
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_HOST from env: %s", err)
		}
		PQPort, err := env.GetAsInt("POSTGRES_PORT", false, 5432)
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_PORT from env: %s", err)
		}
		PQUser, err := env.GetAsString("POSTGRES_USER", true, "")
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_USER from env: %s", err)
		}
		PQPassword, err := env.GetAsString("POSTGRES_PASSWORD", true, "")
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_PASSWORD from env: %s", err)
		}
		PQDBName, err := env.GetAsString("POSTGRES_DATABASE", true, "")
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_DATABASE from env: %s", err)
		}
		PQSSLMode, err := env.GetAsString("POSTGRES_SSL_MODE", false, "require")
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_SSL_MODE from env: %s", err)
		}
		PQLRUSize, err := env.GetAsInt("POSTGRES_LRU_CACHE_SIZE", false, 1000)
		if err != nil {
			zap.S().Fatalf("Failed to get POSTGRES_LRU_CACHE_SIZE from env: %s", err)
		}

		zap.S().Infof("Connecting to %s@%s:%d/%s [%s]", PQUser, PQHost, PQPort, PQDBName, PQSSLMode)
		conString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", PQHost, PQPort, PQUser, PQPassword, PQDBName, PQSSLMode)

		var db *pgxpool.Pool
		err = internal.Retry(context.Background(), "connecting to postgres", connectRetries, connectSlotTime, internal.TenSeconds, func(ctx context.Context) error {
			establishCtx, establishCancel := context.WithTimeout(ctx, internal.FiveSeconds)
			defer establishCancel()

			pool, err := pgxpool.New(establishCtx, conString)
			if err != nil {
				return err
			}
			if err = pool.Ping(establishCtx); err != nil {
				pool.Close()
				return err
			}
			db = pool
			return nil
		})
		if err != nil {
			zap.S().Fatalf("Database is not available: %s", err)
		}

		conn, err = NewConnection(db, PQLRUSize)
		if err != nil {
			zap.S().Fatalf("Failed to create connection: %s", err)
		}
	})
	return conn
}

// NewConnection wraps an open pool. lruSize bounds the product cycle time cache.
func NewConnection(db PgxIface, lruSize int) (*Connection, error) {
	cache, err := lru.NewARC(lruSize)
	if err != nil {
		return nil, fmt.Errorf("creating ARC: %w", err)
	}
	return &Connection{db: db, cycleTimeCache: cache}, nil
}

func (c *Connection) IsAvailable() bool {
	if c.db == nil {
		return false
	}
	ctx, cncl := context.WithTimeout(context.Background(), internal.FiveSeconds)
	defer cncl()
	err := c.db.Ping(ctx)
	if err != nil {
		zap.S().Debugf("Failed to ping database: %s", err)
		return false
	}
	return true
}

func (c *Connection) GetHealthCheck() healthcheck.Check {
	return func() error {
		if c.IsAvailable() {
			return nil
		}
		return errors.New("healthcheck failed to reach database")
	}
}

// LRUHitPercentage reports how often the product cycle time was served from cache
func (c *Connection) LRUHitPercentage() float64 {
	hits := c.lruHits.Load()
	total := hits + c.lruMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (c *Connection) Close() {
	if c.db != nil {
		c.db.Close()
	}
}

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

package dashboard

import (
	"context"
	"errors"
	"sync"

	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

// ErrNotComputed is returned before the first dashboard was committed
var ErrNotComputed = errors.New("dashboard not computed yet")

// Store holds the last committed dashboard.
// Commits are written through to the tiered cache, so a fresh replica can serve the
// dashboard of its peers until its own first cycle completed.
type Store struct {
	cache   *internal.TieredCache
	current *Dashboard
	mu      sync.RWMutex
}

func NewStore(cache *internal.TieredCache) *Store {
	return &Store{cache: cache}
}

// Commit replaces the current dashboard. It has the signature of a scheduler commit.
// A dashboard older than the current one is ignored.
func (s *Store) Commit(token uint64, d Dashboard) {
	d.Token = token

	s.mu.Lock()
	if s.current != nil && token < s.current.Token {
		current := s.current.Token
		s.mu.Unlock()
		zap.S().Debugw("Ignoring outdated dashboard", "token", token, "current", current)
		return
	}
	s.current = &d
	s.mu.Unlock()

	exportGauges(d)

	if s.cache == nil {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		zap.S().Errorw("Failed to marshal dashboard", "token", token, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), internal.FiveSeconds)
	defer cancel()
	s.cache.SetTieredLongTerm(ctx, internal.CacheKeyDashboard, data)
}

// Current returns the committed dashboard, falling back to the shared cache
func (s *Store) Current(ctx context.Context) (Dashboard, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()
	if current != nil {
		return *current, nil
	}

	if s.cache == nil {
		return Dashboard{}, ErrNotComputed
	}
	data, cached := s.cache.GetTiered(ctx, internal.CacheKeyDashboard)
	if !cached {
		return Dashboard{}, ErrNotComputed
	}

	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		zap.S().Warnw("Cached dashboard is unreadable", "error", err)
		return Dashboard{}, ErrNotComputed
	}
	return d, nil
}

// Order returns the report of one operating order
func (s *Store) Order(ctx context.Context, orderID string) (datamodel.OrderReport, error) {
	d, err := s.Current(ctx)
	if err != nil {
		return datamodel.OrderReport{}, err
	}
	report, ok := d.Orders[orderID]
	if !ok {
		return datamodel.OrderReport{}, datamodel.ErrOrderNotFound
	}
	return report, nil
}

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
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/efficiency"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Dashboard is the committed state shown to users
type Dashboard struct {
	ComputedAt time.Time                         `json:"computedAt"`
	Orders     map[string]datamodel.OrderReport `json:"orders"`
	OrderIDs   []string                          `json:"orderIds"`
	Fleet      datamodel.FleetKPIs               `json:"fleet"`
	Token      uint64                            `json:"token"`
}

// BuildOptions contains the reporting parameters of a Builder
type BuildOptions struct {
	Location *time.Location
	// UnitWeightKg defaults to efficiency.DefaultUnitWeightKg
	UnitWeightKg float64
	// MemoExpiration defaults to 10 minutes
	MemoExpiration time.Duration
}

// Builder turns snapshots into dashboards.
// Reports of unchanged orders are taken from a memo keyed by the snapshot content.
type Builder struct {
	memo     *cache.Cache
	options  BuildOptions
	location string
}

func NewBuilder(options BuildOptions) *Builder {
	if options.Location == nil {
		options.Location = time.UTC
	}
	if options.UnitWeightKg <= 0 {
		options.UnitWeightKg = efficiency.DefaultUnitWeightKg
	}
	if options.MemoExpiration <= 0 {
		options.MemoExpiration = 10 * time.Minute
	}
	return &Builder{
		memo:     cache.New(options.MemoExpiration, 2*options.MemoExpiration),
		options:  options,
		location: options.Location.String(),
	}
}

// Build computes every order report and the fleet rollup of snapshot, evaluated at at
func (b *Builder) Build(snapshot Snapshot, at time.Time) Dashboard {
	dashboard := Dashboard{
		ComputedAt: at,
		Orders:     make(map[string]datamodel.OrderReport, len(snapshot.Orders)),
	}

	summaries := make([]datamodel.OrderSummary, 0, len(snapshot.Orders))
	for i := range snapshot.Orders {
		order := &snapshot.Orders[i]

		report, err := b.report(order, at)
		if err != nil {
			zap.S().Warnw("Skipping order", "orderId", order.Detail.Context.OrderID, "error", err)
			continue
		}

		dashboard.Orders[report.Context.OrderID] = report
		summaries = append(summaries, datamodel.OrderSummary{
			OrderID:         report.Context.OrderID,
			Status:          report.Context.Status,
			PlannedQuantity: report.Context.PlannedQuantity,
			Metrics:         report.Metrics,
		})
	}

	dashboard.OrderIDs = maps.Keys(dashboard.Orders)
	slices.Sort(dashboard.OrderIDs)
	dashboard.Fleet = efficiency.RollupFleet(summaries, snapshot.Fleet, b.options.UnitWeightKg)

	return dashboard
}

func (b *Builder) report(order *datamodel.OrderSnapshot, at time.Time) (datamodel.OrderReport, error) {
	key, err := b.memoKey(order)
	if err == nil {
		if cached, found := b.memo.Get(key); found {
			memoHits.Inc()
			return efficiency.ReevaluateOrderReport(cached.(datamodel.OrderReport), at), nil
		}
	} else {
		zap.S().Debugw("Order snapshot not hashable, computing without memo", "error", err)
	}
	memoMisses.Inc()

	report, err := efficiency.ComputeOrderReport(
		order.Detail.Appointments,
		order.Downtimes,
		&order.Detail.Context,
		at,
		efficiency.Options{Location: b.options.Location},
	)
	if err != nil {
		return report, err
	}
	if key != "" {
		b.memo.SetDefault(key, report)
	}
	return report, nil
}

func (b *Builder) memoKey(order *datamodel.OrderSnapshot) (string, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return "", err
	}
	return internal.CacheKey(internal.CacheKeyMetrics, data, []byte(b.location)), nil
}

// Refresher is the cycle of a refresh scheduler: fetch a snapshot and build the dashboard
type Refresher struct {
	providers Providers
	builder   *Builder
	now       func() time.Time
}

func NewRefresher(providers Providers, builder *Builder) *Refresher {
	return &Refresher{
		providers: providers,
		builder:   builder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Refresher) Cycle(ctx context.Context, token uint64) (Dashboard, error) {
	snapshot, err := Fetch(ctx, r.providers)
	if err != nil {
		return Dashboard{}, err
	}
	dashboard := r.builder.Build(snapshot, r.now())
	dashboard.Token = token
	return dashboard, nil
}

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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/helper"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
)

var orderStart = time.Date(2023, 5, 1, 6, 0, 0, 0, time.UTC)

type fakeProvider struct {
	orders      map[string]datamodel.OrderDetail
	listed      []string
	downtimes   map[string][]datamodel.DowntimeInterval
	aggregates  datamodel.FleetAggregates
	listErr     error
	downtimeErr error
}

func (f *fakeProvider) GetOperatingOrderIDs(ctx context.Context) ([]string, error) {
	return f.listed, f.listErr
}

func (f *fakeProvider) GetOrderDetail(ctx context.Context, orderID string) (datamodel.OrderDetail, error) {
	detail, ok := f.orders[orderID]
	if !ok {
		return detail, datamodel.ErrOrderNotFound
	}
	return detail, nil
}

func (f *fakeProvider) GetDowntimes(ctx context.Context, orderID string) ([]datamodel.DowntimeInterval, error) {
	return f.downtimes[orderID], f.downtimeErr
}

func (f *fakeProvider) GetFleetAggregates(ctx context.Context) (datamodel.FleetAggregates, error) {
	return f.aggregates, nil
}

func (f *fakeProvider) providers() Providers {
	return Providers{Orders: f, Downtimes: f, Fleet: f}
}

func newFakeProvider() *fakeProvider {
	start := orderStart
	end := start.Add(15 * time.Minute)
	return &fakeProvider{
		listed: []string{"B-2", "A-1", "gone"},
		orders: map[string]datamodel.OrderDetail{
			"A-1": {
				Context: datamodel.OrderContext{
					OrderID: "A-1", Status: datamodel.OrderActive, AssetID: "1", PlannedQuantity: 1000,
					IdealCycleTimeSeconds: 1, TimeDivisor: 10, StartTime: &start,
				},
				Appointments: []datamodel.Appointment{
					{ID: "1", TimestampUtc: start.Add(time.Minute), IsAutomatic: true, TimeValue: 100, PieceCount: 10},
				},
			},
			"B-2": {
				Context: datamodel.OrderContext{
					OrderID: "B-2", Status: datamodel.OrderPaused, AssetID: "2", PlannedQuantity: 10,
					IdealCycleTimeSeconds: 2, TimeDivisor: 10, RejectedQuantityTotal: 1,
				},
				Appointments: []datamodel.Appointment{
					{ID: "2", TimestampUtc: start, TimeValue: 4, PieceCount: 2},
				},
			},
		},
		downtimes: map[string][]datamodel.DowntimeInterval{
			"A-1": {{ID: "d", Category: datamodel.DowntimeUnproductive, StartUtc: start.Add(5 * time.Minute), EndUtc: &end}},
		},
		aggregates: datamodel.FleetAggregates{
			ActiveMachines: 2,
			Defects:        []datamodel.DefectTally{{DefectType: "scratch", Quantity: 1}},
		},
	}
}

func TestFetch(t *testing.T) {
	helper.InitTestLogging()
	provider := newFakeProvider()

	snapshot, err := Fetch(context.Background(), provider.providers())
	require.NoError(t, err)

	require.Len(t, snapshot.Orders, 2)
	assert.Equal(t, "B-2", snapshot.Orders[0].Detail.Context.OrderID)
	assert.Equal(t, "A-1", snapshot.Orders[1].Detail.Context.OrderID)
	assert.Len(t, snapshot.Orders[1].Downtimes, 1)
	assert.Equal(t, 2, snapshot.Fleet.ActiveMachines)
}

func TestFetchFailsOnProviderError(t *testing.T) {
	provider := newFakeProvider()
	provider.downtimeErr = errors.New("connection reset")

	_, err := Fetch(context.Background(), provider.providers())
	assert.ErrorContains(t, err, "connection reset")

	provider = newFakeProvider()
	provider.listErr = errors.New("timeout")
	_, err = Fetch(context.Background(), provider.providers())
	assert.ErrorContains(t, err, "listing operating orders")
}

func TestBuild(t *testing.T) {
	provider := newFakeProvider()
	snapshot, err := Fetch(context.Background(), provider.providers())
	require.NoError(t, err)

	at := orderStart.Add(time.Hour)
	d := NewBuilder(BuildOptions{}).Build(snapshot, at)

	assert.Equal(t, []string{"A-1", "B-2"}, d.OrderIDs)
	assert.Equal(t, at, d.ComputedAt)

	a := d.Orders["A-1"]
	assert.InDelta(t, 10.0, a.Metrics.OEE, 1e-9)
	assert.Equal(t, 600.0, a.Downtime.TotalDowntimeSeconds)
	assert.Equal(t, 3600.0, a.Downtime.WindowSeconds)
	assert.Equal(t, datamodel.FactorPerformance, a.Diagnosis.LimitingFactor)

	b := d.Orders["B-2"]
	assert.Equal(t, 2, b.Metrics.TotalProduced)
	assert.Equal(t, 0.0, b.Downtime.WindowSeconds)

	assert.Equal(t, 2, d.Fleet.OperatingOrders)
	assert.Equal(t, 12, d.Fleet.TotalProduced)
	assert.InDelta(t, 3.0, d.Fleet.EstimatedWeightKg, 1e-9)
	assert.Equal(t, 2, d.Fleet.ActiveMachines)
}

func TestBuildMemoDoesNotChangeResults(t *testing.T) {
	provider := newFakeProvider()
	snapshot, err := Fetch(context.Background(), provider.providers())
	require.NoError(t, err)

	builder := NewBuilder(BuildOptions{})
	first := builder.Build(snapshot, orderStart.Add(time.Hour))

	later := orderStart.Add(3 * time.Hour)
	memoized := builder.Build(snapshot, later)
	fresh := NewBuilder(BuildOptions{}).Build(snapshot, later)

	assert.Equal(t, fresh, memoized)
	assert.Equal(t, 3600.0, first.Orders["A-1"].Downtime.WindowSeconds)
	assert.Equal(t, 3*3600.0, memoized.Orders["A-1"].Downtime.WindowSeconds)
}

func TestBuildMemoDetectsChanges(t *testing.T) {
	provider := newFakeProvider()
	builder := NewBuilder(BuildOptions{})

	snapshot, err := Fetch(context.Background(), provider.providers())
	require.NoError(t, err)
	before := builder.Build(snapshot, orderStart.Add(time.Hour))

	detail := provider.orders["B-2"]
	detail.Appointments = append(detail.Appointments, datamodel.Appointment{ID: "3", TimestampUtc: orderStart, TimeValue: 4, PieceCount: 3})
	provider.orders["B-2"] = detail

	snapshot, err = Fetch(context.Background(), provider.providers())
	require.NoError(t, err)
	after := builder.Build(snapshot, orderStart.Add(time.Hour))

	assert.Equal(t, 2, before.Orders["B-2"].Metrics.TotalProduced)
	assert.Equal(t, 5, after.Orders["B-2"].Metrics.TotalProduced)
}

func TestBuildSkipsOrdersWithoutIdentity(t *testing.T) {
	snapshot := Snapshot{Orders: []datamodel.OrderSnapshot{{Detail: datamodel.OrderDetail{Context: datamodel.OrderContext{PlannedQuantity: 5}}}}}

	d := NewBuilder(BuildOptions{}).Build(snapshot, orderStart)

	assert.Empty(t, d.Orders)
	assert.Equal(t, 0, d.Fleet.OperatingOrders)
}

func TestRefresherCycle(t *testing.T) {
	provider := newFakeProvider()
	refresher := NewRefresher(provider.providers(), NewBuilder(BuildOptions{}))

	d, err := refresher.Cycle(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), d.Token)
	assert.Len(t, d.Orders, 2)

	provider.listErr = errors.New("down")
	_, err = refresher.Cycle(context.Background(), 8)
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	cache := internal.NewTieredCache(internal.CacheOptions{})
	store := NewStore(cache)

	_, err := store.Current(ctx)
	assert.ErrorIs(t, err, ErrNotComputed)
	_, err = store.Order(ctx, "A-1")
	assert.ErrorIs(t, err, ErrNotComputed)

	provider := newFakeProvider()
	snapshot, err := Fetch(ctx, provider.providers())
	require.NoError(t, err)
	store.Commit(3, NewBuilder(BuildOptions{}).Build(snapshot, orderStart.Add(time.Hour)))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), current.Token)

	report, err := store.Order(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, "A-1", report.Context.OrderID)

	_, err = store.Order(ctx, "unknown")
	assert.ErrorIs(t, err, datamodel.ErrOrderNotFound)

	// an older dashboard arriving late does not replace the current one
	store.Commit(2, Dashboard{})
	current, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), current.Token)
	assert.NotEmpty(t, current.OrderIDs)

	// a second store sharing the cache serves the committed dashboard
	peer, err := NewStore(cache).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), peer.Token)
	assert.Equal(t, current.OrderIDs, peer.OrderIDs)
	assert.InDelta(t, current.Fleet.OEE, peer.Fleet.OEE, 1e-9)
}

func TestRegisterRuntimeStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	RegisterRuntimeStats(registry, RuntimeStats{
		CycleTimeCacheHitPercentage: func() float64 { return 50 },
		MQTTMessages:                func() (uint64, uint64) { return 4, 1 },
	})

	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		metric := family.GetMetric()[0]
		if metric.GetGauge() != nil {
			values[family.GetName()] = metric.GetGauge().GetValue()
		} else {
			values[family.GetName()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"efficiency_cycle_time_cache_hit_percent": 50,
		"efficiency_mqtt_messages_received_total": 4,
		"efficiency_mqtt_duplicates_total":        1,
	}, values)
}

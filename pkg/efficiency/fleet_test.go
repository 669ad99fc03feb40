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

package efficiency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
)

func TestRollupFleet(t *testing.T) {
	orders := []datamodel.OrderSummary{
		{OrderID: "1", Status: datamodel.OrderActive, PlannedQuantity: 100, Metrics: datamodel.EfficiencyMetrics{
			TotalProduced: 40, TotalRejected: 2, Availability: 80, Performance: 90, Quality: 100, OEE: 72,
		}},
		{OrderID: "2", Status: datamodel.OrderPaused, PlannedQuantity: 50, Metrics: datamodel.EfficiencyMetrics{
			TotalProduced: 20, TotalRejected: 4, Availability: 60, Performance: 70, Quality: 90, OEE: 37.8,
		}},
		{OrderID: "3", Status: datamodel.OrderFinished, PlannedQuantity: 999, Metrics: datamodel.EfficiencyMetrics{
			TotalProduced: 999, Availability: 1, Performance: 1, Quality: 1, OEE: 0,
		}},
	}
	aggregates := datamodel.FleetAggregates{
		ActiveMachines: 3,
		Defects: []datamodel.DefectTally{
			{DefectType: "scratch", Quantity: 4},
			{DefectType: "dent", Quantity: 9},
			{DefectType: "burr", Quantity: 4},
			{DefectType: "crack", Quantity: 1},
			{DefectType: "bubble", Quantity: 2},
			{DefectType: "warp", Quantity: 1},
		},
	}

	kpis := RollupFleet(orders, aggregates, DefaultUnitWeightKg)

	assert.Equal(t, 2, kpis.OperatingOrders)
	assert.Equal(t, 150, kpis.TotalPlanned)
	assert.Equal(t, 60, kpis.TotalProduced)
	assert.Equal(t, 6, kpis.TotalRejected)
	assert.InDelta(t, 70.0, kpis.Availability, 1e-9)
	assert.InDelta(t, 80.0, kpis.Performance, 1e-9)
	assert.InDelta(t, 95.0, kpis.Quality, 1e-9)
	assert.InDelta(t, 54.9, kpis.OEE, 1e-9)
	assert.InDelta(t, 15.0, kpis.EstimatedWeightKg, 1e-9)
	assert.Equal(t, 3, kpis.ActiveMachines)
	assert.Equal(t, []datamodel.DefectTally{
		{DefectType: "dent", Quantity: 9},
		{DefectType: "burr", Quantity: 4},
		{DefectType: "scratch", Quantity: 4},
		{DefectType: "bubble", Quantity: 2},
		{DefectType: "crack", Quantity: 1},
	}, kpis.TopDefects)

	// input order is untouched
	assert.Equal(t, "scratch", aggregates.Defects[0].DefectType)
}

func TestRollupFleetWithoutOperatingOrders(t *testing.T) {
	kpis := RollupFleet([]datamodel.OrderSummary{{OrderID: "1", Status: datamodel.OrderCancelled}}, datamodel.FleetAggregates{}, DefaultUnitWeightKg)

	assert.Equal(t, 0, kpis.OperatingOrders)
	assert.Equal(t, 0.0, kpis.OEE)
	assert.Equal(t, 0.0, kpis.Availability)
	assert.Equal(t, 0.0, kpis.EstimatedWeightKg)
	assert.Empty(t, kpis.TopDefects)
}

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
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// TopDefects is the number of defect types in FleetKPIs.TopDefects
const TopDefects = 5

// DefaultUnitWeightKg is the weight of one piece used for the fleet weight estimate
const DefaultUnitWeightKg = 0.25

// RollupFleet merges the metrics of all operating orders into company wide KPIs.
// The OEE components are simple means across orders, not weighted by production.
// Orders that are finished or cancelled are ignored.
func RollupFleet(orders []datamodel.OrderSummary, aggregates datamodel.FleetAggregates, unitWeightKg float64) (kpis datamodel.FleetKPIs) {
	var availability, performance, quality, oee []float64

	for _, order := range orders {
		if !order.Status.IsOperating() {
			continue
		}
		kpis.OperatingOrders++
		kpis.TotalPlanned += order.PlannedQuantity
		kpis.TotalProduced += order.Metrics.TotalProduced
		kpis.TotalRejected += order.Metrics.TotalRejected

		availability = append(availability, order.Metrics.Availability)
		performance = append(performance, order.Metrics.Performance)
		quality = append(quality, order.Metrics.Quality)
		oee = append(oee, order.Metrics.OEE)
	}

	if kpis.OperatingOrders > 0 {
		kpis.Availability = stat.Mean(availability, nil)
		kpis.Performance = stat.Mean(performance, nil)
		kpis.Quality = stat.Mean(quality, nil)
		kpis.OEE = stat.Mean(oee, nil)
	}

	kpis.EstimatedWeightKg = float64(kpis.TotalProduced) * unitWeightKg
	kpis.ActiveMachines = aggregates.ActiveMachines
	kpis.TopDefects = topDefects(aggregates.Defects, TopDefects)

	return
}

// topDefects returns the n defect types with the highest quantity, ties ordered by name
func topDefects(defects []datamodel.DefectTally, n int) []datamodel.DefectTally {
	sorted := make([]datamodel.DefectTally, len(defects))
	copy(sorted, defects)

	slices.SortStableFunc(sorted, func(a, b datamodel.DefectTally) int {
		switch {
		case a.Quantity > b.Quantity:
			return -1
		case a.Quantity < b.Quantity:
			return 1
		case a.DefectType < b.DefectType:
			return -1
		case a.DefectType > b.DefectType:
			return 1
		}
		return 0
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

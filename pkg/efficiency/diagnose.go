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
	"math"

	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"golang.org/x/exp/slices"
)

// ExcellentOEE is the OEE from which no bottleneck analysis is done
const ExcellentOEE = 85

// SecondaryWarningGap is how far below its target the second lowest factor must be to be reported
const SecondaryWarningGap = 5

// Targets are the world class values of the three factors
var Targets = map[datamodel.Factor]float64{
	datamodel.FactorAvailability: 90,
	datamodel.FactorPerformance:  95,
	datamodel.FactorQuality:      99,
}

// DiagnoseBottleneck identifies the factor limiting the OEE and estimates the gain of bringing it to its target.
// The counterfactual OEE uses max(value, target) for the limiting factor, so a limiting factor
// already at or above its target keeps its value and the potential gain is zero instead of negative.
func DiagnoseBottleneck(metrics datamodel.EfficiencyMetrics) (diagnosis datamodel.Diagnosis) {
	diagnosis.OEE = metrics.OEE
	if metrics.OEE >= ExcellentOEE {
		diagnosis.Excellent = true
		return
	}

	ranked := rankFactors(metrics)
	limiting := ranked[0]

	value := limiting.Value(metrics)
	target := Targets[limiting]

	diagnosis.LimitingFactor = limiting
	diagnosis.GapToTarget = target - value

	// A factor already above its target is never lowered
	improved := map[datamodel.Factor]float64{
		datamodel.FactorAvailability: metrics.Availability,
		datamodel.FactorPerformance:  metrics.Performance,
		datamodel.FactorQuality:      metrics.Quality,
	}
	improved[limiting] = math.Max(value, target)

	diagnosis.CounterfactualOEE = CalculateOEE(
		improved[datamodel.FactorAvailability],
		improved[datamodel.FactorPerformance],
		improved[datamodel.FactorQuality],
	)
	diagnosis.PotentialGain = diagnosis.CounterfactualOEE - metrics.OEE
	diagnosis.Recommendations = Recommendations(limiting)

	second := ranked[1]
	secondGap := Targets[second] - second.Value(metrics)
	if secondGap > SecondaryWarningGap {
		diagnosis.SecondaryWarning = &datamodel.SecondaryWarning{
			Factor:      second,
			GapToTarget: secondGap,
		}
	}

	return
}

// rankFactors orders the factors ascending by value. Ties keep the priority availability, performance, quality.
func rankFactors(metrics datamodel.EfficiencyMetrics) []datamodel.Factor {
	ranked := make([]datamodel.Factor, len(datamodel.Factors))
	copy(ranked, datamodel.Factors)

	slices.SortStableFunc(ranked, func(a, b datamodel.Factor) int {
		switch {
		case a.Value(metrics) < b.Value(metrics):
			return -1
		case a.Value(metrics) > b.Value(metrics):
			return 1
		}
		return 0
	})
	return ranked
}

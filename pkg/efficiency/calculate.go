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
)

const secondsPerHour = 3600

// CalculateQuality returns the share of good pieces. Without any piece quality is 100.
func CalculateQuality(totalProduced int, totalRejected int) float64 {
	totalPieces := totalProduced + totalRejected
	if totalPieces <= 0 {
		return 100
	}
	return capPercentage(float64(totalProduced) / float64(totalPieces) * 100)
}

// CalculatePerformance returns ideal cycle time / actual average cycle time
func CalculatePerformance(idealCycleTimeSeconds float64, averageCycleSeconds float64) float64 {
	if averageCycleSeconds <= 0 || idealCycleTimeSeconds <= 0 {
		return 100
	}
	return capPercentage(idealCycleTimeSeconds / averageCycleSeconds * 100)
}

// CalculateAvailability infers availability from the gap between ideal and actual production time.
// It does not look at recorded downtime, see DowntimeAvailability for that.
func CalculateAvailability(totalPieces int, idealCycleTimeSeconds float64, totalDurationSeconds float64) float64 {
	if totalDurationSeconds <= 0 {
		return 100
	}
	idealProductionTimeSeconds := float64(totalPieces) * idealCycleTimeSeconds
	return capPercentage(idealProductionTimeSeconds / totalDurationSeconds * 100)
}

// CalculateOEE multiplies the three factors. It is the only place OEE is derived.
func CalculateOEE(availability float64, performance float64, quality float64) float64 {
	return (availability / 100) * (performance / 100) * (quality / 100) * 100
}

// CalculateEfficiency turns aggregated totals and the order parameters into EfficiencyMetrics.
// An ideal cycle time of 0 means unknown and falls back to the measured average, so performance becomes 100.
func CalculateEfficiency(totals Totals, orderContext datamodel.OrderContext) (metrics datamodel.EfficiencyMetrics) {
	metrics.TotalProduced = totals.TotalProduced
	metrics.TotalRejected = totals.TotalRejected
	metrics.Remaining = totals.Remaining
	metrics.AppointmentCount = totals.AppointmentCount
	metrics.AverageCycleSeconds = totals.AverageCycleSeconds
	metrics.TotalDurationSeconds = totals.TotalDurationSeconds
	metrics.CompletionPercentage = totals.CompletionPercentage

	idealCycleTimeSeconds := nonNegative(orderContext.IdealCycleTimeSeconds)
	if idealCycleTimeSeconds == 0 {
		idealCycleTimeSeconds = totals.AverageCycleSeconds
	}

	totalPieces := totals.TotalProduced + totals.TotalRejected

	metrics.Quality = CalculateQuality(totals.TotalProduced, totals.TotalRejected)
	metrics.Performance = CalculatePerformance(idealCycleTimeSeconds, totals.AverageCycleSeconds)
	metrics.Availability = CalculateAvailability(totalPieces, idealCycleTimeSeconds, totals.TotalDurationSeconds)
	metrics.OEE = CalculateOEE(metrics.Availability, metrics.Performance, metrics.Quality)

	metrics.ProductionHours = totals.TotalDurationSeconds / secondsPerHour
	if totals.TotalDurationSeconds > 0 {
		metrics.ProductivityPiecesPerHour = float64(totals.TotalProduced) / totals.TotalDurationSeconds * secondsPerHour
	}

	// Without downtime information both estimates agree
	metrics.DowntimeAvailability = 100

	return
}

func capPercentage(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, 100)
}

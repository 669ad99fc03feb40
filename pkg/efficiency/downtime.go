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
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
)

// LongestDowntimes is the number of intervals in DowntimeSummary.Longest
const LongestDowntimes = 5

// DowntimeDuration returns the duration of an interval in seconds.
// An explicit duration wins over start and end. Open intervals (no end) count as 0.
func DowntimeDuration(interval datamodel.DowntimeInterval) (seconds float64, open bool) {
	if interval.DurationSeconds != nil {
		return nonNegative(*interval.DurationSeconds), false
	}
	if interval.EndUtc == nil {
		return 0, true
	}
	return nonNegative(interval.EndUtc.Sub(interval.StartUtc).Seconds()), false
}

type measuredInterval struct {
	interval datamodel.DowntimeInterval
	seconds  float64
}

// ClassifyDowntime folds downtime intervals into per category totals and shares of the window [from, to].
// Still open intervals are excluded until they are closed.
func ClassifyDowntime(intervals []datamodel.DowntimeInterval, from time.Time, to time.Time) (summary datamodel.DowntimeSummary) {
	perCategory := make(map[datamodel.DowntimeCategory][]float64, len(datamodel.DowntimeCategories))
	measured := make([]measuredInterval, 0, len(intervals))

	for _, interval := range intervals {
		seconds, open := DowntimeDuration(interval)
		if open {
			summary.OpenIntervals++
			continue
		}
		category := interval.Category
		if !slices.Contains(datamodel.DowntimeCategories, category) {
			// Unclassified stops are treated as unplanned
			category = datamodel.DowntimeUnproductive
		}
		perCategory[category] = append(perCategory[category], seconds)
		measured = append(measured, measuredInterval{interval: interval, seconds: seconds})
	}

	summary.TotalSeconds = make(map[datamodel.DowntimeCategory]float64, len(datamodel.DowntimeCategories))
	summary.ShareOfDowntime = make(map[datamodel.DowntimeCategory]float64, len(datamodel.DowntimeCategories))
	for _, category := range datamodel.DowntimeCategories {
		total := floats.Sum(perCategory[category])
		summary.TotalSeconds[category] = total
		summary.TotalDowntimeSeconds += total
	}

	for _, category := range datamodel.DowntimeCategories {
		if summary.TotalDowntimeSeconds > 0 {
			summary.ShareOfDowntime[category] = summary.TotalSeconds[category] / summary.TotalDowntimeSeconds * 100
		} else {
			summary.ShareOfDowntime[category] = 0
		}
	}

	summary = WithWindow(summary, from, to)
	summary.Longest = longestIntervals(measured, LongestDowntimes)

	return
}

// WithWindow returns summary with its window shares recomputed for [from, to].
// Totals and shares of downtime do not depend on the window.
func WithWindow(summary datamodel.DowntimeSummary, from time.Time, to time.Time) datamodel.DowntimeSummary {
	summary.WindowSeconds = nonNegative(to.Sub(from).Seconds())
	summary.DowntimeWindowPercentage = 0
	summary.ProductiveWindowPercentage = 0
	if summary.WindowSeconds > 0 {
		summary.DowntimeWindowPercentage = math.Min(summary.TotalDowntimeSeconds/summary.WindowSeconds*100, 100)
		summary.ProductiveWindowPercentage = 100 - summary.DowntimeWindowPercentage
	}
	return summary
}

// longestIntervals sorts descending by duration, ties broken by the earlier start
func longestIntervals(measured []measuredInterval, n int) []datamodel.DowntimeInterval {
	slices.SortStableFunc(measured, func(a, b measuredInterval) int {
		switch {
		case a.seconds > b.seconds:
			return -1
		case a.seconds < b.seconds:
			return 1
		case a.interval.StartUtc.Before(b.interval.StartUtc):
			return -1
		case a.interval.StartUtc.After(b.interval.StartUtc):
			return 1
		}
		return 0
	})

	if len(measured) > n {
		measured = measured[:n]
	}

	longest := make([]datamodel.DowntimeInterval, 0, len(measured))
	for _, m := range measured {
		longest = append(longest, cloneInterval(m.interval))
	}
	return longest
}

func cloneInterval(interval datamodel.DowntimeInterval) datamodel.DowntimeInterval {
	if interval.EndUtc != nil {
		end := *interval.EndUtc
		interval.EndUtc = &end
	}
	if interval.DurationSeconds != nil {
		seconds := *interval.DurationSeconds
		interval.DurationSeconds = &seconds
	}
	return interval
}

// DowntimeAvailability estimates availability from recorded downtime.
// Unproductive and productive (setup) stops are losses; planned stops are outside the planned production time.
func DowntimeAvailability(summary datamodel.DowntimeSummary, runSeconds float64) float64 {
	loss := summary.TotalSeconds[datamodel.DowntimeUnproductive] + summary.TotalSeconds[datamodel.DowntimeProductive]
	planned := runSeconds + loss
	if planned <= 0 {
		return 100
	}
	return math.Min(runSeconds/planned*100, 100)
}

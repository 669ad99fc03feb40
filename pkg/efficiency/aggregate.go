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
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DailyHistogramBuckets is the number of most recent days kept for the trend display
const DailyHistogramBuckets = 10

// dateLayout is used as key for the daily histogram
const dateLayout = "2006-01-02"

// Totals contains the folded appointments of one order
type Totals struct {
	DailyProduction      []datamodel.DailyProduction
	TotalProduced        int
	TotalRejected        int
	AppointmentCount     int
	PlannedQuantity      int
	TotalDurationSeconds float64
	AverageCycleSeconds  float64
	// Remaining is negative on over-production
	Remaining            int
	CompletionPercentage float64
}

// Aggregate folds normalized appointments into order totals.
// Rejected pieces are taken from the order, not from the appointments, to avoid counting them twice.
// The daily histogram is grouped by calendar date in loc (UTC if nil).
// Appointments without a timestamp count towards the totals but not towards the histogram.
func Aggregate(appointments []NormalizedAppointment, orderContext datamodel.OrderContext, loc *time.Location) (totals Totals) {
	if loc == nil {
		loc = time.UTC
	}

	daily := make(map[string]int)
	for _, appointment := range appointments {
		totals.TotalProduced += appointment.PiecesGood
		totals.TotalDurationSeconds += appointment.DurationSeconds
		totals.AppointmentCount++

		if appointment.Timestamp.IsZero() {
			continue
		}
		daily[appointment.Timestamp.In(loc).Format(dateLayout)] += appointment.PiecesGood
	}

	totals.TotalRejected = maxInt(orderContext.RejectedQuantityTotal, 0)
	totals.PlannedQuantity = orderContext.PlannedQuantity

	if totals.AppointmentCount > 0 {
		totals.AverageCycleSeconds = totals.TotalDurationSeconds / float64(totals.AppointmentCount)
	}

	totals.Remaining = orderContext.PlannedQuantity - totals.TotalProduced - totals.TotalRejected

	if orderContext.PlannedQuantity > 0 {
		totals.CompletionPercentage = float64(totals.TotalProduced) / float64(orderContext.PlannedQuantity) * 100
	}

	totals.DailyProduction = dailyHistogram(daily, DailyHistogramBuckets)

	return
}

// dailyHistogram sorts the buckets ascending by date and keeps only the most recent keep buckets
func dailyHistogram(daily map[string]int, keep int) []datamodel.DailyProduction {
	dates := maps.Keys(daily)
	// ISO dates sort lexically
	slices.Sort(dates)

	if len(dates) > keep {
		dates = dates[len(dates)-keep:]
	}

	histogram := make([]datamodel.DailyProduction, 0, len(dates))
	for _, date := range dates {
		histogram = append(histogram, datamodel.DailyProduction{Date: date, Pieces: daily[date]})
	}
	return histogram
}

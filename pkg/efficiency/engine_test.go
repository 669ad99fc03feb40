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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
)

func sampleOrder() (appointments []datamodel.Appointment, downtimes []datamodel.DowntimeInterval, orderContext datamodel.OrderContext) {
	start := time.Date(2023, 5, 1, 6, 0, 0, 0, time.UTC)
	orderContext = datamodel.OrderContext{
		OrderID:               "4711",
		Status:                datamodel.OrderActive,
		AssetID:               "press-1",
		PlannedQuantity:       1000,
		IdealCycleTimeSeconds: 1,
		TimeDivisor:           10,
		StartTime:             &start,
	}
	appointments = []datamodel.Appointment{
		{ID: "a1", TimestampUtc: start.Add(time.Minute), IsAutomatic: true, TimeValue: 100, PieceCount: 10},
	}
	downtimes = []datamodel.DowntimeInterval{
		closedInterval("d1", datamodel.DowntimeUnproductive, 10*time.Minute, 10*time.Second),
	}
	return
}

func TestComputeEfficiencyMetrics(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()

	metrics, err := ComputeEfficiencyMetrics(appointments, downtimes, &orderContext)
	require.NoError(t, err)

	assert.Equal(t, 10, metrics.TotalProduced)
	assert.InDelta(t, 10.0, metrics.OEE, 1e-9)
	assert.InDelta(t, 50.0, metrics.DowntimeAvailability, 1e-9)
}

func TestComputeEfficiencyMetricsMissingContext(t *testing.T) {
	appointments, downtimes, _ := sampleOrder()

	_, err := ComputeEfficiencyMetrics(appointments, downtimes, nil)
	assert.ErrorIs(t, err, ErrMissingContext)

	_, err = ComputeOrderReport(appointments, downtimes, &datamodel.OrderContext{PlannedQuantity: 5}, time.Now(), Options{})
	assert.ErrorIs(t, err, ErrMissingContext)
}

func TestComputeEfficiencyMetricsZeroPlannedQuantity(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()
	orderContext.PlannedQuantity = 0

	metrics, err := ComputeEfficiencyMetrics(appointments, downtimes, &orderContext)
	require.NoError(t, err)
	assert.Equal(t, 0.0, metrics.CompletionPercentage)
}

func TestComputeOrderReport(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()
	at := orderContext.StartTime.Add(time.Hour)

	report, err := ComputeOrderReport(appointments, downtimes, &orderContext, at, Options{})
	require.NoError(t, err)

	assert.Equal(t, at, report.ComputedAt)
	assert.Equal(t, orderContext, report.Context)
	assert.Equal(t, []datamodel.DailyProduction{{Date: "2023-05-01", Pieces: 10}}, report.DailyProduction)
	assert.Equal(t, 3600.0, report.Downtime.WindowSeconds)
	assert.Equal(t, 10.0, report.Downtime.TotalDowntimeSeconds)
	assert.Equal(t, datamodel.FactorPerformance, report.Diagnosis.LimitingFactor)
	assert.Equal(t, report.Metrics.OEE, report.Diagnosis.OEE)
}

func TestComputeOrderReportFinishedOrderUsesEndTime(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()
	end := orderContext.StartTime.Add(30 * time.Minute)
	orderContext.EndTime = &end
	orderContext.Status = datamodel.OrderFinished

	report, err := ComputeOrderReport(appointments, downtimes, &orderContext, end.Add(48*time.Hour), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1800.0, report.Downtime.WindowSeconds)
}

func TestComputeOrderReportIsDeterministic(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()
	at := orderContext.StartTime.Add(time.Hour)

	first, err := ComputeOrderReport(appointments, downtimes, &orderContext, at, Options{})
	require.NoError(t, err)
	second, err := ComputeOrderReport(appointments, downtimes, &orderContext, at, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReevaluateOrderReportMatchesFreshComputation(t *testing.T) {
	appointments, downtimes, orderContext := sampleOrder()
	first := orderContext.StartTime.Add(time.Hour)
	later := orderContext.StartTime.Add(2 * time.Hour)

	report, err := ComputeOrderReport(appointments, downtimes, &orderContext, first, Options{})
	require.NoError(t, err)
	fresh, err := ComputeOrderReport(appointments, downtimes, &orderContext, later, Options{})
	require.NoError(t, err)

	reevaluated := ReevaluateOrderReport(report, later)

	assert.Equal(t, fresh, reevaluated)
	assert.Equal(t, 3600.0, report.Downtime.WindowSeconds)
}

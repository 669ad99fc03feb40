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

/*
Package efficiency turns appointments and downtime intervals of an order into
Availability, Performance, Quality, OEE, throughput and a bottleneck diagnosis.

Important principle: every function is a pure function of its snapshot inputs.
Nothing is cached or mutated here, callers recompute wholesale on every refresh.
*/
package efficiency

import (
	"errors"
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

// ErrMissingContext is returned when no order context (or no order identity) is supplied
var ErrMissingContext = errors.New("missing order context")

// Options contains the reporting parameters that are not part of an order
type Options struct {
	// Location is the reporting timezone of the daily histogram. nil means UTC.
	Location *time.Location
}

// ComputeEfficiencyMetrics runs Normalizer, Aggregator and Efficiency Calculator for one order.
// Downtimes only feed the separately labeled DowntimeAvailability.
func ComputeEfficiencyMetrics(
	appointments []datamodel.Appointment,
	downtimes []datamodel.DowntimeInterval,
	orderContext *datamodel.OrderContext) (metrics datamodel.EfficiencyMetrics, err error) {

	if err = validateContext(orderContext); err != nil {
		return
	}

	metrics, _, _ = compute(appointments, downtimes, *orderContext, Options{}, time.Time{})
	return
}

// ComputeOrderReport computes metrics, daily histogram, downtime summary and diagnosis for one order.
// The downtime window runs from the order start to its end, or to at while the order is still running.
func ComputeOrderReport(
	appointments []datamodel.Appointment,
	downtimes []datamodel.DowntimeInterval,
	orderContext *datamodel.OrderContext,
	at time.Time,
	options Options) (report datamodel.OrderReport, err error) {

	if err = validateContext(orderContext); err != nil {
		return
	}

	metrics, totals, summary := compute(appointments, downtimes, *orderContext, options, at)

	report.ComputedAt = at
	report.Context = *orderContext
	report.Metrics = metrics
	report.DailyProduction = totals.DailyProduction
	report.Downtime = summary
	report.Diagnosis = DiagnoseBottleneck(metrics)

	zap.S().Debugw("Computed order report",
		"orderId", orderContext.OrderID,
		"appointments", totals.AppointmentCount,
		"oee", metrics.OEE,
		"limitingFactor", report.Diagnosis.LimitingFactor,
	)

	return
}

// ReevaluateOrderReport returns report as if it had been computed at at.
// Only the downtime window of a still running order depends on the evaluation time.
func ReevaluateOrderReport(report datamodel.OrderReport, at time.Time) datamodel.OrderReport {
	from, to := downtimeWindow(report.Context, at)
	report.ComputedAt = at
	report.Downtime = WithWindow(report.Downtime, from, to)
	return report
}

func validateContext(orderContext *datamodel.OrderContext) error {
	if orderContext == nil || orderContext.OrderID == "" {
		return ErrMissingContext
	}
	return nil
}

func compute(
	appointments []datamodel.Appointment,
	downtimes []datamodel.DowntimeInterval,
	orderContext datamodel.OrderContext,
	options Options,
	at time.Time) (metrics datamodel.EfficiencyMetrics, totals Totals, summary datamodel.DowntimeSummary) {

	normalized := NormalizeAppointments(appointments, orderContext.TimeDivisor)
	totals = Aggregate(normalized, orderContext, options.Location)
	metrics = CalculateEfficiency(totals, orderContext)

	from, to := downtimeWindow(orderContext, at)
	summary = ClassifyDowntime(downtimes, from, to)
	metrics.DowntimeAvailability = DowntimeAvailability(summary, totals.TotalDurationSeconds)

	return
}

// downtimeWindow returns the elapsed wall time of an order. Unknown boundaries give an empty window.
func downtimeWindow(orderContext datamodel.OrderContext, at time.Time) (from time.Time, to time.Time) {
	if orderContext.StartTime == nil {
		return
	}
	from = *orderContext.StartTime
	to = at
	if orderContext.EndTime != nil {
		to = *orderContext.EndTime
	}
	if to.Before(from) {
		to = from
	}
	return
}

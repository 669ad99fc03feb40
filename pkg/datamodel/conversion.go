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

package datamodel

import (
	"fmt"
	"strings"
)

// DowntimeCategory classifies a downtime interval
type DowntimeCategory string

const (
	// DowntimeProductive is a stop that still serves production, e.g. setup
	DowntimeProductive DowntimeCategory = "productive"
	// DowntimeUnproductive is an unplanned stoppage
	DowntimeUnproductive DowntimeCategory = "unproductive"
	// DowntimePlanned is scheduled, e.g. maintenance
	DowntimePlanned DowntimeCategory = "planned"
)

// DowntimeCategories lists all categories in display order
var DowntimeCategories = []DowntimeCategory{DowntimeProductive, DowntimeUnproductive, DowntimePlanned}

// ParseDowntimeCategory converts the textual representation used in the database into a DowntimeCategory
func ParseDowntimeCategory(s string) (DowntimeCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "productive", "setup":
		return DowntimeProductive, nil
	case "unproductive", "unplanned":
		return DowntimeUnproductive, nil
	case "planned", "maintenance":
		return DowntimePlanned, nil
	}
	return "", fmt.Errorf("unknown downtime category: %q", s)
}

// OrderStatus is the lifecycle status of an order
type OrderStatus string

const (
	OrderScheduled OrderStatus = "scheduled"
	OrderActive    OrderStatus = "active"
	OrderPaused    OrderStatus = "paused"
	OrderFinished  OrderStatus = "finished"
	OrderCancelled OrderStatus = "cancelled"
)

// IsOperating returns true for the statuses that take part in the fleet rollup
func (s OrderStatus) IsOperating() bool {
	switch s {
	case OrderActive, OrderPaused, OrderScheduled:
		return true
	}
	return false
}

// OperatingStatuses lists all statuses for which IsOperating is true
var OperatingStatuses = []OrderStatus{OrderActive, OrderPaused, OrderScheduled}

// ParseOrderStatus converts a textual or numeric (work_order.status) status into an OrderStatus
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scheduled", "planned", "0":
		return OrderScheduled, nil
	case "active", "in_progress", "1":
		return OrderActive, nil
	case "paused", "3":
		return OrderPaused, nil
	case "finished", "completed", "2":
		return OrderFinished, nil
	case "cancelled", "canceled", "4":
		return OrderCancelled, nil
	}
	return "", fmt.Errorf("unknown order status: %q", s)
}

// Factor is one of the three OEE factors
type Factor string

const (
	FactorAvailability Factor = "availability"
	FactorPerformance  Factor = "performance"
	FactorQuality      Factor = "quality"
)

// Factors lists the OEE factors in tie-break priority order
var Factors = []Factor{FactorAvailability, FactorPerformance, FactorQuality}

// Value returns the percentage of the factor from the given metrics
func (f Factor) Value(m EfficiencyMetrics) float64 {
	switch f {
	case FactorAvailability:
		return m.Availability
	case FactorPerformance:
		return m.Performance
	case FactorQuality:
		return m.Quality
	}
	return 0
}

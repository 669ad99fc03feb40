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
	"time"
)

// DefaultTimeDivisor converts the raw cycle-time register of automatic appointments into seconds
const DefaultTimeDivisor = 10

// Appointment is one recorded production event, either read automatically from a machine or entered by an operator
type Appointment struct {
	TimestampUtc time.Time `json:"timestampUtc"`
	ID           string    `json:"id"`
	// TimeValue is in raw register units for automatic appointments and in seconds for manual ones
	TimeValue          float64 `json:"timeValue"`
	PieceCount         int     `json:"pieceCount"`
	RejectedInInterval int     `json:"rejectedInInterval,omitempty"`
	IsAutomatic        bool    `json:"isAutomatic"`
}

// DowntimeInterval contains a span during which production was stopped
type DowntimeInterval struct {
	StartUtc time.Time  `json:"startUtc"`
	EndUtc   *time.Time `json:"endUtc,omitempty"`
	// DurationSeconds takes precedence over EndUtc - StartUtc when set
	DurationSeconds *float64         `json:"durationSeconds,omitempty"`
	ID              string           `json:"id"`
	Category        DowntimeCategory `json:"category"`
}

// OrderContext contains the process parameters of one order
type OrderContext struct {
	StartTime *time.Time  `json:"startTime,omitempty"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	// AssetID is the machine the order runs on
	AssetID               string  `json:"assetId,omitempty"`
	IdealCycleTimeSeconds float64 `json:"idealCycleTimeSeconds"`
	PlannedQuantity       int     `json:"plannedQuantity"`
	// RejectedQuantityTotal is authoritative over any appointment level reject counter
	RejectedQuantityTotal int `json:"rejectedQuantityTotal"`
	TimeDivisor           int `json:"timeDivisor"`
}

// OrderDetail is what the order detail provider returns for one order
type OrderDetail struct {
	Context      OrderContext  `json:"context"`
	Appointments []Appointment `json:"appointments"`
}

// OrderSnapshot bundles everything fetched for one order during a refresh cycle
type OrderSnapshot struct {
	Detail    OrderDetail        `json:"detail"`
	Downtimes []DowntimeInterval `json:"downtimes"`
}

// EfficiencyMetrics is the fully derived efficiency state of one order. All percentages are in [0, 100].
type EfficiencyMetrics struct {
	TotalProduced        int     `json:"totalProduced"`
	TotalRejected        int     `json:"totalRejected"`
	Remaining            int     `json:"remaining"`
	AppointmentCount     int     `json:"appointmentCount"`
	AverageCycleSeconds  float64 `json:"averageCycleSeconds"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	CompletionPercentage float64 `json:"completionPercentage"`
	Availability         float64 `json:"availability"`
	Performance          float64 `json:"performance"`
	Quality              float64 `json:"quality"`
	OEE                  float64 `json:"oee"`
	// DowntimeAvailability is estimated from recorded downtime intervals.
	// It is an alternative to Availability and is never used for OEE.
	DowntimeAvailability      float64 `json:"downtimeAvailability"`
	ProductivityPiecesPerHour float64 `json:"productivityPiecesPerHour"`
	ProductionHours           float64 `json:"productionHours"`
}

// DailyProduction contains the good pieces produced on one calendar day
type DailyProduction struct {
	Date   string `json:"date"`
	Pieces int    `json:"pieces"`
}

// DowntimeSummary contains the classified downtime of one order
type DowntimeSummary struct {
	Longest                    []DowntimeInterval           `json:"longest"`
	TotalSeconds               map[DowntimeCategory]float64 `json:"totalSeconds"`
	ShareOfDowntime            map[DowntimeCategory]float64 `json:"shareOfDowntime"`
	TotalDowntimeSeconds       float64                      `json:"totalDowntimeSeconds"`
	WindowSeconds              float64                      `json:"windowSeconds"`
	ProductiveWindowPercentage float64                      `json:"productiveWindowPercentage"`
	DowntimeWindowPercentage   float64                      `json:"downtimeWindowPercentage"`
	OpenIntervals              int                          `json:"openIntervals"`
}

// Diagnosis is the result of the bottleneck analysis
type Diagnosis struct {
	SecondaryWarning  *SecondaryWarning `json:"secondaryWarning,omitempty"`
	LimitingFactor    Factor            `json:"limitingFactor,omitempty"`
	Recommendations   []string          `json:"recommendations,omitempty"`
	OEE               float64           `json:"oee"`
	GapToTarget       float64           `json:"gapToTarget"`
	CounterfactualOEE float64           `json:"counterfactualOee"`
	PotentialGain     float64           `json:"potentialGain"`
	Excellent         bool              `json:"excellent"`
}

// SecondaryWarning points to the factor that should be addressed after the limiting one
type SecondaryWarning struct {
	Factor      Factor  `json:"factor"`
	GapToTarget float64 `json:"gapToTarget"`
}

// OrderReport contains everything the dashboard shows for one order
type OrderReport struct {
	ComputedAt      time.Time         `json:"computedAt"`
	Context         OrderContext      `json:"context"`
	DailyProduction []DailyProduction `json:"dailyProduction"`
	Downtime        DowntimeSummary   `json:"downtime"`
	Diagnosis       Diagnosis         `json:"diagnosis"`
	Metrics         EfficiencyMetrics `json:"metrics"`
}

// DefectTally is the quantity of one defect type, aggregated outside of this service
type DefectTally struct {
	DefectType string `json:"defectType"`
	Quantity   int    `json:"quantity"`
}

// FleetAggregates contains cross order values that cannot be derived locally
type FleetAggregates struct {
	Defects        []DefectTally `json:"defects"`
	ActiveMachines int           `json:"activeMachines"`
}

// OrderSummary is the per order input of the fleet rollup
type OrderSummary struct {
	OrderID         string            `json:"orderId"`
	Status          OrderStatus       `json:"status"`
	Metrics         EfficiencyMetrics `json:"metrics"`
	PlannedQuantity int               `json:"plannedQuantity"`
}

// FleetKPIs contains the company wide KPIs
type FleetKPIs struct {
	TopDefects        []DefectTally `json:"topDefects"`
	Availability      float64       `json:"availability"`
	Performance       float64       `json:"performance"`
	Quality           float64       `json:"quality"`
	OEE               float64       `json:"oee"`
	EstimatedWeightKg float64       `json:"estimatedWeightKg"`
	TotalPlanned      int           `json:"totalPlanned"`
	TotalProduced     int           `json:"totalProduced"`
	TotalRejected     int           `json:"totalRejected"`
	ActiveMachines    int           `json:"activeMachines"`
	OperatingOrders   int           `json:"operatingOrders"`
}

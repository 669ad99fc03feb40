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
)

// NormalizedAppointment is an appointment converted into canonical units
type NormalizedAppointment struct {
	Timestamp       time.Time
	PiecesGood      int
	PiecesRejected  int
	DurationSeconds float64
}

// NormalizeAppointment converts one appointment into good pieces, rejected pieces and seconds.
// Automatic appointments carry their duration in register units, manual ones in seconds.
// Negative, NaN or infinite values are treated as 0.
func NormalizeAppointment(appointment datamodel.Appointment, timeDivisor int) (normalized NormalizedAppointment) {
	if timeDivisor <= 0 {
		timeDivisor = datamodel.DefaultTimeDivisor
	}

	timeValue := nonNegative(appointment.TimeValue)
	if appointment.IsAutomatic {
		normalized.DurationSeconds = timeValue / float64(timeDivisor)
	} else {
		normalized.DurationSeconds = timeValue
	}

	pieces := maxInt(appointment.PieceCount, 0)
	normalized.PiecesRejected = maxInt(appointment.RejectedInInterval, 0)
	normalized.PiecesGood = maxInt(pieces-normalized.PiecesRejected, 0)
	normalized.Timestamp = appointment.TimestampUtc

	return
}

// NormalizeAppointments normalizes all appointments into a freshly allocated slice
func NormalizeAppointments(appointments []datamodel.Appointment, timeDivisor int) []NormalizedAppointment {
	normalized := make([]NormalizedAppointment, 0, len(appointments))
	for _, appointment := range appointments {
		normalized = append(normalized, NormalizeAppointment(appointment, timeDivisor))
	}
	return normalized
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

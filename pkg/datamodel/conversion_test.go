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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDowntimeCategory(t *testing.T) {
	tcs := []struct {
		in       string
		expected DowntimeCategory
	}{
		{"productive", DowntimeProductive},
		{"Setup", DowntimeProductive},
		{" unproductive ", DowntimeUnproductive},
		{"UNPLANNED", DowntimeUnproductive},
		{"planned", DowntimePlanned},
		{"maintenance", DowntimePlanned},
	}
	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			c, err := ParseDowntimeCategory(tc.in)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, c)
		})
	}

	_, err := ParseDowntimeCategory("coffee")
	assert.Error(t, err)
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("1")
	assert.NoError(t, err)
	assert.Equal(t, OrderActive, s)

	s, err = ParseOrderStatus("Completed")
	assert.NoError(t, err)
	assert.Equal(t, OrderFinished, s)

	_, err = ParseOrderStatus("lost")
	assert.Error(t, err)
}

func TestIsOperating(t *testing.T) {
	assert.True(t, OrderActive.IsOperating())
	assert.True(t, OrderPaused.IsOperating())
	assert.True(t, OrderScheduled.IsOperating())
	assert.False(t, OrderFinished.IsOperating())
	assert.False(t, OrderCancelled.IsOperating())
}

func TestFactorValue(t *testing.T) {
	m := EfficiencyMetrics{Availability: 1, Performance: 2, Quality: 3}
	assert.Equal(t, 1.0, FactorAvailability.Value(m))
	assert.Equal(t, 2.0, FactorPerformance.Value(m))
	assert.Equal(t, 3.0, FactorQuality.Value(m))
	assert.Equal(t, 0.0, Factor("speed").Value(m))
}

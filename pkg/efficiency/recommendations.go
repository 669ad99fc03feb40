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

import "github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"

var recommendations = map[datamodel.Factor][]string{
	datamodel.FactorAvailability: {
		"Analyze the longest downtime intervals and eliminate their root causes",
		"Introduce preventive maintenance to reduce unplanned stoppages",
		"Shorten setup and changeover times (SMED)",
		"Make sure material and operators are available at shift start",
	},
	datamodel.FactorPerformance: {
		"Identify and remove micro stops and speed losses",
		"Verify that the machine runs at its nominal cycle time",
		"Check the ideal cycle time configured for the product",
		"Train operators on the standard operating procedure",
	},
	datamodel.FactorQuality: {
		"Analyze the most frequent defect types",
		"Stabilize process parameters after setup",
		"Check raw material quality with the supplier",
		"Introduce in-process quality checks",
	},
}

// Recommendations returns a copy of the fixed remediation list for a factor
func Recommendations(factor datamodel.Factor) []string {
	list := recommendations[factor]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

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

package internal

import "time"

var OneSecond = 1 * time.Second
var FiveSeconds = 5 * time.Second
var TenSeconds = 10 * time.Second
var ThirtySeconds = 30 * time.Second
var OneMinute = 1 * time.Minute
var TwelveHours = 12 * time.Hour

// RedisMasterName is the sentinel master group of the umh redis chart
const RedisMasterName = "mymaster"

// Cache key prefixes
const (
	CacheKeyDashboard = "efficiency-insight:dashboard"
	CacheKeyMetrics   = "efficiency-insight:metrics:"
)

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

package helper

import (
	"database/sql"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
)

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitTestLogging() {
	_ = logger.New("DEVELOPMENT")
}

// NullTimeToPtr converts a nullable database timestamp into a UTC pointer
func NullTimeToPtr(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time.UTC()
	return &t
}

// NullFloat64ToPtr converts a nullable database float into a pointer
func NullFloat64ToPtr(val sql.NullFloat64) *float64 {
	if !val.Valid {
		return nil
	}
	v := val.Float64
	return &v
}

// NullInt64ToInt returns 0 for NULL
func NullInt64ToInt(val sql.NullInt64) int {
	if !val.Valid {
		return 0
	}
	return int(val.Int64)
}

// TimeToPtr you probably don't need this outside of tests
func TimeToPtr(val time.Time) *time.Time {
	return &val
}

func Float64ToPtr(val float64) *float64 {
	return &val
}

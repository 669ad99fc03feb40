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

package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/dashboard"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/helper"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/refresh"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
)

func sampleDashboard() dashboard.Dashboard {
	return dashboard.Dashboard{
		ComputedAt: time.Date(2023, 5, 1, 7, 0, 0, 0, time.UTC),
		OrderIDs:   []string{"A-1"},
		Orders: map[string]datamodel.OrderReport{
			"A-1": {
				Context: datamodel.OrderContext{OrderID: "A-1", AssetID: "1", Status: datamodel.OrderActive, PlannedQuantity: 100},
				Metrics: datamodel.EfficiencyMetrics{Availability: 70, Performance: 96, Quality: 99},
				Diagnosis: datamodel.Diagnosis{
					LimitingFactor: datamodel.FactorAvailability,
					OEE:            66.528,
					GapToTarget:    18.472,
				},
			},
		},
		Fleet: datamodel.FleetKPIs{OperatingOrders: 1, ActiveMachines: 1, TotalPlanned: 100},
	}
}

type testServer struct {
	router    *gin.Engine
	store     *dashboard.Store
	scheduler *refresh.Scheduler[dashboard.Dashboard]
	cycleErr  error
}

func newTestServer(t *testing.T) *testServer {
	helper.InitTestLogging()
	gin.SetMode(gin.TestMode)

	ts := &testServer{store: dashboard.NewStore(nil)}
	ts.scheduler = refresh.New[dashboard.Dashboard](func(ctx context.Context, token uint64) (dashboard.Dashboard, error) {
		if ts.cycleErr != nil {
			return dashboard.Dashboard{}, ts.cycleErr
		}
		return sampleDashboard(), nil
	}, ts.store.Commit, refresh.Options{Name: "http-test-" + t.Name(), Interval: time.Minute, Enabled: true})
	ts.router = SetupRestAPI(ts.store, ts.scheduler)
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, nil)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	ts.router.ServeHTTP(recorder, request)
	return recorder
}

func TestOnline(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", w.Body.String())
}

func TestNotComputedYet(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/v1/fleet", "/api/v1/orders", "/api/v1/orders/A-1/efficiency", "/api/v1/orders/A-1/diagnosis"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, path, "").Code)
		})
	}
}

func TestOrderEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Commit(1, sampleDashboard())

	t.Run("orders", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/orders", "")
		require.Equal(t, http.StatusOK, w.Code)
		var ids []string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
		assert.Equal(t, []string{"A-1"}, ids)
	})

	t.Run("efficiency", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/orders/A-1/efficiency", "")
		require.Equal(t, http.StatusOK, w.Code)
		var report datamodel.OrderReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, "A-1", report.Context.OrderID)
		assert.Equal(t, 70.0, report.Metrics.Availability)
	})

	t.Run("diagnosis", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/orders/A-1/diagnosis", "")
		require.Equal(t, http.StatusOK, w.Code)
		var diagnosis datamodel.Diagnosis
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diagnosis))
		assert.Equal(t, datamodel.FactorAvailability, diagnosis.LimitingFactor)
		assert.InDelta(t, 18.472, diagnosis.GapToTarget, 1e-9)
	})

	t.Run("unknown-order", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/orders/Z-9/efficiency", "").Code)
		assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/orders/Z-9/diagnosis", "").Code)
	})

	t.Run("fleet", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/v1/fleet", "")
		require.Equal(t, http.StatusOK, w.Code)
		var fleet datamodel.FleetKPIs
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fleet))
		assert.Equal(t, 1, fleet.OperatingOrders)
		assert.Equal(t, 100, fleet.TotalPlanned)
	})
}

func TestPostRefresh(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var response refreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, refreshResponse{Token: 1, Committed: true}, response)

	current, err := ts.store.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Token)

	ts.cycleErr = errors.New("database gone")
	assert.Equal(t, http.StatusInternalServerError, ts.do(http.MethodPost, "/api/v1/refresh", "").Code)

	w = ts.do(http.MethodGet, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status refresh.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, uint64(2), status.IssuedToken)
	assert.Equal(t, uint64(1), status.CommittedToken)
	assert.Equal(t, "database gone", status.LastError)
	assert.NotNil(t, status.LastUpdated)
}

func TestPutRefresh(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"enabled":`, http.StatusBadRequest},
		{"wrong-type", `{"enabled":"yes"}`, http.StatusBadRequest},
		{"zero-interval", `{"intervalSeconds":0}`, http.StatusBadRequest},
		{"interval-above-one-day", `{"intervalSeconds":86401}`, http.StatusBadRequest},
		{"overflowing-interval", `{"intervalSeconds":9223372036854775807}`, http.StatusBadRequest},
		{"valid", `{"enabled":false,"intervalSeconds":2}`, http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, ts.do(http.MethodPut, "/api/v1/refresh", tc.body).Code)
		})
	}

	status := ts.scheduler.Status()
	assert.False(t, status.Enabled)
	assert.Equal(t, refresh.MinInterval.Seconds(), status.IntervalSeconds)

	w := ts.do(http.MethodPut, "/api/v1/refresh", `{"intervalSeconds":60}`)
	require.Equal(t, http.StatusOK, w.Code)
	var updated refresh.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.False(t, updated.Enabled)
	assert.Equal(t, 60.0, updated.IntervalSeconds)

	w = ts.do(http.MethodPut, "/api/v1/refresh", `{"intervalSeconds":86400}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 86400.0, ts.scheduler.Status().IntervalSeconds)
}

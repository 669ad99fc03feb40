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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/dashboard"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/refresh"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/datamodel"
	"go.uber.org/zap"
)

type api struct {
	store     *dashboard.Store
	scheduler *refresh.Scheduler[dashboard.Dashboard]
}

// SetupRestAPI builds the router serving the committed dashboard and the refresh controls
func SetupRestAPI(store *dashboard.Store, scheduler *refresh.Scheduler[dashboard.Dashboard]) *gin.Engine {
	router := gin.New()

	// Logs all requests, RFC3339 with UTC time format
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	// Logs all panics with stack
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	a := &api{store: store, scheduler: scheduler}
	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", a.getOrdersHandler)
		v1.GET("/orders/:orderId/efficiency", a.getEfficiencyHandler)
		v1.GET("/orders/:orderId/diagnosis", a.getDiagnosisHandler)
		v1.GET("/fleet", a.getFleetHandler)
		v1.GET("/refresh", a.getRefreshHandler)
		v1.POST("/refresh", a.postRefreshHandler)
		v1.PUT("/refresh", a.putRefreshHandler)
	}
	return router
}

func handleInternalServerError(c *gin.Context, err error) {
	zap.S().Errorw("Internal server error", "error", err, "path", c.Request.URL.Path)
	c.String(http.StatusInternalServerError, "The server had an internal error")
}

func handleInvalidInputError(c *gin.Context, err error) {
	zap.S().Debugw("Invalid input error", "error", err, "path", c.Request.URL.Path)
	c.String(http.StatusBadRequest, "You have provided a wrong input: "+err.Error())
}

// handleLookupError maps store errors onto status codes
func handleLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, datamodel.ErrOrderNotFound):
		c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, dashboard.ErrNotComputed):
		c.String(http.StatusServiceUnavailable, err.Error())
	default:
		handleInternalServerError(c, err)
	}
}

type orderRequest struct {
	OrderID string `uri:"orderId" binding:"required"`
}

func (a *api) getOrdersHandler(c *gin.Context) {
	d, err := a.store.Current(c.Request.Context())
	if err != nil {
		handleLookupError(c, err)
		return
	}
	orderIDs := d.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}
	c.JSON(http.StatusOK, orderIDs)
}

func (a *api) getEfficiencyHandler(c *gin.Context) {
	var request orderRequest
	if err := c.BindUri(&request); err != nil {
		handleInvalidInputError(c, err)
		return
	}

	report, err := a.store.Order(c.Request.Context(), request.OrderID)
	if err != nil {
		handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *api) getDiagnosisHandler(c *gin.Context) {
	var request orderRequest
	if err := c.BindUri(&request); err != nil {
		handleInvalidInputError(c, err)
		return
	}

	report, err := a.store.Order(c.Request.Context(), request.OrderID)
	if err != nil {
		handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, report.Diagnosis)
}

func (a *api) getFleetHandler(c *gin.Context) {
	d, err := a.store.Current(c.Request.Context())
	if err != nil {
		handleLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, d.Fleet)
}

func (a *api) getRefreshHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.scheduler.Status())
}

type refreshResponse struct {
	Token     uint64 `json:"token"`
	Committed bool   `json:"committed"`
}

func (a *api) postRefreshHandler(c *gin.Context) {
	token, committed, err := a.scheduler.Refresh(c.Request.Context())
	if err != nil {
		handleInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, refreshResponse{Token: token, Committed: committed})
}

// maxIntervalSeconds is one day
const maxIntervalSeconds = 24 * 60 * 60

type refreshSettings struct {
	Enabled         *bool `json:"enabled"`
	IntervalSeconds *int  `json:"intervalSeconds"`
}

func (a *api) putRefreshHandler(c *gin.Context) {
	var settings refreshSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		handleInvalidInputError(c, err)
		return
	}
	if settings.IntervalSeconds != nil && *settings.IntervalSeconds <= 0 {
		handleInvalidInputError(c, errors.New("intervalSeconds must be positive"))
		return
	}
	if settings.IntervalSeconds != nil && *settings.IntervalSeconds > maxIntervalSeconds {
		handleInvalidInputError(c, fmt.Errorf("intervalSeconds must not exceed %d", maxIntervalSeconds))
		return
	}

	if settings.Enabled != nil {
		a.scheduler.SetEnabled(*settings.Enabled)
	}
	if settings.IntervalSeconds != nil {
		a.scheduler.SetInterval(time.Duration(*settings.IntervalSeconds) * time.Second)
	}
	c.JSON(http.StatusOK, a.scheduler.Status())
}

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
	"fmt"
	"net/http"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/dashboard"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/helper"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/liveupdate"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/provider/postgresql"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/refresh"
	"go.uber.org/zap"
)

var buildtime string

func main() {
	helper.InitLogging()
	zap.S().Infof("This is efficiency-insight build date: %s", buildtime)

	cfg, err := loadConfig()
	if err != nil {
		zap.S().Fatalf("Failed to load configuration: %s", err)
	}

	InitPrometheus(cfg.MetricsPort)
	db := postgresql.GetOrInit()

	cache := internal.NewTieredCache(internal.CacheOptions{
		RedisURIs:     cfg.RedisURIs,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})

	builder := dashboard.NewBuilder(dashboard.BuildOptions{
		Location:     cfg.Location,
		UnitWeightKg: cfg.UnitWeightKg,
	})
	refresher := dashboard.NewRefresher(dashboard.Providers{Orders: db, Downtimes: db, Fleet: db}, builder)
	store := dashboard.NewStore(cache)

	scheduler := refresh.New[dashboard.Dashboard](refresher.Cycle, store.Commit, refresh.Options{
		Name:     "dashboard",
		Interval: cfg.RefreshInterval,
		Enabled:  cfg.RefreshEnabled,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zap.S().Errorf("Refresh scheduler stopped: %s", err)
		}
	}()

	trigger := func(notification liveupdate.Notification) {
		scheduler.Trigger()
	}

	stats := dashboard.RuntimeStats{CycleTimeCacheHitPercentage: db.LRUHitPercentage}
	readiness := map[string]healthcheck.Check{}
	if len(cfg.RedisURIs) > 0 {
		readiness["redis"] = cache.GetHealthCheck()
	}

	var mqttSubscriber *liveupdate.MQTTSubscriber
	if cfg.mqttEnabled() {
		mqttSubscriber, err = liveupdate.NewMQTTSubscriber(cfg.MQTT, trigger)
		if err != nil {
			zap.S().Fatalf("Failed to create MQTT subscriber: %s", err)
		}
		go func() {
			err := mqttSubscriber.Connect()
			switch {
			case errors.Is(err, liveupdate.ErrConnectPending):
				zap.S().Warnf("%s, relying on polling meanwhile", err)
			case err != nil:
				zap.S().Errorf("Failed to connect to MQTT broker, relying on polling: %s", err)
			}
		}()
		stats.MQTTMessages = mqttSubscriber.Stats
		readiness["mqtt"] = mqttSubscriber.GetHealthCheck()
	}

	var kafkaConsumer *liveupdate.KafkaConsumer
	if cfg.kafkaEnabled() {
		kafkaConsumer, err = liveupdate.NewKafkaConsumer(cfg.Kafka, trigger)
		if err != nil {
			zap.S().Fatalf("Failed to create kafka consumer: %s", err)
		}
		go func() {
			if err := kafkaConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zap.S().Errorf("Kafka consumer stopped: %s", err)
			}
		}()
		stats.KafkaMessages = kafkaConsumer.Received
		readiness["kafka"] = kafkaConsumer.GetHealthCheck()
	}
	dashboard.RegisterRuntimeStats(prometheus.DefaultRegisterer, stats)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           SetupRestAPI(store, scheduler),
		ReadHeaderTimeout: internal.TenSeconds,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("Error starting REST API: %s", err)
		}
	}()

	gs := internal.NewGracefulShutdown(func(shutdownCtx context.Context) error {
		zap.S().Infof("Shutting down application")
		var errs []error
		errs = append(errs, server.Shutdown(shutdownCtx))
		cancel()
		if mqttSubscriber != nil {
			errs = append(errs, mqttSubscriber.Shutdown())
		}
		if kafkaConsumer != nil {
			errs = append(errs, kafkaConsumer.Shutdown())
		}
		errs = append(errs, cache.Close())
		db.Close()
		return errors.Join(errs...)
	}, internal.ThirtySeconds)

	InitHealthCheck(cfg.HealthCheckPort, db, store, gs, readiness)

	gs.Wait()
}

func InitPrometheus(port int) {
	metricsPath := "/metrics"
	metricsPort := fmt.Sprintf(":%d", port)
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

// InitHealthCheck serves liveness and readiness. readiness holds the checks of optional dependencies.
func InitHealthCheck(port int, db *postgresql.Connection, store *dashboard.Store, gs internal.GracefulShutdownHandler, readiness map[string]healthcheck.Check) {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(100000))
	health.AddLivenessCheck("database", db.GetHealthCheck())
	health.AddReadinessCheck("database", db.GetHealthCheck())
	health.AddReadinessCheck("shutdownEnabled", func() error {
		if gs.ShuttingDown() {
			return errors.New("shutdown")
		}
		return nil
	})
	health.AddReadinessCheck("dashboard", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), internal.FiveSeconds)
		defer cancel()
		_, err := store.Current(ctx)
		return err
	})
	for name, check := range readiness {
		health.AddReadinessCheck(name, check)
	}
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}

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

package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	memoHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "efficiency_report_memo_hits_total",
		Help: "Order reports taken from the memo",
	})
	memoMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "efficiency_report_memo_misses_total",
		Help: "Order reports computed from scratch",
	})

	orderFactor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efficiency_order_percent",
		Help: "OEE and its factors per operating order",
	}, []string{"order_id", "asset_id", "factor"})
	orderProduced = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efficiency_order_produced_pieces",
		Help: "Good pieces produced per operating order",
	}, []string{"order_id", "asset_id"})

	fleetFactor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efficiency_fleet_percent",
		Help: "Mean OEE and factors across operating orders",
	}, []string{"factor"})
	fleetPieces = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "efficiency_fleet_pieces",
		Help: "Planned, produced and rejected pieces across operating orders",
	}, []string{"kind"})
	fleetWeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "efficiency_fleet_estimated_weight_kg",
		Help: "Estimated weight of all produced pieces",
	})
	fleetActiveMachines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "efficiency_fleet_active_machines",
		Help: "Machines with an operating order",
	})
)

const oeeFactor = "oee"

func exportGauges(d Dashboard) {
	orderFactor.Reset()
	orderProduced.Reset()

	for _, orderID := range d.OrderIDs {
		report := d.Orders[orderID]
		assetID := report.Context.AssetID
		orderFactor.WithLabelValues(orderID, assetID, oeeFactor).Set(report.Metrics.OEE)
		orderFactor.WithLabelValues(orderID, assetID, "availability").Set(report.Metrics.Availability)
		orderFactor.WithLabelValues(orderID, assetID, "performance").Set(report.Metrics.Performance)
		orderFactor.WithLabelValues(orderID, assetID, "quality").Set(report.Metrics.Quality)
		orderFactor.WithLabelValues(orderID, assetID, "downtime_availability").Set(report.Metrics.DowntimeAvailability)
		orderProduced.WithLabelValues(orderID, assetID).Set(float64(report.Metrics.TotalProduced))
	}

	fleetFactor.WithLabelValues(oeeFactor).Set(d.Fleet.OEE)
	fleetFactor.WithLabelValues("availability").Set(d.Fleet.Availability)
	fleetFactor.WithLabelValues("performance").Set(d.Fleet.Performance)
	fleetFactor.WithLabelValues("quality").Set(d.Fleet.Quality)
	fleetPieces.WithLabelValues("planned").Set(float64(d.Fleet.TotalPlanned))
	fleetPieces.WithLabelValues("produced").Set(float64(d.Fleet.TotalProduced))
	fleetPieces.WithLabelValues("rejected").Set(float64(d.Fleet.TotalRejected))
	fleetWeight.Set(d.Fleet.EstimatedWeightKg)
	fleetActiveMachines.Set(float64(d.Fleet.ActiveMachines))
}

// RuntimeStats are sampled on every scrape. Nil funcs are not exported.
type RuntimeStats struct {
	CycleTimeCacheHitPercentage func() float64
	MQTTMessages                func() (received uint64, duplicates uint64)
	KafkaMessages               func() uint64
}

// RegisterRuntimeStats exports stats owned by the database provider and the live update sources
func RegisterRuntimeStats(registerer prometheus.Registerer, stats RuntimeStats) {
	factory := promauto.With(registerer)

	if stats.CycleTimeCacheHitPercentage != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "efficiency_cycle_time_cache_hit_percent",
			Help: "Share of product cycle time lookups served from the LRU",
		}, stats.CycleTimeCacheHitPercentage)
	}
	if stats.MQTTMessages != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "efficiency_mqtt_messages_received_total",
			Help: "MQTT messages received on the live update topic",
		}, func() float64 {
			received, _ := stats.MQTTMessages()
			return float64(received)
		})
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "efficiency_mqtt_duplicates_total",
			Help: "MQTT redeliveries skipped as already processed",
		}, func() float64 {
			_, duplicates := stats.MQTTMessages()
			return float64(duplicates)
		})
	}
	if stats.KafkaMessages != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "efficiency_kafka_records_received_total",
			Help: "Kafka records received on the live update topic",
		}, func() float64 {
			return float64(stats.KafkaMessages())
		})
	}
}

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

// Package liveupdate translates "data changed" notifications arriving over MQTT or Kafka
// into refresh triggers.
package liveupdate

import (
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Notification is the optional body of a live-update message
type Notification struct {
	OrderID string `json:"order_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Source  string `json:"-"`
}

// TriggerFunc is invoked once per accepted notification
type TriggerFunc func(notification Notification)

const (
	outcomeTriggered = "triggered"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid"
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "efficiency_insight_live_updates_total",
	Help: "Live-update notifications received, by source and outcome",
}, []string{"source", "outcome"})

// ParseNotification decodes a message payload.
// Malformed payloads still yield a notification, the message itself means data changed.
func ParseNotification(source string, payload []byte) Notification {
	notification := Notification{Source: source}
	if len(payload) == 0 {
		return notification
	}
	if !json.Valid(payload) {
		zap.S().Debugf("live update from %s is not valid json: %s", source, string(payload))
		notificationsTotal.WithLabelValues(source, outcomeInvalid).Inc()
		return notification
	}
	if err := json.Unmarshal(payload, &notification); err != nil {
		zap.S().Debugf("live update from %s has unexpected shape: %s", source, err)
		notificationsTotal.WithLabelValues(source, outcomeInvalid).Inc()
	}
	notification.Source = source
	return notification
}

func dispatch(trigger TriggerFunc, notification Notification) {
	notificationsTotal.WithLabelValues(notification.Source, outcomeTriggered).Inc()
	zap.S().Debugw("Live update received", "source", notification.Source, "orderId", notification.OrderID, "reason", notification.Reason)
	trigger(notification)
}

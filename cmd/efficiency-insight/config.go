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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/efficiency-insight/internal/liveupdate"
	"github.com/united-manufacturing-hub/efficiency-insight/internal/refresh"
	"github.com/united-manufacturing-hub/efficiency-insight/pkg/efficiency"
	"github.com/united-manufacturing-hub/umh-utils/env"
)

type config struct {
	RefreshInterval time.Duration
	RefreshEnabled  bool
	Location        *time.Location
	UnitWeightKg    float64

	RedisURIs     []string
	RedisPassword string
	RedisDB       int

	MQTT  liveupdate.MQTTOptions
	Kafka liveupdate.KafkaOptions

	HTTPPort        int
	MetricsPort     int
	HealthCheckPort int
}

func (c config) mqttEnabled() bool {
	return c.MQTT.BrokerURL != ""
}

func (c config) kafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func loadConfig() (cfg config, err error) {
	intervalSeconds, err := env.GetAsInt("REFRESH_INTERVAL_SECONDS", false, int(refresh.DefaultInterval/time.Second))
	if err != nil {
		return cfg, err
	}
	cfg.RefreshInterval = time.Duration(intervalSeconds) * time.Second

	cfg.RefreshEnabled, err = env.GetAsBool("REFRESH_ENABLED", false, true)
	if err != nil {
		return cfg, err
	}

	timezone, err := env.GetAsString("REPORTING_TIMEZONE", false, "UTC")
	if err != nil {
		return cfg, err
	}
	cfg.Location, err = time.LoadLocation(timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid REPORTING_TIMEZONE %q: %w", timezone, err)
	}

	cfg.UnitWeightKg, err = env.GetAsFloat64("UNIT_WEIGHT_KG", false, efficiency.DefaultUnitWeightKg)
	if err != nil {
		return cfg, err
	}

	for _, key := range []string{"REDIS_URI", "REDIS_URI2", "REDIS_URI3"} {
		uri, err := env.GetAsString(key, false, "")
		if err != nil {
			return cfg, err
		}
		if uri != "" {
			cfg.RedisURIs = append(cfg.RedisURIs, uri)
		}
	}
	cfg.RedisPassword, err = env.GetAsString("REDIS_PASSWORD", false, "")
	if err != nil {
		return cfg, err
	}
	cfg.RedisDB, err = env.GetAsInt("REDIS_DB", false, 0)
	if err != nil {
		return cfg, err
	}

	if cfg.MQTT, err = loadMQTTOptions(); err != nil {
		return cfg, err
	}
	if cfg.Kafka, err = loadKafkaOptions(); err != nil {
		return cfg, err
	}

	if cfg.HTTPPort, err = env.GetAsInt("HTTP_PORT", false, 80); err != nil {
		return cfg, err
	}
	if cfg.MetricsPort, err = env.GetAsInt("METRICS_PORT", false, 2112); err != nil {
		return cfg, err
	}
	if cfg.HealthCheckPort, err = env.GetAsInt("HEALTHCHECK_PORT", false, 8086); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// instanceName tells replicas apart, every replica must see every live update
func instanceName(prefix string) string {
	podName, _ := env.GetAsString("POD_NAME", false, "") //nolint:errcheck
	if podName == "" {
		podName, _ = os.Hostname()
	}
	if podName == "" {
		return prefix
	}
	return prefix + "-" + podName
}

func loadMQTTOptions() (options liveupdate.MQTTOptions, err error) {
	if options.BrokerURL, err = env.GetAsString("MQTT_BROKER_URL", false, ""); err != nil {
		return options, err
	}
	if options.Topic, err = env.GetAsString("MQTT_TOPIC", false, "umh/v1/+/efficiency/changed"); err != nil {
		return options, err
	}
	clientID, err := env.GetAsString("MQTT_CLIENT_ID", false, "efficiency-insight")
	if err != nil {
		return options, err
	}
	options.ClientID = instanceName(clientID)
	if options.Username, err = env.GetAsString("MQTT_USERNAME", false, "EFFICIENCY_INSIGHT"); err != nil {
		return options, err
	}
	if options.Password, err = env.GetAsString("MQTT_PASSWORD", false, ""); err != nil {
		return options, err
	}
	if options.DedupeSize, err = env.GetAsInt("MESSAGE_LRU_SIZE", false, 1000); err != nil {
		return options, err
	}
	if options.EnableTLS, err = env.GetAsBool("MQTT_ENABLE_TLS", false, false); err != nil {
		return options, err
	}
	if options.InsecureSkipVerify, err = env.GetAsBool("INSECURE_SKIP_VERIFY", false, false); err != nil {
		return options, err
	}
	options.CAFile = "/SSL_certs/mqtt/ca.crt"
	options.CertFile = "/SSL_certs/mqtt/tls.crt"
	options.KeyFile = "/SSL_certs/mqtt/tls.key"
	return options, nil
}

func loadKafkaOptions() (options liveupdate.KafkaOptions, err error) {
	brokers, err := env.GetAsString("KAFKA_BROKERS", false, "")
	if err != nil {
		return options, err
	}
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			options.Brokers = append(options.Brokers, broker)
		}
	}
	if options.Topic, err = env.GetAsString("KAFKA_TOPIC", false, "umh.v1.efficiency.changed"); err != nil {
		return options, err
	}
	group, err := env.GetAsString("KAFKA_CONSUMER_GROUP", false, "efficiency-insight")
	if err != nil {
		return options, err
	}
	options.ConsumerGroup = instanceName(group)
	options.ClientID = "efficiency-insight"
	return options, nil
}

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

package liveupdate

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	lru "github.com/hashicorp/golang-lru"
	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

const sourceMQTT = "mqtt"

const connectRetryInterval = 10 * time.Second

// ErrConnectPending is returned by Connect while the client still retries the first connection
var ErrConnectPending = errors.New("MQTT broker not reachable yet, still retrying")

type MQTTOptions struct {
	BrokerURL string
	Topic     string
	ClientID  string
	Username  string
	Password  string
	// DedupeSize bounds the ARC of recently seen redeliveries
	DedupeSize int

	EnableTLS          bool
	CAFile             string
	CertFile           string
	KeyFile            string
	InsecureSkipVerify bool
}

type MQTTSubscriber struct {
	client  MQTT.Client
	topic   string
	trigger TriggerFunc
	seen    *lru.ARCCache

	recv      atomic.Uint64
	duplicate atomic.Uint64
}

// NewMQTTSubscriber creates a subscriber without connecting it
func NewMQTTSubscriber(options MQTTOptions, trigger TriggerFunc) (*MQTTSubscriber, error) {
	if options.Topic == "" {
		return nil, errors.New("mqtt topic is empty")
	}
	if trigger == nil {
		return nil, errors.New("trigger is nil")
	}
	if options.DedupeSize <= 0 {
		options.DedupeSize = 1000
	}
	seen, err := lru.NewARC(options.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("creating ARC: %w", err)
	}

	s := &MQTTSubscriber{
		topic:   options.Topic,
		trigger: trigger,
		seen:    seen,
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(options.BrokerURL)
	opts.SetClientID(options.ClientID)
	if options.Username != "" {
		opts.SetUsername(options.Username)
	}
	if options.Password != "" {
		opts.SetPassword(options.Password)
	}
	if options.EnableTLS {
		tlsConfig, err := newTLSConfig(options)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetAutoReconnect(true)
	// keeps trying when the broker is down at startup
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetOrderMatters(false)
	opts.SetCleanSession(true)

	// subscriptions do not survive a clean session reconnect
	opts.SetOnConnectHandler(func(client MQTT.Client) {
		zap.S().Infof("connected to MQTT broker %s", options.BrokerURL)
		if token := client.Subscribe(s.topic, 1, s.handle); token.WaitTimeout(internal.TenSeconds) && token.Error() != nil {
			zap.S().Errorf("failed to subscribe to %s: %s", s.topic, token.Error())
		}
	})
	// polling keeps the dashboard current while the broker is away
	opts.SetConnectionLostHandler(func(client MQTT.Client, err error) {
		zap.S().Warnf("connection lost to MQTT broker %s: %v", options.BrokerURL, err)
	})

	s.client = MQTT.NewClient(opts)
	return s, nil
}

// Connect returns ErrConnectPending if the broker did not answer within thirty seconds.
// The client keeps retrying in the background until Shutdown.
func (s *MQTTSubscriber) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(internal.ThirtySeconds) {
		return ErrConnectPending
	}
	return token.Error()
}

func (s *MQTTSubscriber) IsConnected() bool {
	return s.client != nil && s.client.IsConnectionOpen()
}

func (s *MQTTSubscriber) GetHealthCheck() healthcheck.Check {
	return func() error {
		if s.IsConnected() {
			return nil
		}
		return errors.New("not connected to MQTT broker")
	}
}

// Stats returns received and skipped duplicate message counts
func (s *MQTTSubscriber) Stats() (received uint64, duplicates uint64) {
	return s.recv.Load(), s.duplicate.Load()
}

func (s *MQTTSubscriber) Shutdown() error {
	zap.S().Infof("disconnecting from MQTT broker")
	if s.client != nil {
		s.client.Disconnect(250)
	}
	return nil
}

func (s *MQTTSubscriber) handle(_ MQTT.Client, msg MQTT.Message) {
	s.recv.Add(1)

	hash := messageHash(msg)
	// Uses Get to re-validate the entry
	if _, ok := s.seen.Get(hash); ok && msg.Duplicate() {
		zap.S().Debugf("redelivered message already processed: %s", msg.Topic())
		s.duplicate.Add(1)
		notificationsTotal.WithLabelValues(sourceMQTT, outcomeDuplicate).Inc()
		return
	}
	s.seen.Add(hash, true)

	dispatch(s.trigger, ParseNotification(sourceMQTT, msg.Payload()))
}

// messageHash identifies a QoS 1 delivery, redeliveries carry the same message id
func messageHash(msg MQTT.Message) string {
	hasher := sha3.New256()
	_, _ = hasher.Write([]byte(msg.Topic()))
	var id [2]byte
	binary.BigEndian.PutUint16(id[:], msg.MessageID())
	_, _ = hasher.Write(id[:])
	_, _ = hasher.Write(msg.Payload())
	return string(hasher.Sum(nil))
}

func newTLSConfig(options MQTTOptions) (*tls.Config, error) {
	certpool := x509.NewCertPool()
	pemCerts, err := os.ReadFile(options.CAFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}
	if !certpool.AppendCertsFromPEM(pemCerts) {
		return nil, errors.New("failed to parse root certificate")
	}

	cert, err := tls.LoadX509KeyPair(options.CertFile, options.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading client certificate: %w", err)
	}

	/* #nosec G402 -- remote verification is configurable */
	return &tls.Config{
		RootCAs:            certpool,
		InsecureSkipVerify: options.InsecureSkipVerify,
		Certificates:       []tls.Certificate{cert},
		MinVersion:         tls.VersionTLS12,
	}, nil
}

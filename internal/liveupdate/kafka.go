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
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/efficiency-insight/internal"
	"go.uber.org/zap"
)

const sourceKafka = "kafka"

type KafkaOptions struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	ClientID      string
}

// KafkaConsumer joins a consumer group and triggers once per received record
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	trigger TriggerFunc
	ready   atomic.Bool
	recv    atomic.Uint64
}

func NewKafkaConsumer(options KafkaOptions, trigger TriggerFunc) (*KafkaConsumer, error) {
	if len(options.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if options.Topic == "" {
		return nil, errors.New("kafka topic is empty")
	}
	if trigger == nil {
		return nil, errors.New("trigger is nil")
	}

	config := sarama.NewConfig()
	config.ClientID = options.ClientID
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Group.Session.Timeout = internal.TenSeconds
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(options.Brokers, options.ConsumerGroup, config)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}
	return newKafkaConsumer(group, options.Topic, trigger), nil
}

func newKafkaConsumer(group sarama.ConsumerGroup, topic string, trigger TriggerFunc) *KafkaConsumer {
	return &KafkaConsumer{group: group, topic: topic, trigger: trigger}
}

// Run consumes until ctx is done or the group is closed. Consume returns on every rebalance.
func (k *KafkaConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range k.group.Errors() {
			zap.S().Warnf("kafka consumer group error: %s", err)
		}
	}()

	var retries int64
	for {
		err := k.group.Consume(ctx, []string{k.topic}, k)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			retries = 0
			continue
		}
		zap.S().Errorf("kafka consume failed: %s", err)
		if sleepErr := internal.SleepBackedOff(ctx, retries, internal.OneSecond, internal.OneMinute); sleepErr != nil {
			return sleepErr
		}
		retries++
	}
}

// Ready reports whether the consumer currently holds a group session
func (k *KafkaConsumer) Ready() bool {
	return k.ready.Load()
}

func (k *KafkaConsumer) Received() uint64 {
	return k.recv.Load()
}

func (k *KafkaConsumer) GetHealthCheck() healthcheck.Check {
	return func() error {
		if k.Ready() {
			return nil
		}
		return errors.New("kafka consumer holds no group session")
	}
}

func (k *KafkaConsumer) Shutdown() error {
	zap.S().Infof("closing kafka consumer group")
	return k.group.Close()
}

func (k *KafkaConsumer) Setup(session sarama.ConsumerGroupSession) error {
	zap.S().Debugf("joined consumer group generation %d as %s", session.GenerationID(), session.MemberID())
	k.ready.Store(true)
	return nil
}

func (k *KafkaConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	k.ready.Store(false)
	return nil
}

func (k *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			k.recv.Add(1)
			dispatch(k.trigger, ParseNotification(sourceKafka, msg.Value))
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

var _ sarama.ConsumerGroupHandler = (*KafkaConsumer)(nil)

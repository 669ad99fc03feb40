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

// Package refresh runs fetch-and-compute cycles on a timer or on demand.
// Every cycle is tagged with a monotonically increasing token and only the
// result of the latest issued token is committed.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	// MinInterval is the shortest allowed polling interval
	MinInterval = 5 * time.Second
	// DefaultInterval is used when no interval is configured
	DefaultInterval = 30 * time.Second
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "efficiency_refresh_cycles_total",
		Help: "Number of refresh cycles by outcome",
	}, []string{"scheduler", "outcome"})
	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "efficiency_refresh_cycle_duration_seconds",
		Help:    "Duration of refresh cycles",
		Buckets: prometheus.DefBuckets,
	}, []string{"scheduler"})
)

// Cycle fetches and computes a new result. token identifies the cycle.
type Cycle[T any] func(ctx context.Context, token uint64) (T, error)

// Commit publishes the result of the latest cycle
type Commit[T any] func(token uint64, result T)

// Ticker is the tick source of a Scheduler
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) Chan() <-chan time.Time {
	return t.C
}

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Options contains the settings of a Scheduler
type Options struct {
	// Name labels the prometheus metrics and log lines
	Name     string
	Interval time.Duration
	Enabled  bool
	// NewTicker defaults to time.NewTicker
	NewTicker TickerFactory
}

// Status is a point in time view of a Scheduler
type Status struct {
	LastUpdated     *time.Time `json:"lastUpdated,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	IntervalSeconds float64    `json:"intervalSeconds"`
	IssuedToken     uint64     `json:"issuedToken"`
	CommittedToken  uint64     `json:"committedToken"`
	Enabled         bool       `json:"enabled"`
}

// Scheduler is safe for concurrent use
type Scheduler[T any] struct {
	cycle     Cycle[T]
	commit    Commit[T]
	newTicker TickerFactory
	name      string

	issued atomic.Uint64

	// commitMu serializes calls to commit
	commitMu  sync.Mutex
	published uint64

	// mu guards everything below
	mu          sync.Mutex
	committed   uint64
	lastUpdated time.Time
	lastError   error
	enabled     bool
	interval    time.Duration

	trigger chan struct{}
	reset   chan struct{}
}

// New creates a Scheduler. It does nothing until Run or Refresh is called.
func New[T any](cycle Cycle[T], commit Commit[T], options Options) *Scheduler[T] {
	s := &Scheduler[T]{
		cycle:     cycle,
		commit:    commit,
		newTicker: options.NewTicker,
		name:      options.Name,
		enabled:   options.Enabled,
		interval:  clampInterval(options.Interval),
		trigger:   make(chan struct{}, 1),
		reset:     make(chan struct{}, 1),
	}
	if s.newTicker == nil {
		s.newTicker = newTimeTicker
	}
	if s.name == "" {
		s.name = "default"
	}
	return s
}

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Run starts cycles on every tick and trigger until ctx is done.
// An enabled scheduler starts with an immediate cycle.
// At most one cycle started by Run is in flight. Ticks and triggers arriving
// meanwhile are coalesced into a single cycle started once it finished.
func (s *Scheduler[T]) Run(ctx context.Context) error {
	ticker := s.newTicker(s.Interval())
	defer func() {
		ticker.Stop()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	done := make(chan struct{}, 1)
	inFlight := false
	pending := false

	start := func(reason string) {
		if !s.Enabled() {
			zap.S().Debugw("Refresh disabled, ignoring", "scheduler", s.name, "reason", reason)
			return
		}
		if inFlight {
			pending = true
			return
		}
		inFlight = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Refresh(ctx)
			done <- struct{}{}
		}()
	}

	start("startup")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			inFlight = false
			if pending {
				pending = false
				start("pending")
			}
		case <-ticker.Chan():
			start("tick")
		case <-s.trigger:
			start("trigger")
		case <-s.reset:
			ticker.Stop()
			ticker = s.newTicker(s.Interval())
		}
	}
}

// Trigger requests a cycle from Run. Requests are coalesced while one is pending.
func (s *Scheduler[T]) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Refresh runs one cycle synchronously, regardless of Enabled.
// committed is false if the cycle failed or a newer cycle was issued meanwhile.
func (s *Scheduler[T]) Refresh(ctx context.Context) (token uint64, committed bool, err error) {
	token = s.issued.Add(1)
	started := time.Now()

	result, err := s.cycle(ctx, token)
	cycleDuration.WithLabelValues(s.name).Observe(time.Since(started).Seconds())

	s.mu.Lock()
	latest := token == s.issued.Load()

	if err != nil {
		if latest {
			s.lastError = err
		}
		s.mu.Unlock()
		cyclesTotal.WithLabelValues(s.name, "failed").Inc()
		zap.S().Warnw("Refresh cycle failed", "scheduler", s.name, "token", token, "error", err)
		return token, false, err
	}

	if !latest || token <= s.committed {
		s.mu.Unlock()
		cyclesTotal.WithLabelValues(s.name, "stale").Inc()
		zap.S().Infow("Discarding stale refresh result", "scheduler", s.name, "token", token, "latest", s.issued.Load())
		return token, false, nil
	}

	s.committed = token
	s.lastUpdated = time.Now().UTC()
	s.lastError = nil
	s.mu.Unlock()

	s.publish(token, result)
	cyclesTotal.WithLabelValues(s.name, "committed").Inc()
	zap.S().Debugw("Committed refresh result", "scheduler", s.name, "token", token, "duration", time.Since(started))

	return token, true, nil
}

// publish calls commit without holding mu.
// Commits are serialized and never go back to an older token.
func (s *Scheduler[T]) publish(token uint64, result T) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if token <= s.published {
		return
	}
	s.commit(token, result)
	s.published = token
}

// SetEnabled turns timer and trigger driven cycles on or off.
// The last committed result stays in place while disabled.
func (s *Scheduler[T]) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	zap.S().Infow("Refresh toggled", "scheduler", s.name, "enabled", enabled)
}

func (s *Scheduler[T]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetInterval changes the polling interval and returns the effective, clamped value
func (s *Scheduler[T]) SetInterval(d time.Duration) time.Duration {
	s.mu.Lock()
	s.interval = clampInterval(d)
	effective := s.interval
	s.mu.Unlock()

	select {
	case s.reset <- struct{}{}:
	default:
	}
	return effective
}

func (s *Scheduler[T]) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Enabled:         s.enabled,
		IntervalSeconds: s.interval.Seconds(),
		IssuedToken:     s.issued.Load(),
		CommittedToken:  s.committed,
	}
	if !s.lastUpdated.IsZero() {
		lastUpdated := s.lastUpdated
		status.LastUpdated = &lastUpdated
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}

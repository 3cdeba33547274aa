// Package monitoring wires the assistant's health checks.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/friday_assistant/pkg/health"
	"github.com/lewisedginton/friday_assistant/pkg/health/checkers"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// Queue is the part of the worker pool the saturation check reads.
type Queue interface {
	Pending() int
	Capacity() int
}

// Config holds configuration for the health monitor
type Config struct {
	Logger logger.Logger
	// Database is pinged for readiness; required
	Database checkers.Pinger
	// Queue, when set, fails readiness while the background queue is full
	Queue Queue
	// ModelURL, when set, is probed for readiness. Used for local Ollama.
	ModelURL         string
	Timeout          time.Duration
	FailureThreshold int
}

// HealthMonitor owns the liveness and readiness checks.
type HealthMonitor struct {
	checker   *health.HealthChecker
	startTime time.Time
	shutdown  chan struct{}
	once      sync.Once
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}

	hm := &HealthMonitor{
		checker: health.New(
			health.WithLogger(cfg.Logger.WithFields(logger.ComponentField("health"))),
			health.WithTimeout(cfg.Timeout),
			health.WithFailureThreshold(cfg.FailureThreshold),
		),
		startTime: time.Now(),
		shutdown:  make(chan struct{}),
	}

	hm.checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	hm.checker.AddReadinessCheck(health.NewCheckFunc("shutdown", func(ctx context.Context) error {
		select {
		case <-hm.shutdown:
			return fmt.Errorf("shutting down")
		default:
			return nil
		}
	}))
	if cfg.Database != nil {
		hm.checker.AddReadinessCheck(checkers.NewDatabaseChecker(cfg.Database, "memory_store"))
	}
	if cfg.Queue != nil {
		q := cfg.Queue
		hm.checker.AddReadinessCheck(health.NewCheckFunc("worker_queue", func(ctx context.Context) error {
			if pending, capacity := q.Pending(), q.Capacity(); capacity > 0 && pending >= capacity {
				return fmt.Errorf("background queue full (%d/%d)", pending, capacity)
			}
			return nil
		}))
	}
	if cfg.ModelURL != "" {
		hm.checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.ModelURL, "model"))
	}
	return hm
}

// Register mounts the probe handlers on r.
func (hm *HealthMonitor) Register(r chi.Router, livenessPath, readinessPath string) {
	r.Get(livenessPath, hm.checker.LivenessHandler())
	r.Get(readinessPath, hm.checker.ReadinessHandler())
}

// Uptime reports how long the monitor has existed.
func (hm *HealthMonitor) Uptime() time.Duration {
	return time.Since(hm.startTime)
}

// MarkShuttingDown fails readiness from now on. Safe to call more than once.
func (hm *HealthMonitor) MarkShuttingDown() {
	hm.once.Do(func() { close(hm.shutdown) })
}

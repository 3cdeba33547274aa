// Package worker_pool runs best-effort background tasks on a fixed set of
// workers fed by a bounded queue. Submitting never blocks: a full queue drops
// the task. Task failures are logged, never returned to the submitter.
package worker_pool //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
	"github.com/lewisedginton/friday_assistant/pkg/prefixed_uuid"
)

const taskIDPrefix = "task"

// ErrPoolClosed is reported for tasks submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Task is a unit of background work.
type Task func(ctx context.Context) error

// TaskError wraps the failure of a named task.
type TaskError struct {
	ID   prefixed_uuid.PrefixedUUID
	Name string
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("task %s (%s): %v", e.Name, e.ID, e.Err)
}

func (e TaskError) Unwrap() error {
	return e.Err
}

// Config configures a Pool.
type Config struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`

	Logger  logger.Logger
	Metrics *metrics.Metrics
	// OnError, when set, is called for every failed task after it is logged.
	OnError func(TaskError)
}

const (
	DefaultWorkers     = 2
	DefaultQueueSize   = 64
	DefaultTaskTimeout = 30 * time.Second
)

type job struct {
	id   prefixed_uuid.PrefixedUUID
	name string
	task Task
}

// Pool is a bounded background task runner.
type Pool struct {
	cfg Config
	log logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job

	errs    chan TaskError
	drained chan struct{}

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the workers and the error logger.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		log:     cfg.Logger.WithFields(logger.ComponentField("worker_pool")),
		queue:   make(chan job, cfg.QueueSize),
		errs:    make(chan TaskError, cfg.Workers),
		drained: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	go p.logErrors()

	p.group = &errgroup.Group{}
	for i := 0; i < cfg.Workers; i++ {
		p.group.Go(p.work)
	}
	return p
}

// Submit queues task without blocking. It returns false when the queue is
// full or the pool is closed; the task is then dropped.
func (p *Pool) Submit(name string, task Task) (prefixed_uuid.PrefixedUUID, bool) {
	j := job{id: prefixed_uuid.New(taskIDPrefix), name: name, task: task}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("Dropping task submitted after close", logger.StringField("task", name))
		p.cfg.Metrics.IncJobsDropped()
		return j.id, false
	}

	select {
	case p.queue <- j:
		return j.id, true
	default:
		p.log.Warn("Task queue full, dropping task",
			logger.StringField("task", name),
			logger.IntField("queue_size", p.cfg.QueueSize),
		)
		p.cfg.Metrics.IncJobsDropped()
		return j.id, false
	}
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Capacity returns the queue size.
func (p *Pool) Capacity() int {
	return cap(p.queue)
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// ends first, running tasks are cancelled and queued tasks are abandoned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(p.errs)
		<-p.drained
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.log.Warn("Worker pool shutdown deadline reached, abandoning tasks",
			logger.IntField("pending", len(p.queue)),
		)
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) work() error {
	for j := range p.queue {
		if p.ctx.Err() != nil {
			p.cfg.Metrics.IncJob(metrics.JobMetricTotalKilled)
			continue
		}
		p.run(j)
	}
	return nil
}

func (p *Pool) run(j job) {
	p.cfg.Metrics.IncJob(metrics.JobMetricTotal)

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, j.task)

	switch {
	case err == nil:
		p.cfg.Metrics.IncJob(metrics.JobMetricTotalSuccess)
		p.log.Debug("Task completed",
			logger.StringField("task", j.name),
			logger.StringField("task_id", j.id.String()),
			logger.DurationField("duration", time.Since(start)),
		)
	case p.ctx.Err() != nil:
		p.cfg.Metrics.IncJob(metrics.JobMetricTotalKilled)
		p.errs <- TaskError{ID: j.id, Name: j.name, Err: err}
	default:
		p.cfg.Metrics.IncJob(metrics.JobMetricTotalFailed)
		p.errs <- TaskError{ID: j.id, Name: j.name, Err: err}
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}

func (p *Pool) logErrors() {
	defer close(p.drained)
	for te := range p.errs {
		p.log.Error("Background task failed",
			logger.StringField("task", te.Name),
			logger.StringField("task_id", te.ID.String()),
			logger.ErrorField(te.Err),
		)
		if p.cfg.OnError != nil {
			p.cfg.OnError(te)
		}
	}
}

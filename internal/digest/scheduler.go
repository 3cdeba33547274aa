package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

// DefaultSchedule runs the nightly job shortly before midnight.
const DefaultSchedule = "55 23 * * *"

const catchUpLookback = 3

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Summarizer *Summarizer
	// Schedule is a standard five-field cron expression.
	Schedule  string
	Retention memory_store.RetentionPolicy
	Clock     func() time.Time
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	// RunTimeout bounds one nightly run.
	RunTimeout time.Duration
}

// Scheduler summarises each day and prunes the store on a cron schedule.
type Scheduler struct {
	cfg  SchedulerConfig
	log  logger.Logger
	now  func() time.Time
	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler validates cfg and creates a Scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid digest schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 2 * time.Minute
	}
	return &Scheduler{
		cfg: cfg,
		log: cfg.Logger.WithFields(logger.ComponentField("digest_scheduler")),
		now: cfg.Clock,
	}, nil
}

// Start registers the nightly job and runs the scheduler until ctx is done
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.cfg.Summarizer.cfg.Location),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
		if err := s.RunOnce(runCtx); err != nil {
			s.log.Error("Nightly digest failed", logger.ErrorField(err))
		}
	}); err != nil {
		return fmt.Errorf("register digest job: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Info("Digest scheduler started", logger.StringField("schedule", s.cfg.Schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits briefly for a running job.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("Timed out waiting for the digest job to finish")
	}
	s.log.Info("Digest scheduler stopped")
}

// RunOnce summarises today and applies the retention policy.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var result error

	if _, _, err := s.cfg.Summarizer.Summarize(ctx, s.now()); err != nil {
		result = multierror.Append(result, fmt.Errorf("summarize: %w", err))
	}

	if s.cfg.Retention != (memory_store.RetentionPolicy{}) {
		res, err := s.cfg.Summarizer.cfg.Store.Prune(ctx, s.cfg.Retention)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("prune: %w", err))
		} else {
			s.log.Info("Applied retention policy",
				logger.Int64Field("memories", res.Memories),
				logger.Int64Field("lessons", res.Lessons),
			)
		}
	}

	s.cfg.Metrics.IncJob(metrics.JobMetricTotal)
	if result != nil {
		s.cfg.Metrics.IncJob(metrics.JobMetricTotalFailed)
	} else {
		s.cfg.Metrics.IncJob(metrics.JobMetricTotalSuccess)
	}
	return result
}

// CatchUp summarises yesterday if the nightly run missed it, for example
// because the assistant was not running at midnight.
func (s *Scheduler) CatchUp(ctx context.Context) error {
	yesterday := s.now().In(s.cfg.Summarizer.cfg.Location).AddDate(0, 0, -1)
	done, err := s.cfg.Summarizer.HasSummary(ctx, yesterday, catchUpLookback)
	if err != nil {
		return fmt.Errorf("check summaries: %w", err)
	}
	if done {
		return nil
	}
	_, wrote, err := s.cfg.Summarizer.Summarize(ctx, yesterday)
	if err != nil {
		return err
	}
	if wrote {
		s.log.Info("Caught up on a missed daily summary", logger.StringField("date", yesterday.Format(memory_store.DateLayout)))
	}
	return nil
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.ErrorField(err))...)
}

func kvFields(kv []interface{}) []logger.LogField {
	fields := make([]logger.LogField, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Field(key, kv[i+1]))
	}
	return fields
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/internal/digest"
	"github.com/lewisedginton/friday_assistant/internal/monitoring"
	"github.com/lewisedginton/friday_assistant/internal/server"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/utils"
)

// ServeCommand returns a command that runs the HTTP and websocket API
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP and websocket API with the nightly digest",
		Action:  serveAction,
	}
}

func serveAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}
	cfg.LogConfig(log)

	runCtx, cancel := signalContext(ctx.Context, log, cfg.HTTP.ShutdownTimeout+cfg.Worker.ShutdownTimeout)
	defer cancel()

	rt, err := newRuntime(runCtx, cfg, log)
	if err != nil {
		log.Error("Failed to start assistant", logger.ErrorField(err))
		return err
	}
	defer func() {
		if err := rt.close(context.WithoutCancel(runCtx)); err != nil {
			log.Error("Shutdown failed", logger.ErrorField(err))
		}
	}()

	if cfg.Digest.Enabled {
		sched, err := startDigest(runCtx, rt)
		if err != nil {
			return err
		}
		defer sched.Stop()
	}

	var health *monitoring.HealthMonitor
	if cfg.Health.Enabled {
		health = monitoring.NewHealthMonitor(monitoring.Config{
			Logger:           log,
			Database:         rt.store,
			Queue:            rt.pool,
			ModelURL:         rt.modelHealthURL(),
			Timeout:          cfg.Health.Timeout,
			FailureThreshold: cfg.Health.FailureThreshold,
		})
	}

	srv, err := server.New(server.Config{
		HTTP:           cfg.HTTP,
		Assistant:      rt.assistant,
		Store:          rt.store,
		Backups:        rt.backups,
		Health:         health,
		LivenessPath:   cfg.Health.LivenessPath,
		ReadinessPath:  cfg.Health.ReadinessPath,
		Metrics:        rt.metrics,
		ServeMetrics:   !cfg.Metrics.ExposeMetrics,
		MetricsPath:    cfg.Metrics.Path,
		APIToken:       cfg.Security.APIToken,
		MaxRequestSize: cfg.Security.MaxRequestSize,
		ChatRate:       cfg.Security.ChatRateLimit,
		ChatBurst:      cfg.Security.ChatBurst,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErr := make(chan error, 1)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := srv.Run(runCtx); err != nil {
			serverErr <- err
		}
	}()

	errChans := []<-chan error{serverErr}
	if cfg.Metrics.ExposeMetrics {
		errChans = append(errChans, rt.metrics.Listen(runCtx, cfg.Metrics.Addr(), cfg.Metrics.Path))
	}

	err = utils.FirstError(runCtx, errChans...)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		log.Error("Fatal server error occurred", logger.ErrorField(err))
	}
	cancel()
	<-serverDone

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

func startDigest(ctx context.Context, rt *runtime) (*digest.Scheduler, error) {
	sched, err := digest.NewScheduler(digest.SchedulerConfig{
		Summarizer: rt.summarizer,
		Schedule:   rt.cfg.Digest.Schedule,
		Retention:  rt.cfg.RetentionPolicy(),
		Logger:     rt.log,
		Metrics:    rt.metrics,
		RunTimeout: rt.cfg.Digest.RunTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create digest scheduler: %w", err)
	}

	if rt.cfg.Digest.CatchUp {
		go func() {
			catchCtx, cancel := context.WithTimeout(ctx, rt.cfg.Digest.RunTimeout)
			defer cancel()
			if err := sched.CatchUp(catchCtx); err != nil {
				rt.log.Warn("Digest catch-up failed", logger.ErrorField(err))
			}
		}()
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/friday_assistant/internal/config"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const (
	metadataLogger = "logger"
	metadataConfig = "config"
)

// getLogger retrieves the logger from the CLI context metadata
func getLogger(ctx *cli.Context) logger.Logger {
	if ctx.App.Metadata != nil {
		if log, ok := ctx.App.Metadata[metadataLogger].(logger.Logger); ok {
			return log
		}
	}

	// Fallback to default logger if not found
	return logger.NewLogger(logger.Config{
		Level:   logger.InfoLevel,
		Format:  "text",
		Service: "friday-assistant",
		Output:  ctx.App.ErrWriter,
	})
}

// loadConfig reads the configuration named by --config-file once and caches
// it in the app metadata.
func loadConfig(ctx *cli.Context) (*appconfig.AppConfig, error) {
	if cfg, ok := ctx.App.Metadata[metadataConfig].(*appconfig.AppConfig); ok {
		return cfg, nil
	}
	cfg, err := appconfig.Load(ctx.String("config-file"))
	if err != nil {
		return nil, err
	}
	if ctx.App.Metadata == nil {
		ctx.App.Metadata = map[string]interface{}{}
	}
	ctx.App.Metadata[metadataConfig] = cfg
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. A second
// signal, or the grace period running out, exits the process.
func signalContext(parent context.Context, log logger.Logger, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case <-sigChan:
			log.Warn("Second signal received, exiting immediately")
		case <-time.After(grace):
			log.Warn("Force exiting due to timeout")
		}
		os.Exit(1)
	}()
	return ctx, cancel
}

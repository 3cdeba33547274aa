// Package cli holds the friday command line: the terminal chat, the API
// server and the maintenance commands.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// NewApp builds the command line application.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:    "friday",
		Usage:   "A personal voice assistant that remembers",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "config-file",
				Aliases: []string{"c"},
				Value:   "",
				Usage:   "Path to configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			if ctx.App.Metadata == nil {
				ctx.App.Metadata = map[string]interface{}{}
			}
			// Logs go to stderr so they stay out of the chat transcript.
			ctx.App.Metadata[metadataLogger] = logger.NewLogger(logger.Config{
				Level:   logger.ParseLevel(ctx.String("log-level")),
				Format:  ctx.String("log-format"),
				Service: "friday-assistant",
				Output:  ctx.App.ErrWriter,
			})
			return nil
		},
		Commands: []*cli.Command{
			ChatCommand(),
			ServeCommand(),
			MemoryCommand(),
			BackupCommand(),
			SummarizeCommand(),
			ConfigCommand(),
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// SummarizeCommand returns a command that writes a daily summary on demand
func SummarizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "summarize",
		Usage: "Write the daily summary for a date",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "date",
				Aliases: []string{"d"},
				Usage:   "Day to summarise (YYYY-MM-DD), defaults to today",
			},
		},
		Action: summarizeAction,
	}
}

func summarizeAction(ctx *cli.Context) error {
	log := getLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}
	rt, err := newRuntime(ctx.Context, cfg, log)
	if err != nil {
		log.Error("Failed to start assistant", logger.ErrorField(err))
		return err
	}
	defer func() {
		if err := rt.close(ctx.Context); err != nil {
			log.Error("Shutdown failed", logger.ErrorField(err))
		}
	}()

	day := time.Now().In(rt.location)
	if s := ctx.String("date"); s != "" {
		if day, err = time.ParseInLocation(memory_store.DateLayout, s, rt.location); err != nil {
			return cli.Exit(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s), 1)
		}
	}

	summary, wrote, err := rt.summarizer.Summarize(ctx.Context, day)
	if err != nil {
		log.Error("Summary failed", logger.ErrorField(err))
		return err
	}
	if !wrote {
		fmt.Fprintf(ctx.App.Writer, "No conversations on %s\n", day.Format(memory_store.DateLayout))
		return nil
	}
	fmt.Fprintf(ctx.App.Writer, "%s (%s): %s\n", summary.Date, summary.Mood, summary.Summary)
	return nil
}

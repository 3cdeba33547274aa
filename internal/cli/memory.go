package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const timeLayout = "2006-01-02 15:04"

// MemoryCommand returns commands that inspect and edit what the assistant remembers
func MemoryCommand() *cli.Command {
	return &cli.Command{
		Name:    "memory",
		Aliases: []string{"m"},
		Usage:   "Inspect and edit stored memories",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List memories, most important first",
				Flags: []cli.Flag{
					limitFlag(),
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Only show this memory type"},
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Only show memories containing this text"},
				},
				Action: memoryListAction,
			},
			{
				Name:      "add",
				Usage:     "Store a memory",
				ArgsUsage: "<content>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(memory_store.MemoryTypeFact), Usage: "Memory type"},
					&cli.IntFlag{Name: "importance", Aliases: []string{"i"}, Usage: "Importance from 1 to 10"},
				},
				Action: memoryAddAction,
			},
			{
				Name:      "forget",
				Usage:     "Delete a memory by id",
				ArgsUsage: "<id>",
				Action:    memoryForgetAction,
			},
			{
				Name:   "traits",
				Usage:  "Show the personality trait values",
				Action: memoryTraitsAction,
			},
			{
				Name:   "prefs",
				Usage:  "Show learned preferences",
				Flags:  []cli.Flag{limitFlag()},
				Action: memoryPrefsAction,
			},
			{
				Name:   "lessons",
				Usage:  "Show lessons learned from corrections",
				Flags:  []cli.Flag{limitFlag()},
				Action: memoryLessonsAction,
			},
			{
				Name:  "conversations",
				Usage: "Show recent conversation turns",
				Flags: []cli.Flag{
					limitFlag(),
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Only show turns containing this text"},
				},
				Action: memoryConversationsAction,
			},
			{
				Name:   "summaries",
				Usage:  "Show recent daily summaries",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Value: 7, Usage: "How many days back"}},
				Action: memorySummariesAction,
			},
			{
				Name:   "stats",
				Usage:  "Show row counts",
				Action: memoryStatsAction,
			},
			{
				Name:   "prune",
				Usage:  "Apply the retention limits now",
				Action: memoryPruneAction,
			},
		},
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum rows to show"}
}

// withStore opens the memory store for the duration of fn.
func withStore(ctx *cli.Context, fn func(store *memory_store.Store) error) error {
	log := getLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Error("Failed to load configuration", logger.ErrorField(err))
		return err
	}
	store, err := openStore(ctx.Context, cfg, log, nil)
	if err != nil {
		log.Error("Failed to open memory store", logger.ErrorField(err))
		return err
	}
	defer store.Close()
	return fn(store)
}

func newTable(ctx *cli.Context, header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func memoryListAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		var (
			memories []memory_store.Memory
			err      error
		)
		if q := ctx.String("search"); q != "" {
			memories, err = store.FindMemories(ctx.Context, q, ctx.Int("limit"))
		} else {
			filter := memory_store.MemoryFilter{Limit: ctx.Int("limit")}
			if t := ctx.String("type"); t != "" {
				if filter.Type, err = memory_store.ParseMemoryType(t); err != nil {
					return err
				}
			}
			memories, err = store.GetMemories(ctx.Context, filter)
		}
		if err != nil {
			return err
		}

		w := newTable(ctx, "ID", "TYPE", "IMPORTANCE", "CONTENT")
		for _, m := range memories {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", m.ID, m.Type, m.Importance, m.Content)
		}
		return w.Flush()
	})
}

func memoryAddAction(ctx *cli.Context) error {
	content := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if content == "" {
		return cli.Exit("memory content is required", 1)
	}
	memoryType, err := memory_store.ParseMemoryType(ctx.String("type"))
	if err != nil {
		return err
	}
	return withStore(ctx, func(store *memory_store.Store) error {
		id, err := store.AddMemory(ctx.Context, memoryType, content, ctx.Int("importance"))
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Stored memory %d\n", id)
		return nil
	})
}

func memoryForgetAction(ctx *cli.Context) error {
	id, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("a numeric memory id is required", 1)
	}
	return withStore(ctx, func(store *memory_store.Store) error {
		if err := store.DeleteMemory(ctx.Context, id); err != nil {
			return fmt.Errorf("forget memory %d: %w", id, err)
		}
		fmt.Fprintf(ctx.App.Writer, "Forgot memory %d\n", id)
		return nil
	})
}

func memoryTraitsAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		traits, err := store.GetPersonalityTraits(ctx.Context)
		if err != nil {
			return err
		}
		w := newTable(ctx, "TRAIT", "VALUE", "DESCRIPTION")
		for _, spec := range memory_store.Traits() {
			fmt.Fprintf(w, "%s\t%.2f\t%s\n", spec.Trait, traits[spec.Trait], spec.Description)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if desc := memory_store.DescribeTraits(traits); desc != "" {
			fmt.Fprintf(ctx.App.Writer, "\n%s\n", desc)
		}
		return nil
	})
}

func memoryPrefsAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		prefs, err := store.GetLearnedPreferences(ctx.Context, ctx.Int("limit"))
		if err != nil {
			return err
		}
		w := newTable(ctx, "TYPE", "VALUE", "CONFIDENCE", "CONFIRMED")
		for _, p := range prefs {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\n", p.Type, p.Value, p.Confidence, p.TimesConfirmed)
		}
		return w.Flush()
	})
}

func memoryLessonsAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		lessons, err := store.GetCorrections(ctx.Context, ctx.Int("limit"))
		if err != nil {
			return err
		}
		w := newTable(ctx, "ID", "RULE", "LESSON")
		for _, c := range lessons {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.RuleType, c.Lesson)
		}
		return w.Flush()
	})
}

func memoryConversationsAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		var (
			turns []memory_store.ConversationTurn
			err   error
		)
		if q := ctx.String("search"); q != "" {
			turns, err = store.SearchConversations(ctx.Context, q, ctx.Int("limit"))
		} else {
			turns, err = store.GetRecentConversations(ctx.Context, ctx.Int("limit"))
		}
		if err != nil {
			return err
		}
		for _, t := range turns {
			fmt.Fprintf(ctx.App.Writer, "[%s] You: %s\n", t.Timestamp.Format(timeLayout), t.UserMessage)
			fmt.Fprintf(ctx.App.Writer, "%s Assistant: %s\n", strings.Repeat(" ", len(timeLayout)+2), t.AssistantResponse)
		}
		return nil
	})
}

func memorySummariesAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		summaries, err := store.GetRecentSummaries(ctx.Context, ctx.Int("days"))
		if err != nil {
			return err
		}
		w := newTable(ctx, "DATE", "MOOD", "TOPICS", "SUMMARY")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Date, s.Mood, s.Topics, s.Summary)
		}
		return w.Flush()
	})
}

func memoryStatsAction(ctx *cli.Context) error {
	return withStore(ctx, func(store *memory_store.Store) error {
		stats, err := store.Stats(ctx.Context)
		if err != nil {
			return err
		}
		w := newTable(ctx, "TABLE", "ROWS")
		fmt.Fprintf(w, "conversations\t%d\n", stats.Conversations)
		fmt.Fprintf(w, "memories\t%d\n", stats.Memories)
		fmt.Fprintf(w, "preferences\t%d\n", stats.Preferences)
		fmt.Fprintf(w, "summaries\t%d\n", stats.Summaries)
		fmt.Fprintf(w, "corrections\t%d\n", stats.Corrections)
		return w.Flush()
	})
}

func memoryPruneAction(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return withStore(ctx, func(store *memory_store.Store) error {
		res, err := store.Prune(ctx.Context, cfg.RetentionPolicy())
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Pruned %d memories and %d lessons\n", res.Memories, res.Lessons)
		return nil
	})
}

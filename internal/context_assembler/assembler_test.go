package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard})
}

func newTestStore(t *testing.T) *memory_store.Store {
	t.Helper()
	store, err := memory_store.Open(context.Background(), memory_store.Config{
		Database: pkgconfig.SQLiteConfig{
			Path:         filepath.Join(t.TempDir(), "friday.db"),
			BusyTimeout:  5 * time.Second,
			JournalMode:  "WAL",
			MaxOpenConns: 2,
		},
		Logger: newTestLogger(),
		Clock:  fixedClock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestAssembler(source MemorySource, mutate ...func(*Config)) *Assembler {
	cfg := Config{
		Store:    source,
		Logger:   newTestLogger(),
		Clock:    fixedClock,
		Location: time.UTC,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg)
}

var optionalHeadings = []string{HeadingMemories, HeadingPreferences, HeadingSummaries, HeadingLessons}

func TestNew(t *testing.T) {
	assert.Panics(t, func() { New(Config{}) })
}

func TestBuild_EmptyStore(t *testing.T) {
	ctx := context.Background()
	a := newTestAssembler(newTestStore(t))

	prompt, err := a.Build(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, prompt.System)
	assert.True(t, strings.HasPrefix(prompt.System, "You are F.R.I.D.A.Y."))
	assert.Contains(t, prompt.System, HeadingCurrentContext)
	assert.Contains(t, prompt.System, "- Current date: Saturday, March 14, 2026")
	assert.Contains(t, prompt.System, "- Current time: 09:30 AM")
	assert.Contains(t, prompt.System, "- Location: Kadikoy, Istanbul")
	assert.Contains(t, prompt.System, "first conversation")
	for _, h := range optionalHeadings {
		assert.NotContains(t, prompt.System, h)
	}
	assert.Contains(t, prompt.System, "warm and friendly, emotionally attuned, casual in speech")
	assert.False(t, prompt.Truncated)
	assert.Equal(t, EstimateTokens(prompt.System), prompt.Tokens)
}

func TestBuild_RemembersAndForgetsUserName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := newTestAssembler(store)

	id, err := store.AddMemory(ctx, memory_store.MemoryTypeUserName, "Alex", 10)
	require.NoError(t, err)

	prompt, err := a.Build(ctx)
	require.NoError(t, err)
	assert.Contains(t, prompt.System, HeadingMemories+"\n- [user_name] Alex")

	require.NoError(t, store.DeleteMemory(ctx, id))

	prompt, err = a.Build(ctx)
	require.NoError(t, err)
	assert.NotContains(t, prompt.System, "Alex")
	assert.False(t, prompt.Has(SectionMemories))
}

func seedEverything(t *testing.T, store *memory_store.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.SaveConversation(ctx, memory_store.ConversationTurn{UserMessage: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, memory_store.MemoryTypeUserName, "Alex", 10)
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, memory_store.MemoryTypeInterest, "chess", 6)
	require.NoError(t, err)
	require.NoError(t, store.LearnPreference(ctx, "response_style", "brief", 0.7))
	require.NoError(t, store.LearnPreference(ctx, "topic", "football", 0.2))
	require.NoError(t, store.SaveDailySummary(ctx, memory_store.DailySummary{
		Date: "2026-03-13", Summary: "Talked about chess openings", Topics: "chess", Mood: "positive",
	}))
	_, err = store.AddCorrection(ctx, memory_store.Correction{
		UserSaid: "no, I meant the band", Lesson: "Queen usually means the band", RuleType: memory_store.RuleMeaning,
	})
	require.NoError(t, err)
}

func TestBuild_AllSectionsInOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedEverything(t, store)
	a := newTestAssembler(store, func(c *Config) { c.LocationName = "Moda" })

	prompt, err := a.Build(ctx)
	require.NoError(t, err)

	var names []SectionName
	for _, s := range prompt.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []SectionName{
		SectionPersona, SectionCurrentContext, SectionPersonality, SectionMemories,
		SectionPreferences, SectionSummaries, SectionLessons,
	}, names)

	last := -1
	for _, h := range []string{HeadingCurrentContext, HeadingPersonality, HeadingMemories, HeadingPreferences, HeadingSummaries, HeadingLessons} {
		idx := strings.Index(prompt.System, h)
		require.GreaterOrEqual(t, idx, 0, h)
		assert.Greater(t, idx, last, h)
		last = idx
	}

	assert.Contains(t, prompt.System, "- Location: Moda")
	assert.Contains(t, prompt.System, "talked with the user 1 times before")
	assert.Contains(t, prompt.System, "- [user_name] Alex\n- [interest] chess")
	assert.Contains(t, prompt.System, "- response_style: brief (confidence 70%)")
	assert.NotContains(t, prompt.System, "football")
	assert.Contains(t, prompt.System, "- 2026-03-13: Talked about chess openings (topics: chess; mood: positive)")
	assert.Contains(t, prompt.System, "- [meaning] Queen usually means the band")
}

func TestBuild_Deterministic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedEverything(t, store)
	a := newTestAssembler(store)

	first, err := a.Build(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.Build(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.System, again.System)
	}
}

// failingSource fails every read.
type failingSource struct{ err error }

func (f failingSource) GetConversationCount(context.Context) (int, error) { return 0, f.err }
func (f failingSource) GetPersonalityTraits(context.Context) (map[memory_store.Trait]float64, error) {
	return nil, f.err
}
func (f failingSource) GetMemories(context.Context, memory_store.MemoryFilter) ([]memory_store.Memory, error) {
	return nil, f.err
}
func (f failingSource) GetLearnedPreferences(context.Context, int) ([]memory_store.LearnedPreference, error) {
	return nil, f.err
}
func (f failingSource) GetRecentSummaries(context.Context, int) ([]memory_store.DailySummary, error) {
	return nil, f.err
}
func (f failingSource) GetCorrections(context.Context, int) ([]memory_store.Correction, error) {
	return nil, f.err
}

func TestBuild_StoreFailuresOmitSections(t *testing.T) {
	a := newTestAssembler(failingSource{err: errors.New("database is locked")})

	prompt, err := a.Build(context.Background())
	require.NoError(t, err)

	var names []SectionName
	for _, s := range prompt.Sections {
		names = append(names, s.Name)
	}
	assert.Equal(t, []SectionName{SectionPersona, SectionCurrentContext}, names)
	assert.NotContains(t, prompt.System, "first conversation")
	assert.NotContains(t, prompt.System, "talked with the user")
}

func TestBuild_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAssembler(failingSource{}).Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_TokenBudget(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedEverything(t, store)
	for i := 0; i < 15; i++ {
		_, err := store.AddMemory(ctx, memory_store.MemoryTypeFact, fmt.Sprintf("remembered fact number %02d about the user", i), 3)
		require.NoError(t, err)
	}

	unbounded, err := newTestAssembler(store).Build(ctx)
	require.NoError(t, err)

	budget := unbounded.Tokens - 60
	prompt, err := newTestAssembler(store, func(c *Config) { c.TokenBudget = budget }).Build(ctx)
	require.NoError(t, err)

	assert.True(t, prompt.Truncated)
	assert.LessOrEqual(t, prompt.Tokens, budget)
	assert.True(t, prompt.Has(SectionPersona))
	assert.True(t, prompt.Has(SectionCurrentContext))
	assert.False(t, prompt.Has(SectionSummaries), "summaries are truncated first")
	assert.False(t, prompt.Has(SectionPreferences))
	assert.Contains(t, prompt.System, "- [user_name] Alex", "top memories survive")
	assert.Contains(t, prompt.System, "Queen usually means the band", "lessons go last")

	t.Run("budget smaller than the fixed sections keeps them whole", func(t *testing.T) {
		prompt, err := newTestAssembler(store, func(c *Config) { c.TokenBudget = 10 }).Build(ctx)
		require.NoError(t, err)
		assert.True(t, prompt.Truncated)
		var names []SectionName
		for _, s := range prompt.Sections {
			names = append(names, s.Name)
		}
		assert.Equal(t, []SectionName{SectionPersona, SectionCurrentContext}, names)
	})
}

func TestBuild_TokenBudgetKeepsNewestLessons(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for i := 0; i < 10; i++ {
		_, err := store.AddCorrection(ctx, memory_store.Correction{
			UserSaid: "no",
			Lesson:   fmt.Sprintf("lesson %02d keep answers about the ferry schedule short", i),
		})
		require.NoError(t, err)
	}

	unbounded, err := newTestAssembler(store).Build(ctx)
	require.NoError(t, err)

	// Personality goes before lessons; leave room for 20 fewer lesson tokens.
	budget := unbounded.Tokens - 20
	for _, s := range unbounded.Sections {
		if s.Name == SectionPersonality {
			budget -= EstimateTokens(s.String())
		}
	}
	prompt, err := newTestAssembler(store, func(c *Config) { c.TokenBudget = budget }).Build(ctx)
	require.NoError(t, err)

	assert.True(t, prompt.Truncated)
	assert.True(t, prompt.Has(SectionLessons))
	assert.NotContains(t, prompt.System, "lesson 00")
	assert.Contains(t, prompt.System, "lesson 09")
	assert.Less(t, strings.Index(prompt.System, "lesson 08"), strings.Index(prompt.System, "lesson 09"))
}

func TestBuildMessages(t *testing.T) {
	a := newTestAssembler(newTestStore(t))

	var history []Exchange
	for i := 1; i <= 5; i++ {
		history = append(history, Exchange{User: fmt.Sprintf("q%d", i), Assistant: fmt.Sprintf("a%d", i)})
	}

	prompt, contents, err := a.BuildMessages(context.Background(), history, "what now?")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt.System)

	require.Len(t, contents, 7)
	assert.Equal(t, "q3", contents[0].Parts[0].Text)
	assert.Equal(t, "user", string(contents[0].Role))
	assert.Equal(t, "a3", contents[1].Parts[0].Text)
	assert.Equal(t, "model", string(contents[1].Role))
	assert.Equal(t, "what now?", contents[6].Parts[0].Text)

	_, contents, err = a.BuildMessages(context.Background(), nil, "hello")
	require.NoError(t, err)
	require.Len(t, contents, 1)
}

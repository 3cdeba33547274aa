package memory_store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:  logger.DebugLevel,
		Output: io.Discard,
	})
}

func testDatabaseConfig(path string) pkgconfig.SQLiteConfig {
	return pkgconfig.SQLiteConfig{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		JournalMode:  "WAL",
		MaxOpenConns: 4,
	}
}

func openTestStore(t *testing.T, path string, clock *fakeClock) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{
		Database: testDatabaseConfig(path),
		Logger:   newTestLogger(),
		Clock:    clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return openTestStore(t, filepath.Join(t.TempDir(), "friday.db"), clock), clock
}

func TestOpen(t *testing.T) {
	t.Run("creates missing directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "friday.db")
		openTestStore(t, path, newFakeClock())

		_, err := os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("reopening keeps existing data and trait values", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "friday.db")
		clock := newFakeClock()

		first, err := Open(ctx, Config{Database: testDatabaseConfig(path), Clock: clock.Now})
		require.NoError(t, err)
		require.NoError(t, first.UpdatePersonalityTrait(ctx, TraitHumor, 0.3))
		_, err = first.AddMemory(ctx, MemoryTypeUserName, "Alex", 10)
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second := openTestStore(t, path, clock)
		traits, err := second.GetPersonalityTraits(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.8, traits[TraitHumor], 1e-9)

		memories, err := second.GetMemories(ctx, MemoryFilter{})
		require.NoError(t, err)
		require.Len(t, memories, 1)
		assert.Equal(t, "Alex", memories[0].Content)
	})

	t.Run("seeds default traits", func(t *testing.T) {
		store, _ := newTestStore(t)
		traits, err := store.GetPersonalityTraits(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultTraits(), traits)
	})
}

func TestOpen_UpgradesLegacySchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			user_message TEXT,
			assistant_response TEXT)`,
		`CREATE TABLE user_memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_type TEXT,
			content TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP)`,
		`INSERT INTO conversations (user_message, assistant_response) VALUES ('hello', 'hi there')`,
		`INSERT INTO user_memories (memory_type, content) VALUES ('interest', 'chess')`,
	} {
		_, err := legacy.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, legacy.Close())

	store := openTestStore(t, path, newFakeClock())

	count, err := store.GetConversationCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for table, want := range map[string][]string{
		"conversations": {"topic", "sentiment"},
		"user_memories": {"importance", "last_referenced"},
	} {
		cols, err := tableColumns(ctx, store.db, table)
		require.NoError(t, err)
		for _, col := range want {
			assert.True(t, cols[col], "%s.%s should exist", table, col)
		}
	}

	memories, err := store.GetMemories(ctx, MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "chess", memories[0].Content)
	assert.Equal(t, DefaultImportance, memories[0].Importance)

	_, err = store.SaveConversation(ctx, ConversationTurn{
		UserMessage:       "what's new",
		AssistantResponse: "not much",
		Topic:             "smalltalk",
		Sentiment:         "neutral",
	})
	require.NoError(t, err)
}

func TestConversations(t *testing.T) {
	ctx := context.Background()

	t.Run("save increments count by one", func(t *testing.T) {
		store, _ := newTestStore(t)

		before, err := store.GetConversationCount(ctx)
		require.NoError(t, err)

		_, err = store.SaveConversation(ctx, ConversationTurn{UserMessage: "hi", AssistantResponse: "hello"})
		require.NoError(t, err)

		after, err := store.GetConversationCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, after)
	})

	t.Run("concurrent saves are all persisted", func(t *testing.T) {
		store, _ := newTestStore(t)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.SaveConversation(ctx, ConversationTurn{
					UserMessage:       fmt.Sprintf("message %d", i),
					AssistantResponse: fmt.Sprintf("reply %d", i),
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		count, err := store.GetConversationCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, n, count)
	})

	t.Run("recent and search return newest first", func(t *testing.T) {
		store, clock := newTestStore(t)
		for _, msg := range []string{"tell me about chess", "weather today", "more chess openings"} {
			_, err := store.SaveConversation(ctx, ConversationTurn{UserMessage: msg, AssistantResponse: "ok"})
			require.NoError(t, err)
			clock.Advance(time.Minute)
		}

		recent, err := store.GetRecentConversations(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "more chess openings", recent[0].UserMessage)
		assert.Equal(t, "weather today", recent[1].UserMessage)

		found, err := store.SearchConversations(ctx, "chess", 10)
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "more chess openings", found[0].UserMessage)

		none, err := store.SearchConversations(ctx, "100%", 10)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("by date returns only that day", func(t *testing.T) {
		store, clock := newTestStore(t)
		_, err := store.SaveConversation(ctx, ConversationTurn{UserMessage: "day one", AssistantResponse: "ok", Topic: "misc"})
		require.NoError(t, err)
		clock.Advance(24 * time.Hour)
		_, err = store.SaveConversation(ctx, ConversationTurn{UserMessage: "day two", AssistantResponse: "ok"})
		require.NoError(t, err)

		turns, err := store.GetConversationsByDate(ctx, newFakeClock().Now())
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "day one", turns[0].UserMessage)
		assert.Equal(t, "misc", turns[0].Topic)
		assert.WithinDuration(t, newFakeClock().Now(), turns[0].Timestamp, time.Millisecond)
	})
}

func TestAddMemory(t *testing.T) {
	ctx := context.Background()
	long := "works as a backend engineer at a logistics startup in Istanbul and likes Go"

	tests := []struct {
		name      string
		first     MemoryType
		firstText string
		second    MemoryType
		secondTxt string
		wantRows  int
	}{
		{"identical content updates in place", MemoryTypeFact, "likes tea", MemoryTypeFact, "likes tea", 1},
		{"shared 50 character prefix updates in place", MemoryTypeFact, long, MemoryTypeFact, long[:50] + " and coffee", 1},
		{"new content contained in old updates in place", MemoryTypeInterest, "chess and go", MemoryTypeInterest, "chess", 1},
		{"old content contained in new updates in place", MemoryTypeInterest, "chess", MemoryTypeInterest, "chess and go", 1},
		{"match is case insensitive", MemoryTypeUserName, "Alex", MemoryTypeUserName, "alex", 1},
		{"a new user name replaces the old one", MemoryTypeUserName, "Dmitri", MemoryTypeUserName, "Turkish", 1},
		{"different types never merge", MemoryTypeFact, "likes tea", MemoryTypeInterest, "likes tea", 2},
		{"unrelated content inserts", MemoryTypeFact, "likes tea", MemoryTypeFact, "owns a cat", 2},
		{"empty content is stored separately", MemoryTypeFact, "likes tea", MemoryTypeFact, "", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, clock := newTestStore(t)

			id1, err := store.AddMemory(ctx, tt.first, tt.firstText, 5)
			require.NoError(t, err)
			clock.Advance(time.Second)
			id2, err := store.AddMemory(ctx, tt.second, tt.secondTxt, 8)
			require.NoError(t, err)

			memories, err := store.GetMemories(ctx, MemoryFilter{})
			require.NoError(t, err)
			assert.Len(t, memories, tt.wantRows)

			if tt.wantRows == 1 {
				assert.Equal(t, id1, id2)
				assert.Equal(t, tt.secondTxt, memories[0].Content)
				assert.Equal(t, 8, memories[0].Importance)
				assert.WithinDuration(t, clock.Now(), memories[0].LastReferenced, time.Millisecond)
			} else {
				assert.NotEqual(t, id1, id2)
			}
		})
	}

	t.Run("rejects unknown memory type", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.AddMemory(ctx, MemoryType("mood"), "happy", 5)
		assert.ErrorIs(t, err, ErrUnknownMemoryType)
	})

	t.Run("non-positive importance uses default", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.AddMemory(ctx, MemoryTypeFact, "likes tea", 0)
		require.NoError(t, err)
		memories, err := store.GetMemories(ctx, MemoryFilter{})
		require.NoError(t, err)
		require.Len(t, memories, 1)
		assert.Equal(t, DefaultImportance, memories[0].Importance)
	})
}

func TestGetMemories(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	seed := []struct {
		typ        MemoryType
		content    string
		importance int
	}{
		{MemoryTypeInterest, "chess", 5},
		{MemoryTypeUserName, "Alex", 10},
		{MemoryTypeFact, "lives in Kadikoy", 5},
		{MemoryTypeSchedule, "gym on Tuesdays", 3},
		{MemoryTypeInterest, "jazz", 7},
	}
	for _, m := range seed {
		_, err := store.AddMemory(ctx, m.typ, m.content, m.importance)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	t.Run("orders by importance then recency", func(t *testing.T) {
		memories, err := store.GetMemories(ctx, MemoryFilter{})
		require.NoError(t, err)

		var got []string
		for _, m := range memories {
			got = append(got, m.Content)
		}
		assert.Equal(t, []string{"Alex", "jazz", "lives in Kadikoy", "chess", "gym on Tuesdays"}, got)
	})

	t.Run("respects limit", func(t *testing.T) {
		for _, limit := range []int{1, 2, 3} {
			memories, err := store.GetMemories(ctx, MemoryFilter{Limit: limit})
			require.NoError(t, err)
			assert.Len(t, memories, limit)
		}
	})

	t.Run("filters by type", func(t *testing.T) {
		memories, err := store.GetMemories(ctx, MemoryFilter{Type: MemoryTypeInterest})
		require.NoError(t, err)
		require.Len(t, memories, 2)
		for _, m := range memories {
			assert.Equal(t, MemoryTypeInterest, m.Type)
		}
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		memories, err := store.GetMemories(ctx, MemoryFilter{Type: MemoryTypeRelationship})
		require.NoError(t, err)
		assert.NotNil(t, memories)
		assert.Empty(t, memories)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		memories, err := store.GetMemories(ctx, MemoryFilter{Type: "mood"})
		assert.ErrorIs(t, err, ErrUnknownMemoryType)
		assert.NotNil(t, memories)
	})

	t.Run("find matches content", func(t *testing.T) {
		memories, err := store.FindMemories(ctx, "kadikoy", 5)
		require.NoError(t, err)
		require.Len(t, memories, 1)
		assert.Equal(t, MemoryTypeFact, memories[0].Type)
	})

	t.Run("format renders type and content", func(t *testing.T) {
		out, err := store.FormatMemories(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "- [user_name] Alex\n- [interest] jazz", out)
	})
}

func TestDeleteMemory(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	id, err := store.AddMemory(ctx, MemoryTypeUserName, "Alex", 10)
	require.NoError(t, err)

	require.NoError(t, store.DeleteMemory(ctx, id))

	memories, err := store.GetMemories(ctx, MemoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, memories)

	assert.ErrorIs(t, store.DeleteMemory(ctx, id), ErrNotFound)
}

func TestUpdatePersonalityTrait(t *testing.T) {
	ctx := context.Background()

	for _, spec := range Traits() {
		t.Run(string(spec.Trait)+" clamps at both ends", func(t *testing.T) {
			store, _ := newTestStore(t)

			for i := 0; i < 3; i++ {
				require.NoError(t, store.UpdatePersonalityTrait(ctx, spec.Trait, 10.0))
			}
			traits, err := store.GetPersonalityTraits(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1.0, traits[spec.Trait])

			for i := 0; i < 3; i++ {
				require.NoError(t, store.UpdatePersonalityTrait(ctx, spec.Trait, -10.0))
			}
			traits, err = store.GetPersonalityTraits(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0.0, traits[spec.Trait])
		})
	}

	t.Run("small deltas accumulate", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.UpdatePersonalityTrait(ctx, TraitHumor, 0.02))
		require.NoError(t, store.UpdatePersonalityTrait(ctx, TraitHumor, 0.02))

		traits, err := store.GetPersonalityTraits(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 0.54, traits[TraitHumor], 1e-9)
	})

	t.Run("unknown trait is a no-op", func(t *testing.T) {
		store, _ := newTestStore(t)

		require.NoError(t, store.UpdatePersonalityTrait(ctx, Trait("sarcasm"), 0.5))

		traits, err := store.GetPersonalityTraits(ctx)
		require.NoError(t, err)
		assert.Equal(t, DefaultTraits(), traits)

		var rows int
		require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personality_traits`).Scan(&rows))
		assert.Equal(t, len(Traits()), rows)
	})
}

func TestDescribeTraits(t *testing.T) {
	tests := []struct {
		name   string
		traits map[Trait]float64
		want   string
	}{
		{"defaults", DefaultTraits(), "warm and friendly, emotionally attuned, casual in speech"},
		{"thresholds are exclusive", map[Trait]float64{TraitWarmth: 0.6, TraitFormality: 0.4}, ""},
		{"low clauses", map[Trait]float64{TraitHumor: 0.1, TraitDirectness: 0.2}, "serious in tone, thorough and elaborate"},
		{"high clauses", map[Trait]float64{TraitPlayfulness: 0.9, TraitFormality: 0.9}, "playful, formal and polished"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeTraits(tt.traits))
		})
	}

	t.Run("describe personality falls back when nothing is notable", func(t *testing.T) {
		ctx := context.Background()
		store, _ := newTestStore(t)
		for trait, v := range DefaultTraits() {
			require.NoError(t, store.UpdatePersonalityTrait(ctx, trait, 0.5-v))
		}
		got, err := store.DescribePersonality(ctx)
		require.NoError(t, err)
		assert.Equal(t, "balanced personality", got)
	})
}

func TestLearnPreference(t *testing.T) {
	ctx := context.Background()

	t.Run("repeat sightings raise confidence and count", func(t *testing.T) {
		store, _ := newTestStore(t)

		require.NoError(t, store.LearnPreference(ctx, "response_style", "brief", DefaultPreferenceConfidence))
		prefs, err := store.GetLearnedPreferences(ctx, 0)
		require.NoError(t, err)
		require.Len(t, prefs, 1)
		prev := prefs[0]
		assert.Equal(t, 1, prev.TimesConfirmed)

		for i := 0; i < 3; i++ {
			require.NoError(t, store.LearnPreference(ctx, "response_style", "brief", DefaultPreferenceConfidence))
			prefs, err := store.GetLearnedPreferences(ctx, 0)
			require.NoError(t, err)
			require.Len(t, prefs, 1)
			assert.Greater(t, prefs[0].Confidence, prev.Confidence)
			assert.Equal(t, prev.TimesConfirmed+1, prefs[0].TimesConfirmed)
			prev = prefs[0]
		}
	})

	t.Run("confidence caps at one", func(t *testing.T) {
		store, _ := newTestStore(t)
		for i := 0; i < 10; i++ {
			require.NoError(t, store.LearnPreference(ctx, "tone", "casual", 0.9))
		}
		prefs, err := store.GetLearnedPreferences(ctx, 0)
		require.NoError(t, err)
		require.Len(t, prefs, 1)
		assert.Equal(t, 1.0, prefs[0].Confidence)
		assert.Equal(t, 10, prefs[0].TimesConfirmed)
	})

	t.Run("only confident preferences surface, best first", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, store.LearnPreference(ctx, "tone", "casual", 0.4))
		require.NoError(t, store.LearnPreference(ctx, "topic", "football", 0.2))
		require.NoError(t, store.LearnPreference(ctx, "style", "brief", 0.6))
		require.NoError(t, store.LearnPreference(ctx, "style", "emoji", 0.8))

		prefs, err := store.GetLearnedPreferences(ctx, 0)
		require.NoError(t, err)
		require.Len(t, prefs, 2)
		assert.Equal(t, "emoji", prefs[0].Value)
		assert.Equal(t, "brief", prefs[1].Value)
		for _, p := range prefs {
			assert.Greater(t, p.Confidence, PreferenceSurfaceThreshold)
		}
	})
}

func TestDailySummaries(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for _, s := range []DailySummary{
		{Date: "2026-03-14", Summary: "talked about chess", Topics: "chess", Mood: "positive"},
		{Date: "2026-03-13", Summary: "planned a trip"},
		{Date: "2026-03-10", Summary: "old news"},
	} {
		require.NoError(t, store.SaveDailySummary(ctx, s))
	}

	t.Run("replace on same date", func(t *testing.T) {
		require.NoError(t, store.SaveDailySummary(ctx, DailySummary{Date: "2026-03-14", Summary: "talked about chess and jazz"}))

		summaries, err := store.GetRecentSummaries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "2026-03-14", summaries[0].Date)
		assert.Equal(t, "talked about chess and jazz", summaries[0].Summary)
	})

	t.Run("window excludes older days", func(t *testing.T) {
		summaries, err := store.GetRecentSummaries(ctx, 3)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "2026-03-14", summaries[0].Date)
		assert.Equal(t, "2026-03-13", summaries[1].Date)
	})

	t.Run("zero days returns empty", func(t *testing.T) {
		summaries, err := store.GetRecentSummaries(ctx, 0)
		require.NoError(t, err)
		assert.NotNil(t, summaries)
		assert.Empty(t, summaries)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		assert.Error(t, store.SaveDailySummary(ctx, DailySummary{Date: "14/03/2026", Summary: "x"}))
	})

	t.Run("window follows the configured location", func(t *testing.T) {
		// 22:30 UTC on the 14th is already the 15th at UTC+3.
		late := func() time.Time { return time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC) }
		local, err := Open(ctx, Config{
			Database: testDatabaseConfig(filepath.Join(t.TempDir(), "friday.db")),
			Logger:   newTestLogger(),
			Clock:    late,
			Location: time.FixedZone("UTC+3", 3*60*60),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = local.Close() })

		require.NoError(t, local.SaveDailySummary(ctx, DailySummary{Date: "2026-03-15", Summary: "after midnight"}))
		require.NoError(t, local.SaveDailySummary(ctx, DailySummary{Date: "2026-03-13", Summary: "two days back"}))

		summaries, err := local.GetRecentSummaries(ctx, 2)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "2026-03-15", summaries[0].Date)
	})
}

func TestCorrections(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	lessons, err := store.FormatLessons(ctx)
	require.NoError(t, err)
	assert.Empty(t, lessons)

	_, err = store.AddCorrection(ctx, Correction{
		UserSaid:      "no, I meant the band Queen",
		PriorResponse: "Queen Elizabeth II was...",
		Lesson:        "Queen usually means the band",
		RuleType:      RuleMeaning,
	})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = store.AddCorrection(ctx, Correction{UserSaid: "don't use emoji", Lesson: "avoid emoji"})
	require.NoError(t, err)

	corrections, err := store.GetCorrections(ctx, 0)
	require.NoError(t, err)
	want := []Correction{
		{UserSaid: "don't use emoji", Lesson: "avoid emoji", RuleType: RuleGeneral},
		{
			UserSaid:      "no, I meant the band Queen",
			PriorResponse: "Queen Elizabeth II was...",
			Lesson:        "Queen usually means the band",
			RuleType:      RuleMeaning,
		},
	}
	if diff := cmp.Diff(want, corrections, cmpopts.IgnoreFields(Correction{}, "ID", "CreatedAt")); diff != "" {
		t.Errorf("GetCorrections() mismatch (-want +got):\n%s", diff)
	}
	assert.WithinDuration(t, clock.Now(), corrections[0].CreatedAt, 0)

	lessons, err = store.FormatLessons(ctx)
	require.NoError(t, err)
	assert.Equal(t, "- [meaning] Queen usually means the band\n- [general] avoid emoji", lessons)

	_, err = store.AddCorrection(ctx, Correction{Lesson: "x", RuleType: "maybe"})
	assert.ErrorIs(t, err, ErrUnknownRuleType)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	for i := 0; i < 6; i++ {
		_, err := store.AddMemory(ctx, MemoryTypeFact, fmt.Sprintf("fact number %d", i), i+1)
		require.NoError(t, err)
		_, err = store.AddCorrection(ctx, Correction{UserSaid: "no", Lesson: fmt.Sprintf("lesson %d", i)})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	result, err := store.Prune(ctx, RetentionPolicy{MaxMemories: 3, MaxLessons: 2})
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Memories: 3, Lessons: 4}, result)

	memories, err := store.GetMemories(ctx, MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, memories, 3)
	assert.Equal(t, 6, memories[0].Importance)
	assert.Equal(t, 4, memories[2].Importance)

	lessons, err := store.FormatLessons(ctx)
	require.NoError(t, err)
	assert.Equal(t, "- [general] lesson 4\n- [general] lesson 5", lessons)

	t.Run("zero caps keep everything", func(t *testing.T) {
		result, err := store.Prune(ctx, RetentionPolicy{})
		require.NoError(t, err)
		assert.Equal(t, PruneResult{}, result)
	})
}

func TestStatsAndBackup(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.SaveConversation(ctx, ConversationTurn{UserMessage: "hi", AssistantResponse: "hello"})
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, MemoryTypeUserName, "Alex", 10)
	require.NoError(t, err)
	require.NoError(t, store.LearnPreference(ctx, "tone", "casual", 0.5))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Conversations: 1, Memories: 1, Preferences: 1}, stats)

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, store.Backup(ctx, dest))

	copyStore := openTestStore(t, dest, newFakeClock())
	copyStats, err := copyStore.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, copyStats)

	assert.Error(t, store.Backup(ctx, dest), "existing destination is refused")
	assert.NoError(t, store.Ping(ctx))
}

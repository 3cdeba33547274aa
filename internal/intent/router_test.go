package intent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
)

var fixedNow = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *memory_store.Store {
	t.Helper()
	store, err := memory_store.Open(context.Background(), memory_store.Config{
		Database: pkgconfig.SQLiteConfig{
			Path:         filepath.Join(t.TempDir(), "friday.db"),
			BusyTimeout:  5 * time.Second,
			JournalMode:  "WAL",
			MaxOpenConns: 2,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRouter(store Store) *Router {
	return New(Config{
		Store:    store,
		Clock:    func() time.Time { return fixedNow },
		Location: time.UTC,
	})
}

// panicStore fails the test if the router touches memory.
type panicStore struct{}

func (panicStore) GetMemories(context.Context, memory_store.MemoryFilter) ([]memory_store.Memory, error) {
	panic("unexpected GetMemories")
}
func (panicStore) FindMemories(context.Context, string, int) ([]memory_store.Memory, error) {
	panic("unexpected FindMemories")
}
func (panicStore) DeleteMemory(context.Context, int64) error { panic("unexpected DeleteMemory") }

func TestRoute_Builtins(t *testing.T) {
	r := newRouter(panicStore{})

	tests := []struct {
		text     string
		kind     Kind
		response string
		cont     bool
	}{
		{"   ", KindEmpty, "I didn't catch that.", true},
		{"__wake__", KindWake, "Yes? What do you need?", true},
		{"Goodbye", KindGoodbye, "Standing by. Say 'friday' when you need me.", false},
		{"that's all.", KindGoodbye, "Standing by. Say 'friday' when you need me.", false},
		{"What time is it?", KindTime, "It's 09:30 AM.", true},
		{"friday, what's the time", KindTime, "It's 09:30 AM.", true},
		{"What's the date today?", KindDate, "Today is Saturday, March 14, 2026.", true},
		{"what day is it", KindDate, "Today is Saturday, March 14, 2026.", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res, ok, err := r.Route(context.Background(), tt.text)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.response, res.Response)
			assert.Equal(t, tt.cont, res.Continue)
		})
	}
}

func TestRoute_FallsThrough(t *testing.T) {
	r := newRouter(newStore(t))
	for _, text := range []string{
		"What time does the ferry leave?",
		"bye for now, see you tomorrow",
		"Tell me about the weather",
	} {
		t.Run(text, func(t *testing.T) {
			_, ok, err := r.Route(context.Background(), text)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	t.Run("memory requests need a store", func(t *testing.T) {
		_, ok, err := New(Config{}).Route(context.Background(), "what's my name")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestRoute_Memory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	r := newRouter(store)

	res, ok, err := r.Route(ctx, "What's my name?")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "You haven't told me your name yet.", res.Response)

	res, _, err = r.Route(ctx, "What do you remember about me?")
	require.NoError(t, err)
	assert.Equal(t, "I don't know much about you yet. Tell me about yourself!", res.Response)

	_, err = store.AddMemory(ctx, memory_store.MemoryTypeUserName, "Alex", 10)
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, memory_store.MemoryTypeInterest, "jazz records", 6)
	require.NoError(t, err)
	_, err = store.AddMemory(ctx, memory_store.MemoryTypeInterest, "live jazz on Fridays", 6)
	require.NoError(t, err)

	res, _, err = r.Route(ctx, "what is my name")
	require.NoError(t, err)
	assert.Equal(t, KindName, res.Kind)
	assert.Equal(t, "Your name is Alex.", res.Response)

	res, _, err = r.Route(ctx, "What do you know about me")
	require.NoError(t, err)
	assert.Equal(t, KindRecall, res.Kind)
	assert.Contains(t, res.Response, "Alex")
	assert.Contains(t, res.Response, "jazz records")

	res, _, err = r.Route(ctx, "Please forget about jazz.")
	require.NoError(t, err)
	assert.Equal(t, KindForget, res.Kind)
	assert.Equal(t, "Done. I've forgotten 2 things about jazz.", res.Response)

	left, err := store.GetMemories(ctx, memory_store.MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "Alex", left[0].Content)

	res, _, err = r.Route(ctx, "forget chess")
	require.NoError(t, err)
	assert.Equal(t, "I don't have anything saved about chess.", res.Response)
}

func TestRoute_ForgetMatchesWholeWords(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *memory_store.Store {
		t.Helper()
		store := newStore(t)
		for _, m := range []struct {
			memType memory_store.MemoryType
			content string
		}{
			{memory_store.MemoryTypeUserName, "Dmitri"},
			{memory_store.MemoryTypeFact, "User lives in Istanbul city"},
			{memory_store.MemoryTypeInterest, "writing poetry"},
		} {
			_, err := store.AddMemory(ctx, m.memType, m.content, 5)
			require.NoError(t, err)
		}
		return store
	}

	tests := []struct {
		text     string
		response string
		left     int
	}{
		{"Forget it", "Okay, never mind.", 3},
		{"forget about it", "Okay, never mind.", 3},
		{"forget that", "Okay, never mind.", 3},
		{"forget everything", "Okay, never mind.", 3},
		{"forget in", "Okay, never mind.", 3},
		{"forget poet", "I don't have anything saved about poet.", 3},
		{"forget istanbul", "Done. I've forgotten 1 thing about istanbul.", 2},
		{"forget writing poetry", "Done. I've forgotten 1 thing about writing poetry.", 2},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			store := seed(t)
			res, ok, err := newRouter(store).Route(ctx, tt.text)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, KindForget, res.Kind)
			assert.Equal(t, tt.response, res.Response)

			left, err := store.GetMemories(ctx, memory_store.MemoryFilter{})
			require.NoError(t, err)
			assert.Len(t, left, tt.left)
			names, err := store.GetMemories(ctx, memory_store.MemoryFilter{Type: memory_store.MemoryTypeUserName})
			require.NoError(t, err)
			assert.Len(t, names, 1)
		})
	}
}

type brokenStore struct{ panicStore }

func (brokenStore) GetMemories(context.Context, memory_store.MemoryFilter) ([]memory_store.Memory, error) {
	return nil, errors.New("disk I/O error")
}

func TestRoute_StoreError(t *testing.T) {
	_, ok, err := newRouter(brokenStore{}).Route(context.Background(), "what's my name")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "disk I/O error")
}

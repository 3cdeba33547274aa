package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	"github.com/lewisedginton/friday_assistant/internal/context_assembler"
	"github.com/lewisedginton/friday_assistant/internal/intent"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/monitoring"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	pkgconfig "github.com/lewisedginton/friday_assistant/pkg/config"
)

var fixedNow = time.Date(2026, time.March, 14, 21, 15, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	store  *memory_store.Store
	server *Server
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	store, err := memory_store.Open(context.Background(), memory_store.Config{
		Database: pkgconfig.SQLiteConfig{
			Path:         filepath.Join(t.TempDir(), "friday.db"),
			BusyTimeout:  5 * time.Second,
			JournalMode:  "WAL",
			MaxOpenConns: 2,
		},
		Clock: clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a, err := assistant.New(assistant.Config{
		Store:     store,
		Assembler: context_assembler.New(context_assembler.Config{Store: store, Clock: clock, Location: time.UTC}),
		Router:    intent.New(intent.Config{Store: store, Clock: clock, Location: time.UTC}),
		Clock:     clock,
	})
	require.NoError(t, err)

	cfg := Config{
		HTTP:      pkgconfig.HTTPServerConfig{AllowedOrigins: []string{"http://localhost:*"}},
		Assistant: a,
		Store:     store,
		Clock:     clock,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	return &fixture{store: store, server: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "What time is it?"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[chatResponse](t, rec)
	assert.True(t, strings.HasPrefix(first.SessionID, "sess-"))
	assert.Equal(t, "It's 09:15 PM.", first.Text)
	assert.Equal(t, assistant.SourceIntent, first.Source)
	assert.Equal(t, intent.KindTime, first.Intent)

	rec = f.do(t, http.MethodPost, "/api/chat", chatRequest{SessionID: first.SessionID, Message: "hello there"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[chatResponse](t, rec)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, assistant.SourceOffline, second.Source)
	assert.True(t, second.Continue)

	rec = f.do(t, http.MethodPost, "/api/chat", chatRequest{SessionID: first.SessionID, Message: "goodbye"})
	bye := decode[chatResponse](t, rec)
	assert.False(t, bye.Continue)
	assert.Equal(t, 0, f.server.sessions.size(), "ended sessions are dropped")

	t.Run("bad requests", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/chat", chatRequest{}).Code)

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reset", func(t *testing.T) {
		id := decode[chatResponse](t, f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hi"})).SessionID
		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/chat/"+id, nil).Code)
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/chat/"+id, nil).Code)
	})
}

func TestChat_RateLimited(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.ChatRate = 0.01
		c.ChatBurst = 1
	})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hello"}).Code)
	rec := f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hello again"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/stats", nil).Code, "only chat is limited")

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: wsTypeMessage, Text: "what time is it"}))
	assert.Equal(t, wsTypeReply, readFrame(t, conn).Type)
	require.NoError(t, conn.WriteJSON(wsInbound{Type: wsTypeMessage, Text: "what time is it"}))
	out := readFrame(t, conn)
	assert.Equal(t, wsTypeError, out.Type)
	assert.Equal(t, "rate limit exceeded", out.Error)
}

func TestMemories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/memories", addMemoryRequest{Type: "user_name", Content: "Alex", Importance: 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]int64](t, rec)["id"]

	rec = f.do(t, http.MethodPost, "/api/memories", addMemoryRequest{Type: "interest", Content: "jazz records"})
	require.Equal(t, http.StatusCreated, rec.Code)

	testCases := []struct {
		name  string
		path  string
		count int
	}{
		{name: "all", path: "/api/memories", count: 2},
		{name: "by type", path: "/api/memories?type=user_name", count: 1},
		{name: "search", path: "/api/memories?q=jazz", count: 1},
		{name: "search miss", path: "/api/memories?q=opera", count: 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tc.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decode[[]memory_store.Memory](t, rec), tc.count)
		})
	}

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/memories?type=secrets", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/memories", addMemoryRequest{Type: "secrets", Content: "x"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/memories", addMemoryRequest{Type: "fact", Content: " "}).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/memories/"+strconv.FormatInt(id, 10), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/memories/"+strconv.FormatInt(id, 10), nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/api/memories/abc", nil).Code)
}

func TestReadEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.LearnPreference(ctx, "response_length", "short", 0.6))
	_, err := f.store.AddCorrection(ctx, memory_store.Correction{
		UserSaid: "no, I meant Paris", Lesson: "When the user says X they mean Paris", RuleType: memory_store.RuleMeaning,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveDailySummary(ctx, memory_store.DailySummary{Date: "2026-03-13", Summary: "Talked about jazz."}))
	f.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hello"})

	t.Run("personality", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/personality", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[personalityResponse](t, rec)
		assert.Len(t, body.Traits, len(memory_store.Traits()))
		assert.NotEmpty(t, body.Description)
	})

	t.Run("preferences", func(t *testing.T) {
		prefs := decode[[]memory_store.LearnedPreference](t, f.do(t, http.MethodGet, "/api/preferences", nil))
		require.Len(t, prefs, 1)
		assert.Equal(t, "short", prefs[0].Value)
	})

	t.Run("lessons", func(t *testing.T) {
		lessons := decode[[]memory_store.Correction](t, f.do(t, http.MethodGet, "/api/lessons?limit=5", nil))
		require.Len(t, lessons, 1)
		assert.Equal(t, memory_store.RuleMeaning, lessons[0].RuleType)
	})

	t.Run("summaries", func(t *testing.T) {
		summaries := decode[[]memory_store.DailySummary](t, f.do(t, http.MethodGet, "/api/summaries?days=3", nil))
		require.Len(t, summaries, 1)
		assert.Equal(t, "Talked about jazz.", summaries[0].Summary)
	})

	t.Run("conversations", func(t *testing.T) {
		turns := decode[[]memory_store.ConversationTurn](t, f.do(t, http.MethodGet, "/api/conversations", nil))
		require.Len(t, turns, 1)
		assert.Equal(t, "hello", turns[0].UserMessage)

		turns = decode[[]memory_store.ConversationTurn](t, f.do(t, http.MethodGet, "/api/conversations?q=weather", nil))
		assert.Empty(t, turns)
	})

	t.Run("stats", func(t *testing.T) {
		stats := decode[memory_store.Stats](t, f.do(t, http.MethodGet, "/api/stats", nil))
		assert.Equal(t, 1, stats.Conversations)
		assert.Equal(t, 1, stats.Preferences)
		assert.Equal(t, 1, stats.Corrections)
		assert.Equal(t, 1, stats.Summaries)
	})
}

func TestBackup(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, http.StatusNotImplemented, f.do(t, http.MethodPost, "/api/backup", nil).Code)
	})

	t.Run("uploads snapshot", func(t *testing.T) {
		ctx := context.Background()
		m, err := storage_manager.New(ctx, storage_manager.Config{Backend: storage_manager.BackendLocal, BaseDir: t.TempDir()})
		require.NoError(t, err)
		archive := storage_manager.NewBackupArchive(m.Provider(storage_manager.NamespaceBackups), 3)

		f := newFixture(t, func(c *Config) { c.Backups = archive })
		rec := f.do(t, http.MethodPost, "/api/backup", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, storage_manager.BackupName(fixedNow), decode[map[string]string](t, rec)["backup"])

		names, err := archive.List(ctx)
		require.NoError(t, err)
		assert.Len(t, names, 1)
	})
}

func TestAuthAndProbes(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.APIToken = "s3cret"
		c.Health = monitoring.NewHealthMonitor(monitoring.Config{FailureThreshold: 1})
	})

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/stats", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/ready", nil).Code, "probes skip auth")
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ping", nil).Code)
}

func readFrame(t *testing.T, conn *websocket.Conn) wsOutbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out wsOutbound
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWebsocket(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	assert.Equal(t, wsTypeReady, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: wsTypeMessage, Text: "what's the date?"}))
	out := readFrame(t, conn)
	require.Equal(t, wsTypeReply, out.Type)
	require.NotNil(t, out.Reply)
	assert.Equal(t, "Today is Saturday, March 14, 2026.", out.Reply.Text)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: wsTypeReset}))
	assert.Equal(t, wsTypeReset, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, wsTypeError, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteJSON(wsInbound{Type: "dance"}))
	out = readFrame(t, conn)
	assert.Equal(t, wsTypeError, out.Type)
	assert.Contains(t, out.Error, "dance")
}

func TestWebsocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer conn.Close()
	assert.Equal(t, wsTypeReady, readFrame(t, conn).Type)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestSessionRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	now := fixedNow
	tick := func() time.Time { now = now.Add(time.Second); return now }
	reg := newSessionRegistry(func() *assistant.Session { return &assistant.Session{} }, 2, tick)

	a, _ := reg.get("")
	b, _ := reg.get("")
	reg.get(a)
	c, _ := reg.get("")

	assert.Equal(t, 2, reg.size())
	_, ok := reg.entries[b]
	assert.False(t, ok, "b was least recently used")
	assert.Contains(t, reg.entries, a)
	assert.Contains(t, reg.entries, c)

	id, _ := reg.get("unknown")
	assert.NotEqual(t, "unknown", id)
}

func TestOriginMatches(t *testing.T) {
	testCases := []struct {
		pattern, origin string
		want            bool
	}{
		{"*", "https://anything", true},
		{"http://localhost:*", "http://localhost:5173", true},
		{"http://localhost:*", "http://localhost.evil:1", false},
		{"https://friday.home", "https://FRIDAY.home", true},
		{"https://friday.home", "https://friday.homes", false},
	}
	for _, tc := range testCases {
		t.Run(tc.pattern+" "+tc.origin, func(t *testing.T) {
			assert.Equal(t, tc.want, originMatches(tc.pattern, tc.origin))
		})
	}
}

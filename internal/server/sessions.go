package server

import (
	"sync"
	"time"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	"github.com/lewisedginton/friday_assistant/pkg/prefixed_uuid"
)

const sessionIDPrefix = "sess"

type sessionEntry struct {
	session  *assistant.Session
	lastUsed time.Time
}

// sessionRegistry keeps chat sessions for API clients. When full, the least
// recently used session is evicted.
type sessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	limit   int
	create  func() *assistant.Session
	now     func() time.Time
}

func newSessionRegistry(create func() *assistant.Session, limit int, now func() time.Time) *sessionRegistry {
	return &sessionRegistry{
		entries: map[string]*sessionEntry{},
		limit:   limit,
		create:  create,
		now:     now,
	}
}

// get returns the session for id, starting a new one when id is empty or
// unknown. The returned id is the one to use for follow-up requests.
func (r *sessionRegistry) get(id string) (string, *assistant.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.lastUsed = r.now()
		return id, e.session
	}

	if len(r.entries) >= r.limit {
		r.evictOldest()
	}
	id = prefixed_uuid.New(sessionIDPrefix).String()
	e := &sessionEntry{session: r.create(), lastUsed: r.now()}
	r.entries[id] = e
	return id, e.session
}

func (r *sessionRegistry) drop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

func (r *sessionRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *sessionRegistry) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range r.entries {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	delete(r.entries, oldestID)
}

package assistant

import (
	"context"
	"sync"

	"github.com/lewisedginton/friday_assistant/internal/context_assembler"
)

// Session is one conversation with the assistant. It keeps the last few
// exchanges that are replayed to the model.
type Session struct {
	assistant *Assistant
	mu        sync.Mutex
	history   []context_assembler.Exchange
}

// Respond answers text within this session.
func (s *Session) Respond(ctx context.Context, text string) (Reply, error) {
	return s.assistant.respond(ctx, s, text)
}

// History returns a copy of the kept exchanges, oldest first.
func (s *Session) History() []context_assembler.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]context_assembler.Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Reset forgets the session history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

func (s *Session) remember(ex context_assembler.Exchange, keep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ex)
	if len(s.history) > keep {
		s.history = append([]context_assembler.Exchange(nil), s.history[len(s.history)-keep:]...)
	}
}

func (s *Session) lastReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1].Assistant
}

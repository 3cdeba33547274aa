// Package intent answers the requests that need no language model: the clock,
// the calendar, leaving, and questions about or changes to what the assistant
// remembers. Anything else falls through to the model.
package intent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// Kind names a handled request.
type Kind string

const (
	KindEmpty   Kind = "empty"
	KindWake    Kind = "wake"
	KindGoodbye Kind = "goodbye"
	KindTime    Kind = "time"
	KindDate    Kind = "date"
	KindRecall  Kind = "recall"
	KindForget  Kind = "forget"
	KindName    Kind = "name"
)

// WakeToken is sent by a front end when the wake word was heard on its own.
const WakeToken = "__wake__"

const (
	dateLayout  = "Monday, January 02, 2006"
	timeLayout  = "03:04 PM"
	recallLimit = 5
	forgetLimit = 10
	// forgetCandidates bounds the substring search that whole-word matching
	// then narrows down.
	forgetCandidates = 50
	minForgetRunes   = 3
)

// Store is the memory access the router needs.
type Store interface {
	GetMemories(ctx context.Context, filter memory_store.MemoryFilter) ([]memory_store.Memory, error)
	FindMemories(ctx context.Context, query string, limit int) ([]memory_store.Memory, error)
	DeleteMemory(ctx context.Context, id int64) error
}

// Result is the reply to a handled request.
type Result struct {
	Kind     Kind
	Response string
	// Continue is false when the user ended the session.
	Continue bool
}

// Config holds the router's collaborators.
type Config struct {
	Store    Store
	Logger   logger.Logger
	Clock    func() time.Time
	Location *time.Location
	WakeWord string
}

// Router matches user text against the built-in requests.
type Router struct {
	store    Store
	log      logger.Logger
	now      func() time.Time
	loc      *time.Location
	wakeWord string
}

var (
	goodbyes = map[string]bool{"goodbye": true, "bye": true, "go to sleep": true, "that's all": true}

	timePattern   = regexp.MustCompile(`^(?:what(?:'s| is) the time|what time is it)(?: now)?$`)
	datePattern   = regexp.MustCompile(`^(?:what(?:'s| is) (?:the date|today's date)(?: today)?|what day is (?:it|today))$`)
	recallPattern = regexp.MustCompile(`^what do you (?:remember|know) about me$`)
	forgetPattern = regexp.MustCompile(`^(?:please )?forget (?:about |that )?(.+)$`)
	namePattern   = regexp.MustCompile(`^(?:what(?:'s| is) my name|do you know my name)$`)

	// dismissals are "forget it" style replies, not requests to delete anything.
	dismissals = map[string]bool{
		"it": true, "that": true, "this": true, "them": true, "me": true,
		"about it": true, "about that": true, "about this": true, "it all": true,
		"all that": true, "all of it": true, "all of that": true, "everything": true,
		"what i said": true, "i said that": true, "i asked": true, "i asked that": true,
	}
)

// New creates a Router. A nil Store disables the memory requests.
func New(cfg Config) *Router {
	r := &Router{
		store:    cfg.Store,
		log:      cfg.Logger,
		now:      cfg.Clock,
		loc:      cfg.Location,
		wakeWord: cfg.WakeWord,
	}
	if r.log == nil {
		r.log = logger.NewNopLogger()
	}
	r.log = r.log.WithFields(logger.ComponentField("intent"))
	if r.now == nil {
		r.now = time.Now
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.wakeWord == "" {
		r.wakeWord = "friday"
	}
	return r
}

// Route answers text if it is a built-in request. The bool is false when the
// text should go to the model.
func (r *Router) Route(ctx context.Context, text string) (Result, bool, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Result{Kind: KindEmpty, Response: "I didn't catch that.", Continue: true}, true, nil
	}
	q := normalize(raw)

	switch {
	case q == WakeToken:
		return Result{Kind: KindWake, Response: "Yes? What do you need?", Continue: true}, true, nil
	case goodbyes[q]:
		return Result{
			Kind:     KindGoodbye,
			Response: fmt.Sprintf("Standing by. Say '%s' when you need me.", r.wakeWord),
		}, true, nil
	case timePattern.MatchString(q):
		return r.reply(KindTime, "It's "+r.now().In(r.loc).Format(timeLayout)+"."), true, nil
	case datePattern.MatchString(q):
		return r.reply(KindDate, "Today is "+r.now().In(r.loc).Format(dateLayout)+"."), true, nil
	}

	if r.store == nil {
		return Result{}, false, nil
	}

	var (
		res Result
		err error
	)
	switch {
	case recallPattern.MatchString(q):
		res, err = r.recall(ctx)
	case namePattern.MatchString(q):
		res, err = r.name(ctx)
	default:
		m := forgetPattern.FindStringSubmatch(q)
		if m == nil {
			return Result{}, false, nil
		}
		res, err = r.forget(ctx, m[1])
	}
	if err != nil {
		return Result{}, false, err
	}
	r.log.Debug("Handled built-in request", logger.StringField("kind", string(res.Kind)))
	return res, true, nil
}

func (r *Router) reply(kind Kind, response string) Result {
	return Result{Kind: kind, Response: response, Continue: true}
}

func (r *Router) recall(ctx context.Context) (Result, error) {
	memories, err := r.store.GetMemories(ctx, memory_store.MemoryFilter{Limit: recallLimit})
	if err != nil {
		return Result{}, fmt.Errorf("recall memories: %w", err)
	}
	if len(memories) == 0 {
		return r.reply(KindRecall, "I don't know much about you yet. Tell me about yourself!"), nil
	}
	parts := make([]string, 0, len(memories))
	for _, m := range memories {
		parts = append(parts, m.Content)
	}
	return r.reply(KindRecall, "Here's what I remember: "+strings.Join(parts, "; ")+"."), nil
}

func (r *Router) name(ctx context.Context) (Result, error) {
	names, err := r.store.GetMemories(ctx, memory_store.MemoryFilter{Type: memory_store.MemoryTypeUserName, Limit: 1})
	if err != nil {
		return Result{}, fmt.Errorf("look up name: %w", err)
	}
	if len(names) == 0 || names[0].Content == "" {
		return r.reply(KindName, "You haven't told me your name yet."), nil
	}
	return r.reply(KindName, "Your name is "+names[0].Content+"."), nil
}

func (r *Router) forget(ctx context.Context, subject string) (Result, error) {
	subject = strings.TrimSpace(subject)
	if dismissals[subject] || utf8.RuneCountInString(subject) < minForgetRunes {
		return r.reply(KindForget, "Okay, never mind."), nil
	}

	candidates, err := r.store.FindMemories(ctx, subject, forgetCandidates)
	if err != nil {
		return Result{}, fmt.Errorf("find memories about %q: %w", subject, err)
	}
	word := regexp.MustCompile(`(?i)(?:^|[^\pL\pN])` + regexp.QuoteMeta(subject) + `(?:$|[^\pL\pN])`)
	var matches []memory_store.Memory
	for _, m := range candidates {
		if word.MatchString(m.Content) && len(matches) < forgetLimit {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return r.reply(KindForget, fmt.Sprintf("I don't have anything saved about %s.", subject)), nil
	}

	forgotten := 0
	for _, m := range matches {
		if err := r.store.DeleteMemory(ctx, m.ID); err != nil {
			if errors.Is(err, memory_store.ErrNotFound) {
				continue
			}
			return Result{}, fmt.Errorf("forget memory %d: %w", m.ID, err)
		}
		forgotten++
	}
	r.log.Info("Forgot memories", logger.StringField("subject", subject), logger.IntField("count", forgotten))

	noun := "things"
	if forgotten == 1 {
		noun = "thing"
	}
	return r.reply(KindForget, fmt.Sprintf("Done. I've forgotten %d %s about %s.", forgotten, noun, subject)), nil
}

// normalize lowercases text, collapses whitespace and drops trailing punctuation.
func normalize(text string) string {
	q := strings.ToLower(strings.Join(strings.Fields(text), " "))
	q = strings.TrimRight(q, "?!. ")
	q = strings.TrimPrefix(q, "friday, ")
	q = strings.TrimPrefix(q, "hey friday, ")
	return strings.ReplaceAll(q, "’", "'")
}

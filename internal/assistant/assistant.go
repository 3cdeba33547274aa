// Package assistant runs one conversational turn end to end: built-in
// requests, prompt assembly, the language model, and the background writes
// that let the assistant learn from the exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/lewisedginton/friday_assistant/internal/context_assembler"
	"github.com/lewisedginton/friday_assistant/internal/intent"
	"github.com/lewisedginton/friday_assistant/internal/learning"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/models"
	"github.com/lewisedginton/friday_assistant/internal/worker_pool"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

const (
	DefaultMaxOutputTokens = 300
	DefaultTemperature     = 0.7
	DefaultPruneEvery      = 25
)

// Store is the persistence the assistant writes to after a turn.
type Store interface {
	learning.Writer
	SaveConversation(ctx context.Context, turn memory_store.ConversationTurn) (int64, error)
	Prune(ctx context.Context, policy memory_store.RetentionPolicy) (memory_store.PruneResult, error)
}

// Source says where a reply came from.
type Source string

const (
	SourceIntent  Source = "intent"
	SourceModel   Source = "model"
	SourceOffline Source = "offline"
	SourceError   Source = "error"
)

// Reply is the assistant's answer to one message.
type Reply struct {
	Text string `json:"text"`
	// Continue is false when the user ended the session.
	Continue bool        `json:"continue"`
	Source   Source      `json:"source"`
	Intent   intent.Kind `json:"intent,omitempty"`
	// Failure is set when the model call failed.
	Failure      models.Category `json:"failure,omitempty"`
	PromptTokens int             `json:"prompt_tokens,omitempty"`
}

// Config holds the assistant's collaborators. Model may be nil, which runs
// the assistant offline. Pool may be nil, which runs background writes
// inline before Respond returns.
type Config struct {
	Store     Store
	Assembler *context_assembler.Assembler
	Router    *intent.Router
	Learner   *learning.Learner
	Model     model.LLM
	Pool      *worker_pool.Pool
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Clock     func() time.Time

	// Provider labels model metrics.
	Provider        string
	MaxOutputTokens int32
	Temperature     float32
	HistoryTurns    int

	Retention memory_store.RetentionPolicy
	// PruneEvery schedules a prune after this many saved turns.
	PruneEvery int
}

// Assistant answers messages. It is safe for concurrent use; per-conversation
// state lives in Session.
type Assistant struct {
	cfg     Config
	log     logger.Logger
	now     func() time.Time
	mu      sync.Mutex
	saved   int
	offline int
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if cfg.Store == nil {
		return nil, errors.New("assistant: store is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("assistant: assembler is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Router == nil {
		routerStore, _ := cfg.Store.(intent.Store)
		cfg.Router = intent.New(intent.Config{Store: routerStore, Logger: cfg.Logger, Clock: cfg.Clock})
	}
	if cfg.Learner == nil {
		cfg.Learner = learning.NewLearner(cfg.Store, cfg.Logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = context_assembler.DefaultHistoryTurns
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = DefaultPruneEvery
	}
	if cfg.Provider == "" && cfg.Model != nil {
		cfg.Provider = cfg.Model.Name()
	}

	return &Assistant{
		cfg: cfg,
		log: cfg.Logger.WithFields(logger.ComponentField("assistant")),
		now: cfg.Clock,
	}, nil
}

// Online reports whether a model is configured.
func (a *Assistant) Online() bool {
	return a.cfg.Model != nil
}

// NewSession starts a conversation with empty history.
func (a *Assistant) NewSession() *Session {
	return &Session{assistant: a}
}

func (a *Assistant) respond(ctx context.Context, s *Session, text string) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	log := logger.GetLoggerFromContext(ctx, a.log)

	res, handled, err := a.cfg.Router.Route(ctx, text)
	if err != nil {
		log.Warn("Built-in request failed, asking the model instead", logger.ErrorField(err))
	}
	if handled {
		return Reply{Text: res.Response, Continue: res.Continue, Source: SourceIntent, Intent: res.Kind}, nil
	}

	prior := s.lastReply()

	if a.cfg.Model == nil {
		reply := Reply{Text: a.offlineReply(text), Continue: true, Source: SourceOffline}
		a.dispatch(text, reply.Text, prior, true)
		return reply, nil
	}

	prompt, contents, err := a.cfg.Assembler.BuildMessages(ctx, s.History(), text)
	if err != nil {
		return Reply{}, fmt.Errorf("build prompt: %w", err)
	}

	temperature := a.cfg.Temperature
	req := &model.LLMRequest{
		Model:    a.cfg.Model.Name(),
		Contents: contents,
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
			Temperature:       &temperature,
			MaxOutputTokens:   a.cfg.MaxOutputTokens,
		},
	}

	start := time.Now()
	raw, _, err := models.Generate(ctx, a.cfg.Model, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}
		category := models.Classify(err)
		a.cfg.Metrics.ObserveLLMRequest(a.cfg.Provider, string(category))
		log.Error("Model request failed",
			logger.ErrorField(err),
			logger.StringField("category", string(category)),
			logger.DurationField("elapsed", time.Since(start)),
		)
		msg := models.UserMessage(category)
		if msg == "" {
			msg = a.offlineReply(text)
		}
		a.dispatch(text, "", prior, false)
		return Reply{Text: msg, Continue: true, Source: SourceError, Failure: category, PromptTokens: prompt.Tokens}, nil
	}
	a.cfg.Metrics.ObserveLLMRequest(a.cfg.Provider, "success")

	answer := CleanResponse(raw)
	s.remember(context_assembler.Exchange{User: text, Assistant: answer}, a.cfg.HistoryTurns)
	a.dispatch(text, answer, prior, true)

	log.Debug("Answered with model",
		logger.IntField("prompt_tokens", prompt.Tokens),
		logger.BoolField("prompt_truncated", prompt.Truncated),
		logger.DurationField("elapsed", time.Since(start)),
	)
	return Reply{Text: answer, Continue: true, Source: SourceModel, PromptTokens: prompt.Tokens}, nil
}

package learning

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// Writer is the write side of the memory store used for learning.
type Writer interface {
	AddMemory(ctx context.Context, memoryType memory_store.MemoryType, content string, importance int) (int64, error)
	UpdatePersonalityTrait(ctx context.Context, trait memory_store.Trait, delta float64) error
	LearnPreference(ctx context.Context, prefType, value string, initialConfidence float64) error
	AddCorrection(ctx context.Context, c memory_store.Correction) (int64, error)
}

// Observation is one user message with the surrounding replies.
type Observation struct {
	UserText string
	// PriorResponse is the assistant reply the user is responding to.
	PriorResponse string
}

// Outcome is everything learned from one observation.
type Outcome struct {
	Signals     []Signal
	Adjustments []Adjustment
	Facts       []Fact
	Preferences []Preference
	Correction  *memory_store.Correction
}

// Empty reports whether nothing was learned.
func (o Outcome) Empty() bool {
	return len(o.Adjustments) == 0 && len(o.Facts) == 0 && len(o.Preferences) == 0 && o.Correction == nil
}

// Analyze extracts what can be learned from obs without touching the store.
func Analyze(obs Observation) Outcome {
	signals := DetectSignals(obs.UserText)
	out := Outcome{
		Signals:     signals,
		Adjustments: AdjustmentsFor(signals),
		Facts:       ExtractFacts(obs.UserText),
		Preferences: DetectPreferences(obs.UserText),
	}
	if c, ok := DetectCorrection(obs.UserText, obs.PriorResponse); ok {
		out.Correction = &c
	}
	return out
}

// Learner applies observations to the store.
type Learner struct {
	store Writer
	log   logger.Logger
}

// NewLearner creates a Learner writing to store.
func NewLearner(store Writer, log logger.Logger) *Learner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Learner{store: store, log: log.WithFields(logger.ComponentField("learning"))}
}

// Apply analyzes obs and writes the results. Every write is attempted; the
// failures are returned together.
func (l *Learner) Apply(ctx context.Context, obs Observation) (Outcome, error) {
	out := Analyze(obs)
	if out.Empty() {
		return out, nil
	}

	var result error
	for _, adj := range out.Adjustments {
		if err := l.store.UpdatePersonalityTrait(ctx, adj.Trait, adj.Delta); err != nil {
			result = multierror.Append(result, fmt.Errorf("adjust %s: %w", adj.Trait, err))
		}
	}
	for _, f := range out.Facts {
		if _, err := l.store.AddMemory(ctx, f.Type, f.Content, f.Importance); err != nil {
			result = multierror.Append(result, fmt.Errorf("remember %s: %w", f.Type, err))
		}
	}
	for _, p := range out.Preferences {
		if err := l.store.LearnPreference(ctx, p.Type, p.Value, memory_store.DefaultPreferenceConfidence); err != nil {
			result = multierror.Append(result, fmt.Errorf("learn preference %s: %w", p.Type, err))
		}
	}
	if out.Correction != nil {
		if _, err := l.store.AddCorrection(ctx, *out.Correction); err != nil {
			result = multierror.Append(result, fmt.Errorf("record correction: %w", err))
		}
	}

	l.log.Debug("Learned from message",
		logger.IntField("signals", len(out.Signals)),
		logger.IntField("facts", len(out.Facts)),
		logger.IntField("preferences", len(out.Preferences)),
		logger.BoolField("correction", out.Correction != nil),
	)
	return out, result
}

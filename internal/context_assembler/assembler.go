// Package context_assembler builds the system prompt for each assistant turn
// from the persona and a snapshot of the memory store.
package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"strings"
	"time"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

// MemorySource is the read side of the memory store used to build prompts.
type MemorySource interface {
	GetConversationCount(ctx context.Context) (int, error)
	GetPersonalityTraits(ctx context.Context) (map[memory_store.Trait]float64, error)
	GetMemories(ctx context.Context, filter memory_store.MemoryFilter) ([]memory_store.Memory, error)
	GetLearnedPreferences(ctx context.Context, limit int) ([]memory_store.LearnedPreference, error)
	GetRecentSummaries(ctx context.Context, days int) ([]memory_store.DailySummary, error)
	GetCorrections(ctx context.Context, limit int) ([]memory_store.Correction, error)
}

// Config configures an Assembler. Zero limits take the defaults below.
type Config struct {
	Store   MemorySource
	Persona *PersonaLoader
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Clock defaults to time.Now. Location defaults to time.Local.
	Clock        func() time.Time
	Location     *time.Location
	LocationName string

	MemoryLimit     int
	PreferenceLimit int
	SummaryDays     int
	// LessonLimit of zero includes every stored lesson.
	LessonLimit int
	// TokenBudget of zero disables truncation.
	TokenBudget int
	// HistoryTurns is how many past exchanges BuildMessages keeps.
	HistoryTurns int
}

const (
	DefaultMemoryLimit     = 20
	DefaultPreferenceLimit = 10
	DefaultSummaryDays     = 3
	DefaultHistoryTurns    = 3
	DefaultLocationName    = "Kadikoy, Istanbul"
)

// Assembler builds prompts. It holds no per-turn state.
type Assembler struct {
	cfg Config
	log logger.Logger
}

// New creates an Assembler. Store must not be nil.
func New(cfg Config) *Assembler {
	if cfg.Store == nil {
		panic("memory source cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Persona == nil {
		cfg.Persona = NewPersonaLoader(nil, "", cfg.Logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LocationName == "" {
		cfg.LocationName = DefaultLocationName
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	if cfg.PreferenceLimit <= 0 {
		cfg.PreferenceLimit = DefaultPreferenceLimit
	}
	if cfg.SummaryDays <= 0 {
		cfg.SummaryDays = DefaultSummaryDays
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	return &Assembler{
		cfg: cfg,
		log: cfg.Logger.WithFields(logger.ComponentField("context_assembler")),
	}
}

// Prompt is an assembled system prompt.
type Prompt struct {
	System   string
	Sections []Section
	// Tokens is the estimated size of System.
	Tokens int
	// Truncated is set when the token budget removed lines.
	Truncated bool
}

// Has reports whether the prompt contains the named section.
func (p Prompt) Has(name SectionName) bool {
	for _, s := range p.Sections {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Build assembles the system prompt. Store failures only drop the affected
// section; Build fails only when ctx is done.
func (a *Assembler) Build(ctx context.Context) (Prompt, error) {
	if err := ctx.Err(); err != nil {
		return Prompt{}, err
	}

	builders := []func(context.Context) Section{
		a.personaSection,
		a.currentContextSection,
		a.personalitySection,
		a.memoriesSection,
		a.preferencesSection,
		a.summariesSection,
		a.lessonsSection,
	}

	sections := make([]Section, 0, len(builders))
	for _, build := range builders {
		if s := build(ctx); strings.TrimSpace(s.Body) != "" {
			sections = append(sections, s)
		}
	}
	if err := ctx.Err(); err != nil {
		return Prompt{}, err
	}

	truncated := false
	if a.cfg.TokenBudget > 0 {
		sections, truncated = fitBudget(sections, a.cfg.TokenBudget)
		if truncated {
			a.log.Debug("Prompt truncated to fit token budget", logger.IntField("budget", a.cfg.TokenBudget))
		}
	}

	system := render(sections)
	tokens := EstimateTokens(system)
	a.cfg.Metrics.ObservePromptTokens(tokens)

	return Prompt{
		System:    system,
		Sections:  sections,
		Tokens:    tokens,
		Truncated: truncated,
	}, nil
}

func render(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "\n\n")
}

package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// MemoryConfig holds retention caps and prompt limits. The caps are opt-in:
// at zero, the default, memories and lessons are never deleted automatically
// and only the prompt limits bound what each turn sees.
type MemoryConfig struct {
	MaxMemories int `env:"MEMORY_MAX_MEMORIES" yaml:"max_memories"`
	MaxLessons  int `env:"MEMORY_MAX_LESSONS" yaml:"max_lessons"`
	// PruneEvery is how many saved turns pass between pruning runs
	PruneEvery int `env:"MEMORY_PRUNE_EVERY" yaml:"prune_every" default:"25"`

	MemoryLimit     int `env:"PROMPT_MEMORY_LIMIT" yaml:"memory_limit" default:"20"`
	PreferenceLimit int `env:"PROMPT_PREFERENCE_LIMIT" yaml:"preference_limit" default:"10"`
	SummaryDays     int `env:"PROMPT_SUMMARY_DAYS" yaml:"summary_days" default:"3"`
	LessonLimit     int `env:"PROMPT_LESSON_LIMIT" yaml:"lesson_limit"`
	TokenBudget     int `env:"PROMPT_TOKEN_BUDGET" yaml:"token_budget" default:"3000"`
}

// Validate checks MemoryConfig
func (c MemoryConfig) Validate() error {
	var result error
	for name, v := range map[string]int{
		"max_memories":     c.MaxMemories,
		"max_lessons":      c.MaxLessons,
		"prune_every":      c.PruneEvery,
		"memory_limit":     c.MemoryLimit,
		"preference_limit": c.PreferenceLimit,
		"summary_days":     c.SummaryDays,
		"lesson_limit":     c.LessonLimit,
		"token_budget":     c.TokenBudget,
	} {
		if v < 0 {
			result = multierror.Append(result, fmt.Errorf("%s cannot be negative, got %d", name, v))
		}
	}
	return result
}

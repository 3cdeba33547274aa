package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/hashicorp/go-multierror"
)

// AssistantConfig holds the assistant's identity and locale
type AssistantConfig struct {
	Name         string `env:"FRIDAY_NAME" yaml:"name" default:"F.R.I.D.A.Y."`
	WakeWord     string `env:"FRIDAY_WAKE_WORD" yaml:"wake_word" default:"friday"`
	LocationName string `env:"FRIDAY_LOCATION" yaml:"location" default:"Kadikoy, Istanbul"`
	Timezone     string `env:"FRIDAY_TIMEZONE" yaml:"timezone" default:"Europe/Istanbul"`
	// HistoryTurns is how many past exchanges are replayed to the model
	HistoryTurns int `env:"FRIDAY_HISTORY_TURNS" yaml:"history_turns" default:"3"`
}

// Validate checks AssistantConfig
func (c AssistantConfig) Validate() error {
	var result error
	if strings.TrimSpace(c.Name) == "" {
		result = multierror.Append(result, fmt.Errorf("assistant name must not be empty"))
	}
	if _, err := c.Location(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.HistoryTurns < 1 {
		result = multierror.Append(result, fmt.Errorf("history_turns must be at least 1, got %d", c.HistoryTurns))
	}
	return result
}

// Location loads Timezone. Empty means the local zone.
func (c AssistantConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

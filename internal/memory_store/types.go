package memory_store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownMemoryType is returned for memory types outside the closed set.
	ErrUnknownMemoryType = errors.New("unknown memory type")
	// ErrUnknownRuleType is returned for correction rule types outside the closed set.
	ErrUnknownRuleType = errors.New("unknown rule type")
)

// MemoryType classifies a remembered fact about the user.
type MemoryType string

const (
	MemoryTypeUserName     MemoryType = "user_name"
	MemoryTypeInterest     MemoryType = "interest"
	MemoryTypeFact         MemoryType = "fact"
	MemoryTypeTopic        MemoryType = "topic"
	MemoryTypeSchedule     MemoryType = "schedule"
	MemoryTypePreference   MemoryType = "preference"
	MemoryTypeRelationship MemoryType = "relationship"
)

// MemoryTypes lists every accepted memory type.
var MemoryTypes = []MemoryType{
	MemoryTypeUserName,
	MemoryTypeInterest,
	MemoryTypeFact,
	MemoryTypeTopic,
	MemoryTypeSchedule,
	MemoryTypePreference,
	MemoryTypeRelationship,
}

// Valid reports whether t is in the closed set.
func (t MemoryType) Valid() bool {
	for _, known := range MemoryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMemoryType normalizes and validates a memory type name.
func ParseMemoryType(s string) (MemoryType, error) {
	t := MemoryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMemoryType, s)
	}
	return t, nil
}

// DefaultImportance is used when callers do not rank a memory.
const DefaultImportance = 5

// Memory is a durable fact about the user.
type Memory struct {
	ID             int64      `json:"id"`
	Type           MemoryType `json:"memory_type"`
	Content        string     `json:"content"`
	Importance     int        `json:"importance"`
	LastReferenced time.Time  `json:"last_referenced"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MemoryFilter narrows GetMemories. A zero Type matches every type.
type MemoryFilter struct {
	Type  MemoryType
	Limit int
}

// ConversationTurn is one user message and the assistant's reply.
type ConversationTurn struct {
	ID                int64     `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Topic             string    `json:"topic,omitempty"`
	Sentiment         string    `json:"sentiment,omitempty"`
}

// LearnedPreference is a (type, value) pair with a confidence score.
type LearnedPreference struct {
	ID             int64     `json:"id"`
	Type           string    `json:"preference_type"`
	Value          string    `json:"preference_value"`
	Confidence     float64   `json:"confidence"`
	TimesConfirmed int       `json:"times_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DailySummary is the digest of one calendar day, keyed by Date (YYYY-MM-DD).
type DailySummary struct {
	Date      string    `json:"date"`
	Summary   string    `json:"summary"`
	Topics    string    `json:"topics,omitempty"`
	Mood      string    `json:"mood,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DateLayout is the storage format of DailySummary.Date.
const DateLayout = "2006-01-02"

// RuleType classifies the lesson drawn from a correction.
type RuleType string

const (
	RuleMeaning       RuleType = "meaning"
	RuleDont          RuleType = "dont"
	RuleShould        RuleType = "should"
	RuleGeneral       RuleType = "general"
	RuleUnderstanding RuleType = "understanding"
)

// RuleTypes lists every accepted rule type.
var RuleTypes = []RuleType{RuleMeaning, RuleDont, RuleShould, RuleGeneral, RuleUnderstanding}

// Valid reports whether r is in the closed set.
func (r RuleType) Valid() bool {
	for _, known := range RuleTypes {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRuleType normalizes and validates a rule type name.
func ParseRuleType(s string) (RuleType, error) {
	r := RuleType(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRuleType, s)
	}
	return r, nil
}

// Correction records the user correcting an earlier reply and the lesson drawn from it.
type Correction struct {
	ID            int64     `json:"id"`
	UserSaid      string    `json:"user_said"`
	PriorResponse string    `json:"prior_response"`
	Lesson        string    `json:"lesson"`
	RuleType      RuleType  `json:"rule_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats holds row counts per table.
type Stats struct {
	Conversations int `json:"conversations"`
	Memories      int `json:"memories"`
	Preferences   int `json:"preferences"`
	Summaries     int `json:"summaries"`
	Corrections   int `json:"corrections"`
}

// RetentionPolicy caps how many memories and lessons are kept. Zero disables a cap.
type RetentionPolicy struct {
	MaxMemories int
	MaxLessons  int
}

// PruneResult reports how many rows Prune removed.
type PruneResult struct {
	Memories int64
	Lessons  int64
}

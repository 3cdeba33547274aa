// Package digest writes the daily conversation summaries that give the
// assistant a memory of previous days.
package digest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/lewisedginton/friday_assistant/internal/learning"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/models"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

const (
	DefaultTranscriptTurns = 40
	maxTopics              = 5
	maxTurnRunes           = 200
	summaryMaxTokens       = 150
	summaryTemperature     = 0.3
)

const summaryInstruction = `You keep a diary for a personal assistant called F.R.I.D.A.Y.
Summarise the day's conversations with the user in two or three sentences.
Write in the third person about the user. Mention the main topics and how the user seemed.
Reply with the summary only.`

// Store is the persistence used by the digest.
type Store interface {
	GetConversationsByDate(ctx context.Context, day time.Time) ([]memory_store.ConversationTurn, error)
	SaveDailySummary(ctx context.Context, summary memory_store.DailySummary) error
	GetRecentSummaries(ctx context.Context, days int) ([]memory_store.DailySummary, error)
	Prune(ctx context.Context, policy memory_store.RetentionPolicy) (memory_store.PruneResult, error)
}

// Config configures a Summarizer. Model may be nil; summaries are then
// written from the topic and mood tags alone.
type Config struct {
	Store    Store
	Model    model.LLM
	Logger   logger.Logger
	Location *time.Location
	// TranscriptTurns caps how many of the day's turns are sent to the model.
	TranscriptTurns int
}

// Summarizer builds daily summaries.
type Summarizer struct {
	cfg Config
	log logger.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(cfg Config) *Summarizer {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TranscriptTurns <= 0 {
		cfg.TranscriptTurns = DefaultTranscriptTurns
	}
	return &Summarizer{cfg: cfg, log: cfg.Logger.WithFields(logger.ComponentField("digest"))}
}

// Summarize writes the summary of day's conversations. The bool is false when
// there was nothing to summarise.
func (s *Summarizer) Summarize(ctx context.Context, day time.Time) (memory_store.DailySummary, bool, error) {
	day = day.In(s.cfg.Location)
	turns, err := s.cfg.Store.GetConversationsByDate(ctx, day)
	if err != nil {
		return memory_store.DailySummary{}, false, fmt.Errorf("load conversations: %w", err)
	}
	if len(turns) == 0 {
		return memory_store.DailySummary{}, false, nil
	}

	topics := Topics(turns)
	summary := memory_store.DailySummary{
		Date:   day.Format(memory_store.DateLayout),
		Topics: strings.Join(topics, ", "),
		Mood:   Mood(turns),
	}

	summary.Summary, err = s.modelSummary(ctx, turns)
	if err != nil {
		s.log.Warn("Model summary failed, using tags", logger.ErrorField(err), logger.StringField("date", summary.Date))
	}
	if summary.Summary == "" {
		summary.Summary = HeuristicSummary(len(turns), topics, summary.Mood)
	}

	if err := s.cfg.Store.SaveDailySummary(ctx, summary); err != nil {
		return memory_store.DailySummary{}, false, err
	}
	s.log.Info("Saved daily summary",
		logger.StringField("date", summary.Date),
		logger.IntField("conversations", len(turns)),
	)
	return summary, true, nil
}

// HasSummary reports whether day already has a summary.
func (s *Summarizer) HasSummary(ctx context.Context, day time.Time, lookback int) (bool, error) {
	summaries, err := s.cfg.Store.GetRecentSummaries(ctx, lookback)
	if err != nil {
		return false, err
	}
	date := day.In(s.cfg.Location).Format(memory_store.DateLayout)
	for _, sum := range summaries {
		if sum.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (s *Summarizer) modelSummary(ctx context.Context, turns []memory_store.ConversationTurn) (string, error) {
	if s.cfg.Model == nil {
		return "", nil
	}
	if len(turns) > s.cfg.TranscriptTurns {
		turns = turns[len(turns)-s.cfg.TranscriptTurns:]
	}

	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n\n", clip(t.UserMessage), clip(t.AssistantResponse))
	}

	temperature := float32(summaryTemperature)
	text, _, err := models.Generate(ctx, s.cfg.Model, &model.LLMRequest{
		Model:    s.cfg.Model.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(strings.TrimSpace(b.String()), genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(summaryInstruction, genai.RoleUser),
			Temperature:       &temperature,
			MaxOutputTokens:   summaryMaxTokens,
		},
	})
	if errors.Is(err, models.ErrEmptyResponse) {
		return "", nil
	}
	return text, err
}

// Topics returns the day's topic tags, most frequent first. The catch-all
// topic is left out.
func Topics(turns []memory_store.ConversationTurn) []string {
	counts := map[string]int{}
	for _, t := range turns {
		if t.Topic == "" || t.Topic == learning.TopicGeneral {
			continue
		}
		counts[t.Topic]++
	}
	topics := make([]string, 0, len(counts))
	for topic := range counts {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	return topics
}

// Mood returns the dominant sentiment of the day. Ties are neutral.
func Mood(turns []memory_store.ConversationTurn) string {
	counts := map[string]int{}
	for _, t := range turns {
		if t.Sentiment != "" {
			counts[t.Sentiment]++
		}
	}
	pos, neg := counts[learning.SentimentPositive], counts[learning.SentimentNegative]
	switch {
	case pos > neg && pos >= counts[learning.SentimentNeutral]:
		return learning.SentimentPositive
	case neg > pos && neg >= counts[learning.SentimentNeutral]:
		return learning.SentimentNegative
	default:
		return learning.SentimentNeutral
	}
}

// HeuristicSummary describes a day from its tags.
func HeuristicSummary(conversations int, topics []string, mood string) string {
	var b strings.Builder
	if conversations == 1 {
		b.WriteString("Had 1 conversation")
	} else {
		fmt.Fprintf(&b, "Had %d conversations", conversations)
	}
	if len(topics) > 0 {
		b.WriteString(" about " + joinAnd(topics))
	}
	b.WriteString(".")
	if mood != "" {
		fmt.Fprintf(&b, " The user's mood was mostly %s.", mood)
	}
	return b.String()
}

func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxTurnRunes {
		return s
	}
	return string([]rune(s)[:maxTurnRunes]) + "..."
}

package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
)

// SectionName identifies a prompt section.
type SectionName string

const (
	SectionPersona        SectionName = "persona"
	SectionCurrentContext SectionName = "current_context"
	SectionPersonality    SectionName = "personality"
	SectionMemories       SectionName = "memories"
	SectionPreferences    SectionName = "preferences"
	SectionSummaries      SectionName = "summaries"
	SectionLessons        SectionName = "lessons"
)

// Section headings as they appear in the prompt.
const (
	HeadingCurrentContext = "## Current Context"
	HeadingPersonality    = "## Personality"
	HeadingMemories       = "## What You Remember About The User"
	HeadingPreferences    = "## Learned Preferences"
	HeadingSummaries      = "## Recent Conversations"
	HeadingLessons        = "## Lessons From Corrections"
)

const (
	dateLayout = "Monday, January 02, 2006"
	timeLayout = "03:04 PM"
)

// Section is one block of the prompt. The persona has no heading.
type Section struct {
	Name    SectionName
	Heading string
	Body    string
}

func (s Section) String() string {
	if s.Heading == "" {
		return s.Body
	}
	return s.Heading + "\n" + s.Body
}

func (a *Assembler) personaSection(ctx context.Context) Section {
	return Section{Name: SectionPersona, Body: a.cfg.Persona.Load(ctx)}
}

func (a *Assembler) currentContextSection(ctx context.Context) Section {
	now := a.cfg.Clock().In(a.cfg.Location)
	lines := []string{
		"- Current date: " + now.Format(dateLayout),
		"- Current time: " + now.Format(timeLayout),
		"- Location: " + a.cfg.LocationName,
	}

	count, err := a.cfg.Store.GetConversationCount(ctx)
	switch {
	case err != nil:
		a.sectionFailed(SectionCurrentContext, err)
	case count == 0:
		lines = append(lines, "- This is your first conversation with the user")
	default:
		lines = append(lines, fmt.Sprintf("- You have talked with the user %d times before", count))
	}

	return Section{Name: SectionCurrentContext, Heading: HeadingCurrentContext, Body: strings.Join(lines, "\n")}
}

func (a *Assembler) personalitySection(ctx context.Context) Section {
	traits, err := a.cfg.Store.GetPersonalityTraits(ctx)
	if err != nil {
		a.sectionFailed(SectionPersonality, err)
		return Section{}
	}
	desc := memory_store.DescribeTraits(traits)
	if desc == "" {
		return Section{}
	}
	return Section{
		Name:    SectionPersonality,
		Heading: HeadingPersonality,
		Body:    "Your personality has grown to be " + desc + ".",
	}
}

func (a *Assembler) memoriesSection(ctx context.Context) Section {
	memories, err := a.cfg.Store.GetMemories(ctx, memory_store.MemoryFilter{Limit: a.cfg.MemoryLimit})
	if err != nil {
		a.sectionFailed(SectionMemories, err)
		return Section{}
	}
	return Section{
		Name:    SectionMemories,
		Heading: HeadingMemories,
		Body:    memory_store.FormatMemoryLines(memories),
	}
}

func (a *Assembler) preferencesSection(ctx context.Context) Section {
	prefs, err := a.cfg.Store.GetLearnedPreferences(ctx, a.cfg.PreferenceLimit)
	if err != nil {
		a.sectionFailed(SectionPreferences, err)
		return Section{}
	}
	lines := make([]string, 0, len(prefs))
	for _, p := range prefs {
		if p.Confidence <= memory_store.PreferenceSurfaceThreshold {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (confidence %.0f%%)", p.Type, p.Value, p.Confidence*100))
	}
	return Section{Name: SectionPreferences, Heading: HeadingPreferences, Body: strings.Join(lines, "\n")}
}

func (a *Assembler) summariesSection(ctx context.Context) Section {
	summaries, err := a.cfg.Store.GetRecentSummaries(ctx, a.cfg.SummaryDays)
	if err != nil {
		a.sectionFailed(SectionSummaries, err)
		return Section{}
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		line := fmt.Sprintf("- %s: %s", s.Date, s.Summary)
		var extra []string
		if s.Topics != "" {
			extra = append(extra, "topics: "+s.Topics)
		}
		if s.Mood != "" {
			extra = append(extra, "mood: "+s.Mood)
		}
		if len(extra) > 0 {
			line += " (" + strings.Join(extra, "; ") + ")"
		}
		lines = append(lines, line)
	}
	return Section{Name: SectionSummaries, Heading: HeadingSummaries, Body: strings.Join(lines, "\n")}
}

func (a *Assembler) lessonsSection(ctx context.Context) Section {
	corrections, err := a.cfg.Store.GetCorrections(ctx, a.cfg.LessonLimit)
	if err != nil {
		a.sectionFailed(SectionLessons, err)
		return Section{}
	}
	return Section{
		Name:    SectionLessons,
		Heading: HeadingLessons,
		Body:    memory_store.FormatLessonLines(corrections),
	}
}

func (a *Assembler) sectionFailed(name SectionName, err error) {
	a.log.Warn("Omitting prompt section after store error",
		logger.StringField("section", string(name)),
		logger.ErrorField(err),
	)
}

package context_assembler //nolint:revive // var-naming: using underscores for domain clarity

import (
	"strings"
	"unicode/utf8"
)

// truncationOrder lists the sections that may shrink, first to go first.
// Persona and current context are never truncated.
var truncationOrder = []SectionName{
	SectionSummaries,
	SectionPreferences,
	SectionPersonality,
	SectionMemories,
	SectionLessons,
}

// trimOldestFirst marks sections rendered oldest first, which lose their top
// lines instead of their bottom ones.
var trimOldestFirst = map[SectionName]bool{SectionLessons: true}

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// fitBudget drops the least important lines of lower-priority sections until the
// rendered prompt fits budget or nothing truncatable is left. Sections left
// without lines are removed along with their heading.
func fitBudget(sections []Section, budget int) ([]Section, bool) {
	if EstimateTokens(render(sections)) <= budget {
		return sections, false
	}

	lines := make(map[SectionName][]string, len(sections))
	for _, s := range sections {
		lines[s.Name] = strings.Split(s.Body, "\n")
	}

	rebuild := func() []Section {
		out := make([]Section, 0, len(sections))
		for _, s := range sections {
			body := strings.Join(lines[s.Name], "\n")
			if strings.TrimSpace(body) == "" {
				continue
			}
			s.Body = body
			out = append(out, s)
		}
		return out
	}

	current := sections
	for EstimateTokens(render(current)) > budget {
		victim, ok := nextVictim(lines)
		if !ok {
			break
		}
		l := lines[victim]
		if trimOldestFirst[victim] {
			lines[victim] = l[1:]
		} else {
			lines[victim] = l[:len(l)-1]
		}
		current = rebuild()
	}
	return current, true
}

func nextVictim(lines map[SectionName][]string) (SectionName, bool) {
	for _, name := range truncationOrder {
		if len(lines[name]) > 0 {
			return name, true
		}
	}
	return "", false
}

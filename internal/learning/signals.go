// Package learning turns a user's messages into memory store updates:
// personality nudges, remembered facts, preferences and corrections.
package learning

import (
	"strings"
	"unicode"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
)

// Signal is a category of conversational cue.
type Signal string

const (
	SignalGratitude      Signal = "gratitude"
	SignalLaughter       Signal = "laughter"
	SignalQuestion       Signal = "question"
	SignalEmotional      Signal = "emotional"
	SignalBrevityRequest Signal = "brevity_request"
	SignalCasualTone     Signal = "casual_tone"
	SignalFormalTone     Signal = "formal_tone"
	SignalPlayful        Signal = "playful"
)

// Adjustment nudges one trait.
type Adjustment struct {
	Trait memory_store.Trait
	Delta float64
}

// SignalRule maps a signal, detected by any of its cues, to trait adjustments.
// Cues made of words match whole words; cues without letters match anywhere.
type SignalRule struct {
	Signal      Signal
	Cues        []string
	Adjustments []Adjustment
}

// signalTable is the complete personality-learning heuristic.
var signalTable = []SignalRule{
	{
		Signal:      SignalGratitude,
		Cues:        []string{"thank", "thanks", "thank you", "thx", "appreciate it", "cheers"},
		Adjustments: []Adjustment{{memory_store.TraitWarmth, 0.02}, {memory_store.TraitEmpathy, 0.01}},
	},
	{
		Signal:      SignalLaughter,
		Cues:        []string{"haha", "hahaha", "lol", "lmao", "rofl", "hilarious", "funny", "😂", "🤣"},
		Adjustments: []Adjustment{{memory_store.TraitHumor, 0.03}, {memory_store.TraitPlayfulness, 0.02}},
	},
	{
		Signal:      SignalQuestion,
		Cues:        []string{"?"},
		Adjustments: []Adjustment{{memory_store.TraitCuriosity, 0.01}},
	},
	{
		Signal: SignalEmotional,
		Cues: []string{
			"sad", "stressed", "anxious", "tired", "lonely", "upset", "worried",
			"depressed", "excited", "happy", "frustrated", "scared", "i feel", "feeling",
		},
		Adjustments: []Adjustment{{memory_store.TraitEmpathy, 0.03}, {memory_store.TraitWarmth, 0.01}},
	},
	{
		Signal: SignalBrevityRequest,
		Cues: []string{
			"too long", "shorter", "keep it short", "be brief", "briefly", "tldr", "tl dr",
			"get to the point", "just the answer", "less words",
		},
		Adjustments: []Adjustment{{memory_store.TraitDirectness, 0.05}},
	},
	{
		Signal:      SignalCasualTone,
		Cues:        []string{"hey", "yo", "sup", "gonna", "wanna", "dude", "bro", "mate", "ya", "nah", "yep"},
		Adjustments: []Adjustment{{memory_store.TraitFormality, -0.02}},
	},
	{
		Signal:      SignalFormalTone,
		Cues:        []string{"kindly", "would you kindly", "sir", "madam", "regards", "i would appreciate", "dear"},
		Adjustments: []Adjustment{{memory_store.TraitFormality, 0.02}},
	},
	{
		Signal:      SignalPlayful,
		Cues:        []string{"joke", "tease", "riddle", "let's play", "pun", "😜", "😉"},
		Adjustments: []Adjustment{{memory_store.TraitPlayfulness, 0.03}, {memory_store.TraitHumor, 0.01}},
	},
}

// SignalRules returns a copy of the signal table.
func SignalRules() []SignalRule {
	out := make([]SignalRule, len(signalTable))
	copy(out, signalTable)
	return out
}

// DetectSignals returns the signals present in text, in table order.
func DetectSignals(text string) []Signal {
	words := normalizeWords(text)
	var found []Signal
	for _, rule := range signalTable {
		if matchesAny(text, words, rule.Cues) {
			found = append(found, rule.Signal)
		}
	}
	return found
}

// AdjustmentsFor sums the adjustments of signals per trait, in trait table order.
func AdjustmentsFor(signals []Signal) []Adjustment {
	totals := map[memory_store.Trait]float64{}
	for _, s := range signals {
		for _, rule := range signalTable {
			if rule.Signal != s {
				continue
			}
			for _, adj := range rule.Adjustments {
				totals[adj.Trait] += adj.Delta
			}
		}
	}

	var out []Adjustment
	for _, spec := range memory_store.Traits() {
		if d, ok := totals[spec.Trait]; ok && d != 0 {
			out = append(out, Adjustment{Trait: spec.Trait, Delta: d})
		}
	}
	return out
}

// normalizeWords lowercases text and reduces it to space-separated words with
// a leading and trailing space, so " cue " finds whole-word matches.
func normalizeWords(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for i, f := range fields {
		fields[i] = strings.Trim(f, "'")
	}
	return " " + strings.Join(fields, " ") + " "
}

func matchesAny(raw, words string, cues []string) bool {
	for _, cue := range cues {
		if hasWordRune(cue) {
			if strings.Contains(words, " "+cue+" ") {
				return true
			}
			continue
		}
		if strings.Contains(raw, cue) {
			return true
		}
	}
	return false
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

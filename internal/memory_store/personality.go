package memory_store

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Trait names one of the fixed personality scalars.
type Trait string

const (
	TraitWarmth      Trait = "warmth"
	TraitHumor       Trait = "humor"
	TraitCuriosity   Trait = "curiosity"
	TraitDirectness  Trait = "directness"
	TraitEmpathy     Trait = "empathy"
	TraitPlayfulness Trait = "playfulness"
	TraitFormality   Trait = "formality"
)

// Thresholds above and below which a trait is worth describing.
const (
	TraitHighThreshold = 0.6
	TraitLowThreshold  = 0.4
)

// TraitSpec describes one trait: its seed value and how it reads in a prompt.
type TraitSpec struct {
	Trait       Trait
	Default     float64
	Description string
	High        string
	Low         string
}

var traitTable = []TraitSpec{
	{TraitWarmth, 0.7, "How warm and friendly vs formal", "warm and friendly", "reserved"},
	{TraitHumor, 0.5, "How often to use humor", "has a good sense of humor", "serious in tone"},
	{TraitCuriosity, 0.6, "How much to ask follow-up questions", "curious and asks questions", "focused rather than inquisitive"},
	{TraitDirectness, 0.5, "How direct vs elaborate in responses", "direct and to the point", "thorough and elaborate"},
	{TraitEmpathy, 0.7, "How emotionally attuned to user", "emotionally attuned", "matter-of-fact"},
	{TraitPlayfulness, 0.4, "How playful vs serious", "playful", "earnest"},
	{TraitFormality, 0.3, "How formal vs casual in speech", "formal and polished", "casual in speech"},
}

// Traits returns the trait table in its fixed order.
func Traits() []TraitSpec {
	out := make([]TraitSpec, len(traitTable))
	copy(out, traitTable)
	return out
}

// DefaultTraits returns the seed value of every trait.
func DefaultTraits() map[Trait]float64 {
	out := make(map[Trait]float64, len(traitTable))
	for _, t := range traitTable {
		out[t.Trait] = t.Default
	}
	return out
}

// Valid reports whether t is one of the fixed traits.
func (t Trait) Valid() bool {
	for _, spec := range traitTable {
		if spec.Trait == t {
			return true
		}
	}
	return false
}

// UpdatePersonalityTrait nudges a trait by delta, clamped to [0, 1]. Unknown
// traits and non-finite deltas are ignored.
func (s *Store) UpdatePersonalityTrait(ctx context.Context, trait Trait, delta float64) error {
	if !trait.Valid() || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return nil
	}
	now := s.timestamp()
	return s.write(ctx, "update_trait", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE personality_traits
			 SET trait_value = MAX(0.0, MIN(1.0, trait_value + ?)), updated_at = ?
			 WHERE trait_name = ?`,
			delta, now, string(trait),
		); err != nil {
			return fmt.Errorf("update trait %s: %w", trait, err)
		}
		return nil
	})
}

// GetPersonalityTraits returns every fixed trait. Traits missing from the
// table report their default.
func (s *Store) GetPersonalityTraits(ctx context.Context) (map[Trait]float64, error) {
	traits := DefaultTraits()

	rows, err := s.db.QueryContext(ctx, `SELECT trait_name, trait_value FROM personality_traits`)
	if err != nil {
		s.observe("get_traits", err)
		return traits, fmt.Errorf("query traits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			value float64
		)
		if err := rows.Scan(&name, &value); err != nil {
			s.observe("get_traits", err)
			return traits, fmt.Errorf("scan trait: %w", err)
		}
		if t := Trait(name); t.Valid() {
			traits[t] = value
		}
	}
	err = rows.Err()
	s.observe("get_traits", err)
	return traits, err
}

// DescribePersonality renders the current traits as a short phrase.
func (s *Store) DescribePersonality(ctx context.Context) (string, error) {
	traits, err := s.GetPersonalityTraits(ctx)
	if err != nil {
		return "", err
	}
	if d := DescribeTraits(traits); d != "" {
		return d, nil
	}
	return "balanced personality", nil
}

// DescribeTraits joins the clause of every notable trait in table order.
// It returns "" when no trait is notable.
func DescribeTraits(traits map[Trait]float64) string {
	var clauses []string
	for _, spec := range traitTable {
		v, ok := traits[spec.Trait]
		if !ok {
			continue
		}
		switch {
		case v > TraitHighThreshold:
			clauses = append(clauses, spec.High)
		case v < TraitLowThreshold:
			clauses = append(clauses, spec.Low)
		}
	}
	return strings.Join(clauses, ", ")
}

package memory_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultPreferenceConfidence is the confidence of a newly observed preference.
	DefaultPreferenceConfidence = 0.5
	// PreferenceConfidenceStep is added each time a preference is observed again.
	PreferenceConfidenceStep = 0.1
	// PreferenceSurfaceThreshold is the confidence a preference must exceed to be surfaced.
	PreferenceSurfaceThreshold = 0.4

	defaultPreferenceLimit = 20
)

// LearnPreference records an observed (type, value) pair. A repeat sighting
// raises confidence by PreferenceConfidenceStep, capped at 1, and bumps the
// confirmation count; a new pair starts at initialConfidence clamped to [0, 1].
func (s *Store) LearnPreference(ctx context.Context, prefType, value string, initialConfidence float64) error {
	initialConfidence = clamp01(initialConfidence)
	now := s.timestamp()

	return s.write(ctx, "learn_preference", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var id int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM learned_preferences WHERE preference_type = ? AND preference_value = ? ORDER BY id LIMIT 1`,
			prefType, value,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO learned_preferences
				 (preference_type, preference_value, confidence, times_confirmed, created_at, updated_at)
				 VALUES (?, ?, ?, 1, ?, ?)`,
				prefType, value, initialConfidence, now, now,
			); err != nil {
				return fmt.Errorf("insert preference: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find preference: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE learned_preferences
				 SET confidence = MIN(1.0, COALESCE(confidence, ?) + ?),
				     times_confirmed = COALESCE(times_confirmed, 1) + 1,
				     updated_at = ?
				 WHERE id = ?`,
				DefaultPreferenceConfidence, PreferenceConfidenceStep, now, id,
			); err != nil {
				return fmt.Errorf("update preference %d: %w", id, err)
			}
		}
		return tx.Commit()
	})
}

// GetLearnedPreferences returns preferences above PreferenceSurfaceThreshold,
// most confident first.
func (s *Store) GetLearnedPreferences(ctx context.Context, limit int) ([]LearnedPreference, error) {
	if limit <= 0 {
		limit = defaultPreferenceLimit
	}
	prefs := []LearnedPreference{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, preference_type, preference_value, confidence, times_confirmed, created_at, updated_at
		 FROM learned_preferences
		 WHERE confidence > ?
		 ORDER BY confidence DESC, times_confirmed DESC, id ASC
		 LIMIT ?`,
		PreferenceSurfaceThreshold, limit,
	)
	if err != nil {
		s.observe("get_preferences", err)
		return prefs, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         LearnedPreference
			confirmed sql.NullInt64
			created   sqlTime
			updated   sqlTime
		)
		if err := rows.Scan(&p.ID, &p.Type, &p.Value, &p.Confidence, &confirmed, &created, &updated); err != nil {
			s.observe("get_preferences", err)
			return []LearnedPreference{}, fmt.Errorf("scan preference: %w", err)
		}
		p.TimesConfirmed = 1
		if confirmed.Valid {
			p.TimesConfirmed = int(confirmed.Int64)
		}
		p.CreatedAt = created.Time
		p.UpdatedAt = updated.Time
		prefs = append(prefs, p)
	}
	err = rows.Err()
	s.observe("get_preferences", err)
	return prefs, err
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return DefaultPreferenceConfidence
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

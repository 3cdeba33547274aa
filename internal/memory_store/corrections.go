package memory_store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// AddCorrection records a correction and the lesson drawn from it. An empty
// RuleType is stored as RuleGeneral.
func (s *Store) AddCorrection(ctx context.Context, c Correction) (int64, error) {
	if c.RuleType == "" {
		c.RuleType = RuleGeneral
	}
	if !c.RuleType.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRuleType, c.RuleType)
	}
	ts := s.timestamp()
	if !c.CreatedAt.IsZero() {
		ts = formatTime(c.CreatedAt)
	}

	var id int64
	err := s.write(ctx, "add_correction", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO corrections (user_said, prior_response, lesson, rule_type, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			c.UserSaid, nullString(c.PriorResponse), c.Lesson, string(c.RuleType), ts,
		)
		if err != nil {
			return fmt.Errorf("insert correction: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetCorrections returns up to limit corrections, newest first. A limit of
// zero or less returns all of them.
func (s *Store) GetCorrections(ctx context.Context, limit int) ([]Correction, error) {
	query := `SELECT id, user_said, prior_response, lesson, rule_type, created_at
		FROM corrections ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	corrections := []Correction{}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.observe("get_corrections", err)
		return corrections, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c       Correction
			prior   sql.NullString
			rule    string
			created sqlTime
		)
		if err := rows.Scan(&c.ID, &c.UserSaid, &prior, &c.Lesson, &rule, &created); err != nil {
			s.observe("get_corrections", err)
			return []Correction{}, fmt.Errorf("scan correction: %w", err)
		}
		c.PriorResponse = prior.String
		c.RuleType = RuleType(rule)
		c.CreatedAt = created.Time
		corrections = append(corrections, c)
	}
	err = rows.Err()
	s.observe("get_corrections", err)
	return corrections, err
}

// FormatLessons concatenates every stored lesson, oldest first, as
// "- [rule] lesson" lines. It returns "" when there are none.
func (s *Store) FormatLessons(ctx context.Context) (string, error) {
	corrections, err := s.GetCorrections(ctx, 0)
	if err != nil {
		return "", err
	}
	return FormatLessonLines(corrections), nil
}

// FormatLessonLines takes corrections newest first, as GetCorrections returns
// them, and renders them oldest first.
func FormatLessonLines(corrections []Correction) string {
	lines := make([]string, 0, len(corrections))
	for i := len(corrections) - 1; i >= 0; i-- {
		c := corrections[i]
		if strings.TrimSpace(c.Lesson) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", c.RuleType, c.Lesson))
	}
	return strings.Join(lines, "\n")
}

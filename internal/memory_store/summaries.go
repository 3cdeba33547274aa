package memory_store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveDailySummary stores the summary for its date, replacing any earlier one.
func (s *Store) SaveDailySummary(ctx context.Context, summary DailySummary) error {
	if _, err := time.Parse(DateLayout, summary.Date); err != nil {
		return fmt.Errorf("summary date %q: %w", summary.Date, err)
	}
	now := s.timestamp()
	return s.write(ctx, "save_summary", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO conversation_summaries (date, summary, topics, mood, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			summary.Date, summary.Summary, nullString(summary.Topics), nullString(summary.Mood), now,
		); err != nil {
			return fmt.Errorf("save summary %s: %w", summary.Date, err)
		}
		return nil
	})
}

// GetRecentSummaries returns summaries dated within the last days days
// (today in the store's location included), newest first, at most days rows.
func (s *Store) GetRecentSummaries(ctx context.Context, days int) ([]DailySummary, error) {
	summaries := []DailySummary{}
	if days <= 0 {
		return summaries, nil
	}
	cutoff := s.today().AddDate(0, 0, -(days - 1)).Format(DateLayout)

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, summary, topics, mood, created_at
		 FROM conversation_summaries
		 WHERE date >= ?
		 ORDER BY date DESC
		 LIMIT ?`,
		cutoff, days,
	)
	if err != nil {
		s.observe("recent_summaries", err)
		return summaries, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sum     DailySummary
			date    sqlTime
			topics  sql.NullString
			mood    sql.NullString
			created sqlTime
		)
		if err := rows.Scan(&date, &sum.Summary, &topics, &mood, &created); err != nil {
			s.observe("recent_summaries", err)
			return []DailySummary{}, fmt.Errorf("scan summary: %w", err)
		}
		sum.Date = date.Time.Format(DateLayout)
		sum.Topics = topics.String
		sum.Mood = mood.String
		sum.CreatedAt = created.Time
		summaries = append(summaries, sum)
	}
	err = rows.Err()
	s.observe("recent_summaries", err)
	return summaries, err
}

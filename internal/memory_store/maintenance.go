package memory_store

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Stats returns row counts for each table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM conversations),
		(SELECT COUNT(*) FROM user_memories),
		(SELECT COUNT(*) FROM learned_preferences),
		(SELECT COUNT(*) FROM conversation_summaries),
		(SELECT COUNT(*) FROM corrections)`,
	).Scan(&st.Conversations, &st.Memories, &st.Preferences, &st.Summaries, &st.Corrections)
	s.observe("stats", err)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// Prune applies the retention policy: it keeps the MaxMemories best ranked
// memories and the MaxLessons most recent corrections.
func (s *Store) Prune(ctx context.Context, policy RetentionPolicy) (PruneResult, error) {
	var result PruneResult
	err := s.write(ctx, "prune", func(ctx context.Context) error {
		if policy.MaxMemories > 0 {
			res, err := s.db.ExecContext(ctx,
				`DELETE FROM user_memories WHERE id NOT IN (
					SELECT id FROM user_memories
					ORDER BY importance DESC, last_referenced DESC, id DESC
					LIMIT ?)`,
				policy.MaxMemories,
			)
			if err != nil {
				return fmt.Errorf("prune memories: %w", err)
			}
			result.Memories, _ = res.RowsAffected()
		}
		if policy.MaxLessons > 0 {
			res, err := s.db.ExecContext(ctx,
				`DELETE FROM corrections WHERE id NOT IN (
					SELECT id FROM corrections
					ORDER BY created_at DESC, id DESC
					LIMIT ?)`,
				policy.MaxLessons,
			)
			if err != nil {
				return fmt.Errorf("prune lessons: %w", err)
			}
			result.Lessons, _ = res.RowsAffected()
		}
		return nil
	})
	return result, err
}

// Backup writes a consistent copy of the database to dest, which must not exist.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("backup destination %s already exists", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat backup destination: %w", err)
	}
	return s.write(ctx, "backup", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
			return fmt.Errorf("vacuum into %s: %w", dest, err)
		}
		return nil
	})
}

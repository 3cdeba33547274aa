package memory_store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const (
	memoryPrefixRunes  = 50
	defaultMemoryLimit = 20
	memoryColumns      = `id, memory_type, content, importance, last_referenced, created_at`
)

// AddMemory stores a fact about the user. An existing memory of the same type
// whose content contains the first 50 characters of content, or is contained
// by them, is refreshed in place and its id returned. The user has one name,
// so a new user_name always replaces the stored one. Importance below 1
// falls back to DefaultImportance.
func (s *Store) AddMemory(ctx context.Context, memoryType MemoryType, content string, importance int) (int64, error) {
	if !memoryType.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMemoryType, memoryType)
	}
	if importance < 1 {
		importance = DefaultImportance
	}
	prefix := runePrefix(content, memoryPrefixRunes)
	singular := memoryType == MemoryTypeUserName
	now := s.timestamp()

	var id int64
	err := s.write(ctx, "add_memory", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM user_memories
			 WHERE memory_type = ?
			   AND (?
			        OR (? <> '' AND instr(lower(content), lower(?)) > 0)
			        OR (content <> '' AND instr(lower(?), lower(content)) > 0)
			        OR content = ?)
			 ORDER BY id ASC LIMIT 1`,
			string(memoryType), singular, prefix, prefix, prefix, content,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO user_memories (memory_type, content, importance, last_referenced, created_at)
				 VALUES (?, ?, ?, ?, ?)`,
				string(memoryType), content, importance, now, now,
			)
			if err != nil {
				return fmt.Errorf("insert memory: %w", err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("find memory: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE user_memories SET content = ?, importance = ?, last_referenced = ? WHERE id = ?`,
				content, importance, now, id,
			); err != nil {
				return fmt.Errorf("update memory %d: %w", id, err)
			}
		}
		return tx.Commit()
	})
	return id, err
}

// GetMemories returns memories ranked by importance, then recency. The result
// is never nil.
func (s *Store) GetMemories(ctx context.Context, filter MemoryFilter) ([]Memory, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMemoryLimit
	}

	query := `SELECT ` + memoryColumns + ` FROM user_memories`
	args := []any{}
	if filter.Type != "" {
		if !filter.Type.Valid() {
			return []Memory{}, fmt.Errorf("%w: %q", ErrUnknownMemoryType, filter.Type)
		}
		query += ` WHERE memory_type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY importance DESC, last_referenced DESC, id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryMemories(ctx, "get_memories", query, args...)
}

// FindMemories returns memories whose content contains query, best ranked first.
func (s *Store) FindMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	return s.queryMemories(ctx, "find_memories",
		`SELECT `+memoryColumns+` FROM user_memories
		 WHERE content LIKE ? ESCAPE '\'
		 ORDER BY importance DESC, last_referenced DESC, id DESC LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
}

// DeleteMemory removes one memory by id.
func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	return s.write(ctx, "delete_memory", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM user_memories WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete memory %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("memory %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// FormatMemories renders the top memories as "- [type] content" lines.
func (s *Store) FormatMemories(ctx context.Context, limit int) (string, error) {
	memories, err := s.GetMemories(ctx, MemoryFilter{Limit: limit})
	if err != nil {
		return "", err
	}
	return FormatMemoryLines(memories), nil
}

// FormatMemoryLines renders memories one per line.
func FormatMemoryLines(memories []Memory) string {
	var b strings.Builder
	for i, m := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- [%s] %s", m.Type, m.Content)
	}
	return b.String()
}

func (s *Store) queryMemories(ctx context.Context, op, query string, args ...any) ([]Memory, error) {
	memories := []Memory{}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.observe(op, err)
		return memories, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m          Memory
			memType    string
			importance sql.NullInt64
			lastRef    sqlTime
			created    sqlTime
		)
		if err := rows.Scan(&m.ID, &memType, &m.Content, &importance, &lastRef, &created); err != nil {
			s.observe(op, err)
			return []Memory{}, fmt.Errorf("scan memory: %w", err)
		}
		m.Type = MemoryType(memType)
		m.Importance = DefaultImportance
		if importance.Valid {
			m.Importance = int(importance.Int64)
		}
		m.LastReferenced = lastRef.Time
		m.CreatedAt = created.Time
		memories = append(memories, m)
	}
	err = rows.Err()
	s.observe(op, err)
	return memories, err
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

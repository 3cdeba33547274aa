package memory_store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const conversationColumns = `id, timestamp, user_message, assistant_response, topic, sentiment`

// SaveConversation appends one turn. A zero Timestamp is stamped with the
// store clock.
func (s *Store) SaveConversation(ctx context.Context, turn ConversationTurn) (int64, error) {
	ts := s.timestamp()
	if !turn.Timestamp.IsZero() {
		ts = formatTime(turn.Timestamp)
	}

	var id int64
	err := s.write(ctx, "save_conversation", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO conversations (timestamp, user_message, assistant_response, topic, sentiment)
			 VALUES (?, ?, ?, ?, ?)`,
			ts, turn.UserMessage, turn.AssistantResponse,
			nullString(turn.Topic), nullString(turn.Sentiment),
		)
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// GetConversationCount returns the number of stored turns.
func (s *Store) GetConversationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	s.observe("count_conversations", err)
	if err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}

// GetRecentConversations returns up to limit turns, newest first.
func (s *Store) GetRecentConversations(ctx context.Context, limit int) ([]ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryConversations(ctx, "recent_conversations",
		`SELECT `+conversationColumns+` FROM conversations ORDER BY timestamp DESC, id DESC LIMIT ?`,
		limit,
	)
}

// SearchConversations matches query against both sides of each turn, newest first.
func (s *Store) SearchConversations(ctx context.Context, query string, limit int) ([]ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.queryConversations(ctx, "search_conversations",
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user_message LIKE ? ESCAPE '\' OR assistant_response LIKE ? ESCAPE '\'
		 ORDER BY timestamp DESC, id DESC LIMIT ?`,
		pattern, pattern, limit,
	)
}

// GetConversationsByDate returns the turns of one calendar day in day's
// location, oldest first.
func (s *Store) GetConversationsByDate(ctx context.Context, day time.Time) ([]ConversationTurn, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return s.queryConversations(ctx, "conversations_by_date",
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp ASC, id ASC`,
		formatTime(start), formatTime(end),
	)
}

func (s *Store) queryConversations(ctx context.Context, op, query string, args ...any) ([]ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.observe(op, err)
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	turns := []ConversationTurn{}
	for rows.Next() {
		var (
			turn      ConversationTurn
			ts        sqlTime
			topic     sql.NullString
			sentiment sql.NullString
		)
		if err := rows.Scan(&turn.ID, &ts, &turn.UserMessage, &turn.AssistantResponse, &topic, &sentiment); err != nil {
			s.observe(op, err)
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		turn.Timestamp = ts.Time
		turn.Topic = topic.String
		turn.Sentiment = sentiment.String
		turns = append(turns, turn)
	}
	err = rows.Err()
	s.observe(op, err)
	return turns, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/olasquare/olasquare/internal/domain"
)

// SQLiteThreadStore is an append-only conversation store backed by SQLite.
type SQLiteThreadStore struct {
	db *DB
}

// NewSQLiteThreadStore creates a thread store using the given database.
func NewSQLiteThreadStore(db *DB) *SQLiteThreadStore {
	return &SQLiteThreadStore{db: db}
}

// Append writes messages to the end of a thread, creating the thread on
// first use. All messages land in one transaction.
func (s *SQLiteThreadStore) Append(ctx context.Context, threadID string, msgs ...domain.Message) error {
	if threadID == "" {
		return errors.New("thread id is required")
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		threadID, now, now,
	); err != nil {
		return fmt.Errorf("upserting thread %s: %w", threadID, err)
	}

	for _, msg := range msgs {
		var toolCalls sql.NullString
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("encoding tool calls: %w", err)
			}
			toolCalls = sql.NullString{String: string(data), Valid: true}
		}
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (thread_id, role, content, tool_calls, tool_call_id, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			threadID, string(msg.Role), msg.Content, toolCalls, msg.ToolCallID, ts.UTC().Format(timeFormat),
		); err != nil {
			return fmt.Errorf("appending message to %s: %w", threadID, err)
		}
	}

	return tx.Commit()
}

// History returns the thread's messages in append order. Unknown threads
// have an empty history.
func (s *SQLiteThreadStore) History(ctx context.Context, threadID string) ([]domain.Message, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, timestamp
		 FROM messages WHERE thread_id = ? ORDER BY id`, threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", threadID, err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var (
			msg       domain.Message
			role, ts  string
			toolCalls sql.NullString
		)
		if err := rows.Scan(&role, &msg.Content, &toolCalls, &msg.ToolCallID, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Timestamp = parseTime(ts)
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Get returns a thread with its messages, or domain.ErrThreadNotFound.
func (s *SQLiteThreadStore) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	var created, updated string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM threads WHERE id = ?`, threadID,
	).Scan(&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrThreadNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}

	msgs, err := s.History(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return &domain.Thread{
		ID:        threadID,
		CreatedAt: parseTime(created),
		UpdatedAt: parseTime(updated),
		Messages:  msgs,
	}, nil
}

// List returns a summary of every thread, most recently updated first.
func (s *SQLiteThreadStore) List(ctx context.Context) ([]domain.ThreadSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT t.id, t.updated_at, COUNT(m.id)
		 FROM threads t LEFT JOIN messages m ON m.thread_id = t.id
		 GROUP BY t.id
		 ORDER BY t.updated_at DESC, t.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var out []domain.ThreadSummary
	for rows.Next() {
		var sum domain.ThreadSummary
		var updated string
		if err := rows.Scan(&sum.ID, &updated, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		sum.UpdatedAt = parseTime(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

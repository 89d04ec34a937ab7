package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000

	// timeLayout is fixed-width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// SQLiteJournal stores sessions and messages in the journal tables.
type SQLiteJournal struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteJournal returns a journal on an open, migrated database.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, now: time.Now}
}

// StartSession records a new broker session and returns its ID.
func (j *SQLiteJournal) StartSession(ctx context.Context, clientID, broker string, attempts int) (string, error) {
	if attempts < 1 {
		attempts = 1
	}
	id := uuid.NewString()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO sessions (id, client_id, broker, connected_at, attempts) VALUES (?, ?, ?, ?, ?)",
		id, clientID, broker, formatTime(j.now()), attempts,
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return id, nil
}

// EndSession marks a session closed.
func (j *SQLiteJournal) EndSession(ctx context.Context, sessionID string) error {
	result, err := j.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL",
		formatTime(j.now()), sessionID,
	)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// RecordMessage stores an inbound message against a session.
func (j *SQLiteJournal) RecordMessage(ctx context.Context, sessionID, topic string, payload []byte) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if payload == nil {
		payload = []byte{}
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, topic, payload, received_at) VALUES (?, ?, ?, ?)",
		sessionID, topic, payload, formatTime(j.now()),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// RecentMessages returns the latest messages, newest first.
// limit defaults to 50 and is capped at 1000.
func (j *SQLiteJournal) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, topic, payload, received_at
		 FROM messages
		 ORDER BY received_at DESC, id DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var receivedAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Topic, &m.Payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if m.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// Sessions returns the latest sessions, newest first.
func (j *SQLiteJournal) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, client_id, broker, connected_at, attempts, ended_at
		 FROM sessions
		 ORDER BY connected_at DESC
		 LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var connectedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.ClientID, &s.Broker, &connectedAt, &s.Attempts, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if s.ConnectedAt, err = parseTime(connectedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t, err := parseTime(endedAt.String)
			if err != nil {
				return nil, err
			}
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Prune deletes messages received, and closed sessions started, more than
// olderThan ago. It returns the number of messages deleted.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("journal: retention must be positive")
	}
	cutoff := formatTime(j.now().Add(-olderThan))

	result, err := j.db.ExecContext(ctx, "DELETE FROM messages WHERE received_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	if _, err := j.db.ExecContext(ctx,
		`DELETE FROM sessions
		 WHERE connected_at < ? AND ended_at IS NOT NULL
		   AND NOT EXISTS (SELECT 1 FROM messages WHERE messages.session_id = sessions.id)`,
		cutoff,
	); err != nil {
		return deleted, fmt.Errorf("deleting sessions: %w", err)
	}
	return deleted, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

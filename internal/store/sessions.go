package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a new session row with a generated id and
// returns it. Sessions are created by explicit user action.
func (s *Store) CreateSession(ctx context.Context, name string) (Session, error) {
	now := time.Now()
	sess := Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := withBusyRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, sess.ID, sess.Name, sess.CreatedAt.Unix(), sess.UpdatedAt.Unix())
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session %s: %w", name, err)
	}
	return sess, nil
}

// ReadSession returns a session by id.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Name, &createdAt, &updatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return sess, nil
}

// AppendEvent inserts an append-only session event. sessions.updated_at
// is advanced by the trg_session_events_touch trigger, never by
// application code.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, eventType EventType, payloadJSON string) (int64, error) {
	var id int64
	err := withBusyRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO session_events (session_id, event_type, payload_json, created_at)
			VALUES (?, ?, ?, ?)
		`, sessionID, string(eventType), payloadJSON, time.Now().Unix())
		if err != nil {
			return err
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append event to session %s: %w", sessionID, err)
	}
	return id, nil
}

// ListEvents returns all events for a session ordered by monotonic id,
// the log's total order.
func (s *Store) ListEvents(ctx context.Context, sessionID string) ([]SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, event_type, payload_json, created_at
		FROM session_events WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		var eventType string
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &eventType, &ev.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		ev.EventType = EventType(eventType)
		ev.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return out, nil
}

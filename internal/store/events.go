package store

import (
	"context"
	"fmt"
)

// AddEvent appends to a task's history. Failures are ignored: history is
// informational and must not fail the mutation that produced it.
func (s *Store) AddEvent(ctx context.Context, taskID int64, actor, eventType, content string) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO events (task_id, actor, event_type, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		taskID, actor, eventType, content, s.now(),
	)
}

// GetEvents returns a task's history, oldest first.
func (s *Store) GetEvents(ctx context.Context, taskID int64) ([]Event, error) {
	return s.queryEvents(ctx,
		`SELECT id, task_id, actor, event_type, content, timestamp FROM events WHERE task_id = ? ORDER BY id`,
		taskID)
}

// RecentEvents returns the latest events across all tasks, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryEvents(ctx,
		`SELECT id, task_id, actor, event_type, content, timestamp FROM events ORDER BY id DESC LIMIT ?`,
		limit)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Actor, &e.Type, &e.Content, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

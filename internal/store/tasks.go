package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/imkarma/logiri/internal/errors"
)

// PlaceholderTitle replaces an empty title on insert.
const PlaceholderTitle = "Untitled Task"

// CreateTask inserts a new pending task and returns it with the generated ID.
func (s *Store) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	now := s.now()

	title := strings.TrimSpace(nt.Title)
	if title == "" {
		title = PlaceholderTitle
	}
	priority := ClampPriority(string(nt.Priority))
	est := nt.EstimatedHours
	if !(est > 0) || math.IsInf(est, 0) {
		est = 1
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, rule_id, status, priority, assigned_to, assigned_role,
		                    estimated_hours, logged_hours, due_date, recheck_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		title, nt.Description, nt.RuleID, string(StatusPending), string(priority), nt.AssignedTo, nt.AssignedRole,
		est, nt.DueDate, string(nt.RecheckType), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, _ := res.LastInsertId()
	s.AddEvent(ctx, id, "", "created", "Task created: "+title)

	return &Task{
		ID:             id,
		Title:          title,
		Description:    nt.Description,
		RuleID:         nt.RuleID,
		AssignedTo:     nt.AssignedTo,
		AssignedRole:   nt.AssignedRole,
		Status:         StatusPending,
		Priority:       priority,
		EstimatedHours: est,
		DueDate:        nt.DueDate,
		RecheckType:    nt.RecheckType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// taskColumns is the standard column list for task queries.
const taskColumns = `id, title, description, rule_id, status, priority, assigned_to, assigned_role,
	estimated_hours, logged_hours, due_date, recheck_type, recheck_date, recheck_verified, recheck_result,
	created_at, updated_at, completed_at`

// priorityOrder sorts critical (and legacy urgent) rows first.
const priorityOrder = `CASE priority
		WHEN 'critical' THEN 0 WHEN 'urgent' THEN 0
		WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3
		ELSE 4 END`

// GetTask returns a single task by ID.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "task #%d", id)
	}
	return t, err
}

// ListTasks returns tasks matching the filter, ordered by priority tier,
// then newest first, then insertion order.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Assignee != "" {
		query += ` AND assigned_to = ?`
		args = append(args, f.Assignee)
	}
	query += ` ORDER BY ` + priorityOrder + `, created_at DESC, id ASC`
	return s.queryTasks(ctx, query, args...)
}

// ListOpenTasks returns non-done tasks in ListTasks order, capped at limit
// (0 = no cap).
func (s *Store) ListOpenTasks(ctx context.Context, limit int) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status != ?
		ORDER BY ` + priorityOrder + `, created_at DESC, id ASC`
	args := []any{string(StatusDone)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryTasks(ctx, query, args...)
}

// FindOpenTaskByTitle returns a non-done task with exactly this title, or
// nil when there is none.
func (s *Store) FindOpenTaskByTitle(ctx context.Context, title string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE title = ? AND status != ? ORDER BY id LIMIT 1`,
		title, string(StatusDone))
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// UpdateTaskStatus overwrites a task's status. Any status may follow any
// other; completion bookkeeping lives in CompleteTask.
func (s *Store) UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), s.now(), id,
	)
	if err := notFoundIfNone(res, err, id); err != nil {
		return err
	}
	s.AddEvent(ctx, id, "", "status", "Status set to "+string(status))
	return nil
}

// AssignTask sets who owns a task.
func (s *Store) AssignTask(ctx context.Context, id int64, assignee, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET assigned_to = ?, assigned_role = ?, updated_at = ? WHERE id = ?`,
		assignee, role, s.now(), id,
	)
	if err := notFoundIfNone(res, err, id); err != nil {
		return err
	}
	s.AddEvent(ctx, id, "", "assigned", "Assigned to "+assignee)
	return nil
}

// LogTime adds hours to a task's logged time. The increment happens in SQL
// so concurrent calls never lose an update.
func (s *Store) LogTime(ctx context.Context, id int64, hours float64) error {
	if !(hours > 0) || math.IsInf(hours, 0) {
		return errors.Wrapf(errors.ErrInvalidArgument, "hours must be a positive number, got %g", hours)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET logged_hours = logged_hours + ?, updated_at = ? WHERE id = ?`,
		hours, s.now(), id,
	)
	if err := notFoundIfNone(res, err, id); err != nil {
		return err
	}
	s.AddEvent(ctx, id, "", "time_logged", fmt.Sprintf("Logged %gh", hours))
	return nil
}

// CompleteTask marks a task done and schedules its recheck for recheckDate.
func (s *Store) CompleteTask(ctx context.Context, id int64, recheckDate time.Time) (*Task, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, recheck_date = ?, updated_at = ? WHERE id = ?`,
		string(StatusDone), now, recheckDate.Format(DateLayout), now, id,
	)
	if err := notFoundIfNone(res, err, id); err != nil {
		return nil, err
	}
	s.AddEvent(ctx, id, "", "completed", "Completed, recheck on "+recheckDate.Format(DateLayout))
	return s.GetTask(ctx, id)
}

// VerifyRecheck records whether a completed task's fix held.
func (s *Store) VerifyRecheck(ctx context.Context, id int64, passed bool) error {
	result := RecheckFail
	if passed {
		result = RecheckPass
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET recheck_verified = 1, recheck_result = ?, updated_at = ? WHERE id = ?`,
		string(result), s.now(), id,
	)
	if err := notFoundIfNone(res, err, id); err != nil {
		return err
	}
	s.AddEvent(ctx, id, "", "recheck_verified", "Recheck "+string(result))
	return nil
}

// ListRechecks returns done, unverified tasks with a recheck date, soonest
// first. A non-empty dueBy (YYYY-MM-DD) limits to rechecks due on or before it.
func (s *Store) ListRechecks(ctx context.Context, dueBy string, limit int) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = ? AND recheck_date != '' AND recheck_date IS NOT NULL AND recheck_verified = 0`
	args := []any{string(StatusDone)}
	if dueBy != "" {
		query += ` AND recheck_date <= ?`
		args = append(args, dueBy)
	}
	query += ` ORDER BY recheck_date ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryTasks(ctx, query, args...)
}

// OpenHoursByAssignee sums estimated hours of non-done tasks per assignee.
func (s *Store) OpenHoursByAssignee(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT assigned_to, SUM(estimated_hours) FROM tasks
		 WHERE status != ? AND assigned_to != '' GROUP BY assigned_to`,
		string(StatusDone))
	if err != nil {
		return nil, fmt.Errorf("workload query: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var name string
		var hours float64
		if err := rows.Scan(&name, &hours); err != nil {
			return nil, err
		}
		out[name] = hours
	}
	return out, rows.Err()
}

// StatusCounts returns the number of tasks per status.
func (s *Store) StatusCounts(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	out := map[TaskStatus]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[TaskStatus(st)] = n
	}
	return out, rows.Err()
}

// CountOpenAtLeast counts non-done tasks at or above the given priority.
func (s *Store) CountOpenAtLeast(ctx context.Context, p Priority) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status != ? AND `+priorityOrder+` <= ?`,
		string(StatusDone), p.Rank(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count open tasks: %w", err)
	}
	return n, nil
}

func notFoundIfNone(res sql.Result, err error, id int64) error {
	if err != nil {
		return fmt.Errorf("update task #%d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task #%d: %w", id, err)
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "task #%d", id)
	}
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*Task, error) {
	var (
		t                                    Task
		desc, ruleID, assignee, role, due    sql.NullString
		recheckType, recheckDate, recheckRes sql.NullString
		status, priority                     string
		verified                             int
		completedAt                          sql.NullTime
	)
	err := sc.Scan(
		&t.ID, &t.Title, &desc, &ruleID, &status, &priority, &assignee, &role,
		&t.EstimatedHours, &t.LoggedHours, &due, &recheckType, &recheckDate, &verified, &recheckRes,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.RuleID = ruleID.String
	t.AssignedTo = assignee.String
	t.AssignedRole = role.String
	t.DueDate = due.String
	t.Status = TaskStatus(status)
	t.Priority = ClampPriority(priority)
	t.RecheckType = RecheckType(recheckType.String)
	t.RecheckDate = recheckDate.String
	t.RecheckVerified = verified != 0
	t.RecheckResult = RecheckResult(recheckRes.String)
	if completedAt.Valid {
		ct := completedAt.Time
		t.CompletedAt = &ct
	}
	return &t, nil
}

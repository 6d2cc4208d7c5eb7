package store

import (
	"strings"
	"time"
)

// TaskStatus is where a task sits on the board.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusBlocked    TaskStatus = "blocked"
	StatusDone       TaskStatus = "done"
)

// Statuses lists every status in board order.
var Statuses = []TaskStatus{StatusPending, StatusInProgress, StatusBlocked, StatusDone}

// ParseStatus accepts a status name, case-insensitively.
func ParseStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusInProgress, StatusBlocked, StatusDone:
		return st, true
	}
	return "", false
}

// Priority is a task's severity tier. "urgent" is read as PriorityCritical.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// ParsePriority accepts a priority name. "urgent" maps to critical.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "urgent":
		return PriorityCritical, true
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return p, true
	}
	return "", false
}

// ClampPriority returns the parsed priority, or medium when s is not one.
func ClampPriority(s string) Priority {
	if p, ok := ParsePriority(s); ok {
		return p
	}
	return PriorityMedium
}

// Rank orders priorities: critical sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// RecheckType tags the kind of fix a task delivers. It decides how long to
// wait before checking that the fix held.
type RecheckType string

const (
	RecheckNone                    RecheckType = ""
	Recheck404Fix                  RecheckType = "404_fix"
	RecheckSitemapFix              RecheckType = "sitemap_fix"
	RecheckCannibalizationFix      RecheckType = "cannibalization_fix"
	RecheckHomepageCannibalization RecheckType = "homepage_cannibalization"
	RecheckIntentMismatch          RecheckType = "intent_mismatch"
	RecheckWeakPage                RecheckType = "weak_page"
	RecheckZeroClick               RecheckType = "zero_click"
	RecheckRankingDrop             RecheckType = "ranking_drop"
)

// DefaultRecheckDays applies to unset and unrecognised recheck types.
const DefaultRecheckDays = 14

// IntervalDays is the wait between completion and recheck.
func (r RecheckType) IntervalDays() int {
	switch r {
	case Recheck404Fix, RecheckSitemapFix:
		return 7
	case RecheckCannibalizationFix, RecheckHomepageCannibalization,
		RecheckIntentMismatch, RecheckWeakPage, RecheckZeroClick:
		return 14
	case RecheckRankingDrop:
		return 28
	}
	return DefaultRecheckDays
}

// RecheckResult is the outcome of verifying a completed task.
type RecheckResult string

const (
	RecheckPass RecheckResult = "pass"
	RecheckFail RecheckResult = "fail"
)

// DateLayout is how calendar dates (recheck, due) are stored and rendered.
const DateLayout = "2006-01-02"

// Task is one unit of remediation work.
type Task struct {
	ID              int64         `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	RuleID          string        `json:"rule_id,omitempty"`
	AssignedTo      string        `json:"assigned_to,omitempty"`
	AssignedRole    string        `json:"assigned_role,omitempty"`
	Status          TaskStatus    `json:"status"`
	Priority        Priority      `json:"priority"`
	EstimatedHours  float64       `json:"estimated_hours"`
	LoggedHours     float64       `json:"logged_hours"`
	DueDate         string        `json:"due_date,omitempty"`
	RecheckType     RecheckType   `json:"recheck_type,omitempty"`
	RecheckDate     string        `json:"recheck_date,omitempty"`
	RecheckVerified bool          `json:"recheck_verified"`
	RecheckResult   RecheckResult `json:"recheck_result,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// NewTask carries the caller-supplied fields for CreateTask.
type NewTask struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	RuleID         string      `json:"rule_id"`
	AssignedTo     string      `json:"assigned_to"`
	AssignedRole   string      `json:"assigned_role"`
	Priority       Priority    `json:"priority"`
	EstimatedHours float64     `json:"estimated_hours"`
	DueDate        string      `json:"due_date"`
	RecheckType    RecheckType `json:"recheck_type"`
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Status   TaskStatus
	Assignee string
}

// Event records something that happened to a task.
type Event struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Actor     string    `json:"actor,omitempty"`
	Type      string    `json:"event_type"` // created, status, assigned, time_logged, completed, recheck_verified
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Source names an upstream data provider.
type Source string

const (
	SourceGA4     Source = "ga4"
	SourceGSC     Source = "gsc"
	SourceAds     Source = "ads"
	SourceSemrush Source = "semrush"
)

// Sources lists every source in ingestion order.
var Sources = []Source{SourceGA4, SourceGSC, SourceAds, SourceSemrush}

// ParseSource accepts a source name, case-insensitively.
func ParseSource(s string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	switch src {
	case SourceGA4, SourceGSC, SourceAds, SourceSemrush:
		return src, true
	}
	return "", false
}

// SnapshotRow is one stored metric row of a (source, segment) snapshot.
type SnapshotRow struct {
	Source     Source             `json:"source"`
	Segment    string             `json:"segment"`
	Dimensions []string           `json:"dimensions"`
	Metrics    map[string]float64 `json:"metrics"`
	FetchedAt  time.Time          `json:"fetched_at"`
}

// Dim returns the named dimension, or "" when the source has no such column.
func (r SnapshotRow) Dim(name string) string {
	spec, ok := snapshotTables[r.Source]
	if !ok {
		return ""
	}
	for i, d := range spec.dims {
		if d == name && i < len(r.Dimensions) {
			return r.Dimensions[i]
		}
	}
	return ""
}

// Metric returns the named metric, 0 when absent.
func (r SnapshotRow) Metric(name string) float64 {
	return r.Metrics[name]
}

// SegmentStatus is the outcome of one segment within an ingestion run.
type SegmentStatus string

const (
	SegmentOK    SegmentStatus = "ok"
	SegmentEmpty SegmentStatus = "empty"
	SegmentError SegmentStatus = "error"
)

// SegmentResult is the per-segment record of an ingestion run.
type SegmentResult struct {
	Segment string        `json:"segment"`
	Rows    int           `json:"rows"`
	Status  SegmentStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// IngestRun tracks one ingestion of one source.
type IngestRun struct {
	ID         string          `json:"id"`
	Source     Source          `json:"source"`
	Status     string          `json:"status"` // running, completed, partial, failed
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Segments   []SegmentResult `json:"segments"`
}

// SegmentInfo summarises what is currently stored for a (source, segment).
type SegmentInfo struct {
	Source    Source    `json:"source"`
	Segment   string    `json:"segment"`
	Rows      int       `json:"rows"`
	FetchedAt time.Time `json:"fetched_at"`
}

package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/errors"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// testStore creates a temporary store with a fixed clock.
func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	s.SetClock(clock.Fixed(testNow))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file not created")
}

func TestCreateTask_Defaults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, NewTask{Title: "Fix 404 on /parts"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), task.ID)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, 1.0, task.EstimatedHours)
	assert.Zero(t, task.LoggedHours)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fix 404 on /parts", got.Title)
	assert.True(t, got.CreatedAt.Equal(testNow))
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.RecheckVerified)
}

func TestCreateTask_EmptyTitleGetsPlaceholder(t *testing.T) {
	s := testStore(t)

	task, err := s.CreateTask(context.Background(), NewTask{Title: "   "})
	require.NoError(t, err)
	assert.Equal(t, PlaceholderTitle, task.Title)
}

func TestCreateTask_UrgentIsCritical(t *testing.T) {
	s := testStore(t)

	task, err := s.CreateTask(context.Background(), NewTask{Title: "Site down", Priority: "URGENT"})
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, task.Priority)
}

func TestCreateTask_NonFiniteEstimateDefaults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, h := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		task, err := s.CreateTask(ctx, NewTask{Title: "t", EstimatedHours: h})
		require.NoError(t, err)
		assert.Equal(t, 1.0, task.EstimatedHours, "est=%v", h)

		got, err := s.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.EstimatedHours, "est=%v", h)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetTask(context.Background(), 999)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestListTasks_Ordering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	at := func(min int) { s.SetClock(clock.Fixed(testNow.Add(time.Duration(min) * time.Minute))) }

	at(0)
	low, _ := s.CreateTask(ctx, NewTask{Title: "low", Priority: PriorityLow})
	at(1)
	oldHigh, _ := s.CreateTask(ctx, NewTask{Title: "old high", Priority: PriorityHigh})
	at(2)
	newHigh, _ := s.CreateTask(ctx, NewTask{Title: "new high", Priority: PriorityHigh})
	at(3)
	crit, _ := s.CreateTask(ctx, NewTask{Title: "critical", Priority: PriorityCritical})
	at(3)
	tieHigh, _ := s.CreateTask(ctx, NewTask{Title: "tie high", Priority: PriorityHigh})
	tieHigh2, _ := s.CreateTask(ctx, NewTask{Title: "tie high 2", Priority: PriorityHigh})

	tasks, err := s.ListTasks(ctx, TaskFilter{})
	require.NoError(t, err)

	var ids []int64
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []int64{crit.ID, tieHigh.ID, tieHigh2.ID, newHigh.ID, oldHigh.ID, low.ID}, ids)
}

func TestListTasks_Filter(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	a, _ := s.CreateTask(ctx, NewTask{Title: "a", AssignedTo: "Dana"})
	s.CreateTask(ctx, NewTask{Title: "b", AssignedTo: "Lee"})
	require.NoError(t, s.UpdateTaskStatus(ctx, a.ID, StatusInProgress))

	byStatus, err := s.ListTasks(ctx, TaskFilter{Status: StatusInProgress})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "a", byStatus[0].Title)

	byAssignee, err := s.ListTasks(ctx, TaskFilter{Assignee: "Lee"})
	require.NoError(t, err)
	require.Len(t, byAssignee, 1)
	assert.Equal(t, "b", byAssignee[0].Title)
}

func TestUpdateTaskStatus_AnyTransition(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	task, _ := s.CreateTask(ctx, NewTask{Title: "t"})

	for _, st := range []TaskStatus{StatusBlocked, StatusPending, StatusInProgress, StatusBlocked} {
		require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, st))
		got, _ := s.GetTask(ctx, task.ID)
		assert.Equal(t, st, got.Status)
	}

	assert.ErrorIs(t, s.UpdateTaskStatus(ctx, 42, StatusDone), errors.ErrNotFound)
}

func TestLogTime_RejectsNonPositive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	task, _ := s.CreateTask(ctx, NewTask{Title: "t"})
	require.NoError(t, s.LogTime(ctx, task.ID, 1.5))

	for _, h := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := s.LogTime(ctx, task.ID, h)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument, "hours=%v", h)
	}

	got, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, 1.5, got.LoggedHours)

	assert.ErrorIs(t, s.LogTime(ctx, 404, 1), errors.ErrNotFound)
}

func TestLogTime_ConcurrentIncrements(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	task, _ := s.CreateTask(ctx, NewTask{Title: "t"})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.LogTime(ctx, task.ID, 0.5)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, _ := s.GetTask(ctx, task.ID)
	assert.Equal(t, 10.0, got.LoggedHours)
}

func TestCompleteAndVerify(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	task, _ := s.CreateTask(ctx, NewTask{Title: "t", RecheckType: Recheck404Fix})

	recheck := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	done, err := s.CompleteTask(ctx, task.ID, recheck)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
	assert.Equal(t, "2026-05-11", done.RecheckDate)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(testNow))

	require.NoError(t, s.VerifyRecheck(ctx, task.ID, false))
	got, _ := s.GetTask(ctx, task.ID)
	assert.True(t, got.RecheckVerified)
	assert.Equal(t, RecheckFail, got.RecheckResult)

	_, err = s.CompleteTask(ctx, 77, recheck)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, s.VerifyRecheck(ctx, 77, true), errors.ErrNotFound)
}

func TestListRechecks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	mk := func(title, date string) int64 {
		task, _ := s.CreateTask(ctx, NewTask{Title: title})
		d, _ := time.Parse(DateLayout, date)
		_, err := s.CompleteTask(ctx, task.ID, d)
		require.NoError(t, err)
		return task.ID
	}
	soon := mk("soon", "2026-05-06")
	later := mk("later", "2026-06-01")
	verified := mk("verified", "2026-05-05")
	require.NoError(t, s.VerifyRecheck(ctx, verified, true))
	s.CreateTask(ctx, NewTask{Title: "open"})

	due, err := s.ListRechecks(ctx, "2026-05-07", 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon, due[0].ID)

	all, err := s.ListRechecks(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []int64{soon, later}, []int64{all[0].ID, all[1].ID})
}

func TestOpenHoursByAssignee(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateTask(ctx, NewTask{Title: "a", AssignedTo: "Dana", EstimatedHours: 10})
	s.CreateTask(ctx, NewTask{Title: "b", AssignedTo: "Dana", EstimatedHours: 5.5})
	done, _ := s.CreateTask(ctx, NewTask{Title: "c", AssignedTo: "Dana", EstimatedHours: 100})
	s.CompleteTask(ctx, done.ID, testNow)
	s.CreateTask(ctx, NewTask{Title: "d", EstimatedHours: 3})

	hours, err := s.OpenHoursByAssignee(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Dana": 15.5}, hours)
}

func TestCountOpenAtLeast(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.CreateTask(ctx, NewTask{Title: "a", Priority: PriorityCritical})
	s.CreateTask(ctx, NewTask{Title: "b", Priority: PriorityHigh})
	s.CreateTask(ctx, NewTask{Title: "c", Priority: PriorityMedium})
	d, _ := s.CreateTask(ctx, NewTask{Title: "d", Priority: PriorityHigh})
	s.CompleteTask(ctx, d.ID, testNow)

	n, err := s.CountOpenAtLeast(ctx, PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFindOpenTaskByTitle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "Fix X"})

	found, err := s.FindOpenTaskByTitle(ctx, "Fix X")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, task.ID, found.ID)

	missing, err := s.FindOpenTaskByTitle(ctx, "fix x")
	require.NoError(t, err)
	assert.Nil(t, missing, "match is case-sensitive")

	s.CompleteTask(ctx, task.ID, testNow)
	gone, err := s.FindOpenTaskByTitle(ctx, "Fix X")
	require.NoError(t, err)
	assert.Nil(t, gone, "done tasks are not dedup candidates")
}

func TestEvents(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	task, _ := s.CreateTask(ctx, NewTask{Title: "t"})
	s.LogTime(ctx, task.ID, 2)
	s.CompleteTask(ctx, task.ID, testNow)

	events, err := s.GetEvents(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"created", "time_logged", "completed"},
		[]string{events[0].Type, events[1].Type, events[2].Type})

	recent, err := s.RecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "completed", recent[0].Type)
}

func TestAddColumnIfMissing_UpgradesOldSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")

	// A database from before recheck tracking and without the newer GSC metrics.
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
	CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT NOT NULL, description TEXT DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending', priority TEXT NOT NULL DEFAULT 'medium',
		assigned_to TEXT DEFAULT '', estimated_hours REAL NOT NULL DEFAULT 1,
		logged_hours REAL NOT NULL DEFAULT 0, created_at DATETIME NOT NULL, updated_at DATETIME NOT NULL);
	CREATE TABLE gsc_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT, segment TEXT NOT NULL, fetched_at DATETIME NOT NULL,
		query TEXT NOT NULL DEFAULT '', page TEXT NOT NULL DEFAULT '', clicks INTEGER NOT NULL DEFAULT 0);
	INSERT INTO gsc_snapshots (segment, fetched_at, query, page, clicks) VALUES ('28d', '2026-01-01 00:00:00', 'q', '/p', 3);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	cols, err := s.columns(ctx, "tasks")
	require.NoError(t, err)
	for _, c := range []string{"recheck_type", "recheck_date", "recheck_verified", "recheck_result", "completed_at", "rule_id"} {
		assert.True(t, cols[c], "tasks.%s should have been added", c)
	}

	rows, err := s.ReadLatestSnapshot(ctx, SourceGSC, "28d", "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3.0, rows[0].Metric("clicks"))
	assert.Zero(t, rows[0].Metric("impressions"), "new column defaults to 0")
}

func gscRow(query, page string, impressions float64) SnapshotRow {
	return SnapshotRow{
		Dimensions: []string{query, page},
		Metrics:    map[string]float64{"impressions": impressions, "clicks": 1, "ctr": 0.0123, "position": 4.5},
	}
}

func TestReplaceSegment_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rows := []SnapshotRow{gscRow("blue trailer", "/a", 100), gscRow("red trailer", "/b", 50)}
	for range 2 {
		n, err := s.ReplaceSegment(ctx, SourceGSC, "28d", rows)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}

	got, err := s.ReadLatestSnapshot(ctx, SourceGSC, "28d", "impressions DESC", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "blue trailer", got[0].Dim("query"))
	assert.Equal(t, "/a", got[0].Dim("page"))
	assert.Equal(t, 0.0123, got[0].Metric("ctr"))
	assert.True(t, got[0].FetchedAt.Equal(testNow))
}

func TestEnsureSnapshotSchema_RecreatesDroppedTable(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `DROP TABLE gsc_snapshots`)
	require.NoError(t, err)

	require.NoError(t, s.EnsureSnapshotSchema(ctx, SourceGSC))
	require.NoError(t, s.EnsureSnapshotSchema(ctx, SourceGSC))

	n, err := s.ReplaceSegment(ctx, SourceGSC, "28d", []SnapshotRow{gscRow("q", "/p", 10)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ReplaceSegment(ctx, SourceGSC, "28d", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	got, err := s.ReadLatestSnapshot(ctx, SourceGSC, "28d", "", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplaceSegment_SegmentsIndependent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.ReplaceSegment(ctx, SourceGSC, "28d", []SnapshotRow{gscRow("a", "/a", 1)})
	require.NoError(t, err)
	_, err = s.ReplaceSegment(ctx, SourceGSC, "90d", []SnapshotRow{gscRow("b", "/b", 1), gscRow("c", "/c", 1)})
	require.NoError(t, err)

	// Replacing 28d with nothing leaves 90d untouched.
	_, err = s.ReplaceSegment(ctx, SourceGSC, "28d", nil)
	require.NoError(t, err)

	r28, _ := s.ReadLatestSnapshot(ctx, SourceGSC, "28d", "", 0)
	r90, _ := s.ReadLatestSnapshot(ctx, SourceGSC, "90d", "", 0)
	assert.Empty(t, r28)
	assert.Len(t, r90, 2)

	inv, err := s.SnapshotInventory(ctx)
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, SegmentInfo{Source: SourceGSC, Segment: "90d", Rows: 2, FetchedAt: inv[0].FetchedAt}, inv[0])
	assert.Equal(t, testNow.Unix(), inv[0].FetchedAt.Unix())
}

func TestReadLatestSnapshot_OrderAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rows := []SnapshotRow{
		{Dimensions: []string{"/a"}, Metrics: map[string]float64{"sessions": 10}},
		{Dimensions: []string{"/b"}, Metrics: map[string]float64{"sessions": 30}},
		{Dimensions: []string{"/c"}, Metrics: map[string]float64{"sessions": 20}},
	}
	_, err := s.ReplaceSegment(ctx, SourceGA4, "28d", rows)
	require.NoError(t, err)

	got, err := s.ReadLatestSnapshot(ctx, SourceGA4, "28d", "sessions desc", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/b", got[0].Dim("page_path"))
	assert.Equal(t, "/c", got[1].Dim("page_path"))

	_, err = s.ReadLatestSnapshot(ctx, SourceGA4, "28d", "sessions; DROP TABLE tasks", 0)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = s.ReadLatestSnapshot(ctx, SourceGA4, "28d", "nope", 0)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	_, err = s.ReadLatestSnapshot(ctx, Source("bing"), "28d", "", 0)
	assert.ErrorIs(t, err, errors.ErrUnknownSource)
}

func TestIngestRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run, err := s.StartIngestRun(ctx, SourceGA4)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)

	run.Status = "partial"
	run.Segments = []SegmentResult{
		{Segment: "28d", Rows: 12, Status: SegmentOK},
		{Segment: "28d_previous", Status: SegmentError, Error: "upstream error"},
	}
	require.NoError(t, s.FinishIngestRun(ctx, run))

	runs, err := s.ListIngestRuns(ctx, SourceGA4, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "partial", runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, run.Segments, runs[0].Segments)

	none, err := s.ListIngestRuns(ctx, SourceAds, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecheckIntervals(t *testing.T) {
	tests := []struct {
		typ  RecheckType
		days int
	}{
		{Recheck404Fix, 7},
		{RecheckSitemapFix, 7},
		{RecheckCannibalizationFix, 14},
		{RecheckHomepageCannibalization, 14},
		{RecheckIntentMismatch, 14},
		{RecheckWeakPage, 14},
		{RecheckZeroClick, 14},
		{RecheckRankingDrop, 28},
		{RecheckNone, 14},
		{RecheckType("meta_rewrite"), 14},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.days, tt.typ.IntervalDays(), "recheck type %q", tt.typ)
	}
}

func TestParsers(t *testing.T) {
	p, ok := ParsePriority("Urgent")
	assert.True(t, ok)
	assert.Equal(t, PriorityCritical, p)
	assert.Equal(t, PriorityMedium, ClampPriority("whenever"))
	assert.Less(t, PriorityCritical.Rank(), PriorityLow.Rank())

	st, ok := ParseStatus("IN_PROGRESS")
	assert.True(t, ok)
	assert.Equal(t, StatusInProgress, st)
	_, ok = ParseStatus("cancelled")
	assert.False(t, ok)

	src, ok := ParseSource("GSC")
	assert.True(t, ok)
	assert.Equal(t, SourceGSC, src)
}

package prompt

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/store"
)

var today = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func gsc(query, page string, clicks, impressions float64) store.SnapshotRow {
	return store.SnapshotRow{
		Dimensions: []string{query, page},
		Metrics:    map[string]float64{"clicks": clicks, "impressions": impressions, "ctr": 0.1, "position": 4.26},
	}
}

func ga4(page string, sessions, engaged, conversions float64) store.SnapshotRow {
	return store.SnapshotRow{
		Dimensions: []string{page},
		Metrics: map[string]float64{
			"sessions":         sessions,
			"pageviews":        sessions * 2,
			"engaged_sessions": engaged,
			"conversions":      conversions,
		},
	}
}

func testBuilder(t *testing.T) (*Builder, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.Fixed(today)
	s.SetClock(c)

	cfg := config.DefaultConfig()
	cfg.RulesFile = filepath.Join(dir, "system-prompt.txt")
	cfg.Team = []config.Member{{Name: "Dana", Role: "SEO Lead"}, {Name: "Lee", Role: "Developer"}}

	b := board.New(s, cfg.Team, c, zerolog.Nop())
	return New(s, b, cfg, c, zerolog.Nop()), s
}

func TestBuild_Sections(t *testing.T) {
	bld, s := testBuilder(t)
	ctx := context.Background()

	_, err := s.ReplaceSegment(ctx, store.SourceGSC, "28d", []store.SnapshotRow{
		gsc("blue trailer", "/a", 10, 100),
		gsc("blue trailer", "/b", 5, 50),
		gsc("red trailer", "/a", 20, 12345),
	})
	require.NoError(t, err)
	_, err = s.ReplaceSegment(ctx, store.SourceGA4, "28d", []store.SnapshotRow{ga4("/x", 100, 60, 2)})
	require.NoError(t, err)
	_, err = s.ReplaceSegment(ctx, store.SourceGA4, "28d_previous", []store.SnapshotRow{ga4("/x", 80, 40, 1)})
	require.NoError(t, err)
	_, err = s.ReplaceSegment(ctx, store.SourceAds, "campaign", []store.SnapshotRow{{
		Dimensions: []string{"1", "Horse Trailers", "", "", "", "", "ENABLED", ""},
		Metrics:    map[string]float64{"cost_micros": 1234560000, "clicks": 300, "conversions": 4.5},
	}})
	require.NoError(t, err)

	_, err = s.CreateTask(ctx, store.NewTask{Title: "Fix 404s", AssignedTo: "Lee", Priority: "high", EstimatedHours: 3})
	require.NoError(t, err)
	done, err := s.CreateTask(ctx, store.NewTask{Title: "Merge blue pages", RecheckType: store.RecheckCannibalizationFix})
	require.NoError(t, err)
	_, err = s.CompleteTask(ctx, done.ID, today.AddDate(0, 0, 2))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(bld.cfg.RulesFile, []byte("RULES: be concise.\n"), 0o644))

	out, err := bld.Build(ctx, User{Name: "Dana", Role: "SEO Lead"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "You are Logiri, an SEO intelligence assistant built specifically for Double D Trailers (doubledtrailers.com)."))
	assert.Contains(t, out, "Today is Tuesday, March 10, 2026.")
	assert.Contains(t, out, "CURRENT USER: Dana | Role: SEO Lead")
	assert.Contains(t, out, "- Lee | Role: Developer")
	assert.Contains(t, out, "Organic Keywords: N/A")
	assert.Contains(t, out, `- "red trailer" | Page: /a | Clicks: 20 | Impressions: 12,345 | Position: 4.3`)
	assert.Contains(t, out, "- /x | Sessions: 100 | Pageviews: 200 | Engagement: 60.0% | Conversions: 2")
	assert.Contains(t, out, "- /x | Sessions: 100 (+20) | Conversions: 2 (+1)")
	assert.Contains(t, out, `- "blue trailer" | Pages: 2 (/a, /b) | Impressions: 150 | Clicks: 15`)
	assert.NotContains(t, out, `"red trailer" | Pages:`)
	assert.Contains(t, out, "- Horse Trailers | Spend: $1,234.56 | Clicks: 300 | Conversions: 4.5 | Status: ENABLED")
	assert.Contains(t, out, "- Lee (Developer): 3/40h | OK")
	assert.Contains(t, out, "- [HIGH] Fix 404s | Assigned: Lee | Status: pending | Time: 0/3h")
	assert.Contains(t, out, "- Task: Merge blue pages | Recheck due: 2026-03-12 | Type: cannibalization_fix | Assigned: Unassigned")
	assert.Contains(t, out, OpenMarker)
	assert.True(t, strings.HasSuffix(out, "RULES: be concise."))

	// Sections keep their order.
	order := []string{"CURRENT USER", "TEAM:", "SEMrush Overview", "Top GSC Queries", "Top GA4 Pages",
		"Period Comparison", "Keyword Cannibalization", "Google Ads Campaigns", "TEAM WORKLOAD",
		"ACTIVE TASKS IN SYSTEM", "PENDING VERIFICATION RECHECKS", "TASK CREATION", "RULES:"}
	last := -1
	for _, h := range order {
		i := strings.Index(out, h)
		require.Greater(t, i, last, h)
		last = i
	}
}

func TestBuild_EmptyStore(t *testing.T) {
	bld, _ := testBuilder(t)
	out, err := bld.Build(context.Background(), User{})
	require.NoError(t, err)

	assert.Contains(t, out, "CURRENT USER: User | Role: Owner")
	assert.NotContains(t, out, "Top GSC Queries")
	assert.NotContains(t, out, "ACTIVE TASKS IN SYSTEM")
	assert.True(t, strings.HasSuffix(out, CloseMarker+"\nDo not repeat a task that is already listed under ACTIVE TASKS IN SYSTEM. Assign tasks only to team members listed above."))
}

func TestRender_Caps(t *testing.T) {
	d := &Data{Today: today}
	for i := range 30 {
		d.Queries = append(d.Queries, store.SnapshotRow{
			Source:     store.SourceGSC,
			Dimensions: []string{"q", "/p"},
			Metrics:    map[string]float64{"impressions": float64(100 - i)},
		})
	}
	for range 15 {
		d.Tasks = append(d.Tasks, store.Task{Title: "t", Priority: store.PriorityLow, Status: store.StatusPending})
	}
	out := Render(config.Site{}, User{}, d)

	assert.Equal(t, TopQueries, strings.Count(out, `- "q" | Page: /p`))
	assert.Equal(t, ActiveTasks, strings.Count(out, "- [LOW] t | Assigned: Unassigned | Status: pending"))
}

func TestHours(t *testing.T) {
	assert.Equal(t, "2", hours(2))
	assert.Equal(t, "2.5", hours(2.5))
	assert.Equal(t, "0", hours(0))
	assert.Equal(t, "1.25", hours(1.25))
}

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/store"
)

func gsc(query, page string, impressions, clicks float64) store.SnapshotRow {
	return store.SnapshotRow{
		Source:     store.SourceGSC,
		Segment:    "28d",
		Dimensions: []string{query, page},
		Metrics:    map[string]float64{"impressions": impressions, "clicks": clicks},
	}
}

func ga4(page string, sessions, conversions float64) store.SnapshotRow {
	return store.SnapshotRow{
		Source:     store.SourceGA4,
		Dimensions: []string{page},
		Metrics:    map[string]float64{"sessions": sessions, "conversions": conversions},
	}
}

func TestCannibalization_Grouping(t *testing.T) {
	rows := []store.SnapshotRow{
		gsc("blue trailer", "/a", 100, 5),
		gsc("blue trailer", "/b", 40, 1),
		gsc("red trailer", "/a", 900, 30),
	}

	got := Cannibalization(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "blue trailer", got[0].Query)
	assert.Equal(t, 2, got[0].PageCount)
	assert.Equal(t, []string{"/a", "/b"}, got[0].Pages)
	assert.Equal(t, 140.0, got[0].Impressions)
	assert.Equal(t, 6.0, got[0].Clicks)
}

func TestCannibalization_SortAndDuplicates(t *testing.T) {
	rows := []store.SnapshotRow{
		gsc("b", "/1", 10, 0),
		gsc("b", "/2", 10, 0),
		gsc("a", "/1", 10, 0),
		gsc("a", "/2", 10, 0),
		gsc("c", "/1", 50, 0),
		gsc("c", "/1", 50, 0), // same page twice counts once
		gsc(PageAggregateQuery, "/1", 1000, 0),
		gsc(PageAggregateQuery, "/2", 1000, 0),
	}

	got := Cannibalization(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Query, "equal impressions sort by query")
	assert.Equal(t, "b", got[1].Query)
}

func TestCannibalization_Empty(t *testing.T) {
	assert.Empty(t, Cannibalization(nil))
}

func TestComparePeriods(t *testing.T) {
	current := []store.SnapshotRow{ga4("/x", 100, 2), ga4("/new", 5, 0)}
	previous := []store.SnapshotRow{ga4("/x", 80, 1), ga4("/gone", 60, 3)}

	got := ComparePeriods(current, previous)
	require.Len(t, got, 2)

	x := got[0]
	assert.Equal(t, "/x", x.Page)
	require.NotNil(t, x.SessionDelta)
	require.NotNil(t, x.ConversionDelta)
	assert.Equal(t, 20.0, *x.SessionDelta)
	assert.Equal(t, 1.0, *x.ConversionDelta)
	assert.Equal(t, 80.0, *x.PreviousSessions)

	fresh := got[1]
	assert.Equal(t, "/new", fresh.Page)
	assert.Nil(t, fresh.SessionDelta, "missing previous is not a zero delta")
	assert.Nil(t, fresh.ConversionDelta)
	assert.Nil(t, fresh.PreviousSessions)
}

func TestEngagementRate(t *testing.T) {
	assert.Equal(t, 0.0, EngagementRate(5, 0))
	assert.Equal(t, 66.7, EngagementRate(2, 3))
	assert.Equal(t, 50.0, EngagementRate(50, 100))
	assert.Equal(t, 100.0, EngagementRate(7, 7))
}

func TestTop(t *testing.T) {
	s := []int{1, 2, 3}
	assert.Equal(t, []int{1, 2}, Top(s, 2))
	assert.Equal(t, []int{1, 2, 3}, Top(s, 10))
	assert.Empty(t, Top(s, 0))
}

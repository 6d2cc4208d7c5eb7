// Package analysis derives the secondary views the assistant reads from
// stored snapshots. Everything here is a pure function of its inputs.
package analysis

import (
	"math"
	"sort"

	"github.com/imkarma/logiri/internal/store"
)

// PageAggregateQuery marks GSC page-level rows, which carry no query.
const PageAggregateQuery = "__PAGE_AGGREGATE__"

// Candidate is a query answered by more than one page.
type Candidate struct {
	Query       string   `json:"query"`
	PageCount   int      `json:"page_count"`
	Pages       []string `json:"pages"`
	Impressions float64  `json:"impressions"`
	Clicks      float64  `json:"clicks"`
}

// Cannibalization groups GSC query+page rows by query and keeps the queries
// ranking with two or more distinct pages, by impressions descending.
func Cannibalization(rows []store.SnapshotRow) []Candidate {
	type group struct {
		c     Candidate
		pages map[string]bool
	}
	groups := map[string]*group{}
	for _, r := range rows {
		q := r.Dim("query")
		if q == "" || q == PageAggregateQuery {
			continue
		}
		g, ok := groups[q]
		if !ok {
			g = &group{c: Candidate{Query: q}, pages: map[string]bool{}}
			groups[q] = g
		}
		if p := r.Dim("page"); !g.pages[p] {
			g.pages[p] = true
			g.c.Pages = append(g.c.Pages, p)
		}
		g.c.Impressions += r.Metric("impressions")
		g.c.Clicks += r.Metric("clicks")
	}

	var out []Candidate
	for _, g := range groups {
		g.c.PageCount = len(g.pages)
		if g.c.PageCount > 1 {
			out = append(out, g.c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Impressions != out[j].Impressions {
			return out[i].Impressions > out[j].Impressions
		}
		return out[i].Query < out[j].Query
	})
	return out
}

// PeriodDelta compares one page across two GA4 windows. Previous values and
// deltas are nil when the page had no row in the previous window.
type PeriodDelta struct {
	Page                string   `json:"page"`
	Sessions            float64  `json:"sessions"`
	Conversions         float64  `json:"conversions"`
	PreviousSessions    *float64 `json:"previous_sessions"`
	PreviousConversions *float64 `json:"previous_conversions"`
	SessionDelta        *float64 `json:"session_delta"`
	ConversionDelta     *float64 `json:"conversion_delta"`
}

// ComparePeriods joins current and previous GA4 page rows by page path, in
// the order of current.
func ComparePeriods(current, previous []store.SnapshotRow) []PeriodDelta {
	prev := make(map[string]store.SnapshotRow, len(previous))
	for _, r := range previous {
		p := r.Dim("page_path")
		if _, dup := prev[p]; !dup {
			prev[p] = r
		}
	}

	out := make([]PeriodDelta, 0, len(current))
	for _, r := range current {
		d := PeriodDelta{
			Page:        r.Dim("page_path"),
			Sessions:    r.Metric("sessions"),
			Conversions: r.Metric("conversions"),
		}
		if p, ok := prev[d.Page]; ok {
			ps, pc := p.Metric("sessions"), p.Metric("conversions")
			ds, dc := d.Sessions-ps, d.Conversions-pc
			d.PreviousSessions, d.PreviousConversions = &ps, &pc
			d.SessionDelta, d.ConversionDelta = &ds, &dc
		}
		out = append(out, d)
	}
	return out
}

// EngagementRate is engaged/sessions as a percentage with one decimal, or
// 0 when there were no sessions.
func EngagementRate(engaged, sessions float64) float64 {
	if sessions <= 0 {
		return 0
	}
	return math.Round(engaged/sessions*1000) / 10
}

// Top returns at most n leading elements of s.
func Top[T any](s []T, n int) []T {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

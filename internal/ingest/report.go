// Package ingest pulls report rows from the upstream data sources and
// replaces the stored snapshot of each (source, segment).
package ingest

import (
	"context"
	"time"
)

// Window is a trailing date range ending the day before today, shifted back
// by OffsetDays.
type Window struct {
	OffsetDays int
	Days       int
}

// Range returns the inclusive start and end dates for today.
func (w Window) Range(today time.Time) (start, end time.Time) {
	end = today.AddDate(0, 0, -(w.OffsetDays + 1))
	start = today.AddDate(0, 0, -(w.OffsetDays + w.Days))
	return start, end
}

// Field maps an upstream dimension to a stored column.
type Field struct {
	Upstream string
	Column   string
}

// Kind says how an upstream metric is normalized before storage.
type Kind int

const (
	Count    Kind = iota // truncated to an integer
	Ratio                // 4 decimals
	Duration             // 1 decimal
	Money2               // 2 decimals
	Micros               // integer micros, converted only for display
)

// Metric maps an upstream metric to a stored column.
type Metric struct {
	Upstream string
	Column   string
	Kind     Kind
}

// ReportSpec describes one segment fetch.
type ReportSpec struct {
	Segment    string
	Window     Window
	Dimensions []Field
	Metrics    []Metric
	// Fixed sets stored dimensions the report does not return.
	Fixed    map[string]string
	Limit    int
	PageSize int
	// Filter is a source-specific restriction, e.g. the GSC brand term.
	Filter  string
	OrderBy string
	// Resource and Where build the GAQL query for Ads reports.
	Resource string
	Where    []string

	// Start and End are resolved from Window by the pipeline.
	Start time.Time
	End   time.Time
}

// RawRow is one upstream row. Dimensions follow the spec's Dimensions order;
// Metrics are keyed by upstream name.
type RawRow struct {
	Dimensions []string
	Metrics    map[string]float64
}

// Fetcher retrieves the rows of one report.
type Fetcher interface {
	Fetch(ctx context.Context, spec ReportSpec) ([]RawRow, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, spec ReportSpec) ([]RawRow, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, spec ReportSpec) ([]RawRow, error) {
	return f(ctx, spec)
}

// Connector opens a Fetcher for a source. It must fail with
// errors.ErrMissingCredentials before doing any network work when the
// source is not configured, and with the token error when authentication
// fails.
type Connector func(ctx context.Context) (Fetcher, error)

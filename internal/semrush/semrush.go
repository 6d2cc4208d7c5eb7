// Package semrush fetches the domain overview report from the SEMrush
// Analytics API.
package semrush

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

// DefaultBaseURL is the SEMrush Analytics API endpoint.
const DefaultBaseURL = "https://api.semrush.com/"

const maxBody = 1 << 20

// snippetLen caps how much of an upstream body goes into logs and errors.
const snippetLen = 800

func snippet(s string) string {
	if len(s) > snippetLen {
		return s[:snippetLen] + "..."
	}
	return s
}

// Client queries one domain in one regional database.
type Client struct {
	hc       *http.Client
	baseURL  string
	apiKey   string
	database string
	domain   string
	log      zerolog.Logger
}

// NewClient creates a SEMrush client for domain.
func NewClient(hc *http.Client, cfg config.Semrush, domain string, log zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	db := cfg.Database
	if db == "" {
		db = "us"
	}
	return &Client{
		hc:       hc,
		baseURL:  base,
		apiKey:   cfg.APIKey,
		database: db,
		domain:   domain,
		log:      log.With().Str("source", "semrush").Logger(),
	}
}

// columns lists the export columns for spec: dimensions first, then metrics.
func columns(spec ingest.ReportSpec) []string {
	cols := make([]string, 0, len(spec.Dimensions)+len(spec.Metrics))
	for _, d := range spec.Dimensions {
		cols = append(cols, d.Upstream)
	}
	for _, m := range spec.Metrics {
		cols = append(cols, m.Upstream)
	}
	return cols
}

// Fetch runs a domain_ranks request. SEMrush answers with a semicolon
// separated table whose columns follow export_columns.
func (c *Client) Fetch(ctx context.Context, spec ingest.ReportSpec) ([]ingest.RawRow, error) {
	start := time.Now()
	cols := columns(spec)

	q := url.Values{}
	q.Set("type", "domain_ranks")
	q.Set("key", c.apiKey)
	q.Set("export_columns", strings.Join(cols, ","))
	q.Set("domain", c.domain)
	q.Set("database", c.database)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "create request: %v", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// The URL carries the key; keep it out of the error.
		return nil, errors.Wrapf(errors.ErrUpstream, "semrush request: %v", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "read semrush response: %v", err)
	}
	body := strings.TrimSpace(string(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn().Int("status", resp.StatusCode).Str("response", snippet(body)).Msg("upstream returned an error")
		return nil, errors.Wrapf(errors.ErrUpstream, "HTTP %d: %s", resp.StatusCode, snippet(body))
	}
	if strings.HasPrefix(body, "ERROR") {
		// "ERROR 50 :: NOTHING FOUND" means the domain has no data.
		if strings.Contains(body, "NOTHING FOUND") {
			c.log.Warn().Str("domain", c.domain).Msg("0 rows")
			return nil, nil
		}
		return nil, errors.Wrapf(errors.ErrUpstream, "semrush: %s", snippet(body))
	}

	rows, err := parse(body, spec)
	if err != nil {
		return nil, err
	}
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}

	c.log.Info().
		Str("domain", c.domain).
		Str("database", c.database).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("SEMrush report fetched")
	return rows, nil
}

// parse reads the header line and value lines. Values are matched to the
// requested columns by position.
func parse(body string, spec ingest.ReportSpec) ([]ingest.RawRow, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrParse, "semrush csv: %v", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	want := len(spec.Dimensions) + len(spec.Metrics)
	var rows []ingest.RawRow
	for _, rec := range records[1:] {
		if len(rec) < want {
			return nil, errors.Wrapf(errors.ErrParse, "semrush row has %d columns, want %d", len(rec), want)
		}
		row := ingest.RawRow{
			Dimensions: make([]string, len(spec.Dimensions)),
			Metrics:    make(map[string]float64, len(spec.Metrics)),
		}
		for i := range spec.Dimensions {
			row.Dimensions[i] = strings.TrimSpace(rec[i])
		}
		for i, m := range spec.Metrics {
			row.Metrics[m.Upstream] = number(rec[len(spec.Dimensions)+i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// number parses a SEMrush value. Blank cells are zero.
func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, key, "REDACTED")
}

// Register wires the SEMrush connector into p.
func Register(p *ingest.Pipeline, cfg *config.Config, log zerolog.Logger) {
	p.Register(store.SourceSemrush, func(ctx context.Context) (ingest.Fetcher, error) {
		if err := cfg.RequireSemrush(); err != nil {
			return nil, err
		}
		hc := &http.Client{Timeout: cfg.Ingest.Timeout}
		return NewClient(hc, cfg.Semrush, cfg.Site.Domain, log), nil
	})
}

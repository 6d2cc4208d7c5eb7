package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

// DefaultGA4BaseURL is the GA4 Data API root.
const DefaultGA4BaseURL = "https://analyticsdata.googleapis.com/v1beta"

// GA4Client runs GA4 Data API reports.
type GA4Client struct {
	hc         *http.Client
	baseURL    string
	propertyID string
	log        zerolog.Logger
}

// NewGA4Client creates a GA4 client using an authorized HTTP client.
func NewGA4Client(hc *http.Client, cfg config.GA4, log zerolog.Logger) *GA4Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGA4BaseURL
	}
	return &GA4Client{
		hc:         hc,
		baseURL:    strings.TrimSuffix(base, "/"),
		propertyID: cfg.PropertyID,
		log:        log.With().Str("source", "ga4").Logger(),
	}
}

type ga4RunReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Dimensions []nameRef   `json:"dimensions"`
	Metrics    []nameRef   `json:"metrics"`
	OrderBys   []orderBy   `json:"orderBys,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type nameRef struct {
	Name string `json:"name"`
}

type orderBy struct {
	Metric metricOrderBy `json:"metric"`
	Desc   bool          `json:"desc"`
}

type metricOrderBy struct {
	MetricName string `json:"metricName"`
}

type ga4RunReportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
}

// Fetch runs one runReport request for spec.
func (c *GA4Client) Fetch(ctx context.Context, spec ingest.ReportSpec) ([]ingest.RawRow, error) {
	start := time.Now()

	req := ga4RunReportRequest{
		DateRanges: []dateRange{{
			StartDate: spec.Start.Format(store.DateLayout),
			EndDate:   spec.End.Format(store.DateLayout),
		}},
		Limit: spec.Limit,
	}
	for _, d := range spec.Dimensions {
		req.Dimensions = append(req.Dimensions, nameRef{Name: d.Upstream})
	}
	for _, m := range spec.Metrics {
		req.Metrics = append(req.Metrics, nameRef{Name: m.Upstream})
	}
	if spec.OrderBy != "" {
		req.OrderBys = []orderBy{{Metric: metricOrderBy{MetricName: spec.OrderBy}, Desc: true}}
	}

	url := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, c.propertyID)
	log := c.log.With().Str("segment", spec.Segment).Logger()
	log.Debug().Str("property_id", c.propertyID).Int("limit", spec.Limit).Msg("fetching GA4 report")

	data, err := postJSON(ctx, c.hc, url, nil, req, log)
	if err != nil {
		return nil, err
	}

	var resp ga4RunReportResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, errors.Wrapf(errors.ErrParse, "ga4 runReport: %v", err)
	}

	rows := make([]ingest.RawRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.DimensionValues) < len(spec.Dimensions) || len(r.MetricValues) < len(spec.Metrics) {
			log.Warn().
				Int("dimensions", len(r.DimensionValues)).
				Int("metrics", len(r.MetricValues)).
				Msg("skipping malformed GA4 row")
			continue
		}
		row := ingest.RawRow{Metrics: make(map[string]float64, len(spec.Metrics))}
		for i := range spec.Dimensions {
			row.Dimensions = append(row.Dimensions, r.DimensionValues[i].Value)
		}
		for i, m := range spec.Metrics {
			v, err := strconv.ParseFloat(r.MetricValues[i].Value, 64)
			if err != nil {
				log.Warn().Str("metric", m.Upstream).Str("value", r.MetricValues[i].Value).Err(err).Msg("unparseable GA4 metric")
				v = 0
			}
			row.Metrics[m.Upstream] = v
		}
		rows = append(rows, row)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("total_rows", resp.RowCount).
		Dur("duration", time.Since(start)).
		Msg("GA4 report fetched")
	return rows, nil
}

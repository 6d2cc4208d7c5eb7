package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

// DefaultGSCBaseURL is the Search Console API root.
const DefaultGSCBaseURL = "https://www.googleapis.com/webmasters/v3"

// GSCClient runs Search Console searchAnalytics queries.
type GSCClient struct {
	hc      *http.Client
	baseURL string
	siteURL string
	log     zerolog.Logger
}

// NewGSCClient creates a Search Console client using an authorized HTTP client.
func NewGSCClient(hc *http.Client, cfg config.GSC, log zerolog.Logger) *GSCClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultGSCBaseURL
	}
	return &GSCClient{
		hc:      hc,
		baseURL: strings.TrimSuffix(base, "/"),
		siteURL: cfg.SiteURL,
		log:     log.With().Str("source", "gsc").Logger(),
	}
}

type gscQueryRequest struct {
	StartDate             string           `json:"startDate"`
	EndDate               string           `json:"endDate"`
	Dimensions            []string         `json:"dimensions"`
	RowLimit              int              `json:"rowLimit"`
	StartRow              int              `json:"startRow,omitempty"`
	DataState             string           `json:"dataState"`
	DimensionFilterGroups []gscFilterGroup `json:"dimensionFilterGroups,omitempty"`
}

type gscFilterGroup struct {
	Filters []gscFilter `json:"filters"`
}

type gscFilter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

type gscQueryResponse struct {
	Rows []struct {
		Keys        []string `json:"keys"`
		Clicks      float64  `json:"clicks"`
		Impressions float64  `json:"impressions"`
		CTR         float64  `json:"ctr"`
		Position    float64  `json:"position"`
	} `json:"rows"`
}

// Fetch runs the query for spec, paging until a short page or the row limit.
func (c *GSCClient) Fetch(ctx context.Context, spec ingest.ReportSpec) ([]ingest.RawRow, error) {
	endpoint := c.baseURL + "/sites/" + url.QueryEscape(c.siteURL) + "/searchAnalytics/query"
	log := c.log.With().Str("segment", spec.Segment).Logger()

	pageSize := spec.PageSize
	if pageSize <= 0 {
		pageSize = spec.Limit
	}
	dims := make([]string, len(spec.Dimensions))
	for i, d := range spec.Dimensions {
		dims[i] = d.Upstream
	}

	req := gscQueryRequest{
		StartDate:  spec.Start.Format(store.DateLayout),
		EndDate:    spec.End.Format(store.DateLayout),
		Dimensions: dims,
		DataState:  "final",
	}
	if spec.Filter != "" {
		req.DimensionFilterGroups = []gscFilterGroup{{Filters: []gscFilter{{
			Dimension:  "query",
			Operator:   "contains",
			Expression: spec.Filter,
		}}}}
	}

	var rows []ingest.RawRow
	for {
		req.StartRow = len(rows)
		req.RowLimit = min(pageSize, spec.Limit-len(rows))

		data, err := postJSON(ctx, c.hc, endpoint, nil, req, log)
		if err != nil {
			return nil, err
		}
		var resp gscQueryResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, errors.Wrapf(errors.ErrParse, "gsc query: %v", err)
		}

		for _, r := range resp.Rows {
			row := ingest.RawRow{
				Dimensions: r.Keys,
				Metrics: map[string]float64{
					"clicks":      r.Clicks,
					"impressions": r.Impressions,
					"ctr":         r.CTR,
					"position":    r.Position,
				},
			}
			rows = append(rows, row)
		}
		log.Debug().Int("start_row", req.StartRow).Int("page_rows", len(resp.Rows)).Msg("GSC page fetched")

		if len(resp.Rows) < req.RowLimit || len(rows) >= spec.Limit {
			break
		}
	}

	log.Info().Int("rows", len(rows)).Msg("GSC query fetched")
	return rows, nil
}

package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

// DefaultAdsBaseURL is the Google Ads API root.
const DefaultAdsBaseURL = "https://googleads.googleapis.com"

// AdsClient runs GAQL queries through googleAds:searchStream.
type AdsClient struct {
	hc              *http.Client
	baseURL         string
	version         string
	customerID      string
	developerToken  string
	loginCustomerID string
	log             zerolog.Logger
}

// NewAdsClient creates a Google Ads client using an authorized HTTP client.
func NewAdsClient(hc *http.Client, cfg config.Ads, log zerolog.Logger) *AdsClient {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultAdsBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v23"
	}
	return &AdsClient{
		hc:              hc,
		baseURL:         strings.TrimSuffix(base, "/"),
		version:         version,
		customerID:      strings.ReplaceAll(cfg.CustomerID, "-", ""),
		developerToken:  cfg.DeveloperToken,
		loginCustomerID: strings.ReplaceAll(cfg.LoginCustomerID, "-", ""),
		log:             log.With().Str("source", "ads").Logger(),
	}
}

// BuildGAQL renders the query for an Ads report spec.
func BuildGAQL(spec ingest.ReportSpec) string {
	fields := make([]string, 0, len(spec.Dimensions)+len(spec.Metrics))
	for _, d := range spec.Dimensions {
		fields = append(fields, d.Upstream)
	}
	for _, m := range spec.Metrics {
		fields = append(fields, m.Upstream)
	}

	where := append([]string{fmt.Sprintf("segments.date BETWEEN '%s' AND '%s'",
		spec.Start.Format(store.DateLayout), spec.End.Format(store.DateLayout))}, spec.Where...)

	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(fields, ", "))
	b.WriteString(" FROM " + spec.Resource)
	b.WriteString(" WHERE " + strings.Join(where, " AND "))
	if spec.OrderBy != "" {
		b.WriteString(" ORDER BY " + spec.OrderBy)
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}
	return b.String()
}

// Fetch runs the GAQL query for spec.
func (c *AdsClient) Fetch(ctx context.Context, spec ingest.ReportSpec) ([]ingest.RawRow, error) {
	url := fmt.Sprintf("%s/%s/customers/%s/googleAds:searchStream", c.baseURL, c.version, c.customerID)
	headers := map[string]string{"developer-token": c.developerToken}
	if c.loginCustomerID != "" {
		headers["login-customer-id"] = c.loginCustomerID
	}
	log := c.log.With().Str("segment", spec.Segment).Logger()

	query := BuildGAQL(spec)
	log.Debug().Str("gaql", query).Msg("running GAQL query")

	data, err := postJSON(ctx, c.hc, url, headers, map[string]string{"query": query}, log)
	if err != nil {
		return nil, err
	}

	results, err := parseSearchStream(data)
	if err != nil {
		log.Warn().Err(err).Str("response", snippet(data)).Msg("search stream error")
		return nil, err
	}

	rows := make([]ingest.RawRow, 0, len(results))
	for _, r := range results {
		row := ingest.RawRow{Metrics: make(map[string]float64, len(spec.Metrics))}
		for _, d := range spec.Dimensions {
			row.Dimensions = append(row.Dimensions, lookupString(r, d.Upstream))
		}
		for _, m := range spec.Metrics {
			row.Metrics[m.Upstream] = lookupNumber(r, m.Upstream)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		log.Warn().Int("bytes", len(data)).Str("response", snippet(data)).Msg("0 rows")
	} else {
		log.Info().Int("rows", len(rows)).Msg("Ads query fetched")
	}
	return rows, nil
}

type streamBatch struct {
	Results []map[string]any `json:"results"`
	Error   json.RawMessage  `json:"error"`
}

// parseSearchStream accepts either a JSON array of batches or one batch per
// line. Any embedded error object fails the whole response.
func parseSearchStream(data []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var batches []streamBatch
	if trimmed[0] == '{' {
		var single streamBatch
		if err := json.Unmarshal(trimmed, &single); err == nil {
			batches = []streamBatch{single}
		}
	}
	if batches == nil {
		if err := json.Unmarshal(trimmed, &batches); err != nil {
			var perr error
			batches, perr = parseNDJSON(trimmed)
			if perr != nil {
				return nil, perr
			}
		}
	}

	var out []map[string]any
	for _, b := range batches {
		if len(b.Error) > 0 && string(b.Error) != "null" {
			return nil, errors.Wrapf(errors.ErrUpstream, "stream error: %s", streamErrorMessage(b.Error))
		}
		out = append(out, b.Results...)
	}
	return out, nil
}

func parseNDJSON(data []byte) ([]streamBatch, error) {
	var batches []streamBatch
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		line = bytes.TrimPrefix(line, []byte(","))
		line = bytes.TrimSuffix(line, []byte(","))
		if len(line) == 0 || string(line) == "[" || string(line) == "]" {
			continue
		}
		var b streamBatch
		if err := json.Unmarshal(line, &b); err != nil {
			return nil, errors.Wrapf(errors.ErrParse, "search stream line: %v", err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func streamErrorMessage(raw json.RawMessage) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return e.Message
	}
	return snippet(raw)
}

// jsonPath converts a GAQL field (ad_group_criterion.keyword.match_type)
// into the response's camelCase path.
func jsonPath(field string) []string {
	parts := strings.Split(field, ".")
	for i, p := range parts {
		words := strings.Split(p, "_")
		for j := 1; j < len(words); j++ {
			if words[j] != "" {
				words[j] = strings.ToUpper(words[j][:1]) + words[j][1:]
			}
		}
		parts[i] = strings.Join(words, "")
	}
	return parts
}

func lookup(r map[string]any, field string) (any, bool) {
	var cur any = r
	for _, key := range jsonPath(field) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func lookupString(r map[string]any, field string) string {
	v, ok := lookup(r, field)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// lookupNumber reads a metric. int64 metrics arrive as JSON strings.
func lookupNumber(r map[string]any, field string) float64 {
	v, ok := lookup(r, field)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

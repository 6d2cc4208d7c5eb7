package ingest

import (
	"github.com/imkarma/logiri/internal/analysis"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/store"
)

var ga4Metrics = []Metric{
	{"sessions", "sessions", Count},
	{"screenPageViews", "pageviews", Count},
	{"bounceRate", "bounce_rate", Ratio},
	{"averageSessionDuration", "avg_engagement_time", Duration},
	{"engagedSessions", "engaged_sessions", Count},
	{"conversions", "conversions", Count},
}

var gscMetrics = []Metric{
	{"clicks", "clicks", Count},
	{"impressions", "impressions", Count},
	{"ctr", "ctr", Ratio},
	{"position", "position", Duration},
}

var adsMetrics = []Metric{
	{"metrics.impressions", "impressions", Count},
	{"metrics.clicks", "clicks", Count},
	{"metrics.cost_micros", "cost_micros", Micros},
	{"metrics.conversions", "conversions", Money2},
	{"metrics.ctr", "ctr", Ratio},
	{"metrics.average_cpc", "average_cpc", Micros},
}

var semrushMetrics = []Metric{
	{"Rk", "rank", Count},
	{"Or", "organic_keywords", Count},
	{"Ot", "organic_traffic", Count},
	{"Oc", "organic_cost", Money2},
	{"Ad", "adwords_keywords", Count},
	{"At", "adwords_traffic", Count},
	{"Ac", "adwords_cost", Money2},
}

// Reports returns the report-spec table for a source.
func Reports(src store.Source, cfg *config.Config) ([]ReportSpec, error) {
	switch src {
	case store.SourceGA4:
		return ga4Reports(), nil
	case store.SourceGSC:
		return gscReports(cfg.Site.BrandTerm), nil
	case store.SourceAds:
		return adsReports(), nil
	case store.SourceSemrush:
		return []ReportSpec{{
			Segment:    "overview",
			Dimensions: []Field{{"Dn", "domain"}, {"Db", "market"}},
			Metrics:    semrushMetrics,
			Limit:      1,
		}}, nil
	}
	return nil, errors.Wrapf(errors.ErrUnknownSource, "%q", src)
}

func ga4Reports() []ReportSpec {
	pages := []Field{{"pagePath", "page_path"}}
	return []ReportSpec{
		{
			Segment:    "28d",
			Window:     Window{Days: 28},
			Dimensions: pages,
			Metrics:    ga4Metrics,
			Limit:      500,
			OrderBy:    "sessions",
		},
		{
			Segment:    "28d_previous",
			Window:     Window{OffsetDays: 28, Days: 28},
			Dimensions: pages,
			Metrics:    ga4Metrics,
			Limit:      500,
			OrderBy:    "sessions",
		},
		{
			Segment:    "28d_landing",
			Window:     Window{Days: 28},
			Dimensions: []Field{{"landingPage", "page_path"}},
			Metrics:    withoutMetric(ga4Metrics, "screenPageViews"),
			Limit:      200,
			OrderBy:    "sessions",
		},
	}
}

func gscReports(brand string) []ReportSpec {
	queryPage := []Field{{"query", "query"}, {"page", "page"}}
	specs := []ReportSpec{
		{Segment: "28d", Window: Window{Days: 28}, Dimensions: queryPage, Metrics: gscMetrics, Limit: 25000, PageSize: 25000},
		{Segment: "90d", Window: Window{Days: 90}, Dimensions: queryPage, Metrics: gscMetrics, Limit: 25000, PageSize: 25000},
		{
			Segment:    "28d_page",
			Window:     Window{Days: 28},
			Dimensions: []Field{{"page", "page"}},
			Metrics:    gscMetrics,
			Fixed:      map[string]string{"query": analysis.PageAggregateQuery},
			Limit:      5000,
		},
	}
	if brand != "" {
		specs = append(specs, ReportSpec{
			Segment:    "28d_branded",
			Window:     Window{Days: 28},
			Dimensions: queryPage,
			Metrics:    gscMetrics,
			Filter:     brand,
			Limit:      5000,
		})
	}
	return specs
}

func adsReports() []ReportSpec {
	campaign := []Field{
		{"campaign.id", "campaign_id"},
		{"campaign.name", "campaign_name"},
	}
	adGroup := append(append([]Field{}, campaign...),
		Field{"ad_group.id", "ad_group_id"},
		Field{"ad_group.name", "ad_group_name"},
	)
	return []ReportSpec{
		{
			Segment:    "campaign",
			Window:     Window{Days: 30},
			Resource:   "campaign",
			Dimensions: append(append([]Field{}, campaign...), Field{"campaign.status", "status"}),
			Metrics:    adsMetrics,
			Where:      []string{"campaign.status != 'REMOVED'"},
			OrderBy:    "metrics.cost_micros DESC",
			Limit:      1000,
		},
		{
			Segment:  "keyword",
			Window:   Window{Days: 30},
			Resource: "keyword_view",
			Dimensions: append(append([]Field{}, adGroup...),
				Field{"ad_group_criterion.keyword.text", "keyword"},
				Field{"ad_group_criterion.keyword.match_type", "match_type"},
				Field{"ad_group_criterion.status", "status"},
			),
			Metrics: adsMetrics,
			Where:   []string{"ad_group_criterion.status != 'REMOVED'"},
			OrderBy: "metrics.cost_micros DESC",
			Limit:   5000,
		},
		{
			Segment:    "search_term",
			Window:     Window{Days: 30},
			Resource:   "search_term_view",
			Dimensions: append(append([]Field{}, adGroup...), Field{"search_term_view.search_term", "keyword"}),
			Metrics:    adsMetrics,
			OrderBy:    "metrics.clicks DESC",
			Limit:      5000,
		},
		{
			Segment:    "daily_spend",
			Window:     Window{Days: 90},
			Resource:   "customer",
			Dimensions: []Field{{"segments.date", "day"}},
			Metrics:    adsMetrics,
			OrderBy:    "segments.date ASC",
		},
	}
}

func withoutMetric(ms []Metric, upstream string) []Metric {
	out := make([]Metric, 0, len(ms))
	for _, m := range ms {
		if m.Upstream != upstream {
			out = append(out, m)
		}
	}
	return out
}

// Package prompt builds the system prompt the assistant reads before every
// chat turn: who is asking, what the latest snapshots say, and what the team
// is already working on.
package prompt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/imkarma/logiri/internal/analysis"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/store"
)

// View caps. Rows beyond these are dropped, never summarized.
const (
	TopQueries    = 20
	TopPages      = 20
	TopDeltas     = 10
	TopCannibals  = 10
	TopLanding    = 10
	TopBranded    = 10
	TopCampaigns  = 10
	ActiveTasks   = 10
	RecheckLimit  = 5
	dateStampForm = "Monday, January 2, 2006"
)

// OpenMarker and CloseMarker delimit the task directive in a reply.
const (
	OpenMarker  = "<!-- TASKS_JSON -->"
	CloseMarker = "<!-- /TASKS_JSON -->"
)

// User is the person chatting.
type User struct {
	Name string
	Role string
}

// Data is everything the prompt is rendered from.
type Data struct {
	Today           time.Time
	Semrush         []store.SnapshotRow
	Queries         []store.SnapshotRow // gsc 28d
	Pages           []store.SnapshotRow // ga4 28d
	Previous        []store.SnapshotRow // ga4 28d_previous
	Landing         []store.SnapshotRow
	Branded         []store.SnapshotRow
	Campaigns       []store.SnapshotRow
	Cannibalization []analysis.Candidate
	Workload        []board.Workload
	Tasks           []store.Task
	Rechecks        []store.Task
	Roster          []config.Member
	Rules           string
}

// Builder reads the store and renders the system prompt.
type Builder struct {
	store *store.Store
	board *board.Service
	cfg   *config.Config
	clock clock.Clock
	log   zerolog.Logger
}

// New creates a prompt builder.
func New(s *store.Store, b *board.Service, cfg *config.Config, c clock.Clock, log zerolog.Logger) *Builder {
	return &Builder{store: s, board: b, cfg: cfg, clock: c, log: log}
}

type read struct {
	dst     *[]store.SnapshotRow
	src     store.Source
	segment string
	orderBy string
	limit   int
}

// Gather loads the capped views. The full GSC 28d segment is read once for
// cannibalization, which needs every query+page pair.
func (b *Builder) Gather(ctx context.Context) (*Data, error) {
	d := &Data{Today: clock.Today(b.clock), Roster: b.board.Roster()}

	var gscAll []store.SnapshotRow
	reads := []read{
		{&d.Semrush, store.SourceSemrush, "overview", "", 1},
		{&gscAll, store.SourceGSC, "28d", "impressions DESC", 0},
		{&d.Pages, store.SourceGA4, "28d", "sessions DESC", 0},
		{&d.Previous, store.SourceGA4, "28d_previous", "sessions DESC", 0},
		{&d.Landing, store.SourceGA4, "28d_landing", "sessions DESC", TopLanding},
		{&d.Branded, store.SourceGSC, "28d_branded", "impressions DESC", TopBranded},
		{&d.Campaigns, store.SourceAds, "campaign", "cost_micros DESC", TopCampaigns},
	}
	for _, r := range reads {
		rows, err := b.store.ReadLatestSnapshot(ctx, r.src, r.segment, r.orderBy, r.limit)
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", r.src, r.segment, err)
		}
		*r.dst = rows
	}
	d.Queries = analysis.Top(gscAll, TopQueries)
	d.Cannibalization = analysis.Cannibalization(gscAll)

	var err error
	if d.Workload, err = b.board.Workload(ctx); err != nil {
		return nil, err
	}
	if d.Tasks, err = b.store.ListOpenTasks(ctx, ActiveTasks); err != nil {
		return nil, err
	}
	rechecks, err := b.board.PendingRechecks(ctx)
	if err != nil {
		return nil, err
	}
	d.Rechecks = analysis.Top(rechecks, RecheckLimit)

	if path := b.cfg.RulesFile; path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			d.Rules = string(data)
		case os.IsNotExist(err):
			b.log.Debug().Str("path", path).Msg("no rules file")
		default:
			b.log.Warn().Err(err).Str("path", path).Msg("read rules file")
		}
	}
	return d, nil
}

// Build gathers the data and renders the prompt for user.
func (b *Builder) Build(ctx context.Context, user User) (string, error) {
	d, err := b.Gather(ctx)
	if err != nil {
		return "", err
	}
	out := Render(b.cfg.Site, user, d)
	b.log.Debug().Int("bytes", len(out)).Int("tasks", len(d.Tasks)).Msg("built system prompt")
	return out, nil
}

// Render assembles the prompt sections in order, separated by blank lines.
// Empty views are left out.
func Render(site config.Site, user User, d *Data) string {
	p := message.NewPrinter(language.English)
	var parts []string
	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(persona(site))
	add("Today is " + d.Today.Format(dateStampForm) + ".")
	add(userSection(user))
	add(rosterSection(d.Roster))
	add(semrushSection(p, d.Semrush))
	add(querySection(p, analysis.Top(d.Queries, TopQueries)))
	add(pageSection(p, analysis.Top(d.Pages, TopPages)))
	add(deltaSection(p, analysis.Top(analysis.ComparePeriods(d.Pages, d.Previous), TopDeltas)))
	add(cannibalSection(p, analysis.Top(d.Cannibalization, TopCannibals)))
	add(landingSection(p, analysis.Top(d.Landing, TopLanding)))
	add(brandedSection(p, analysis.Top(d.Branded, TopBranded)))
	add(campaignSection(p, analysis.Top(d.Campaigns, TopCampaigns)))
	add(workloadSection(d.Workload))
	add(taskSection(analysis.Top(d.Tasks, ActiveTasks)))
	add(recheckSection(analysis.Top(d.Rechecks, RecheckLimit)))
	add(directiveContract)
	add(strings.TrimSpace(d.Rules))

	return strings.Join(parts, "\n\n")
}

func persona(site config.Site) string {
	name := site.Name
	if name == "" {
		name = "the site"
	}
	if site.Domain != "" {
		name += " (" + site.Domain + ")"
	}
	return "You are Logiri, an SEO intelligence assistant built specifically for " + name + ". " +
		"You help the internal team identify and act on SEO issues using real data from SEMrush, " +
		"Google Search Console, Google Analytics 4 and Google Ads."
}

func userSection(u User) string {
	name, role := u.Name, u.Role
	if name == "" {
		name = "User"
	}
	if role == "" {
		role = "Owner"
	}
	return "CURRENT USER: " + name + " | Role: " + role + "\n" +
		"Personalize your response for this user. Address them by name. Prioritize tasks relevant to their role."
}

func rosterSection(roster []config.Member) string {
	if len(roster) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("TEAM:")
	for _, m := range roster {
		fmt.Fprintf(&sb, "\n- %s | Role: %s", m.Name, m.Role)
	}
	return sb.String()
}

func semrushSection(p *message.Printer, rows []store.SnapshotRow) string {
	var sb strings.Builder
	sb.WriteString("SEMrush Overview:")
	if len(rows) == 0 {
		sb.WriteString("\n- Organic Keywords: N/A\n- Organic Traffic: N/A\n- Last updated: N/A")
		return sb.String()
	}
	r := rows[0]
	p.Fprintf(&sb, "\n- Organic Keywords: %d", int64(r.Metric("organic_keywords")))
	p.Fprintf(&sb, "\n- Organic Traffic: %d", int64(r.Metric("organic_traffic")))
	p.Fprintf(&sb, "\n- Organic Traffic Cost: $%.2f", r.Metric("organic_cost"))
	p.Fprintf(&sb, "\n- SEMrush Rank: %d", int64(r.Metric("rank")))
	sb.WriteString("\n- Last updated: " + r.FetchedAt.Format(time.DateTime))
	return sb.String()
}

func querySection(p *message.Printer, rows []store.SnapshotRow) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Top GSC Queries (last 28 days):")
	for _, r := range rows {
		p.Fprintf(&sb, "\n- %q | Page: %s | Clicks: %d | Impressions: %d | Position: %.1f",
			r.Dim("query"), r.Dim("page"),
			int64(r.Metric("clicks")), int64(r.Metric("impressions")), r.Metric("position"))
	}
	return sb.String()
}

func pageSection(p *message.Printer, rows []store.SnapshotRow) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Top GA4 Pages (last 28 days):")
	for _, r := range rows {
		rate := analysis.EngagementRate(r.Metric("engaged_sessions"), r.Metric("sessions"))
		p.Fprintf(&sb, "\n- %s | Sessions: %d | Pageviews: %d | Engagement: %.1f%% | Conversions: %d",
			r.Dim("page_path"), int64(r.Metric("sessions")), int64(r.Metric("pageviews")),
			rate, int64(r.Metric("conversions")))
	}
	return sb.String()
}

func deltaSection(p *message.Printer, deltas []analysis.PeriodDelta) string {
	if len(deltas) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Period Comparison (last 28 days vs previous 28 days):")
	for _, d := range deltas {
		p.Fprintf(&sb, "\n- %s | Sessions: %d (%s) | Conversions: %d (%s)",
			d.Page, int64(d.Sessions), signed(p, d.SessionDelta),
			int64(d.Conversions), signed(p, d.ConversionDelta))
	}
	return sb.String()
}

func signed(p *message.Printer, v *float64) string {
	if v == nil {
		return "n/a"
	}
	return p.Sprintf("%+d", int64(*v))
}

func cannibalSection(p *message.Printer, cs []analysis.Candidate) string {
	if len(cs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Keyword Cannibalization (queries ranking with multiple pages):")
	for _, c := range cs {
		p.Fprintf(&sb, "\n- %q | Pages: %d (%s) | Impressions: %d | Clicks: %d",
			c.Query, c.PageCount, strings.Join(c.Pages, ", "), int64(c.Impressions), int64(c.Clicks))
	}
	return sb.String()
}

func landingSection(p *message.Printer, rows []store.SnapshotRow) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Top Landing Pages (last 28 days):")
	for _, r := range rows {
		p.Fprintf(&sb, "\n- %s | Sessions: %d | Bounce: %.1f%% | Conversions: %d",
			r.Dim("page_path"), int64(r.Metric("sessions")), r.Metric("bounce_rate")*100, int64(r.Metric("conversions")))
	}
	return sb.String()
}

func brandedSection(p *message.Printer, rows []store.SnapshotRow) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Branded Queries (last 28 days):")
	for _, r := range rows {
		p.Fprintf(&sb, "\n- %q | Clicks: %d | Impressions: %d | Position: %.1f",
			r.Dim("query"), int64(r.Metric("clicks")), int64(r.Metric("impressions")), r.Metric("position"))
	}
	return sb.String()
}

func campaignSection(p *message.Printer, rows []store.SnapshotRow) string {
	if len(rows) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Google Ads Campaigns by spend (last 30 days):")
	for _, r := range rows {
		p.Fprintf(&sb, "\n- %s | Spend: $%.2f | Clicks: %d | Conversions: %.1f | Status: %s",
			r.Dim("campaign_name"), r.Metric("cost_micros")/1e6, int64(r.Metric("clicks")),
			r.Metric("conversions"), r.Dim("status"))
	}
	return sb.String()
}

func workloadSection(ws []board.Workload) string {
	if len(ws) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("TEAM WORKLOAD (open estimated hours / weekly capacity):")
	for _, w := range ws {
		fmt.Fprintf(&sb, "\n- %s (%s): %s/%sh | %s",
			w.Name, w.Role, hours(w.Hours), hours(w.Capacity), w.Level)
	}
	return sb.String()
}

var upper = cases.Upper(language.English)

func taskSection(tasks []store.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("ACTIVE TASKS IN SYSTEM:")
	for _, t := range tasks {
		fmt.Fprintf(&sb, "\n- [%s] %s | Assigned: %s | Status: %s",
			upper.String(string(t.Priority)), t.Title, orUnassigned(t.AssignedTo), t.Status)
		if t.EstimatedHours > 0 {
			fmt.Fprintf(&sb, " | Time: %s/%sh", hours(t.LoggedHours), hours(t.EstimatedHours))
		}
	}
	return sb.String()
}

func recheckSection(tasks []store.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("PENDING VERIFICATION RECHECKS:")
	for _, t := range tasks {
		typ := string(t.RecheckType)
		if typ == "" {
			typ = "general"
		}
		fmt.Fprintf(&sb, "\n- Task: %s | Recheck due: %s | Type: %s | Assigned: %s",
			t.Title, t.RecheckDate, typ, orUnassigned(t.AssignedTo))
	}
	return sb.String()
}

func orUnassigned(s string) string {
	if s == "" {
		return "Unassigned"
	}
	return s
}

// hours renders 2 as "2" and 2.5 as "2.5".
func hours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}

var directiveContract = `TASK CREATION:
End every reply with a task directive block. List the concrete tasks your answer recommends, or [] when there are none:
` + OpenMarker + `
[{"title": "...", "description": "...", "assigned_to": "<team member name>", "priority": "critical|high|medium|low", "estimated_hours": 2, "recheck_type": "404_fix|sitemap_fix|cannibalization_fix|homepage_cannibalization|intent_mismatch|weak_page|zero_click|ranking_drop"}]
` + CloseMarker + `
Do not repeat a task that is already listed under ACTIVE TASKS IN SYSTEM. Assign tasks only to team members listed above.`

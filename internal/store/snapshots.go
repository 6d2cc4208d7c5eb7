package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/imkarma/logiri/internal/errors"
)

type metricColumn struct {
	name    string
	integer bool
}

// snapshotTable describes one source's wide table. Every table also has
// id, segment and fetched_at.
type snapshotTable struct {
	table   string
	dims    []string
	metrics []metricColumn
}

var snapshotTables = map[Source]snapshotTable{
	SourceGA4: {
		table: "ga4_snapshots",
		dims:  []string{"page_path"},
		metrics: []metricColumn{
			{"sessions", true},
			{"pageviews", true},
			{"bounce_rate", false},
			{"avg_engagement_time", false},
			{"engaged_sessions", true},
			{"conversions", true},
		},
	},
	SourceGSC: {
		table: "gsc_snapshots",
		dims:  []string{"query", "page"},
		metrics: []metricColumn{
			{"clicks", true},
			{"impressions", true},
			{"ctr", false},
			{"position", false},
		},
	},
	SourceAds: {
		table: "ads_snapshots",
		dims:  []string{"campaign_id", "campaign_name", "ad_group_id", "ad_group_name", "keyword", "match_type", "status", "day"},
		metrics: []metricColumn{
			{"impressions", true},
			{"clicks", true},
			{"cost_micros", true},
			{"conversions", false},
			{"ctr", false},
			{"average_cpc", true},
		},
	},
	SourceSemrush: {
		table: "semrush_snapshots",
		dims:  []string{"domain", "market"},
		metrics: []metricColumn{
			{"rank", true},
			{"organic_keywords", true},
			{"organic_traffic", true},
			{"organic_cost", false},
			{"adwords_keywords", true},
			{"adwords_traffic", true},
			{"adwords_cost", false},
		},
	},
}

// Dimensions returns the dimension column names for a source, in order.
func Dimensions(src Source) []string {
	return append([]string(nil), snapshotTables[src].dims...)
}

// Metrics returns the metric column names for a source.
func Metrics(src Source) []string {
	spec := snapshotTables[src]
	out := make([]string, len(spec.metrics))
	for i, m := range spec.metrics {
		out[i] = m.name
	}
	return out
}

func tableFor(src Source) (snapshotTable, error) {
	spec, ok := snapshotTables[src]
	if !ok {
		return snapshotTable{}, errors.Wrapf(errors.ErrUnknownSource, "%q", src)
	}
	return spec, nil
}

func (t snapshotTable) columnList() []string {
	cols := append([]string{}, t.dims...)
	for _, m := range t.metrics {
		cols = append(cols, m.name)
	}
	return cols
}

func (t snapshotTable) hasColumn(name string) bool {
	for _, c := range t.columnList() {
		if c == name {
			return true
		}
	}
	return false
}

// EnsureSnapshotSchema creates the source's table and adds any column it is
// missing. It runs from migrate and again at the start of every ingestion
// run.
func (s *Store) EnsureSnapshotSchema(ctx context.Context, src Source) error {
	spec, err := tableFor(src)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS `+spec.table+` (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		segment     TEXT NOT NULL,
		fetched_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_`+spec.table+`_segment ON `+spec.table+`(segment);`)
	if err != nil {
		return fmt.Errorf("create %s: %w", spec.table, err)
	}
	for _, d := range spec.dims {
		if err := s.addColumnIfMissing(ctx, spec.table, d, "TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	for _, m := range spec.metrics {
		def := "REAL NOT NULL DEFAULT 0"
		if m.integer {
			def = "INTEGER NOT NULL DEFAULT 0"
		}
		if err := s.addColumnIfMissing(ctx, spec.table, m.name, def); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceSegment swaps the stored rows of (src, segment) for rows inside a
// single transaction, so readers never see the segment empty mid-way.
// Returns the number of rows written.
func (s *Store) ReplaceSegment(ctx context.Context, src Source, segment string, rows []SnapshotRow) (int, error) {
	spec, err := tableFor(src)
	if err != nil {
		return 0, err
	}
	fetchedAt := s.now()

	cols := spec.columnList()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	insert := `INSERT INTO ` + spec.table + ` (segment, fetched_at, ` + strings.Join(cols, ", ") + `) VALUES (` + placeholders + `)`

	err = s.RunTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+spec.table+` WHERE segment = ?`, segment); err != nil {
			return fmt.Errorf("clear %s/%s: %w", src, segment, err)
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			args := make([]any, 0, len(cols)+2)
			args = append(args, segment, fetchedAt)
			for i := range spec.dims {
				v := ""
				if i < len(r.Dimensions) {
					v = r.Dimensions[i]
				}
				args = append(args, v)
			}
			for _, m := range spec.metrics {
				v := r.Metrics[m.name]
				if m.integer {
					args = append(args, int64(v))
				} else {
					args = append(args, v)
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert %s/%s: %w", src, segment, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ReadLatestSnapshot returns the current rows of (src, segment). orderBy is
// a column name with an optional ASC/DESC suffix ("impressions DESC"); ties
// keep insertion order. limit <= 0 returns every row.
func (s *Store) ReadLatestSnapshot(ctx context.Context, src Source, segment, orderBy string, limit int) ([]SnapshotRow, error) {
	spec, err := tableFor(src)
	if err != nil {
		return nil, err
	}
	order, err := spec.orderClause(orderBy)
	if err != nil {
		return nil, err
	}

	cols := spec.columnList()
	query := `SELECT fetched_at, ` + strings.Join(cols, ", ") + ` FROM ` + spec.table +
		` WHERE segment = ? ORDER BY ` + order
	args := []any{segment}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", src, segment, err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var fetchedAt time.Time
		dims := make([]sql.NullString, len(spec.dims))
		mets := make([]sql.NullFloat64, len(spec.metrics))
		dest := []any{&fetchedAt}
		for i := range dims {
			dest = append(dest, &dims[i])
		}
		for i := range mets {
			dest = append(dest, &mets[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", src, err)
		}

		r := SnapshotRow{
			Source:     src,
			Segment:    segment,
			Dimensions: make([]string, len(dims)),
			Metrics:    make(map[string]float64, len(mets)),
			FetchedAt:  fetchedAt,
		}
		for i, d := range dims {
			r.Dimensions[i] = d.String
		}
		for i, m := range mets {
			r.Metrics[spec.metrics[i].name] = m.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t snapshotTable) orderClause(orderBy string) (string, error) {
	fields := strings.Fields(orderBy)
	if len(fields) == 0 {
		return "id ASC", nil
	}
	col := strings.ToLower(fields[0])
	if !t.hasColumn(col) {
		return "", errors.Wrapf(errors.ErrInvalidArgument, "%s has no column %q", t.table, col)
	}
	dir := "ASC"
	if len(fields) > 1 {
		switch strings.ToUpper(fields[1]) {
		case "ASC":
		case "DESC":
			dir = "DESC"
		default:
			return "", errors.Wrapf(errors.ErrInvalidArgument, "bad sort direction %q", fields[1])
		}
	}
	return col + " " + dir + ", id ASC", nil
}

// SnapshotInventory lists every stored (source, segment) with its row count
// and fetch time.
func (s *Store) SnapshotInventory(ctx context.Context) ([]SegmentInfo, error) {
	var out []SegmentInfo
	for _, src := range Sources {
		spec := snapshotTables[src]
		rows, err := s.db.QueryContext(ctx,
			`SELECT segment, COUNT(*), MAX(fetched_at) FROM `+spec.table+` GROUP BY segment ORDER BY segment`)
		if err != nil {
			return nil, fmt.Errorf("inventory %s: %w", src, err)
		}
		for rows.Next() {
			var (
				info    = SegmentInfo{Source: src}
				fetched sql.NullString
			)
			if err := rows.Scan(&info.Segment, &info.Rows, &fetched); err != nil {
				rows.Close()
				return nil, err
			}
			if fetched.Valid {
				info.FetchedAt = parseStoredTime(fetched.String)
			}
			out = append(out, info)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// parseStoredTime reads a timestamp returned through an aggregate, where
// the driver hands back text instead of time.Time.
func parseStoredTime(v string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

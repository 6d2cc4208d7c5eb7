package ingest

import (
	"math"

	"github.com/imkarma/logiri/internal/store"
)

// Apply normalizes a raw upstream value.
func (k Kind) Apply(v float64) float64 {
	switch k {
	case Count:
		return math.Trunc(v)
	case Ratio:
		return round(v, 4)
	case Duration:
		return round(v, 1)
	case Money2:
		return round(v, 2)
	case Micros:
		return math.Round(v)
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// normalize turns raw rows into stored rows laid out in the source's
// column order.
func normalize(src store.Source, spec ReportSpec, raw []RawRow) []store.SnapshotRow {
	cols := store.Dimensions(src)
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c] = i
	}

	out := make([]store.SnapshotRow, 0, len(raw))
	for _, r := range raw {
		row := store.SnapshotRow{
			Source:     src,
			Segment:    spec.Segment,
			Dimensions: make([]string, len(cols)),
			Metrics:    make(map[string]float64, len(spec.Metrics)),
		}
		for col, v := range spec.Fixed {
			if i, ok := pos[col]; ok {
				row.Dimensions[i] = v
			}
		}
		for i, f := range spec.Dimensions {
			if i >= len(r.Dimensions) {
				break
			}
			if j, ok := pos[f.Column]; ok {
				row.Dimensions[j] = r.Dimensions[i]
			}
		}
		for _, m := range spec.Metrics {
			row.Metrics[m.Column] = m.Kind.Apply(r.Metrics[m.Upstream])
		}
		out = append(out, row)
	}
	return out
}

package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

// Band edges and labels for the numeric reporting fields. A value sits in
// the band whose label names it: exactly 500 is "£500 - £1,000" and an
// organisation registered exactly 365 days ago is "1-2 years". Values at
// or below the first edge are excluded (no band).
var (
	amountBands = bandSpec{
		edges: []float64{-1, 500, 1000, 2000, 5000, 10000, 100000, 1000000, math.Inf(1)},
		labels: []string{
			"Under £500", "£500 - £1,000", "£1,000 - £2,000", "£2k - £5k",
			"£5k - £10k", "£10k - £100k", "£100k - £1m", "Over £1m",
		},
	}
	incomeBands = bandSpec{
		edges: []float64{-1, 10000, 100000, 1000000, 10000000, math.Inf(1)},
		labels: []string{
			"Under £10k", "£10k - £100k", "£100k - £1m", "£1m - £10m", "Over £10m",
		},
	}
	// age band edges in days
	ageBands = bandSpec{
		edges: []float64{-365, 365, 730, 1825, 3650, 9125, 73000},
		labels: []string{
			"Under 1 year", "1-2 years", "2-5 years",
			"5-10 years", "10-25 years", "Over 25 years",
		},
	}
)

type bandSpec struct {
	edges  []float64
	labels []string
}

// label returns the band a value falls into, reporting ok=false for
// values at or below the first edge.
func (b bandSpec) label(v float64) (string, bool) {
	if v <= b.edges[0] {
		return "", false
	}
	for i := len(b.labels) - 1; i >= 1; i-- {
		if v >= b.edges[i] {
			return b.labels[i], true
		}
	}
	return b.labels[0], true
}

// AddExtraFieldsExternal buckets award amount, organisation income and
// organisation age into labelled bands, and defaults the grant programme
// title where the column is missing.
type AddExtraFieldsExternal struct{}

func (s *AddExtraFieldsExternal) Name() string { return "Add extra fields from external data" }

func (s *AddExtraFieldsExternal) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	hasProgramme := tbl.HasColumn(ColProgramme)

	for i := 0; i < tbl.NumRows(); i++ {
		tbl.Set(i, ColAmount+":Bands", bandCell(amountBands, tbl.Value(i, ColAmount)))
		tbl.Set(i, "__org_latest_income_bands", bandCell(incomeBands, tbl.Value(i, "__org_latest_income")))

		var ageBand any
		if age, ok := tbl.Value(i, "__org_age").(time.Duration); ok {
			if label, ok := ageBands.label(age.Hours() / 24); ok {
				ageBand = label
			}
		}
		tbl.Set(i, "__org_age_bands", ageBand)

		if !hasProgramme {
			tbl.Set(i, ColProgramme, "All grants")
		}
	}
	return tbl, nil
}

func bandCell(spec bandSpec, v any) any {
	f, ok := dataset.Float(v)
	if !ok {
		return nil
	}
	label, ok := spec.label(f)
	if !ok {
		return nil
	}
	return label
}

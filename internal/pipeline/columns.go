package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

// CheckColumnNames fixes casing and spacing drift in the required column
// names. It renames only; presence is validated by the next stage.
type CheckColumnNames struct{}

func (s *CheckColumnNames) Name() string { return "Check column names" }

func (s *CheckColumnNames) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	if tbl == nil {
		return nil, nil
	}
	renames := make(map[string]string)
	for _, c := range tbl.Columns() {
		for _, w := range RequiredColumns {
			if normalizeColumnName(c) == normalizeColumnName(w) && c != w {
				renames[c] = w
			}
		}
	}
	tbl.Rename(renames)
	return tbl, nil
}

func normalizeColumnName(c string) string {
	return strings.ToLower(strings.ReplaceAll(c, " ", ""))
}

// CheckColumnsExist validates that all required columns are present after
// renaming. Missing columns are fatal.
type CheckColumnsExist struct{}

func (s *CheckColumnsExist) Name() string { return "Check columns exist" }

func (s *CheckColumnsExist) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	if tbl == nil {
		return nil, eris.New("no dataset loaded (unrecognised file format?)")
	}
	for _, c := range RequiredColumns {
		if !tbl.HasColumn(c) {
			return nil, eris.Errorf("column %s not found in data. Columns: [%s]",
				c, strings.Join(tbl.Columns(), ", "))
		}
	}
	return tbl, nil
}

// awardDateLayouts are the accepted Award Date formats, tried in order.
var awardDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// ParseDate parses a date cell in one of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range awardDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable date %q", s)
}

// CheckColumnTypes coerces Award Date cells to dates. Malformed dates are
// fatal validation errors.
type CheckColumnTypes struct{}

func (s *CheckColumnTypes) Name() string { return "Check column types" }

func (s *CheckColumnTypes) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	for i := 0; i < tbl.NumRows(); i++ {
		switch v := tbl.Value(i, ColAwardDate).(type) {
		case nil, time.Time:
			// already typed or missing
		case string:
			t, err := ParseDate(v)
			if err != nil {
				return nil, err
			}
			tbl.Set(i, ColAwardDate, t)
		default:
			return nil, eris.Errorf("unexpected Award Date value %v in row %d", v, i)
		}
	}
	return tbl, nil
}

// AddExtraColumns derives the award year and the identifier scheme.
type AddExtraColumns struct{}

func (s *AddExtraColumns) Name() string { return "Add extra columns" }

func (s *AddExtraColumns) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	for i := 0; i < tbl.NumRows(); i++ {
		if t, ok := tbl.Value(i, ColAwardDate).(time.Time); ok {
			tbl.Set(i, ColAwardYear, t.Year())
		} else {
			tbl.Set(i, ColAwardYear, nil)
		}

		if id, ok := tbl.Value(i, ColIdentifier).(string); ok {
			tbl.Set(i, ColScheme, OrgIDScheme(id))
		} else {
			tbl.Set(i, ColScheme, nil)
		}
	}
	return tbl, nil
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
	"github.com/tsg-insights/insights-cli/pkg/lookup"
	"github.com/tsg-insights/insights-cli/pkg/postcodes"
)

// FetchPostcodes fills the recipient postal-code column from the merged
// organisation postcode where missing, then fetches geography data for
// every distinct postcode not already cached.
type FetchPostcodes struct {
	Client postcodes.Fetcher
}

func (s *FetchPostcodes) Name() string { return "Look up postcode data" }

func (s *FetchPostcodes) Transform(ctx context.Context, tbl *dataset.Table, c *cache.Cache, progress ProgressFunc) (*dataset.Table, error) {
	hasPostcode := tbl.HasColumn(ColPostcode)
	for i := 0; i < tbl.NumRows(); i++ {
		if hasPostcode && tbl.Value(i, ColPostcode) != nil {
			continue
		}
		tbl.Set(i, ColPostcode, tbl.Value(i, "__org_postcode"))
	}

	pcs := tbl.Distinct(ColPostcode)
	zap.L().Info("pipeline: finding postcode details", zap.Int("count", len(pcs)))

	for k, pc := range pcs {
		progress(k+1, len(pcs))
		if _, ok := c.Postcode[pc]; ok {
			continue
		}
		record, err := s.Client.Postcode(ctx, pc)
		if lookup.IsMalformed(err) {
			zap.L().Debug("pipeline: skipping postcode", zap.String("postcode", pc), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Postcode[pc] = record
	}
	return tbl, nil
}

// MergeGeoData builds one row per cached postcode over the fixed
// geography fields, translates coded values to names via the geocodes
// table, and left-joins the result with a __geo_ prefix. Placeholder
// "(pseudo)" markers are stripped and sentinel 99999999 codes nulled.
type MergeGeoData struct{}

func (s *MergeGeoData) Name() string { return "Add geo data" }

func (s *MergeGeoData) Transform(_ context.Context, tbl *dataset.Table, c *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	geo := dataset.New(append([]string{"postcode"}, PostcodeFields...)...)

	for pc, record := range c.Postcode {
		attrs, _ := nestedValue(record, "data", "attributes").(map[string]any)
		row := map[string]any{"postcode": pc}
		for _, field := range PostcodeFields {
			row[field] = translateGeoValue(c, field, attrs[field])
		}
		geo.Append(row)
	}

	tbl.LeftJoin(geo, ColPostcode, "postcode", "__geo_")
	return tbl, nil
}

// translateGeoValue swaps a coded geography value for its human-readable
// name where the geocodes table knows it; unmatched codes pass through.
func translateGeoValue(c *cache.Cache, field string, v any) any {
	if v == nil {
		return nil
	}
	key := field + "-" + fmt.Sprint(v)
	if name, ok := c.Geocodes[key]; ok {
		v = name
	}

	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.ReplaceAll(s, "(pseudo)", "")
	if strings.HasSuffix(s, "99999999") {
		return nil
	}
	if s == "" {
		return nil
	}
	return s
}

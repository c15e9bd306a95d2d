package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
	"github.com/tsg-insights/insights-cli/pkg/companieshouse"
	"github.com/tsg-insights/insights-cli/pkg/ftc"
	"github.com/tsg-insights/insights-cli/pkg/lookup"
)

// distinctCleanIDs returns the distinct non-empty clean identifiers of
// rows whose scheme satisfies the filter, in row order.
func distinctCleanIDs(tbl *dataset.Table, schemeOK func(string) bool) []string {
	seen := make(map[string]bool)
	var ids []string
	for i := 0; i < tbl.NumRows(); i++ {
		scheme, ok := tbl.Value(i, ColScheme).(string)
		if !ok || !schemeOK(scheme) {
			continue
		}
		id, ok := tbl.Value(i, ColCleanID).(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// LookupCharityDetails fetches registry data for every distinct clean
// identifier with a charity-register scheme. Identifiers already in the
// cache are not re-fetched. A malformed response skips the item; transport
// failures abort the stage.
type LookupCharityDetails struct {
	Client ftc.Fetcher
}

func (s *LookupCharityDetails) Name() string { return "Look up charity data" }

func (s *LookupCharityDetails) Transform(ctx context.Context, tbl *dataset.Table, c *cache.Cache, progress ProgressFunc) (*dataset.Table, error) {
	orgids := distinctCleanIDs(tbl, isCharityScheme)
	zap.L().Info("pipeline: finding charity details", zap.Int("count", len(orgids)))

	for k, orgid := range orgids {
		progress(k+1, len(orgids))
		if _, ok := c.Charity[orgid]; ok {
			continue
		}
		record, err := s.Client.OrgID(ctx, orgid)
		if lookup.IsMalformed(err) {
			zap.L().Debug("pipeline: skipping charity", zap.String("orgid", orgid), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Charity[orgid] = record
	}
	return tbl, nil
}

// LookupCompanyDetails fetches registry data for every distinct GB-COH
// clean identifier that was not already found in the charity register.
// Failure semantics match the charity lookup.
type LookupCompanyDetails struct {
	Client companieshouse.Fetcher
}

func (s *LookupCompanyDetails) Name() string { return "Look up company data" }

func (s *LookupCompanyDetails) Transform(ctx context.Context, tbl *dataset.Table, c *cache.Cache, progress ProgressFunc) (*dataset.Table, error) {
	all := distinctCleanIDs(tbl, func(scheme string) bool { return scheme == "GB-COH" })
	var orgids []string
	for _, id := range all {
		if _, ok := c.Charity[id]; !ok {
			orgids = append(orgids, id)
		}
	}
	zap.L().Info("pipeline: finding company details", zap.Int("count", len(orgids)))

	for k, orgid := range orgids {
		progress(k+1, len(orgids))
		if _, ok := c.Company[orgid]; ok {
			continue
		}
		number := strings.TrimPrefix(orgid, "GB-COH-")
		record, err := s.Client.Company(ctx, number)
		if lookup.IsMalformed(err) {
			zap.L().Debug("pipeline: skipping company", zap.String("orgid", orgid), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Company[orgid] = record
	}
	return tbl, nil
}

package pipeline

import (
	"context"
	"strings"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

// OrgIDScheme derives the registry scheme from an organisation
// identifier: "360G" for publisher-minted ids, otherwise the first two
// dash-separated segments.
func OrgIDScheme(id string) string {
	if strings.HasPrefix(id, "360G-") {
		return "360G"
	}
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return id
	}
	return parts[0] + "-" + parts[1]
}

// CharityNumberToOrgID converts a bare charity number into an org-id:
// Scottish numbers (S-prefixed) register with OSCR, Northern Irish
// (N-prefixed) with CCNI, the rest with the Charity Commission.
func CharityNumberToOrgID(number string) string {
	switch {
	case strings.HasPrefix(number, "S"):
		return "GB-SC-" + number
	case strings.HasPrefix(number, "N"):
		return "GB-NIC-" + number
	default:
		return "GB-CHC-" + number
	}
}

func isCharityScheme(scheme string) bool {
	for _, s := range CharitySchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// CleanRecipientIdentifiers derives the clean identifier used for registry
// lookups. The original identifier is kept when its scheme is one of the
// charity-register schemes; a company-number column overrides it and a
// charity-number column fills any remaining gaps. The scheme is then
// recomputed from the clean id, falling back to the original scheme.
// Running the stage twice yields the same columns as running it once.
type CleanRecipientIdentifiers struct{}

func (s *CleanRecipientIdentifiers) Name() string { return "Clean recipient identifiers" }

func (s *CleanRecipientIdentifiers) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	hasCompanyNumber := tbl.HasColumn(ColCompanyNumber)
	hasCharityNumber := tbl.HasColumn(ColCharityNumber)

	for i := 0; i < tbl.NumRows(); i++ {
		var clean any

		// default: use the existing identifier for known registry schemes.
		// The scheme is derived from the identifier itself rather than the
		// scheme column, which this stage rewrites, so running the stage
		// again reproduces the same result.
		if id, ok := tbl.Value(i, ColIdentifier).(string); ok && isCharityScheme(OrgIDScheme(id)) {
			clean = id
		}

		// fill from company number where present
		if clean == nil && hasCompanyNumber {
			if num, ok := tbl.Value(i, ColCompanyNumber).(string); ok && num != "" {
				clean = "GB-COH-" + num
			}
		}

		// fill from charity number where present
		if clean == nil && hasCharityNumber {
			if num, ok := tbl.Value(i, ColCharityNumber).(string); ok && num != "" {
				clean = CharityNumberToOrgID(num)
			}
		}

		tbl.Set(i, ColCleanID, clean)

		// recompute the scheme from the clean id, keeping the original
		// scheme when the clean id is absent
		if cleanStr, ok := clean.(string); ok {
			tbl.Set(i, ColScheme, OrgIDScheme(cleanStr))
		}
	}
	return tbl, nil
}

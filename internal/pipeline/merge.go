package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

// companyReplace translates the raw Companies House category strings that
// are too unwieldy for reporting.
var companyReplace = map[string]string{
	"PRI/LBG/NSC (Private, Limited by guarantee, no share capital, use of 'Limited' exemption)": "Company Limited by Guarantee",
	"PRI/LTD BY GUAR/NSC (Private, limited by guarantee, no share capital)":                     "Company Limited by Guarantee",
	"PRIV LTD SECT. 30 (Private limited company, section 30 of the Companies Act)":              "Private Limited Company",
}

var orgColumns = []string{
	"orgid", "charity_number", "company_number", "date_registered",
	"date_removed", "postcode", "latest_income", "org_type",
}

// MergeCompanyAndCharityDetails builds one row per cached organisation
// from the charity and company namespaces and left-joins it onto the
// dataset with an __org_ prefix. With nothing cached the dataset passes
// through unchanged.
type MergeCompanyAndCharityDetails struct {
	Now func() time.Time
}

func (s *MergeCompanyAndCharityDetails) Name() string {
	return "Add charity and company details to data"
}

func (s *MergeCompanyAndCharityDetails) Transform(_ context.Context, tbl *dataset.Table, c *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	orgs := dataset.New(orgColumns...)

	// Charity entries only count when the registry returned a usable id.
	for orgid, record := range c.Charity {
		id, _ := record["id"].(string)
		if id == "" {
			continue
		}
		orgs.Append(map[string]any{
			"orgid":           orgid,
			"charity_number":  id,
			"company_number":  charityCompanyNumber(record),
			"date_registered": parseDateCell(record["date_registered"], false),
			"date_removed":    parseDateCell(record["date_removed"], false),
			"postcode":        nestedValue(record, "geo", "postcode"),
			"latest_income":   record["latest_income"],
			"org_type":        "Registered Charity",
		})
	}

	for orgid, record := range c.Company {
		company, _ := record["primaryTopic"].(map[string]any)
		category, _ := nestedValue(company, "CompanyCategory").(string)
		if replacement, ok := companyReplace[category]; ok {
			category = replacement
		}
		var orgType any
		if category != "" {
			orgType = category
		}
		orgs.Append(map[string]any{
			"orgid":           orgid,
			"charity_number":  nil,
			"company_number":  nestedValue(company, "CompanyNumber"),
			"date_registered": parseDateCell(nestedValue(company, "IncorporationDate"), true),
			"date_removed":    parseDateCell(nestedValue(company, "DissolutionDate"), true),
			"postcode":        nestedValue(company, "RegAddress", "Postcode"),
			"latest_income":   nil,
			"org_type":        orgType,
		})
	}

	if orgs.NumRows() == 0 {
		return tbl, nil
	}

	now := s.Now()
	for i := 0; i < orgs.NumRows(); i++ {
		if registered, ok := orgs.Value(i, "date_registered").(time.Time); ok {
			orgs.Set(i, "age", now.Sub(registered))
		} else {
			orgs.Set(i, "age", nil)
		}
		if income, ok := dataset.Float(orgs.Value(i, "latest_income")); ok {
			orgs.Set(i, "latest_income", income)
		} else {
			orgs.Set(i, "latest_income", nil)
		}
	}

	zap.L().Debug("pipeline: merging organisation details", zap.Int("orgs", orgs.NumRows()))
	tbl.LeftJoin(orgs, ColCleanID, "orgid", "__org_")
	return tbl, nil
}

// charityCompanyNumber digs the first linked company number out of a
// charity record.
func charityCompanyNumber(record map[string]any) any {
	numbers, _ := record["company_number"].([]any)
	if len(numbers) == 0 {
		return nil
	}
	first, _ := numbers[0].(map[string]any)
	return nestedValue(first, "number")
}

// nestedValue walks nested maps, returning nil for any missing step or
// empty string leaf.
func nestedValue(m map[string]any, keys ...string) any {
	var v any = m
	for _, k := range keys {
		mm, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = mm[k]
	}
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}

var dayFirstLayouts = []string{"02/01/2006", "2006-01-02"}

// parseDateCell parses a date value from a registry response, nil when
// absent or unparseable. Companies House serves day-first dates.
func parseDateCell(v any, dayFirst bool) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	if dayFirst {
		for _, layout := range dayFirstLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return t
}

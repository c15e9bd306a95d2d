package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

func fixedNow() time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestMergeCharityDetails(t *testing.T) {
	tbl := dataset.New(ColCleanID)
	tbl.Append(map[string]any{ColCleanID: "GB-CHC-123456"})
	tbl.Append(map[string]any{ColCleanID: "GB-CHC-unknown"})

	c := cache.NewCache()
	c.Charity["GB-CHC-123456"] = map[string]any{
		"id":              "123456",
		"date_registered": "2015-01-01",
		"latest_income":   50000.0,
		"geo":             map[string]any{"postcode": "EC1A 1BB"},
		"company_number":  []any{map[string]any{"number": "01234567"}},
	}
	// a failed lookup leaves a record without an id; it must not become a row
	c.Charity["GB-CHC-404"] = map[string]any{"error": "not found"}

	stage := &MergeCompanyAndCharityDetails{Now: fixedNow}
	out, err := stage.Transform(context.Background(), tbl, c, noProgress)
	require.NoError(t, err)

	assert.Equal(t, "123456", out.Value(0, "__org_charity_number"))
	assert.Equal(t, "01234567", out.Value(0, "__org_company_number"))
	assert.Equal(t, "EC1A 1BB", out.Value(0, "__org_postcode"))
	assert.Equal(t, "Registered Charity", out.Value(0, "__org_org_type"))
	assert.Equal(t, 50000.0, out.Value(0, "__org_latest_income"))
	assert.Nil(t, out.Value(0, "__org_date_removed"))

	age, ok := out.Value(0, "__org_age").(time.Duration)
	require.True(t, ok)
	// 2015-01-01 to 2020-01-01 is five years and a leap day
	assert.Equal(t, 1826, int(age.Hours()/24))

	// unmatched rows get the joined columns as nil
	assert.True(t, out.HasColumn("__org_org_type"))
	assert.Nil(t, out.Value(1, "__org_org_type"))
	assert.Nil(t, out.Value(1, "__org_age"))
}

func TestMergeCompanyDetails(t *testing.T) {
	tbl := dataset.New(ColCleanID)
	tbl.Append(map[string]any{ColCleanID: "GB-COH-01234567"})

	c := cache.NewCache()
	c.Company["GB-COH-01234567"] = map[string]any{
		"primaryTopic": map[string]any{
			"CompanyNumber":     "01234567",
			"IncorporationDate": "15/06/2010",
			"CompanyCategory":   "PRI/LBG/NSC (Private, Limited by guarantee, no share capital, use of 'Limited' exemption)",
			"RegAddress":        map[string]any{"Postcode": "M1 1AA"},
		},
	}

	stage := &MergeCompanyAndCharityDetails{Now: fixedNow}
	out, err := stage.Transform(context.Background(), tbl, c, noProgress)
	require.NoError(t, err)

	assert.Equal(t, "01234567", out.Value(0, "__org_company_number"))
	assert.Nil(t, out.Value(0, "__org_charity_number"))
	assert.Equal(t, "M1 1AA", out.Value(0, "__org_postcode"))
	assert.Equal(t, "Company Limited by Guarantee", out.Value(0, "__org_org_type"))

	registered, ok := out.Value(0, "__org_date_registered").(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC), registered)
}

func TestMergeEmptyCachePassesThrough(t *testing.T) {
	tbl := dataset.New(ColCleanID)
	tbl.Append(map[string]any{ColCleanID: "GB-CHC-123456"})

	stage := &MergeCompanyAndCharityDetails{Now: fixedNow}
	out, err := stage.Transform(context.Background(), tbl, cache.NewCache(), noProgress)
	require.NoError(t, err)

	assert.Same(t, tbl, out)
	assert.False(t, out.HasColumn("__org_org_type"))
}

func TestNestedValue(t *testing.T) {
	m := map[string]any{
		"geo": map[string]any{"postcode": "EC1A 1BB", "blank": ""},
	}

	assert.Equal(t, "EC1A 1BB", nestedValue(m, "geo", "postcode"))
	assert.Nil(t, nestedValue(m, "geo", "blank"))
	assert.Nil(t, nestedValue(m, "geo", "missing"))
	assert.Nil(t, nestedValue(m, "missing", "postcode"))
	assert.Nil(t, nestedValue(nil, "geo"))
}

func TestParseDateCell(t *testing.T) {
	got := parseDateCell("2015-01-01", false)
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), got)

	got = parseDateCell("15/06/2010", true)
	assert.Equal(t, time.Date(2010, 6, 15, 0, 0, 0, 0, time.UTC), got)

	assert.Nil(t, parseDateCell(nil, false))
	assert.Nil(t, parseDateCell("", false))
	assert.Nil(t, parseDateCell("garbage", true))
}

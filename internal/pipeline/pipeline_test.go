package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/pkg/lookup"
)

// stubCharity is an ftc.Fetcher backed by fixed records.
type stubCharity struct {
	records map[string]map[string]any
	err     error
	calls   int
}

func (s *stubCharity) OrgID(_ context.Context, orgid string) (map[string]any, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[orgid]
	if !ok {
		return nil, lookup.ErrMalformedResponse
	}
	return record, nil
}

// stubCompany is a companieshouse.Fetcher backed by fixed records keyed by
// company number.
type stubCompany struct {
	records map[string]map[string]any
	calls   int
}

func (s *stubCompany) Company(_ context.Context, number string) (map[string]any, error) {
	s.calls++
	record, ok := s.records[number]
	if !ok {
		return nil, lookup.ErrMalformedResponse
	}
	return record, nil
}

const sampleCSV = `Amount Awarded,Funding Org:0:Name,Award Date,Recipient Org:0:Name,Recipient Org:0:Identifier
750,The Fund,2019-06-01,Acme Trust,GB-CHC-123456
120000,The Fund,2019-07-15,Beta Ltd,GB-COH-01234567
50,The Fund,2019-08-01,Tiny Group,360G-fund-99
`

func testFetchers() (*stubCharity, *stubCompany, *stubPostcodes) {
	charity := &stubCharity{records: map[string]map[string]any{
		"GB-CHC-123456": {
			"id":              "123456",
			"date_registered": "2015-01-01",
			"latest_income":   50000.0,
			"geo":             map[string]any{"postcode": "EC1A 1BB"},
		},
	}}
	company := &stubCompany{records: map[string]map[string]any{
		"01234567": {
			"primaryTopic": map[string]any{
				"CompanyNumber":     "01234567",
				"IncorporationDate": "15/06/2010",
				"CompanyCategory":   "PRI/LTD BY GUAR/NSC (Private, limited by guarantee, no share capital)",
				"RegAddress":        map[string]any{"Postcode": "M1 1AA"},
			},
		},
	}}
	pc := &stubPostcodes{
		records: map[string]map[string]any{
			"EC1A 1BB": postcodeRecord(map[string]any{"ctry": "E92000001", "rgn": "E12000007"}),
			"M1 1AA":   postcodeRecord(map[string]any{"ctry": "E92000001", "rgn": "E12000002"}),
		},
		names: map[string]string{
			"ctry-E92000001": "England",
			"rgn-E12000007":  "London",
			"rgn-E12000002":  "North West",
		},
	}
	return charity, company, pc
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	charity, company, pc := testFetchers()

	p := New(store, charity, company, pc, Options{Now: fixedNow})
	tbl, c, err := p.Run(ctx, RunInput{Contents: []byte(sampleCSV), Filename: "grants.csv"})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())

	// charity row
	assert.Equal(t, "GB-CHC-123456", tbl.Value(0, ColCleanID))
	assert.Equal(t, "Registered Charity", tbl.Value(0, "__org_org_type"))
	assert.Equal(t, "£500 - £1,000", tbl.Value(0, ColAmount+":Bands"))
	assert.Equal(t, "£10k - £100k", tbl.Value(0, "__org_latest_income_bands"))
	assert.Equal(t, "5-10 years", tbl.Value(0, "__org_age_bands"))
	assert.Equal(t, "EC1A 1BB", tbl.Value(0, ColPostcode))
	assert.Equal(t, "England", tbl.Value(0, "__geo_ctry"))
	assert.Equal(t, "London", tbl.Value(0, "__geo_rgn"))
	assert.Equal(t, 2019, tbl.Value(0, ColAwardYear))
	assert.Equal(t, "All grants", tbl.Value(0, ColProgramme))

	// company row
	assert.Equal(t, "Company Limited by Guarantee", tbl.Value(1, "__org_org_type"))
	assert.Equal(t, "£100k - £1m", tbl.Value(1, ColAmount+":Bands"))
	assert.Equal(t, "North West", tbl.Value(1, "__geo_rgn"))

	// publisher-minted identifier matches nothing
	assert.Nil(t, tbl.Value(2, ColCleanID))
	assert.Nil(t, tbl.Value(2, "__org_org_type"))
	assert.Equal(t, "Under £500", tbl.Value(2, ColAmount+":Bands"))

	assert.Len(t, c.Charity, 1)
	assert.Len(t, c.Company, 1)
	assert.Len(t, c.Postcode, 2)
	assert.Equal(t, "England", c.Geocodes["ctry-E92000001"])

	// the cache blob is persisted
	saved, err := cache.Load(ctx, store)
	require.NoError(t, err)
	assert.Len(t, saved.Charity, 1)
	assert.Len(t, saved.Postcode, 2)
}

func TestRunReusesCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	charity, company, pc := testFetchers()

	p := New(store, charity, company, pc, Options{Now: fixedNow})
	in := RunInput{Contents: []byte(sampleCSV), Filename: "grants.csv"}

	_, _, err := p.Run(ctx, in)
	require.NoError(t, err)
	firstCharity := charity.calls
	firstCompany := company.calls
	firstPostcode := pc.calls

	_, _, err = p.Run(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, firstCharity, charity.calls)
	assert.Equal(t, firstCompany, company.calls)
	assert.Equal(t, firstPostcode, pc.calls)
}

func TestRunStageFailureSavesCache(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory()
	charity, company, pc := testFetchers()
	charity.err = eris.New("connection refused")

	p := New(store, charity, company, pc, Options{Now: fixedNow, SaveCacheOnError: true})
	_, _, err := p.Run(ctx, RunInput{Contents: []byte(sampleCSV), Filename: "grants.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Look up charity data")

	// the geocode table fetched before the failure survives for the next run
	saved, err := cache.Load(ctx, store)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Geocodes)
}

func TestRunMissingColumns(t *testing.T) {
	ctx := context.Background()
	charity, company, pc := testFetchers()

	p := New(cache.NewMemory(), charity, company, pc, Options{})
	_, _, err := p.Run(ctx, RunInput{Contents: []byte("a,b\n1,2\n"), Filename: "bad.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in data")
}

func TestRunUnrecognisedFormat(t *testing.T) {
	ctx := context.Background()
	charity, company, pc := testFetchers()

	p := New(cache.NewMemory(), charity, company, pc, Options{})
	_, _, err := p.Run(ctx, RunInput{Contents: []byte("hello"), Filename: "grants.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset loaded")
}

func TestRunReportsProgress(t *testing.T) {
	ctx := context.Background()
	charity, company, pc := testFetchers()

	sink := &recordingSink{}
	p := New(cache.NewMemory(), charity, company, pc, Options{Sink: sink, Now: fixedNow})
	_, _, err := p.Run(ctx, RunInput{Contents: []byte(sampleCSV), Filename: "grants.csv"})
	require.NoError(t, err)

	require.Len(t, sink.stages, 12)
	assert.Equal(t, "Load data to be prepared", sink.stages[0])
	assert.Equal(t, 12, sink.lastStage)
	assert.NotEmpty(t, sink.items)
}

type recordingSink struct {
	stages    []string
	lastStage int
	items     [][2]int
}

func (s *recordingSink) SetStages(names []string) { s.stages = names }
func (s *recordingSink) SetStage(index int)       { s.lastStage = index }
func (s *recordingSink) SetItemProgress(done, total int) {
	s.items = append(s.items, [2]int{done, total})
}

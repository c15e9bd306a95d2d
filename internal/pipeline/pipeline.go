// Package pipeline implements the twelve-stage grant enrichment pipeline:
// load, validate, normalise identifiers, look up external registry data,
// merge it back onto the dataset, and band the numeric fields.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
	"github.com/tsg-insights/insights-cli/pkg/companieshouse"
	"github.com/tsg-insights/insights-cli/pkg/ftc"
	"github.com/tsg-insights/insights-cli/pkg/postcodes"
)

// Canonical column names of the 360Giving grant schema.
const (
	ColAmount        = "Amount Awarded"
	ColFunderName    = "Funding Org:0:Name"
	ColAwardDate     = "Award Date"
	ColRecipientName = "Recipient Org:0:Name"
	ColIdentifier    = "Recipient Org:0:Identifier"
	ColScheme        = "Recipient Org:0:Identifier:Scheme"
	ColCleanID       = "Recipient Org:0:Identifier:Clean"
	ColAwardYear     = "Award Date:Year"
	ColCompanyNumber = "Recipient Org:0:Company Number"
	ColCharityNumber = "Recipient Org:0:Charity Number"
	ColPostcode      = "Recipient Org:0:Postal Code"
	ColProgramme     = "Grant Programme:0:Title"
)

// RequiredColumns must all exist after the rename stage.
var RequiredColumns = []string{
	ColAmount, ColFunderName, ColAwardDate, ColRecipientName, ColIdentifier,
}

// CharitySchemes are the identifier schemes findthatcharity has data for.
var CharitySchemes = []string{"GB-CHC", "GB-NIC", "GB-SC", "GB-COH"}

// PostcodeFields are the geography attributes kept from postcode lookups.
var PostcodeFields = []string{
	"ctry", "cty", "laua", "pcon", "rgn", "imd", "ru11ind", "oac11", "lat", "long",
}

// ProgressFunc reports per-item progress within a stage.
type ProgressFunc func(done, total int)

// Stage is one transformation step. The table may be replaced; the cache
// is mutated in place.
type Stage interface {
	Name() string
	Transform(ctx context.Context, tbl *dataset.Table, c *cache.Cache, progress ProgressFunc) (*dataset.Table, error)
}

// Sink receives pipeline progress for an external job tracker. All methods
// may be called from the run goroutine only.
type Sink interface {
	// SetStages records the ordered stage names before the run starts.
	SetStages(names []string)
	// SetStage records how many stages have completed.
	SetStage(index int)
	// SetItemProgress records per-item progress within the current stage.
	SetItemProgress(done, total int)
}

// NopSink is the Sink used when no job handle is present.
type NopSink struct{}

func (NopSink) SetStages([]string)       {}
func (NopSink) SetStage(int)             {}
func (NopSink) SetItemProgress(int, int) {}

// Options tune pipeline behaviour.
type Options struct {
	// Sink receives progress updates; nil means no job tracking.
	Sink Sink
	// SaveCacheOnError persists the cache even when a stage fails, keeping
	// lookups already paid for. Cache entries are additive, so this is safe.
	SaveCacheOnError bool
	// Now overrides the clock used for age computation (tests).
	Now func() time.Time
}

// RunInput is the raw material for one run. When Contents and Filename are
// both absent the load stage passes Dataset through unchanged, supporting
// resumption on an already-parsed table.
type RunInput struct {
	Contents []byte // raw file bytes
	Encoded  string // base64 or data-URL alternative to Contents
	Filename string
	Dataset  *dataset.Table
}

// Pipeline runs the enrichment stages over one dataset and the shared
// lookup cache.
type Pipeline struct {
	store     cache.Store
	charity   ftc.Fetcher
	company   companieshouse.Fetcher
	postcodes postcodes.Fetcher
	opts      Options
}

// New creates a Pipeline with all dependencies.
func New(store cache.Store, charity ftc.Fetcher, company companieshouse.Fetcher, pc postcodes.Fetcher, opts Options) *Pipeline {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		store:     store,
		charity:   charity,
		company:   company,
		postcodes: pc,
		opts:      opts,
	}
}

func (p *Pipeline) stages(in RunInput) []Stage {
	return []Stage{
		&LoadDataset{Contents: in.Contents, Encoded: in.Encoded, Filename: in.Filename},
		&CheckColumnNames{},
		&CheckColumnsExist{},
		&CheckColumnTypes{},
		&AddExtraColumns{},
		&CleanRecipientIdentifiers{},
		&LookupCharityDetails{Client: p.charity},
		&LookupCompanyDetails{Client: p.company},
		&MergeCompanyAndCharityDetails{Now: p.opts.Now},
		&FetchPostcodes{Client: p.postcodes},
		&MergeGeoData{},
		&AddExtraFieldsExternal{},
	}
}

// Run executes the stages strictly in sequence and returns the enriched
// table and the cache as it stood at the end of the run. The cache is
// loaded from the store before the first stage and saved after the last;
// a stage failure aborts the run and no table is returned.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*dataset.Table, *cache.Cache, error) {
	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID), zap.String("filename", in.Filename))
	log.Info("pipeline: starting run")

	c, err := cache.Load(ctx, p.store)
	if err != nil {
		return nil, nil, err
	}

	// The geocode name table is fetched once and then kept for the life of
	// the cache; there is deliberately no expiry.
	if len(c.Geocodes) == 0 {
		names, err := p.postcodes.AreaNames(ctx, PostcodeFields)
		if err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: fetch geocodes")
		}
		c.Geocodes = names
		log.Info("pipeline: fetched geocode names", zap.Int("count", len(names)))
	}

	stages := p.stages(in)
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}
	p.opts.Sink.SetStages(names)
	p.opts.Sink.SetStage(0)

	tbl := in.Dataset
	for k, stage := range stages {
		start := time.Now()
		tbl, err = stage.Transform(ctx, tbl, c, p.opts.Sink.SetItemProgress)
		if err != nil {
			if p.opts.SaveCacheOnError {
				if saveErr := cache.Save(ctx, p.store, c); saveErr != nil {
					log.Warn("pipeline: failed to save cache after stage error", zap.Error(saveErr))
				}
			}
			return nil, nil, eris.Wrapf(err, "pipeline: stage %q", stage.Name())
		}
		p.opts.Sink.SetStage(k + 1)
		log.Debug("pipeline: stage complete",
			zap.String("stage", stage.Name()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}

	if err := cache.Save(ctx, p.store, c); err != nil {
		return nil, nil, err
	}

	rows := 0
	if tbl != nil {
		rows = tbl.NumRows()
	}
	log.Info("pipeline: run complete", zap.Int("rows", rows))
	return tbl, c, nil
}

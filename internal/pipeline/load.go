package pipeline

import (
	"bytes"
	"context"
	"strings"

	"github.com/tsg-insights/insights-cli/internal/cache"
	"github.com/tsg-insights/insights-cli/internal/dataset"
)

// LoadDataset parses the raw upload into a table. With no contents or
// filename it is an identity stage, so a run can resume on an
// already-loaded dataset. An unrecognised extension produces no dataset;
// the validation stages detect that downstream.
type LoadDataset struct {
	Contents []byte
	Encoded  string
	Filename string
}

func (s *LoadDataset) Name() string { return "Load data to be prepared" }

func (s *LoadDataset) Transform(_ context.Context, tbl *dataset.Table, _ *cache.Cache, _ ProgressFunc) (*dataset.Table, error) {
	contents := s.Contents
	if len(contents) == 0 && s.Encoded != "" {
		decoded, err := dataset.DecodeContents(s.Encoded)
		if err != nil {
			return nil, err
		}
		contents = decoded
	}
	if len(contents) == 0 || s.Filename == "" {
		return tbl, nil
	}

	switch {
	case strings.HasSuffix(s.Filename, "csv"):
		return dataset.FromCSV(bytes.NewReader(contents))
	case strings.HasSuffix(s.Filename, "xls"), strings.HasSuffix(s.Filename, "xlsx"):
		return dataset.FromExcel(contents)
	case strings.HasSuffix(s.Filename, "json"):
		return dataset.FromJSON(contents)
	}
	return tbl, nil
}

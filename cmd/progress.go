package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// barSink renders pipeline progress as terminal progress bars, one per
// lookup stage. Used only when stderr is a TTY and a single file is being
// prepared, so bars never interleave.
type barSink struct {
	names []string
	bar   *progressbar.ProgressBar
	stage int
}

func progressEnabled(files int) bool {
	return files == 1 && isatty.IsTerminal(os.Stderr.Fd())
}

func (s *barSink) SetStages(names []string) {
	s.names = names
}

func (s *barSink) SetStage(index int) {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
	s.stage = index
}

func (s *barSink) SetItemProgress(done, total int) {
	if s.bar == nil {
		description := ""
		if s.stage < len(s.names) {
			description = s.names[s.stage]
		}
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = s.bar.Set(done)
}

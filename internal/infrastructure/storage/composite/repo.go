package composite

import (
	"context"

	"github.com/rs/zerolog/log"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

// Repo fans a report out to every sink. All sinks are tried; the first error wins.
type Repo struct {
	sinks []port.ReportSink
}

func New(sinks ...port.ReportSink) *Repo {
	// nil sinks are skipped
	out := make([]port.ReportSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Repo{sinks: out}
}

func (r *Repo) Name() string { return "composite" }

func (r *Repo) Len() int { return len(r.sinks) }

func (r *Repo) Publish(ctx context.Context, report *model.IngestionReport) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Publish(ctx, report); err != nil {
			log.Warn().Str("sink", s.Name()).Err(err).Msg("report publish failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var _ port.ReportSink = (*Repo)(nil)

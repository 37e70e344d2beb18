package port

import (
	"context"

	"mktdata/internal/domain/model"
)

// ReportSink forwards a finished ingestion report somewhere outside the process.
type ReportSink interface {
	Name() string
	Publish(ctx context.Context, report *model.IngestionReport) error
}

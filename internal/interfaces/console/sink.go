package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

// Sink prints schema results and run reports as plain text.
type Sink struct {
	out io.Writer
}

func NewSink() *Sink { return &Sink{out: os.Stdout} }

func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) Name() string { return "console" }

func (s *Sink) WriteSchema(applied, refreshed []string) error {
	_, err := fmt.Fprintf(s.out, "schema: applied=[%s] refreshed=[%s]\n",
		strings.Join(applied, ","), strings.Join(refreshed, ","))
	return err
}

func (s *Sink) Publish(_ context.Context, report *model.IngestionReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s provider=%s took=%s rows=%d failures=%d\n",
		report.RunID, report.ProviderCode,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), report.TotalRows(), report.Failures())
	writeSection(&b, "equities", report.Equities)
	writeSection(&b, "fx", report.FX)
	_, err := io.WriteString(s.out, b.String())
	return err
}

func writeSection(b *strings.Builder, title string, rows []model.SymbolRows) {
	fmt.Fprintf(b, "  %s (%d)\n", title, len(rows))
	for _, r := range rows {
		if r.Err != "" {
			fmt.Fprintf(b, "    %-12s %6d  ERR %s\n", r.Symbol, r.RowsUpserted, r.Err)
			continue
		}
		fmt.Fprintf(b, "    %-12s %6d\n", r.Symbol, r.RowsUpserted)
	}
}

var _ port.ReportSink = (*Sink)(nil)

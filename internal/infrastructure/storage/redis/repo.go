package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

// Repo publishes ingestion reports: one stream entry per run, a pub/sub
// notification and a "last run" hash that dashboards can poll.
type Repo struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	keyLastRun string // prefix + ":last_run"
	stream     string
	channel    string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, stream, channel string) *Repo {
	if strings.TrimSpace(stream) == "" {
		stream = prefix + ":reports"
	}
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":reports:pub"
	}
	return &Repo{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		keyLastRun: prefix + ":last_run",
		stream:     stream,
		channel:    channel,
	}
}

func (r *Repo) Name() string { return "redis" }

func (r *Repo) Publish(ctx context.Context, report *model.IngestionReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	values := summaryFields(report, string(payload))

	// 1) Stream: XADD <stream> * run_id ... payload
	if err := r.rdb.XAdd(ctx, &redis.XAddArgs{Stream: r.stream, Values: values}).Err(); err != nil {
		return err
	}

	// 2) Hash: last run summary
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLastRun, values)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLastRun, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// 3) PubSub: PUBLISH <channel> json
	return r.rdb.Publish(ctx, r.channel, payload).Err()
}

func summaryFields(report *model.IngestionReport, payload string) map[string]any {
	return map[string]any{
		"run_id":      report.RunID,
		"provider":    report.ProviderCode,
		"finished_ms": report.FinishedAt.UnixMilli(),
		"took_ms":     report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		"equities":    len(report.Equities),
		"fx":          len(report.FX),
		"rows":        report.TotalRows(),
		"failures":    report.Failures(),
		"payload":     payload,
	}
}

var _ port.ReportSink = (*Repo)(nil)

package worker

import (
	"context"
	"time"

	"user-api/internal/infrastructure/kafka"
	"user-api/internal/infrastructure/telemetry"

	kgopkg "github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordSource delivers Kafka records to a handler until ctx is done
type RecordSource interface {
	ConsumeWithTracing(ctx context.Context, handler func(ctx context.Context, record *kgopkg.Record) error) error
}

// AuditWorker consumes user lifecycle events and writes them to the audit log
type AuditWorker struct {
	source    RecordSource
	telemetry *telemetry.Telemetry
}

var _ RecordSource = (*kafka.Consumer)(nil)

// NewAuditWorker creates a new audit worker reading from source
func NewAuditWorker(source RecordSource, tel *telemetry.Telemetry) *AuditWorker {
	return &AuditWorker{
		source:    source,
		telemetry: tel,
	}
}

// Run consumes until ctx is cancelled or the underlying client is closed
func (w *AuditWorker) Run(ctx context.Context) error {
	telemetry.Log(ctx, telemetry.LevelInfo, "Audit worker started", nil)
	err := w.source.ConsumeWithTracing(ctx, w.handleRecord)
	if err != nil {
		telemetry.Log(ctx, telemetry.LevelError, "Kafka consumer error", err)
		return err
	}
	telemetry.Log(ctx, telemetry.LevelInfo, "Audit worker stopped", nil)
	return nil
}

// handleRecord decodes one user event and logs it. Undecodable records are
// reported and skipped.
func (w *AuditWorker) handleRecord(ctx context.Context, record *kgopkg.Record) error {
	evt, err := kafka.DecodeEventRecord(record)
	if err != nil {
		w.count(ctx, "unknown", "error")
		return err
	}

	// Audit entries go out at warn so they survive verbosity 1
	telemetry.Log(ctx, telemetry.LevelWarn, "User event audited", nil,
		attribute.String("event.id", evt.ID.String()),
		attribute.String("event.type", string(evt.Type)),
		attribute.String("user.id", evt.UserID.String()),
		attribute.Int64("user.version", evt.Version),
		attribute.String("event.occurred_at", evt.OccurredAt.Format(time.RFC3339)),
		attribute.String("kafka.topic", record.Topic),
		attribute.Int64("kafka.offset", record.Offset),
	)

	w.count(ctx, string(evt.Type), "success")
	return nil
}

func (w *AuditWorker) count(ctx context.Context, eventType, status string) {
	if w.telemetry == nil || w.telemetry.EventCounter == nil {
		return
	}
	w.telemetry.EventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", "consumed"),
		attribute.String("type", eventType),
		attribute.String("status", status),
	))
}

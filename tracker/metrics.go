package tracker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const writeSpanName = "tracker.persist"

// writeMetrics instruments one background merge write: a span over the store
// call plus a structured log line with the same attributes.
type writeMetrics struct {
	logger    *log.Logger
	span      trace.Span
	start     time.Time
	doc       string
	date      string
	taskCount int
}

func newWriteMetrics(ctx context.Context, logger *log.Logger, doc, date string) (*writeMetrics, context.Context) {
	tracer := otel.Tracer("motime/tracker")
	ctx, span := tracer.Start(ctx, writeSpanName, trace.WithAttributes(
		attribute.String("motime.write.doc", doc),
		attribute.String("motime.write.date", date),
	))
	return &writeMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		doc:    doc,
		date:   date,
	}, ctx
}

func (m *writeMetrics) SetTaskCount(count int) {
	if count < 0 {
		count = 0
	}
	m.taskCount = count
}

// Log closes the span and emits the write outcome. Store failures end here:
// they are recorded, never propagated to the caller.
func (m *writeMetrics) Log(err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)

	fields := log.Fields{
		"doc":      m.doc,
		"total_ms": durationToMillis(total),
	}
	if m.date != "" {
		fields["date"] = m.date
	}
	if m.doc == "day" {
		fields["task_count"] = m.taskCount
		m.span.SetAttributes(attribute.Int("motime.write.task_count", m.taskCount))
	}

	if err != nil {
		fields["error"] = err.Error()
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
		m.logger.WithFields(fields).Error("tracker.write.metrics")
	} else {
		m.span.SetStatus(codes.Ok, "")
		m.logger.WithFields(fields).Info("tracker.write.metrics")
	}
	m.span.End()
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

package opentelemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// InstrumentedWriter is a wrapper type over a snapshot.Writer
// to provide instrumentation of the snapshot writes, in the form of
// metrics and traces using OpenTelemetry.
//
// Use NewInstrumentedWriter for constructing a new instance of this type.
type InstrumentedWriter struct {
	writer snapshot.Writer

	tracer       trace.Tracer
	appendsCount metric.Int64Counter
}

var _ snapshot.PointerUpdater = &InstrumentedWriter{}

// NewInstrumentedWriter returns a wrapper type to provide OpenTelemetry
// instrumentation around a snapshot.Writer.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedWriter(writer snapshot.Writer, options ...Option) (*InstrumentedWriter, error) {
	cfg := newConfig(options...)

	counter, err := cfg.meter().Int64Counter(
		"eventually.snapshot.append.count",
		metric.WithDescription("Number of snapshot.Writer.Append operations performed, by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("opentelemetry.NewInstrumentedWriter: failed to register metric, %w", err)
	}

	return &InstrumentedWriter{
		writer:       writer,
		tracer:       cfg.tracer(),
		appendsCount: counter,
	}, nil
}

// Outcome classifies the error returned by snapshot.Writer.Append.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, snapshot.ErrPointerUpdateFailed):
		return OutcomePointerUpdateFailed
	case errors.Is(err, snapshot.ErrAppendRejected):
		return OutcomeRejected
	case errors.Is(err, snapshot.ErrConnectivity):
		return OutcomeConnectivity
	default:
		return OutcomeInvalid
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// Append calls the wrapped snapshot.Writer.Append method and records metrics and traces around it.
func (iw *InstrumentedWriter) Append(
	ctx context.Context,
	id event.StreamID,
	snap snapshot.Envelope,
) (result snapshot.Result, err error) {
	snapshotType := ""
	if snap.Message != nil {
		snapshotType = snap.Message.Name()
	}

	ctx, span := iw.tracer.Start(ctx, "snapshot.Writer.Append", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
		SnapshotTypeKey.String(snapshotType),
	))

	defer func() {
		outcome := Outcome(err)

		// The snapshot is durably appended when the pointer update fails.
		if err == nil || outcome == OutcomePointerUpdateFailed {
			span.SetAttributes(EventStreamNewVersionKey.Int64(int64(result.NextExpectedVersion)))
		}

		span.SetAttributes(SnapshotOutcomeKey.String(outcome))
		iw.appendsCount.Add(ctx, 1, metric.WithAttributes(
			SnapshotTypeKey.String(snapshotType),
			SnapshotOutcomeKey.String(outcome),
		))

		endSpan(span, err)
	}()

	result, err = iw.writer.Append(ctx, id, snap)

	return
}

// UpdatePointer calls the wrapped snapshot.Writer.UpdatePointer method and records traces around it.
func (iw *InstrumentedWriter) UpdatePointer(ctx context.Context, id event.StreamID, v version.Version) (err error) {
	ctx, span := iw.tracer.Start(ctx, "snapshot.Writer.UpdatePointer", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
		EventStreamNewVersionKey.Int64(int64(v)),
	))

	defer func() { endSpan(span, err) }()

	err = iw.writer.UpdatePointer(ctx, id, v)

	return
}

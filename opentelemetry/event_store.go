package opentelemetry

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// EventStore is the Event Store type instrumented by InstrumentedEventStore.
type EventStore interface {
	event.Store
	event.MetadataStore
}

//nolint:exhaustruct // Interface implementation assertion.
var _ EventStore = &InstrumentedEventStore{}

// InstrumentedEventStore is a wrapper type over an EventStore
// instance to provide instrumentation, in the form of metrics and traces
// using OpenTelemetry.
//
// Use NewInstrumentedEventStore for constructing a new instance of this type.
type InstrumentedEventStore struct {
	eventStore EventStore

	tracer                    trace.Tracer
	streamDuration            metric.Int64Histogram
	appendDuration            metric.Int64Histogram
	streamMetadataDuration    metric.Int64Histogram
	setStreamMetadataDuration metric.Int64Histogram
}

func (ies *InstrumentedEventStore) registerMetrics(meter metric.Meter) error {
	var err error

	for _, h := range []struct {
		target      *metric.Int64Histogram
		name        string
		description string
	}{
		{
			target:      &ies.streamDuration,
			name:        "eventually.event_store.stream.duration.milliseconds",
			description: "Duration in milliseconds of event.Store.Stream operations performed.",
		},
		{
			target:      &ies.appendDuration,
			name:        "eventually.event_store.append.duration.milliseconds",
			description: "Duration in milliseconds of event.Store.Append operations performed.",
		},
		{
			target:      &ies.streamMetadataDuration,
			name:        "eventually.event_store.stream_metadata.duration.milliseconds",
			description: "Duration in milliseconds of event.MetadataStore.StreamMetadata operations performed.",
		},
		{
			target:      &ies.setStreamMetadataDuration,
			name:        "eventually.event_store.set_stream_metadata.duration.milliseconds",
			description: "Duration in milliseconds of event.MetadataStore.SetStreamMetadata operations performed.",
		},
	} {
		if *h.target, err = meter.Int64Histogram(
			h.name,
			metric.WithUnit("ms"),
			metric.WithDescription(h.description),
		); err != nil {
			return fmt.Errorf("opentelemetry.InstrumentedEventStore: failed to register metric, %w", err)
		}
	}

	return nil
}

// NewInstrumentedEventStore returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an EventStore.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedEventStore(eventStore EventStore, options ...Option) (*InstrumentedEventStore, error) {
	cfg := newConfig(options...)

	ies := &InstrumentedEventStore{
		eventStore: eventStore,
		tracer:     cfg.tracer(),
	}

	if err := ies.registerMetrics(cfg.meter()); err != nil {
		return nil, err
	}

	return ies, nil
}

// observe records the duration of an operation and ends its span.
func observe(ctx context.Context, span trace.Span, histogram metric.Int64Histogram, start time.Time, err error) {
	histogram.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(ErrorKey.Bool(err != nil)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// Stream calls the wrapped event.Store.Stream method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) (err error) {
	ctx, span := ies.tracer.Start(ctx, "event.Store.Stream", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
		EventStreamVersionSelectorKey.Int64(int64(selector.From)),
	))

	defer func(start time.Time) {
		observe(ctx, span, ies.streamDuration, start, err)
	}(time.Now())

	err = ies.eventStore.Stream(ctx, stream, id, selector)

	return
}

// Append calls the wrapped event.Store.Append method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (newVersion version.Version, err error) {
	expectedVersion := int64(-1)
	if v, ok := expected.(version.CheckExact); ok {
		expectedVersion = int64(v)
	}

	ctx, span := ies.tracer.Start(ctx, "event.Store.Append", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
		EventStreamExpectedVersionKey.Int64(expectedVersion),
		EventStoreNumEventsKey.Int(len(events)),
	))

	defer func(start time.Time) {
		if err == nil {
			span.SetAttributes(EventStreamNewVersionKey.Int64(int64(newVersion)))
		}

		observe(ctx, span, ies.appendDuration, start, err)
	}(time.Now())

	newVersion, err = ies.eventStore.Append(ctx, id, expected, events...)

	return
}

// StreamMetadata calls the wrapped event.MetadataGetter.StreamMetadata method
// and records metrics and traces around it.
func (ies *InstrumentedEventStore) StreamMetadata(
	ctx context.Context,
	id event.StreamID,
) (metadata message.Metadata, err error) {
	ctx, span := ies.tracer.Start(ctx, "event.MetadataStore.StreamMetadata", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
	))

	defer func(start time.Time) {
		observe(ctx, span, ies.streamMetadataDuration, start, err)
	}(time.Now())

	metadata, err = ies.eventStore.StreamMetadata(ctx, id)

	return
}

// SetStreamMetadata calls the wrapped event.MetadataSetter.SetStreamMetadata method
// and records metrics and traces around it.
func (ies *InstrumentedEventStore) SetStreamMetadata(
	ctx context.Context,
	id event.StreamID,
	metadata message.Metadata,
) (err error) {
	ctx, span := ies.tracer.Start(ctx, "event.MetadataStore.SetStreamMetadata", trace.WithAttributes(
		EventStreamIDKey.String(string(id)),
		EventStreamMetadataKeysKey.StringSlice(metadataKeys(metadata)),
	))

	defer func(start time.Time) {
		observe(ctx, span, ies.setStreamMetadataDuration, start, err)
	}(time.Now())

	err = ies.eventStore.SetStreamMetadata(ctx, id, metadata)

	return
}

// metadataKeys returns the sorted keys of the Metadata, values are left out of traces.
func metadataKeys(metadata message.Metadata) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

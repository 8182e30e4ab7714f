package opentelemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/get-eventually/go-eventually-snapshot/event"
	testpayload "github.com/get-eventually/go-eventually-snapshot/internal"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/opentelemetry"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

type telemetry struct {
	spans   *tracetest.SpanRecorder
	metrics *sdkmetric.ManualReader
	options []opentelemetry.Option
}

func newTelemetry() telemetry {
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	return telemetry{
		spans:   spans,
		metrics: reader,
		options: []opentelemetry.Option{
			opentelemetry.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
			opentelemetry.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		},
	}
}

func (tel telemetry) span(t *testing.T, name string) sdktrace.ReadOnlySpan {
	t.Helper()

	for _, span := range tel.spans.Ended() {
		if span.Name() == name {
			return span
		}
	}

	require.Failf(t, "span not found", "no ended span named %q", name)

	return nil
}

func (tel telemetry) metric(t *testing.T, name string) metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, tel.metrics.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	require.Failf(t, "metric not found", "no metric named %q", name)

	return metricdata.Metrics{}
}

func attributeValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

type failingAppender struct {
	*event.InMemoryStore
	err error
}

func (fa failingAppender) Append(context.Context, event.StreamID, version.Check, ...event.Envelope) (version.Version, error) {
	return 0, fa.err
}

func TestInstrumentedEventStore(t *testing.T) {
	ctx := context.Background()
	tel := newTelemetry()

	eventStore, err := opentelemetry.NewInstrumentedEventStore(event.NewInMemoryStore(), tel.options...)
	require.NoError(t, err)

	id := event.StreamID("order-123")

	newVersion, err := eventStore.Append(ctx, id, version.CheckExact(0), event.ToEnvelope(testpayload.IntPayload(1)))
	require.NoError(t, err)
	assert.Equal(t, version.Version(1), newVersion)

	_, err = eventStore.Append(ctx, id, version.CheckExact(0), event.ToEnvelope(testpayload.IntPayload(2)))
	require.Error(t, err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, es event.StreamWrite) error {
		return eventStore.Stream(ctx, es, id, version.SelectFromBeginning)
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.NoError(t, eventStore.SetStreamMetadata(ctx, id, message.Metadata{"owner": "orders"}))

	metadata, err := eventStore.StreamMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.Metadata{"owner": "orders"}, metadata)

	t.Run("spans are recorded for every operation", func(t *testing.T) {
		appendSpan := tel.span(t, "event.Store.Append")
		value, ok := attributeValue(appendSpan, opentelemetry.EventStreamIDKey)
		assert.True(t, ok)
		assert.Equal(t, "order-123", value.AsString())

		value, ok = attributeValue(appendSpan, opentelemetry.EventStreamNewVersionKey)
		assert.True(t, ok)
		assert.Equal(t, int64(1), value.AsInt64())

		var failed int

		for _, span := range tel.spans.Ended() {
			if span.Name() == "event.Store.Append" && span.Status().Code == codes.Error {
				failed++
			}
		}

		assert.Equal(t, 1, failed)

		setSpan := tel.span(t, "event.MetadataStore.SetStreamMetadata")
		value, ok = attributeValue(setSpan, opentelemetry.EventStreamMetadataKeysKey)
		assert.True(t, ok)
		assert.Equal(t, []string{"owner"}, value.AsStringSlice())

		tel.span(t, "event.Store.Stream")
		tel.span(t, "event.MetadataStore.StreamMetadata")
	})

	t.Run("durations are recorded by error attribute", func(t *testing.T) {
		m := tel.metric(t, "eventually.event_store.append.duration.milliseconds")

		histogram, ok := m.Data.(metricdata.Histogram[int64])
		require.True(t, ok)

		counts := make(map[bool]uint64)

		for _, dp := range histogram.DataPoints {
			value, _ := dp.Attributes.Value(opentelemetry.ErrorKey)
			counts[value.AsBool()] += dp.Count
		}

		assert.Equal(t, map[bool]uint64{true: 1, false: 1}, counts)
	})
}

func TestInstrumentedWriter(t *testing.T) {
	ctx := context.Background()

	t.Run("successful appends are counted and traced", func(t *testing.T) {
		tel := newTelemetry()
		store := event.NewInMemoryStore()

		writer, err := opentelemetry.NewInstrumentedWriter(snapshot.Writer{
			Appender: store,
			Metadata: store,
			Logger:   logger.NewTest(t),
		}, tel.options...)
		require.NoError(t, err)

		result, err := writer.Append(ctx, "order-123", snapshot.Envelope{Message: testpayload.SnapshotPayload(1)})
		require.NoError(t, err)
		assert.Equal(t, version.Version(1), result.NextExpectedVersion)

		require.NoError(t, writer.UpdatePointer(ctx, "order-123", result.NextExpectedVersion))

		span := tel.span(t, "snapshot.Writer.Append")
		value, ok := attributeValue(span, opentelemetry.SnapshotOutcomeKey)
		assert.True(t, ok)
		assert.Equal(t, opentelemetry.OutcomeOK, value.AsString())

		value, ok = attributeValue(span, opentelemetry.EventStreamNewVersionKey)
		assert.True(t, ok)
		assert.Equal(t, int64(1), value.AsInt64())

		tel.span(t, "snapshot.Writer.UpdatePointer")

		sum, ok := tel.metric(t, "eventually.snapshot.append.count").Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	})

	t.Run("failed appends are counted by outcome", func(t *testing.T) {
		tel := newTelemetry()
		store := event.NewInMemoryStore()

		writer, err := opentelemetry.NewInstrumentedWriter(snapshot.Writer{
			Appender: failingAppender{InMemoryStore: store, err: errors.New("connection refused")},
			Metadata: store,
		}, tel.options...)
		require.NoError(t, err)

		_, err = writer.Append(ctx, "order-123", snapshot.Envelope{Message: testpayload.SnapshotPayload(1)})
		require.ErrorIs(t, err, snapshot.ErrConnectivity)

		_, err = writer.Append(ctx, "", snapshot.Envelope{Message: testpayload.SnapshotPayload(1)})
		require.ErrorIs(t, err, snapshot.ErrInvalidStreamID)

		sum, ok := tel.metric(t, "eventually.snapshot.append.count").Data.(metricdata.Sum[int64])
		require.True(t, ok)

		outcomes := make(map[string]int64)

		for _, dp := range sum.DataPoints {
			value, _ := dp.Attributes.Value(opentelemetry.SnapshotOutcomeKey)
			outcomes[value.AsString()] += dp.Value
		}

		assert.Equal(t, map[string]int64{
			opentelemetry.OutcomeConnectivity: 1,
			opentelemetry.OutcomeInvalid:      1,
		}, outcomes)
	})
}

func TestInstrumentedWriter_Reconciler(t *testing.T) {
	ctx := context.Background()
	tel := newTelemetry()
	store := event.NewInMemoryStore()
	id := event.StreamID("order-123")

	writer, err := opentelemetry.NewInstrumentedWriter(snapshot.Writer{
		Appender: store,
		Metadata: store,
	}, tel.options...)
	require.NoError(t, err)

	// A snapshot appended without recording the pointer.
	_, err = store.Append(ctx, id, version.Any, event.ToEnvelope(testpayload.SnapshotPayload(1)))
	require.NoError(t, err)

	reconciler := snapshot.Reconciler{
		Streamer: store,
		Metadata: store,
		Writer:   writer,
		Logger:   logger.NewTest(t),
	}

	result, err := reconciler.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.True(t, result.Updated)

	span := tel.span(t, "snapshot.Writer.UpdatePointer")
	value, ok := attributeValue(span, opentelemetry.EventStreamNewVersionKey)
	assert.True(t, ok)
	assert.Equal(t, int64(1), value.AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestOutcome(t *testing.T) {
	conflict := &snapshot.AppendError{StreamID: "order-123", Rejected: true, Err: version.ConflictError{}}

	assert.Equal(t, opentelemetry.OutcomeOK, opentelemetry.Outcome(nil))
	assert.Equal(t, opentelemetry.OutcomeRejected, opentelemetry.Outcome(conflict))
	assert.Equal(t, opentelemetry.OutcomePointerUpdateFailed, opentelemetry.Outcome(&snapshot.PointerUpdateError{}))
	assert.Equal(t, opentelemetry.OutcomeInvalid, opentelemetry.Outcome(snapshot.ErrInvalidSnapshot))
}

package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/get-eventually/go-eventually-snapshot/event"
	testpayload "github.com/get-eventually/go-eventually-snapshot/internal"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/postgres"
	"github.com/get-eventually/go-eventually-snapshot/postgres/internal"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := internal.NewPostgresContainer(ctx)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	require.NoError(t, postgres.RunMigrations(container.ConnectionDSN))
	// Running migrations twice is a no-op.
	require.NoError(t, postgres.RunMigrations(container.ConnectionDSN))

	pool, err := container.NewPool(ctx)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestEventStore(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	eventStore := postgres.NewEventStore(pool, testpayload.NewMessageSerde())

	t.Run("event store suite", func(t *testing.T) {
		suite.Run(t, event.NewStoreSuite(func() event.SuiteStore {
			return eventStore
		}))
	})

	t.Run("appended events are enriched with recording metadata", func(t *testing.T) {
		id := event.StreamID("enriched-metadata")

		_, err := eventStore.Append(ctx, id, version.Any, event.Envelope{
			Message:  testpayload.IntPayload(1),
			Metadata: message.Metadata{"Correlation-Id": "abc"},
		})
		require.NoError(t, err)

		events, err := event.StreamToSlice(ctx, func(ctx context.Context, es event.StreamWrite) error {
			return eventStore.Stream(ctx, es, id, version.SelectFromBeginning)
		})
		require.NoError(t, err)
		require.Len(t, events, 1)

		assert.Equal(t, "abc", events[0].Metadata["Correlation-Id"])
		assert.NotEmpty(t, events[0].Metadata[postgres.RecordedAtKey])
		assert.Equal(t, "1", events[0].Metadata[postgres.RecordedWithNewOverallVersionKey])
	})

	t.Run("concurrent appends on the same stream are serialized", func(t *testing.T) {
		id := event.StreamID("concurrent-appends")
		errs := make(chan error, 10)

		for i := range 10 {
			go func() {
				_, err := eventStore.Append(ctx, id, version.Any, event.ToEnvelope(testpayload.IntPayload(i)))
				errs <- err
			}()
		}

		for range 10 {
			require.NoError(t, <-errs)
		}

		events, err := event.StreamToSlice(ctx, func(ctx context.Context, es event.StreamWrite) error {
			return eventStore.Stream(ctx, es, id, version.SelectFromBeginning)
		})
		require.NoError(t, err)
		require.Len(t, events, 10)

		for i, evt := range events {
			assert.Equal(t, version.Version(i+1), evt.Version)
		}
	})
}

func TestEventStore_CustomTableNames(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	for _, stmt := range []string{
		`CREATE TABLE order_streams (LIKE event_streams INCLUDING ALL)`,
		`CREATE TABLE order_events (LIKE events INCLUDING ALL)`,
	} {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	eventStore := postgres.NewEventStore(
		pool,
		testpayload.NewMessageSerde(),
		postgres.WithStreamsTableName("order_streams"),
		postgres.WithEventsTableName("order_events"),
	)

	newVersion, err := eventStore.Append(ctx, "order-123", version.CheckExact(0), event.ToEnvelope(testpayload.IntPayload(1)))
	require.NoError(t, err)
	assert.Equal(t, version.Version(1), newVersion)

	var count int

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_events`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count))
	assert.Zero(t, count)
}

func TestSnapshotWriter(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	eventStore := postgres.NewEventStore(pool, testpayload.NewMessageSerde())

	writer := snapshot.Writer{
		Appender: eventStore,
		Metadata: eventStore,
		Logger:   logger.NewTest(t),
	}

	id := event.StreamID("order-123")

	for i := 1; i <= 4; i++ {
		_, err := eventStore.Append(ctx, id, version.Any, event.ToEnvelope(testpayload.IntPayload(i)))
		require.NoError(t, err)
	}

	require.NoError(t, eventStore.SetStreamMetadata(ctx, id, message.Metadata{"owner": "orders"}))

	result, err := writer.Append(ctx, id, snapshot.Envelope{Message: testpayload.SnapshotPayload(10)})
	require.NoError(t, err)
	assert.Equal(t, version.Version(5), result.NextExpectedVersion)

	metadata, err := eventStore.StreamMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.Metadata{
		"owner":                         "orders",
		snapshot.LastSnapshotVersionKey: fmt.Sprint(result.NextExpectedVersion),
	}, metadata)

	selector, err := snapshot.ReplaySelector(ctx, eventStore, id)
	require.NoError(t, err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, es event.StreamWrite) error {
		return eventStore.Stream(ctx, es, id, selector)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, testpayload.SnapshotPayload(10), events[0].Message)
	assert.True(t, snapshot.IsSnapshot(events[0].Message))

	// A snapshot appended without pointer update is recovered by the Reconciler.
	_, err = eventStore.Append(ctx, id, version.Any, event.ToEnvelope(testpayload.SnapshotPayload(11)))
	require.NoError(t, err)

	reconciler := snapshot.Reconciler{
		Streamer: eventStore,
		Metadata: eventStore,
		Writer:   writer,
		Logger:   logger.NewTest(t),
	}

	reconciled, err := reconciler.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.True(t, reconciled.Updated)
	assert.Equal(t, version.Version(6), reconciled.Current)
}

// Package main contains the entrypoint for the snapshot-reconciler tool,
// which re-derives the snapshot pointers of the configured Event Streams
// stored in PostgreSQL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/kafka"
	"github.com/get-eventually/go-eventually-snapshot/logger/zaplogger"
	"github.com/get-eventually/go-eventually-snapshot/opentelemetry"
	"github.com/get-eventually/go-eventually-snapshot/postgres"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

func run(ctx context.Context) error {
	config, err := parseConfig()
	if err != nil {
		return fmt.Errorf("snapshot-reconciler.main: failed to parse config, %w", err)
	}

	zapLogger, err := config.newLogger()
	if err != nil {
		return fmt.Errorf("snapshot-reconciler.main: failed to initialize logger, %w", err)
	}

	//nolint:errcheck // No need for this error to come up if it happens.
	defer zapLogger.Sync()

	if config.Database.RunMigrations {
		if err := postgres.RunMigrations(config.Database.DSN); err != nil {
			return fmt.Errorf("snapshot-reconciler.main: failed to run migrations, %w", err)
		}

		zapLogger.Info("database migrations applied")
	}

	pool, err := pgxpool.New(ctx, config.Database.DSN)
	if err != nil {
		return fmt.Errorf("snapshot-reconciler.main: failed to connect to database, %w", err)
	}

	defer pool.Close()

	// Only the event types are needed to find snapshots: payloads
	// are left encoded.
	eventStore := postgres.NewEventStore(pool, newSnapshotTypesSerde(config.SnapshotTypes))
	log := zaplogger.Wrap(zapLogger)

	writer := snapshot.Writer{
		Appender: eventStore,
		Metadata: eventStore,
		Logger:   log,
	}

	if len(config.Kafka.Brokers) > 0 {
		publisher := kafka.NewPointerPublisher(config.Kafka.Brokers, config.Kafka.Topic)

		defer func() {
			if err := publisher.Close(); err != nil {
				zapLogger.Error("failed to close pointer publisher", zap.Error(err))
			}
		}()

		writer.OnPointerUpdated = publisher
	}

	// Uses the global OpenTelemetry providers.
	instrumentedWriter, err := opentelemetry.NewInstrumentedWriter(writer)
	if err != nil {
		return fmt.Errorf("snapshot-reconciler.main: failed to instrument snapshot writer, %w", err)
	}

	reconciler := snapshot.Reconciler{
		Streamer: eventStore,
		Metadata: eventStore,
		Writer:   instrumentedWriter,
		Logger:   log,
	}

	ids := make([]event.StreamID, 0, len(config.Streams))
	for _, id := range config.Streams {
		ids = append(ids, event.StreamID(id))
	}

	results, err := reconciler.ReconcileAll(ctx, ids...)

	for _, result := range results {
		zapLogger.Info("snapshot pointer reconciled",
			zap.String("stream_id", string(result.StreamID)),
			zap.Bool("had_pointer", result.HadPointer),
			zap.Uint32("previous", uint32(result.Previous)),
			zap.Uint32("current", uint32(result.Current)),
			zap.Bool("updated", result.Updated),
		)
	}

	if err != nil {
		return fmt.Errorf("snapshot-reconciler.main: reconciliation failed, %w", err)
	}

	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

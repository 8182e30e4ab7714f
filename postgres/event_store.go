package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/postgres/internal"
	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Metadata keys added to every Domain Event appended through the EventStore.
const (
	RecordedAtKey                    = "Recorded-At"
	RecordedWithNewOverallVersionKey = "Recorded-With-New-Overall-Version"
)

var (
	_ event.Store         = EventStore{}
	_ event.MetadataStore = EventStore{}
)

// EventStore is an event.Store and event.MetadataStore implementation
// targeted to PostgreSQL databases.
//
// The implementation uses "event_streams" and "events" as their
// operational tables, by default. Updates to these tables are transactional.
//
// The Metadata record of an Event Stream is stored in the "metadata"
// JSONB column of the "event_streams" table.
type EventStore struct {
	conn  *pgxpool.Pool
	serde serde.Bytes[message.Message]

	eventsTableName  string
	streamsTableName string
}

// NewEventStore returns a new EventStore using the provided connection pool,
// and the provided serde to (de)serialize Domain Events.
func NewEventStore(
	conn *pgxpool.Pool,
	messageSerde serde.Bytes[message.Message],
	options ...Option[*EventStore],
) EventStore {
	store := EventStore{
		conn:             conn,
		serde:            messageSerde,
		eventsTableName:  DefaultEventsTableName,
		streamsTableName: DefaultStreamsTableName,
	}

	for _, opt := range options {
		opt.apply(&store)
	}

	return store
}

func (es EventStore) eventsTable() string {
	return pgx.Identifier{es.eventsTableName}.Sanitize()
}

func (es EventStore) streamsTable() string {
	return pgx.Identifier{es.streamsTableName}.Sanitize()
}

// Stream implements the event.Streamer interface.
func (es EventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) error {
	defer close(stream)

	rows, err := es.conn.Query(
		ctx,
		fmt.Sprintf(
			`SELECT "version", event, metadata FROM %s
			WHERE event_stream_id = $1 AND "version" >= $2
			ORDER BY "version"`,
			es.eventsTable(),
		),
		id, selector.From,
	)
	if err != nil {
		return fmt.Errorf("postgres.EventStore.Stream: failed to query events table, %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var (
			rawEvent    []byte
			rawMetadata []byte
		)

		evt := event.Persisted{
			StreamID: id,
		}

		if err := rows.Scan(&evt.Version, &rawEvent, &rawMetadata); err != nil {
			return fmt.Errorf("postgres.EventStore.Stream: failed to scan next row, %w", err)
		}

		msg, err := es.serde.Deserialize(rawEvent)
		if err != nil {
			return fmt.Errorf("postgres.EventStore.Stream: failed to deserialize event, %w", err)
		}

		evt.Message = msg

		if evt.Metadata, err = deserializeMetadata(rawMetadata); err != nil {
			return fmt.Errorf("postgres.EventStore.Stream: failed to deserialize event metadata, %w", err)
		}

		select {
		case stream <- evt:
		case <-ctx.Done():
			return fmt.Errorf("postgres.EventStore.Stream: context error, %w", ctx.Err())
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres.EventStore.Stream: failed while reading rows, %w", err)
	}

	return nil
}

// Append implements the event.Appender interface.
//
// The Event Stream row is locked for the duration of the transaction,
// so concurrent appends on the same Event Stream are serialized.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	newVersion, err := internal.RunTransaction(ctx, es.conn, pgx.TxOptions{
		IsoLevel:       pgx.ReadCommitted,
		AccessMode:     pgx.ReadWrite,
		DeferrableMode: pgx.NotDeferrable,
	}, func(ctx context.Context, tx pgx.Tx) (version.Version, error) {
		return es.appendDomainEvents(ctx, tx, id, expected, events...)
	})
	if err != nil {
		return 0, fmt.Errorf("postgres.EventStore.Append: %w", err)
	}

	return newVersion, nil
}

func (es EventStore) appendDomainEvents(
	ctx context.Context,
	tx pgx.Tx,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	if _, err := tx.Exec(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (event_stream_id, "version") VALUES ($1, 0)
			ON CONFLICT (event_stream_id) DO NOTHING`,
			es.streamsTable(),
		),
		id,
	); err != nil {
		return 0, fmt.Errorf("failed to create event stream, %w", err)
	}

	var oldVersion version.Version

	if err := tx.QueryRow(
		ctx,
		fmt.Sprintf(`SELECT "version" FROM %s WHERE event_stream_id = $1 FOR UPDATE`, es.streamsTable()),
		id,
	).Scan(&oldVersion); err != nil {
		return 0, fmt.Errorf("failed to lock event stream, %w", err)
	}

	if v, ok := expected.(version.CheckExact); ok && oldVersion != version.Version(v) {
		return 0, fmt.Errorf("event stream version check failed, %w", version.ConflictError{
			Expected: version.Version(v),
			Actual:   oldVersion,
		})
	}

	newVersion := oldVersion + version.Version(len(events))

	if _, err := tx.Exec(
		ctx,
		fmt.Sprintf(`UPDATE %s SET "version" = $2 WHERE event_stream_id = $1`, es.streamsTable()),
		id, newVersion,
	); err != nil {
		return 0, fmt.Errorf("failed to update event stream version, %w", err)
	}

	for i, evt := range events {
		eventVersion := oldVersion + version.Version(i) + 1

		if err := es.appendDomainEvent(ctx, tx, id, eventVersion, newVersion, evt); err != nil {
			return 0, err
		}
	}

	return newVersion, nil
}

func (es EventStore) appendDomainEvent(
	ctx context.Context,
	tx pgx.Tx,
	id event.StreamID,
	eventVersion, newVersion version.Version,
	evt event.Envelope,
) error {
	msg := evt.Message

	data, err := es.serde.Serialize(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize domain event, %w", err)
	}

	enrichedMetadata := evt.Metadata.Clone().
		With(RecordedAtKey, time.Now().Format(time.RFC3339Nano)).
		With(RecordedWithNewOverallVersionKey, strconv.Itoa(int(newVersion)))

	metadata, err := serializeMetadata(enrichedMetadata)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (event_stream_id, "version", "type", event, metadata)
			VALUES ($1, $2, $3, $4, $5)`,
			es.eventsTable(),
		),
		id, eventVersion, msg.Name(), data, metadata,
	); err != nil {
		return fmt.Errorf("failed to append new domain event to event store, %w", err)
	}

	return nil
}

// StreamMetadata implements the event.MetadataGetter interface.
func (es EventStore) StreamMetadata(ctx context.Context, id event.StreamID) (message.Metadata, error) {
	var rawMetadata []byte

	err := es.conn.QueryRow(
		ctx,
		fmt.Sprintf(`SELECT metadata FROM %s WHERE event_stream_id = $1`, es.streamsTable()),
		id,
	).Scan(&rawMetadata)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore.StreamMetadata: failed to query event stream, %w", err)
	}

	metadata, err := deserializeMetadata(rawMetadata)
	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore.StreamMetadata: %w", err)
	}

	return metadata, nil
}

// SetStreamMetadata implements the event.MetadataSetter interface.
//
// The whole "metadata" column is replaced. If the Event Stream does not exist yet,
// it is created with no events.
func (es EventStore) SetStreamMetadata(ctx context.Context, id event.StreamID, metadata message.Metadata) error {
	rawMetadata, err := serializeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("postgres.EventStore.SetStreamMetadata: %w", err)
	}

	if _, err := es.conn.Exec(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (event_stream_id, "version", metadata) VALUES ($1, 0, $2)
			ON CONFLICT (event_stream_id) DO
			UPDATE SET metadata = EXCLUDED.metadata`,
			es.streamsTable(),
		),
		id, rawMetadata,
	); err != nil {
		return fmt.Errorf("postgres.EventStore.SetStreamMetadata: failed to update event stream, %w", err)
	}

	return nil
}

func serializeMetadata(metadata message.Metadata) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres.serializeMetadata: failed to marshal to json, %w", err)
	}

	return data, nil
}

func deserializeMetadata(data []byte) (message.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var metadata message.Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("postgres.deserializeMetadata: failed to unmarshal from json, %w", err)
	}

	return metadata, nil
}

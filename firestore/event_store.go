// Package eventuallyfirestore provides an event.Store and event.MetadataStore
// implementation backed by Google Cloud Firestore.
package eventuallyfirestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Collection names used by the EventStore.
const (
	EventsCollection  = "Events"
	StreamsCollection = "EventStreams"
)

//nolint:exhaustruct // Only used for interface assertion.
var (
	_ event.Store         = EventStore{}
	_ event.MetadataStore = EventStore{}
)

type eventDocument struct {
	EventStreamID string            `firestore:"event_stream_id"`
	Version       int64             `firestore:"version"`
	Type          string            `firestore:"type"`
	Metadata      map[string]string `firestore:"metadata"`
	Payload       []byte            `firestore:"payload"`
}

type streamDocument struct {
	LastVersion int64             `firestore:"last_version"`
	Metadata    map[string]string `firestore:"metadata"`
}

// EventStore is an event.Store and event.MetadataStore implementation
// using Firestore as backend.
//
// Each Event Stream is a document in the "EventStreams" collection, holding
// the Event Stream version and its Metadata record. Domain Events are
// documents in the "Events" collection.
type EventStore struct {
	Client *firestore.Client
	Serde  serde.Bytes[message.Message]
}

func (es EventStore) eventsCollection() *firestore.CollectionRef {
	return es.Client.Collection(EventsCollection)
}

func (es EventStore) streamsCollection() *firestore.CollectionRef {
	return es.Client.Collection(StreamsCollection)
}

// Stream implements the event.Streamer interface.
func (es EventStore) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) error {
	defer close(stream)

	iter := es.eventsCollection().
		Where("event_stream_id", "==", string(id)).
		Where("version", ">=", int64(selector.From)).
		OrderBy("version", firestore.Asc).
		Documents(ctx)

	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return fmt.Errorf("eventuallyfirestore.EventStore.Stream: failed while reading iterator, %w", err)
		}

		var evt eventDocument
		if err := doc.DataTo(&evt); err != nil {
			return fmt.Errorf("eventuallyfirestore.EventStore.Stream: failed to read event document, %w", err)
		}

		msg, err := es.Serde.Deserialize(evt.Payload)
		if err != nil {
			return fmt.Errorf("eventuallyfirestore.EventStore.Stream: failed to deserialize message payload, %w", err)
		}

		persisted := event.Persisted{
			StreamID: id,
			Version:  version.Version(evt.Version),
			Envelope: event.Envelope{
				Message:  msg,
				Metadata: toMetadata(evt.Metadata),
			},
		}

		select {
		case stream <- persisted:
		case <-ctx.Done():
			return fmt.Errorf("eventuallyfirestore.EventStore.Stream: context error, %w", ctx.Err())
		}
	}

	return nil
}

func (es EventStore) checkAndUpsertEventStream(
	tx *firestore.Transaction,
	id event.StreamID,
	expected version.Check,
	newEventsLength int,
) (version.Version, error) {
	docRef := es.streamsCollection().Doc(string(id))

	var stream streamDocument

	doc, err := tx.Get(docRef)

	switch {
	case status.Code(err) == codes.NotFound:
	case err != nil:
		return 0, fmt.Errorf("failed to get stream, %w", err)
	default:
		if err := doc.DataTo(&stream); err != nil {
			return 0, fmt.Errorf("failed to read stream document, %w", err)
		}
	}

	currentVersion := version.Version(stream.LastVersion)

	if v, ok := expected.(version.CheckExact); ok && version.Version(v) != currentVersion {
		return 0, fmt.Errorf("version check failed, %w", version.ConflictError{
			Expected: version.Version(v),
			Actual:   currentVersion,
		})
	}

	newVersion := currentVersion + version.Version(newEventsLength)

	// MergeAll keeps the Metadata record of the Event Stream untouched.
	if err := tx.Set(docRef, map[string]interface{}{
		"last_version": int64(newVersion),
	}, firestore.MergeAll); err != nil {
		return 0, fmt.Errorf("failed to update event stream, %w", err)
	}

	return currentVersion, nil
}

func (es EventStore) appendEvent(tx *firestore.Transaction, evt event.Persisted) error {
	docRef := es.eventsCollection().Doc(fmt.Sprintf("%s@{%d}", evt.StreamID, evt.Version))

	payload, err := es.Serde.Serialize(evt.Message)
	if err != nil {
		return fmt.Errorf("failed to serialize message, %w", err)
	}

	if err := tx.Create(docRef, eventDocument{
		EventStreamID: string(evt.StreamID),
		Version:       int64(evt.Version),
		Type:          evt.Message.Name(),
		Metadata:      evt.Metadata,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("failed to append event, %w", err)
	}

	return nil
}

// Append implements the event.Appender interface.
//
// The Event Stream version check and the Domain Events creation
// happen in the same Firestore transaction.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	var currentVersion version.Version

	err := es.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		var err error

		currentVersion, err = es.checkAndUpsertEventStream(tx, id, expected, len(events))
		if err != nil {
			return err
		}

		for i, evt := range events {
			if err := es.appendEvent(tx, event.Persisted{
				StreamID: id,
				Version:  currentVersion + version.Version(i) + 1,
				Envelope: evt,
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("eventuallyfirestore.EventStore.Append: failed to commit transaction, %w", err)
	}

	return currentVersion + version.Version(len(events)), nil
}

// StreamMetadata implements the event.MetadataGetter interface.
func (es EventStore) StreamMetadata(ctx context.Context, id event.StreamID) (message.Metadata, error) {
	doc, err := es.streamsCollection().Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("eventuallyfirestore.EventStore.StreamMetadata: failed to get stream, %w", err)
	}

	var stream streamDocument
	if err := doc.DataTo(&stream); err != nil {
		return nil, fmt.Errorf("eventuallyfirestore.EventStore.StreamMetadata: failed to read stream document, %w", err)
	}

	return toMetadata(stream.Metadata), nil
}

// SetStreamMetadata implements the event.MetadataSetter interface.
//
// Only the "metadata" field of the Event Stream document is replaced:
// the Event Stream version is left untouched.
func (es EventStore) SetStreamMetadata(ctx context.Context, id event.StreamID, metadata message.Metadata) error {
	data := map[string]string(metadata)
	if data == nil {
		data = map[string]string{}
	}

	if _, err := es.streamsCollection().Doc(string(id)).Set(ctx, map[string]interface{}{
		"metadata": data,
	}, firestore.Merge([]string{"metadata"})); err != nil {
		return fmt.Errorf("eventuallyfirestore.EventStore.SetStreamMetadata: failed to update stream, %w", err)
	}

	return nil
}

func toMetadata(m map[string]string) message.Metadata {
	if len(m) == 0 {
		return nil
	}

	return message.Metadata(m)
}

package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Interface implementation assertion.
var (
	_ Store         = new(InMemoryStore)
	_ MetadataStore = new(InMemoryStore)
)

// InMemoryStore is a thread-safe, in-memory event.Store and event.MetadataStore implementation.
type InMemoryStore struct {
	mx       sync.RWMutex
	events   map[StreamID][]Envelope
	metadata map[StreamID]message.Metadata
}

// NewInMemoryStore creates a new event.InMemoryStore instance.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		mx:       sync.RWMutex{},
		events:   make(map[StreamID][]Envelope),
		metadata: make(map[StreamID]message.Metadata),
	}
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("event.InMemoryStore: context error, %w", err)
	}

	return nil
}

// Stream streams committed events in the Event Store onto the provided EventStream,
// starting from the version specified in the selector (inclusive).
//
// Note: this call is synchronous, and will return when all the Events
// have been successfully written to the provided EventStream, or when
// the context has been canceled.
//
// This method fails only when the context is canceled.
func (es *InMemoryStore) Stream(
	ctx context.Context,
	eventStream StreamWrite,
	id StreamID,
	selector version.Selector,
) error {
	defer close(eventStream)

	es.mx.RLock()
	events := make([]Envelope, len(es.events[id]))
	copy(events, es.events[id])
	es.mx.RUnlock()

	for i, evt := range events {
		eventVersion := version.Version(i) + 1

		if eventVersion < selector.From {
			continue
		}

		persistedEvent := Persisted{
			Envelope: evt,
			StreamID: id,
			Version:  eventVersion,
		}

		select {
		case eventStream <- persistedEvent:
		case <-ctx.Done():
			return contextErr(ctx)
		}
	}

	return nil
}

// Append inserts the specified Domain Events into the Event Stream specified
// by the current instance, returning the new version of the Event Stream.
//
// `version.CheckExact` can be specified to enable an Optimistic Concurrency check
// on append, by using the expected version of the Event Stream prior
// to appending the new Events.
//
// Alternatively, `version.Any` can be used if no Optimistic Concurrency check
// should be carried out.
//
// An instance of `version.ConflictError` will be returned if the optimistic locking
// version check fails against the current version of the Event Stream.
func (es *InMemoryStore) Append(
	ctx context.Context,
	id StreamID,
	expected version.Check,
	events ...Envelope,
) (version.Version, error) {
	if err := contextErr(ctx); err != nil {
		return 0, err
	}

	es.mx.Lock()
	defer es.mx.Unlock()

	currentVersion := version.Version(len(es.events[id]))

	if v, ok := expected.(version.CheckExact); ok && version.Version(v) != currentVersion {
		return 0, fmt.Errorf("event.InMemoryStore: failed to append events, %w", version.ConflictError{
			Expected: version.Version(v),
			Actual:   currentVersion,
		})
	}

	for _, evt := range events {
		es.events[id] = append(es.events[id], Envelope{
			Message:  evt.Message,
			Metadata: evt.Metadata.Clone(),
		})
	}

	return version.Version(len(es.events[id])), nil
}

// StreamMetadata returns a copy of the Metadata record of the specified Event Stream.
func (es *InMemoryStore) StreamMetadata(ctx context.Context, id StreamID) (message.Metadata, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	es.mx.RLock()
	defer es.mx.RUnlock()

	return es.metadata[id].Clone(), nil
}

// SetStreamMetadata replaces the Metadata record of the specified Event Stream.
func (es *InMemoryStore) SetStreamMetadata(ctx context.Context, id StreamID, metadata message.Metadata) error {
	if err := contextErr(ctx); err != nil {
		return err
	}

	es.mx.Lock()
	defer es.mx.Unlock()

	es.metadata[id] = metadata.Clone()

	return nil
}

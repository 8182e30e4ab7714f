package event

import (
	"context"
	"sync"

	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// TrackingEventStore is an Event Store wrapper to track the Events
// committed to the inner Event Store.
//
// Useful for tests assertion.
type TrackingEventStore struct {
	Appender

	mx       sync.RWMutex
	recorded []Persisted
}

// NewTrackingEventStore wraps an Event Store to capture events that get
// appended to it.
func NewTrackingEventStore(appender Appender) *TrackingEventStore {
	return &TrackingEventStore{Appender: appender}
}

// Recorded returns the list of Events that have been appended
// to the Event Store.
//
// The order of Events in the returned slice always follows the order
// in which the appends completed.
func (es *TrackingEventStore) Recorded() []Persisted {
	es.mx.RLock()
	defer es.mx.RUnlock()

	recorded := make([]Persisted, len(es.recorded))
	copy(recorded, es.recorded)

	return recorded
}

// Append forwards the call to the wrapped Event Store instance and,
// if the operation concludes successfully, records these events internally.
//
// The recorded events can be accessed by calling Recorded().
func (es *TrackingEventStore) Append(
	ctx context.Context,
	id StreamID,
	expected version.Check,
	events ...Envelope,
) (version.Version, error) {
	es.mx.Lock()
	defer es.mx.Unlock()

	v, err := es.Appender.Append(ctx, id, expected, events...)
	if err != nil {
		return v, err
	}

	previousVersion := v - version.Version(len(events))

	for i, evt := range events {
		es.recorded = append(es.recorded, Persisted{
			StreamID: id,
			Version:  previousVersion + version.Version(i) + 1,
			Envelope: evt,
		})
	}

	return v, err
}

// MetadataWrite is a single SetStreamMetadata call observed by a TrackingMetadataStore.
type MetadataWrite struct {
	StreamID StreamID
	Metadata message.Metadata
	Err      error
}

// TrackingMetadataStore is a MetadataStore wrapper that records
// every read and write performed on the inner store, failed ones included.
//
// Useful for tests assertion.
type TrackingMetadataStore struct {
	MetadataStore

	mx     sync.RWMutex
	reads  int
	writes []MetadataWrite
}

// NewTrackingMetadataStore wraps a MetadataStore to capture the calls performed on it.
func NewTrackingMetadataStore(store MetadataStore) *TrackingMetadataStore {
	return &TrackingMetadataStore{MetadataStore: store}
}

// StreamMetadata forwards the call to the inner store and counts it.
func (ms *TrackingMetadataStore) StreamMetadata(ctx context.Context, id StreamID) (message.Metadata, error) {
	ms.mx.Lock()
	ms.reads++
	ms.mx.Unlock()

	return ms.MetadataStore.StreamMetadata(ctx, id)
}

// SetStreamMetadata forwards the call to the inner store and records it.
func (ms *TrackingMetadataStore) SetStreamMetadata(ctx context.Context, id StreamID, metadata message.Metadata) error {
	err := ms.MetadataStore.SetStreamMetadata(ctx, id, metadata)

	ms.mx.Lock()
	defer ms.mx.Unlock()

	ms.writes = append(ms.writes, MetadataWrite{
		StreamID: id,
		Metadata: metadata.Clone(),
		Err:      err,
	})

	return err
}

// Reads returns the number of StreamMetadata calls observed.
func (ms *TrackingMetadataStore) Reads() int {
	ms.mx.RLock()
	defer ms.mx.RUnlock()

	return ms.reads
}

// Writes returns the SetStreamMetadata calls observed, in completion order.
func (ms *TrackingMetadataStore) Writes() []MetadataWrite {
	ms.mx.RLock()
	defer ms.mx.RUnlock()

	writes := make([]MetadataWrite, len(ms.writes))
	copy(writes, ms.writes)

	return writes
}

// Calls returns the total number of calls observed, reads and writes.
func (ms *TrackingMetadataStore) Calls() int {
	ms.mx.RLock()
	defer ms.mx.RUnlock()

	return ms.reads + len(ms.writes)
}

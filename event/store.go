package event

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Stream represents a stream of persisted Domain Events coming from some
// stream-able source of data, like an Event Store.
type Stream chan Persisted

// AsRead returns a read-only view of the Stream.
func (s Stream) AsRead() StreamRead { return (chan Persisted)(s) }

// StreamWrite provides write-only access to an event.Stream object.
type StreamWrite chan<- Persisted

// StreamRead provides read-only access to an event.Stream object.
type StreamRead <-chan Persisted

// SliceToStream converts a slice of event.Persisted domain events to an event.Stream type.
//
// The event.Stream channel has the same buffer size as the input slice.
//
// The channel returned by the function contains all the original slice elements
// and is already closed.
func SliceToStream(events []Persisted) Stream {
	ch := make(chan Persisted, len(events))
	defer close(ch)

	for _, event := range events {
		ch <- event
	}

	return ch
}

// StreamToSlice synchronously exhausts an EventStream to an event.Persisted slice,
// and returns an error if the EventStream origin, passed here as a closure,
// fails with an error.
func StreamToSlice(ctx context.Context, f func(ctx context.Context, stream StreamWrite) error) ([]Persisted, error) {
	ch := make(chan Persisted, 1)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return f(ctx, ch) })

	var events []Persisted
	for event := range ch {
		events = append(events, event)
	}

	return events, group.Wait()
}

// Streamer is an event.Store trait used to open a specific Event Stream and stream it back
// in the application.
type Streamer interface {
	Stream(ctx context.Context, stream StreamWrite, id StreamID, selector version.Selector) error
}

// Appender is an event.Store trait used to append new Domain Events in the Event Stream.
//
// The returned version is the next expected version of the Event Stream,
// i.e. the one to use in a version.CheckExact for the following append.
// Since versions start from 1, it is also the version of the last appended event.
type Appender interface {
	Append(ctx context.Context, id StreamID, expected version.Check, events ...Envelope) (version.Version, error)
}

// Store represents an Event Store, a stateful data source where Domain Events
// can be safely stored, and easily replayed.
type Store interface {
	Appender
	Streamer
}

// MetadataGetter is used to read the Metadata record of an Event Stream.
//
// An Event Stream with no Metadata returns a nil message.Metadata and no error.
type MetadataGetter interface {
	StreamMetadata(ctx context.Context, id StreamID) (message.Metadata, error)
}

// MetadataSetter is used to write the Metadata record of an Event Stream.
//
// Implementations replace the whole Metadata record with the one provided:
// callers that want to preserve other fields must read, merge and write back.
type MetadataSetter interface {
	SetStreamMetadata(ctx context.Context, id StreamID, metadata message.Metadata) error
}

// MetadataStore gives read and write access to the Metadata record of Event Streams.
type MetadataStore interface {
	MetadataGetter
	MetadataSetter
}

// FusedMetadataStore fuses a MetadataGetter and a MetadataSetter
// into a MetadataStore, e.g. to wrap only the writes of a Metadata Store.
type FusedMetadataStore struct {
	MetadataGetter
	MetadataSetter
}

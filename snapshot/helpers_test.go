package snapshot_test

import (
	"context"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

type orderState struct {
	ID      string
	Status  string
	Version int
}

func orderSnapshot(v int) snapshotEvent {
	return snapshotEvent{
		Type:  "OrderSnapshot",
		State: orderState{ID: "order-123", Status: "paid", Version: v},
	}
}

type orderWasPaid struct{ Amount int }

func (orderWasPaid) Name() string { return "OrderWasPaid" }

type appenderFunc func(ctx context.Context, id event.StreamID, expected version.Check, events ...event.Envelope) (version.Version, error)

func (fn appenderFunc) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Envelope,
) (version.Version, error) {
	return fn(ctx, id, expected, events...)
}

type metadataSetterFunc func(ctx context.Context, id event.StreamID, metadata message.Metadata) error

func (fn metadataSetterFunc) SetStreamMetadata(ctx context.Context, id event.StreamID, metadata message.Metadata) error {
	return fn(ctx, id, metadata)
}

type metadataGetterFunc func(ctx context.Context, id event.StreamID) (message.Metadata, error)

func (fn metadataGetterFunc) StreamMetadata(ctx context.Context, id event.StreamID) (message.Metadata, error) {
	return fn(ctx, id)
}

type observerFunc func(ctx context.Context, id event.StreamID, v version.Version) error

func (fn observerFunc) PointerUpdated(ctx context.Context, id event.StreamID, v version.Version) error {
	return fn(ctx, id, v)
}

func appendDomainEvents(ctx context.Context, store event.Appender, id event.StreamID, n int) error {
	for i := 0; i < n; i++ {
		if _, err := store.Append(ctx, id, version.Any, event.ToEnvelope(orderWasPaid{Amount: i})); err != nil {
			return err
		}
	}

	return nil
}

type streamerFunc func(ctx context.Context, stream event.StreamWrite, id event.StreamID, selector version.Selector) error

func (fn streamerFunc) Stream(
	ctx context.Context,
	stream event.StreamWrite,
	id event.StreamID,
	selector version.Selector,
) error {
	return fn(ctx, stream, id, selector)
}

type pointerUpdaterFunc func(ctx context.Context, id event.StreamID, v version.Version) error

func (fn pointerUpdaterFunc) UpdatePointer(ctx context.Context, id event.StreamID, v version.Version) error {
	return fn(ctx, id, v)
}

package event

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/get-eventually/go-eventually-snapshot/internal"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// SuiteStore is the Event Store type exercised by the StoreSuite:
// both the Event Stream and its Metadata record are tested.
type SuiteStore interface {
	Store
	MetadataStore
}

// StoreSuite is a full testing suite for an event.Store and event.MetadataStore instance.
//
// Every test uses freshly generated Event Stream ids, so the same
// durable Event Store can be shared across tests.
type StoreSuite struct {
	suite.Suite

	storeFactory func() SuiteStore
	eventStore   SuiteStore // NOTE: this instance is initialized in SetupTest.
}

// NewStoreSuite creates a new Event Store testing suite using the provided
// event.Store factory.
func NewStoreSuite(factory func() SuiteStore) *StoreSuite {
	ss := new(StoreSuite)
	ss.storeFactory = factory

	return ss
}

// SetupTest creates a new, fresh Event Store instance for each test in the suite.
func (ss *StoreSuite) SetupTest() {
	ss.eventStore = ss.storeFactory()
}

func newStreamID(prefix string) StreamID {
	return StreamID(fmt.Sprintf("%s-%s", prefix, uuid.NewString()))
}

// TestStore tests the event.Appender and event.Streamer functions using the provided
// Event Store instance.
func (ss *StoreSuite) TestStore() {
	t := ss.T()
	ctx := context.Background()

	firstInstance, secondInstance := newStreamID("first"), newStreamID("second")

	for i := 1; i < 4; i++ {
		for _, id := range []StreamID{firstInstance, secondInstance} {
			newVersion, err := ss.eventStore.Append(
				ctx,
				id,
				version.CheckExact(version.Version(i-1)),
				ToEnvelope(internal.IntPayload(i)),
			)

			require.NoError(t, err)
			require.Equal(t, version.Version(i), newVersion)
		}
	}

	for _, id := range []StreamID{firstInstance, secondInstance} {
		events, err := StreamToSlice(ctx, func(ctx context.Context, es StreamWrite) error {
			return ss.eventStore.Stream(ctx, es, id, version.SelectFromBeginning)
		})

		assert.NoError(t, err)
		assert.Equal(t, []Persisted{
			{StreamID: id, Version: 1, Envelope: ToEnvelope(internal.IntPayload(1))},
			{StreamID: id, Version: 2, Envelope: ToEnvelope(internal.IntPayload(2))},
			{StreamID: id, Version: 3, Envelope: ToEnvelope(internal.IntPayload(3))},
		}, skipMetadata(events))
	}

	// The selector lower bound is inclusive.
	events, err := StreamToSlice(ctx, func(ctx context.Context, es StreamWrite) error {
		return ss.eventStore.Stream(ctx, es, firstInstance, version.Selector{From: 3})
	})

	assert.NoError(t, err)
	assert.Equal(t, []Persisted{
		{StreamID: firstInstance, Version: 3, Envelope: ToEnvelope(internal.IntPayload(3))},
	}, skipMetadata(events))

	// Streaming with an out-of-bound Select will yield empty elements.
	events, err = StreamToSlice(ctx, func(ctx context.Context, es StreamWrite) error {
		return ss.eventStore.Stream(ctx, es, firstInstance, version.Selector{From: 4})
	})

	assert.NoError(t, err)
	assert.Empty(t, events)
}

// TestOptimisticConcurrency tests the version.Check handling of the event.Appender.
func (ss *StoreSuite) TestOptimisticConcurrency() {
	t := ss.T()
	ctx := context.Background()
	id := newStreamID("concurrency")

	newVersion, err := ss.eventStore.Append(
		ctx,
		id,
		version.CheckExact(0), // No event expected on this Event Stream!
		ToEnvelope(internal.IntPayload(0)),
	)

	assert.NoError(t, err)
	assert.Equal(t, version.Version(1), newVersion)

	_, err = ss.eventStore.Append(
		ctx,
		id,
		version.CheckExact(0), // Appending with the same expected version should fail!
		ToEnvelope(internal.IntPayload(0)),
	)

	var actualErr version.ConflictError

	assert.ErrorAs(t, err, &actualErr)
	assert.Equal(t, version.ConflictError{Expected: 0, Actual: 1}, actualErr)

	newVersion, err = ss.eventStore.Append(ctx, id, version.Any, ToEnvelope(internal.StringPayload("any")))
	assert.NoError(t, err)
	assert.Equal(t, version.Version(2), newVersion)
}

// TestStreamMetadata tests the event.MetadataStore functions using the provided
// Event Store instance.
func (ss *StoreSuite) TestStreamMetadata() {
	t := ss.T()
	ctx := context.Background()
	id := newStreamID("metadata")

	metadata, err := ss.eventStore.StreamMetadata(ctx, id)
	assert.NoError(t, err)
	assert.Empty(t, metadata)

	// Metadata can be set before any event is appended, without changing the stream version.
	require.NoError(t, ss.eventStore.SetStreamMetadata(ctx, id, message.Metadata{
		"owner": "orders",
		"tier":  "gold",
	}))

	newVersion, err := ss.eventStore.Append(ctx, id, version.CheckExact(0), ToEnvelope(internal.IntPayload(1)))
	assert.NoError(t, err)
	assert.Equal(t, version.Version(1), newVersion)

	metadata, err = ss.eventStore.StreamMetadata(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, message.Metadata{"owner": "orders", "tier": "gold"}, metadata)

	// Setting metadata replaces the whole record.
	require.NoError(t, ss.eventStore.SetStreamMetadata(ctx, id, message.Metadata{
		"owner": "billing",
	}))

	metadata, err = ss.eventStore.StreamMetadata(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, message.Metadata{"owner": "billing"}, metadata)

	// Metadata writes do not touch the Event Stream.
	newVersion, err = ss.eventStore.Append(ctx, id, version.CheckExact(1), ToEnvelope(internal.IntPayload(2)))
	assert.NoError(t, err)
	assert.Equal(t, version.Version(2), newVersion)
}

func skipMetadata(events []Persisted) []Persisted {
	mapped := make([]Persisted, 0, len(events))

	for _, event := range events {
		newEvent := event
		newEvent.Metadata = nil
		mapped = append(mapped, newEvent)
	}

	return mapped
}

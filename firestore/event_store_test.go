package eventuallyfirestore_test

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/gcloud"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/get-eventually/go-eventually-snapshot/event"
	eventuallyfirestore "github.com/get-eventually/go-eventually-snapshot/firestore"
	testpayload "github.com/get-eventually/go-eventually-snapshot/internal"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

const (
	emulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:367.0.0-emulators"
	projectID     = "eventually-snapshot"
)

// emulatorCreds authenticates against the Firestore emulator as the owner.
type emulatorCreds struct{}

func (emulatorCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer owner"}, nil
}

func (emulatorCreds) RequireTransportSecurity() bool { return false }

func setupFirestore(t *testing.T) eventuallyfirestore.EventStore {
	t.Helper()

	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	container, err := gcloud.RunFirestore(ctx, emulatorImage, gcloud.WithProjectID(projectID))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	conn, err := grpc.NewClient(
		container.URI,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(emulatorCreds{}),
	)
	require.NoError(t, err)

	client, err := firestore.NewClient(ctx, container.Settings.ProjectID, option.WithGRPCConn(conn))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return eventuallyfirestore.EventStore{
		Client: client,
		Serde:  testpayload.NewMessageSerde(),
	}
}

func TestEventStore(t *testing.T) {
	eventStore := setupFirestore(t)

	suite.Run(t, event.NewStoreSuite(func() event.SuiteStore {
		return eventStore
	}))
}

func TestEventStore_MetadataDoesNotResetVersion(t *testing.T) {
	eventStore := setupFirestore(t)
	ctx := context.Background()
	id := event.StreamID("order-123")

	_, err := eventStore.Append(ctx, id, version.CheckExact(0), event.ToEnvelope(testpayload.IntPayload(1)))
	require.NoError(t, err)

	require.NoError(t, eventStore.SetStreamMetadata(ctx, id, message.Metadata{"owner": "orders"}))

	// Appending keeps the Metadata record of the stream.
	newVersion, err := eventStore.Append(ctx, id, version.CheckExact(1), event.ToEnvelope(testpayload.IntPayload(2)))
	require.NoError(t, err)
	assert.Equal(t, version.Version(2), newVersion)

	metadata, err := eventStore.StreamMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, message.Metadata{"owner": "orders"}, metadata)
}

func TestSnapshotWriter(t *testing.T) {
	eventStore := setupFirestore(t)
	ctx := context.Background()
	id := event.StreamID("order-456")

	writer := snapshot.Writer{
		Appender: eventStore,
		Metadata: eventStore,
		Logger:   logger.NewTest(t),
	}

	for i := 1; i <= 3; i++ {
		_, err := eventStore.Append(ctx, id, version.Any, event.ToEnvelope(testpayload.IntPayload(i)))
		require.NoError(t, err)
	}

	result, err := writer.Append(ctx, id, snapshot.Envelope{Message: testpayload.SnapshotPayload(6)})
	require.NoError(t, err)
	assert.Equal(t, version.Version(4), result.NextExpectedVersion)

	pointer, ok, err := snapshot.Pointer(ctx, eventStore, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, result.NextExpectedVersion, pointer)

	selector, err := snapshot.ReplaySelector(ctx, eventStore, id)
	require.NoError(t, err)

	events, err := event.StreamToSlice(ctx, func(ctx context.Context, es event.StreamWrite) error {
		return eventStore.Stream(ctx, es, id, selector)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, testpayload.SnapshotPayload(6), events[0].Message)
	assert.NotEmpty(t, events[0].Metadata[snapshot.IDKey])
}

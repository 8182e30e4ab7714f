package snapshot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// LastSnapshotVersionKey is the Event Stream Metadata key holding
// the version of the latest snapshot appended to the Event Stream.
const LastSnapshotVersionKey = "lastSnapshotVersion"

func formatPointer(v version.Version) string {
	return strconv.FormatUint(uint64(v), 10)
}

func parsePointer(s string) (version.Version, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w, '%s'", ErrInvalidPointer, s)
	}

	return version.Version(v), nil
}

// Pointer returns the version of the latest snapshot recorded in the
// Event Stream Metadata. The boolean is false if no snapshot has been recorded.
//
// ErrInvalidPointer is returned if the Metadata holds a malformed value.
func Pointer(ctx context.Context, getter event.MetadataGetter, id event.StreamID) (version.Version, bool, error) {
	metadata, err := getter.StreamMetadata(ctx, id)
	if err != nil {
		return 0, false, fmt.Errorf("snapshot.Pointer: failed to read stream metadata, %w", err)
	}

	raw, ok := metadata[LastSnapshotVersionKey]
	if !ok {
		return 0, false, nil
	}

	v, err := parsePointer(raw)
	if err != nil {
		return 0, false, fmt.Errorf("snapshot.Pointer: stream '%s', %w", id, err)
	}

	return v, true, nil
}

// ReplaySelector returns the version.Selector to use to replay the
// Event Stream starting from the latest snapshot, included.
//
// version.SelectFromBeginning is returned if no snapshot has been recorded.
func ReplaySelector(ctx context.Context, getter event.MetadataGetter, id event.StreamID) (version.Selector, error) {
	v, ok, err := Pointer(ctx, getter, id)
	if err != nil {
		return version.Selector{}, fmt.Errorf("snapshot.ReplaySelector: %w", err)
	}

	if !ok {
		return version.SelectFromBeginning, nil
	}

	return version.Selector{From: v}, nil
}

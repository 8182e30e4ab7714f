package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// IDKey is the snapshot event Metadata key holding the unique id
// assigned to each appended snapshot.
const IDKey = "Snapshot-Id"

// Stage is the step a snapshot write has reached.
type Stage uint8

// All the Stages of a snapshot write, in order.
const (
	StageAppendPending Stage = iota
	StageAppended
	StagePointerUpdated
)

func (s Stage) String() string {
	switch s {
	case StageAppendPending:
		return "AppendPending"
	case StageAppended:
		return "Appended"
	case StagePointerUpdated:
		return "PointerUpdated"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// StageOf returns the Stage reached by a Writer.Append call that
// returned the provided error.
func StageOf(err error) Stage {
	if err == nil {
		return StagePointerUpdated
	}

	if errors.Is(err, ErrPointerUpdateFailed) {
		return StageAppended
	}

	return StageAppendPending
}

// Result is the outcome of a snapshot append.
type Result struct {
	StreamID event.StreamID

	// NextExpectedVersion is the version returned by the event.Appender,
	// recorded verbatim as the snapshot pointer.
	NextExpectedVersion version.Version
}

// PointerObserver is notified every time a Writer updates the snapshot
// pointer of an Event Stream.
type PointerObserver interface {
	PointerUpdated(ctx context.Context, id event.StreamID, v version.Version) error
}

// Writer appends snapshots to the same Event Stream they summarize,
// and records the snapshot version in the Event Stream Metadata.
//
// Writer does not retry failed calls, nor impose timeouts:
// use the context to control cancellation of the underlying calls.
type Writer struct {
	Appender event.Appender
	Metadata event.MetadataStore

	// Logger is optional.
	Logger logger.Logger

	// OnPointerUpdated is optional. Its failures are logged,
	// and never fail the snapshot write.
	OnPointerUpdated PointerObserver
}

// Append appends the snapshot to the specified Event Stream and updates
// the "lastSnapshotVersion" pointer in the Event Stream Metadata.
//
// The snapshot is appended with version.Any, so no optimistic concurrency
// check is performed by the Writer itself.
//
// An *AppendError is returned if the append fails, in which case the
// Metadata is never touched. A *PointerUpdateError is returned if the
// snapshot has been appended but the pointer could not be updated.
func (w Writer) Append(ctx context.Context, id event.StreamID, snapshot Envelope) (Result, error) {
	if id == "" {
		return Result{}, fmt.Errorf("snapshot.Writer.Append: %w", ErrInvalidStreamID)
	}

	if snapshot.Message == nil {
		return Result{}, fmt.Errorf("snapshot.Writer.Append: %w", ErrInvalidSnapshot)
	}

	snapshotID := uuid.NewString()
	evt := event.Envelope(snapshot.ToGenericEnvelope())
	evt.Metadata = evt.Metadata.Clone().With(IDKey, snapshotID)

	newVersion, err := w.Appender.Append(ctx, id, version.Any, evt)
	if err != nil {
		appendErr := &AppendError{
			StreamID: id,
			Rejected: isRejection(err),
			Err:      err,
		}

		logger.Error(w.Logger, "Failed to append snapshot",
			logger.With("stream_id", id),
			logger.With("snapshot", snapshot.Message.Name()),
			logger.With("rejected", appendErr.Rejected),
			logger.Err(err),
		)

		return Result{}, appendErr
	}

	result := Result{
		StreamID:            id,
		NextExpectedVersion: newVersion,
	}

	logger.Debug(w.Logger, "Snapshot appended",
		logger.With("stream_id", id),
		logger.With("snapshot", snapshot.Message.Name()),
		logger.With("snapshot_id", snapshotID),
		logger.With("version", newVersion),
	)

	if err := w.UpdatePointer(ctx, id, newVersion); err != nil {
		return result, &PointerUpdateError{
			Result: result,
			Err:    err,
		}
	}

	return result, nil
}

// UpdatePointer sets the "lastSnapshotVersion" key of the Event Stream
// Metadata to the provided version, preserving all the other keys.
//
// The event.MetadataStore replaces whole Metadata records, so the current
// record is read and merged before being written back. Use this method
// to retry the pointer update after a *PointerUpdateError.
func (w Writer) UpdatePointer(ctx context.Context, id event.StreamID, v version.Version) error {
	if id == "" {
		return fmt.Errorf("snapshot.Writer.UpdatePointer: %w", ErrInvalidStreamID)
	}

	current, err := w.Metadata.StreamMetadata(ctx, id)
	if err != nil {
		logger.Error(w.Logger, "Failed to read stream metadata for snapshot pointer update",
			logger.With("stream_id", id),
			logger.With("version", v),
			logger.Err(err),
		)

		return fmt.Errorf("snapshot.Writer.UpdatePointer: failed to read stream metadata, %w", err)
	}

	updated := current.Clone().With(LastSnapshotVersionKey, formatPointer(v))

	if err := w.Metadata.SetStreamMetadata(ctx, id, updated); err != nil {
		logger.Error(w.Logger, "Failed to update snapshot pointer",
			logger.With("stream_id", id),
			logger.With("version", v),
			logger.Err(err),
		)

		return fmt.Errorf("snapshot.Writer.UpdatePointer: failed to write stream metadata, %w", err)
	}

	logger.Debug(w.Logger, "Snapshot pointer updated",
		logger.With("stream_id", id),
		logger.With("version", v),
	)

	if w.OnPointerUpdated != nil {
		if err := w.OnPointerUpdated.PointerUpdated(ctx, id, v); err != nil {
			logger.Error(w.Logger, "Snapshot pointer observer failed",
				logger.With("stream_id", id),
				logger.With("version", v),
				logger.Err(err),
			)
		}
	}

	return nil
}

package snapshot

import (
	"errors"
	"fmt"

	"github.com/get-eventually/go-eventually-snapshot/event"
)

var (
	// ErrInvalidStreamID is returned when an empty Event Stream id is used.
	ErrInvalidStreamID = errors.New("snapshot: invalid event stream id")

	// ErrInvalidSnapshot is returned when the snapshot to append has no message.
	ErrInvalidSnapshot = errors.New("snapshot: invalid snapshot message")

	// ErrInvalidPointer is returned when the "lastSnapshotVersion" Metadata key
	// holds a value that is not a valid version.
	ErrInvalidPointer = errors.New("snapshot: invalid snapshot pointer")

	// ErrAppendRejected matches an AppendError where the Event Store
	// refused the append, e.g. because of an optimistic concurrency conflict.
	// Retrying requires fresh state.
	ErrAppendRejected = errors.New("snapshot: append rejected")

	// ErrConnectivity matches an AppendError caused by the Event Store
	// not being reachable or failing. Retrying with backoff is possible.
	ErrConnectivity = errors.New("snapshot: event store connectivity fault")

	// ErrPointerUpdateFailed matches a PointerUpdateError: the snapshot has been
	// appended, but the pointer in the Event Stream Metadata has not been updated.
	ErrPointerUpdateFailed = errors.New("snapshot: pointer update failed")
)

// rejecter is implemented by Event Store errors that signal
// a refused write, like version.ConflictError.
type rejecter interface {
	Rejected() bool
}

func isRejection(err error) bool {
	var r rejecter
	return errors.As(err, &r) && r.Rejected()
}

// AppendError is returned by Writer.Append when the snapshot event
// could not be appended to the Event Stream. The Event Stream Metadata
// has not been touched.
//
// Use errors.Is with ErrAppendRejected or ErrConnectivity to tell the two causes apart.
type AppendError struct {
	StreamID event.StreamID
	Rejected bool
	Err      error
}

func (err *AppendError) Error() string {
	kind := "connectivity fault"
	if err.Rejected {
		kind = "rejected"
	}

	return fmt.Sprintf("snapshot: failed to append snapshot to stream '%s' (%s), %v", err.StreamID, kind, err.Err)
}

// Unwrap returns the error returned by the event.Appender.
func (err *AppendError) Unwrap() error { return err.Err }

// Is matches ErrAppendRejected or ErrConnectivity, depending on the cause.
func (err *AppendError) Is(target error) bool {
	if err.Rejected {
		return target == ErrAppendRejected
	}

	return target == ErrConnectivity
}

// PointerUpdateError is returned by Writer.Append when the snapshot event
// has been durably appended, but the Event Stream Metadata could not be updated.
//
// Result holds the outcome of the append: the pointer update alone
// can be retried with Writer.UpdatePointer, without appending the snapshot again.
type PointerUpdateError struct {
	Result Result
	Err    error
}

func (err *PointerUpdateError) Error() string {
	return fmt.Sprintf(
		"snapshot: snapshot appended to stream '%s' at version %d, but pointer update failed, %v",
		err.Result.StreamID,
		err.Result.NextExpectedVersion,
		err.Err,
	)
}

// Unwrap returns the error returned by the event.MetadataStore.
func (err *PointerUpdateError) Unwrap() error { return err.Err }

// Is matches ErrPointerUpdateFailed.
func (err *PointerUpdateError) Is(target error) bool { return target == ErrPointerUpdateFailed }

package snapshot

import (
	"github.com/get-eventually/go-eventually-snapshot/message"
)

// Message is a message.Message carrying the compacted state of an
// Aggregate, recognized as a snapshot by IsSnapshot.
type Message interface {
	message.Message
	IsSnapshot() bool
}

// Envelope bundles a snapshot Message with optional Metadata.
type Envelope = message.Envelope[Message]

// Event is a generic snapshot payload, holding the State of
// an Aggregate under the message name specified in Type.
type Event[T any] struct {
	Type  string
	State T
}

// Name returns the Type of the snapshot.
func (e Event[T]) Name() string { return e.Type }

// IsSnapshot implements the snapshot.Message interface.
func (Event[T]) IsSnapshot() bool { return true }

// IsSnapshot reports whether the provided message is a snapshot.
func IsSnapshot(msg message.Message) bool {
	snapshot, ok := msg.(Message)
	return ok && snapshot.IsSnapshot()
}

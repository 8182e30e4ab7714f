// Package internal contains message payloads and serdes shared by the
// test suites of the Event Store implementations.
package internal

import (
	"github.com/get-eventually/go-eventually-snapshot/serde"
)

// IntPayload represents a generic integer message payload
// that can be used in test functions.
type IntPayload int64

// Name is the payload name of the IntPayload type.
func (IntPayload) Name() string { return "int_payload" }

// StringPayload represents a generic string message payload
// that can be used in test functions.
type StringPayload string

// Name is the payload name of the StringPayload type.
func (StringPayload) Name() string { return "string_payload" }

// SnapshotPayload is a message payload recognized as a snapshot,
// carrying an integer state.
type SnapshotPayload int64

// Name is the payload name of the SnapshotPayload type.
func (SnapshotPayload) Name() string { return "snapshot_payload" }

// IsSnapshot marks the payload as a snapshot.
func (SnapshotPayload) IsSnapshot() bool { return true }

// NewMessageSerde returns a serde.MessageJSON that can (de)serialize
// all the payloads in this package.
func NewMessageSerde() *serde.MessageJSON {
	s := serde.NewMessageJSON()
	serde.RegisterJSON[IntPayload](s, IntPayload(0).Name())
	serde.RegisterJSON[StringPayload](s, StringPayload("").Name())
	serde.RegisterJSON[SnapshotPayload](s, SnapshotPayload(0).Name())

	return s
}

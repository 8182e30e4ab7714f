// Package event contains the Domain Event types, and the Event Store
// interfaces used to append to and stream from Event Streams, including
// the Stream Metadata side-channel attached to each Event Stream.
package event

import (
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// Event is a Message representing some Domain information that has happened
// in the past, which is of vital information to the Domain itself.
//
// Event type names should be phrased in the past tense, to enforce the notion
// of "information happened in the past".
type Event message.Message

// Envelope contains a Domain Event and possible metadata associated to it.
type Envelope message.GenericEnvelope

// ToEnvelope returns an Envelope instance with the provided Event
// instance and no Metadata.
func ToEnvelope(event Event) Envelope {
	return Envelope{
		Message:  event,
		Metadata: nil,
	}
}

// StreamID is the unique identifier of an Event Stream.
type StreamID string

// Persisted represents an Domain Event that has been persisted into the Event Store.
type Persisted struct {
	StreamID
	version.Version
	Envelope
}

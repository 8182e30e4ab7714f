// Package message exposes the generic Message type, used to represent
// a message in a system (e.g. a Domain Event or a Snapshot), together
// with the Metadata side-channel attached to messages and Event Streams.
package message

// Message is a Message payload.
//
// Each payload should have a unique name identifier, that can be used
// to uniquely route a message to its type.
type Message interface {
	Name() string
}

// Metadata contains some data related to a Message, or to an Event Stream,
// that are not functional for the data itself, but instead functioning
// as supporting information to provide additional context.
type Metadata map[string]string

// With returns a new Metadata reference holding the value addressed using
// the specified key.
func (m Metadata) With(key, value string) Metadata {
	if m == nil {
		m = make(Metadata)
	}

	m[key] = value

	return m
}

// Merge merges the other Metadata provided in input with the current map,
// overwriting the keys found in both with the values in other.
// Returns a pointer to the extended metadata map.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		return other.Clone()
	}

	for k, v := range other {
		m[k] = v
	}

	return m
}

// Clone returns a shallow copy of the Metadata map.
// Cloning a nil Metadata returns nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}

	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}

// GenericEnvelope is an Envelope type that can be used when the concrete
// Message type in the Envelope is not of interest.
type GenericEnvelope Envelope[Message]

// Envelope bundles a Message to be exchanged with optional Metadata support.
type Envelope[T Message] struct {
	Message  T
	Metadata Metadata
}

// ToGenericEnvelope maps the Envelope instance into a GenericEnvelope one.
func (e Envelope[T]) ToGenericEnvelope() GenericEnvelope {
	return GenericEnvelope{
		Message:  e.Message,
		Metadata: e.Metadata,
	}
}

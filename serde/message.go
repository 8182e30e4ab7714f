package serde

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/get-eventually/go-eventually-snapshot/message"
)

var _ Bytes[message.Message] = new(MessageJSON)

type messageJSONEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageJSON is a serde.Bytes implementation for message.Message values,
// encoding each message as JSON together with its name, so that it can be
// decoded back into the Go type registered for that name.
//
// Use RegisterJSON to add supported message types.
type MessageJSON struct {
	mx       sync.RWMutex
	decoders map[string]func(data []byte) (message.Message, error)

	// raw decodes unregistered names into RawMessage values.
	raw bool
}

// RawMessage is a message.Message whose payload has been left encoded,
// returned by a MessageJSON created with NewRawMessageJSON.
type RawMessage struct {
	Type    string
	Payload json.RawMessage
}

// Name returns the name of the encoded message.
func (m RawMessage) Name() string { return m.Type }

// MarshalJSON returns the encoded payload as-is.
func (m RawMessage) MarshalJSON() ([]byte, error) {
	if m.Payload == nil {
		return []byte("null"), nil
	}

	return m.Payload, nil
}

// NewMessageJSON returns an empty MessageJSON serde.
func NewMessageJSON() *MessageJSON {
	return &MessageJSON{
		decoders: make(map[string]func(data []byte) (message.Message, error)),
	}
}

// NewRawMessageJSON returns a MessageJSON serde that decodes messages
// with an unregistered name into RawMessage values, instead of failing
// with ErrUnknownMessage.
func NewRawMessageJSON() *MessageJSON {
	s := NewMessageJSON()
	s.raw = true

	return s
}

// RegisterJSON registers the type T under the given message name.
//
// Both value and pointer types are supported.
func RegisterJSON[T message.Message](s *MessageJSON, name string) *MessageJSON {
	s.mx.Lock()
	defer s.mx.Unlock()

	deserializer := NewJSONDeserializer[T]()

	s.decoders[name] = func(data []byte) (message.Message, error) {
		msg, err := deserializer.Deserialize(data)
		if err != nil {
			return nil, err
		}

		return msg, nil
	}

	return s
}

// Serialize implements the serde.Serializer interface.
func (s *MessageJSON) Serialize(msg message.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("serde.MessageJSON: failed to serialize '%s' payload, %w", msg.Name(), err)
	}

	data, err := json.Marshal(messageJSONEnvelope{
		Type:    msg.Name(),
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("serde.MessageJSON: failed to serialize envelope, %w", err)
	}

	return data, nil
}

// Deserialize implements the serde.Deserializer interface.
func (s *MessageJSON) Deserialize(data []byte) (message.Message, error) {
	var envelope messageJSONEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("serde.MessageJSON: failed to deserialize envelope, %w", err)
	}

	s.mx.RLock()
	decode, ok := s.decoders[envelope.Type]
	s.mx.RUnlock()

	if !ok && s.raw {
		return RawMessage{Type: envelope.Type, Payload: envelope.Payload}, nil
	}

	if !ok {
		return nil, fmt.Errorf("serde.MessageJSON: %w, '%s'", ErrUnknownMessage, envelope.Type)
	}

	msg, err := decode(envelope.Payload)
	if err != nil {
		return nil, fmt.Errorf("serde.MessageJSON: failed to deserialize '%s' payload, %w", envelope.Type, err)
	}

	return msg, nil
}

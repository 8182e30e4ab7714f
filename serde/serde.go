// Package serde contains the serialization interfaces used to persist
// Domain Events and snapshots in the Event Stores, and to encode the
// pointer notifications published to Kafka.
//
// MessageJSON is the serde used by the Event Stores: it tags every
// message with its name, to decode it back to the registered Go type.
package serde

// Serializer encodes a Src value, e.g. a message.Message, into Dst.
type Serializer[Src any, Dst any] interface {
	Serialize(src Src) (Dst, error)
}

// SerializerFunc is a Serializer backed by a function.
type SerializerFunc[Src any, Dst any] func(src Src) (Dst, error)

// Serialize calls fn.
func (fn SerializerFunc[Src, Dst]) Serialize(src Src) (Dst, error) { return fn(src) }

// Deserializer decodes a Src value back from Dst.
type Deserializer[Src any, Dst any] interface {
	Deserialize(dst Dst) (Src, error)
}

// DeserializerFunc is a Deserializer backed by a function.
type DeserializerFunc[Src any, Dst any] func(dst Dst) (Src, error)

// Deserialize calls fn.
func (fn DeserializerFunc[Src, Dst]) Deserialize(dst Dst) (Src, error) { return fn(dst) }

// Serde both encodes and decodes Src values.
type Serde[Src any, Dst any] interface {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fused is a Serde made of separate Serializer and Deserializer values.
type Fused[Src any, Dst any] struct {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fuse returns a Fused Serde out of the provided halves.
func Fuse[Src, Dst any](serializer Serializer[Src, Dst], deserializer Deserializer[Src, Dst]) Fused[Src, Dst] {
	return Fused[Src, Dst]{
		Serializer:   serializer,
		Deserializer: deserializer,
	}
}

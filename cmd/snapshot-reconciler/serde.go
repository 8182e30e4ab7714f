package main

import (
	"github.com/get-eventually/go-eventually-snapshot/message"
	"github.com/get-eventually/go-eventually-snapshot/serde"
)

var _ serde.Bytes[message.Message] = snapshotTypesSerde{}

// rawSnapshot is a serde.RawMessage recognized as a snapshot by its name.
type rawSnapshot struct {
	serde.RawMessage
}

func (rawSnapshot) IsSnapshot() bool { return true }

// snapshotTypesSerde decodes every message opaquely, marking the ones
// with a configured snapshot name as snapshots.
type snapshotTypesSerde struct {
	*serde.MessageJSON

	types map[string]struct{}
}

func newSnapshotTypesSerde(types []string) snapshotTypesSerde {
	s := snapshotTypesSerde{
		MessageJSON: serde.NewRawMessageJSON(),
		types:       make(map[string]struct{}, len(types)),
	}

	for _, t := range types {
		s.types[t] = struct{}{}
	}

	return s
}

func (s snapshotTypesSerde) Deserialize(data []byte) (message.Message, error) {
	msg, err := s.MessageJSON.Deserialize(data)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by serde.MessageJSON.
	}

	if raw, ok := msg.(serde.RawMessage); ok {
		if _, isSnapshot := s.types[raw.Type]; isSnapshot {
			return rawSnapshot{RawMessage: raw}, nil
		}
	}

	return msg, nil
}

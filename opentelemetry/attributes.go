package opentelemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys used by the instrumentation in this package.
const (
	ErrorKey                      attribute.Key = "error"
	EventStreamIDKey              attribute.Key = "event_stream.id"
	EventStreamVersionSelectorKey attribute.Key = "event_stream.select_from_version"
	EventStreamExpectedVersionKey attribute.Key = "event_stream.expected_version"
	EventStreamNewVersionKey      attribute.Key = "event_stream.new_version"
	EventStoreNumEventsKey        attribute.Key = "event_store.num_events"
	EventStreamMetadataKeysKey    attribute.Key = "event_stream.metadata_keys"
	SnapshotTypeKey               attribute.Key = "snapshot.type"
	SnapshotOutcomeKey            attribute.Key = "snapshot.outcome"
)

// Outcomes of a snapshot write, used as SnapshotOutcomeKey values.
const (
	OutcomeOK                  = "ok"
	OutcomeInvalid             = "invalid"
	OutcomeRejected            = "rejected"
	OutcomeConnectivity        = "connectivity"
	OutcomePointerUpdateFailed = "pointer_update_failed"
)

// Package snapshot appends Aggregate snapshots to the same Event Stream
// they summarize, and keeps track of the latest one in the Event Stream
// Metadata, so that readers can resume replaying the Event Stream
// from the snapshot instead of from the beginning.
//
// A snapshot write is made of two durable, non-atomic steps:
//
//  1. the snapshot event is appended to the Event Stream (see event.Appender);
//  2. the "lastSnapshotVersion" key of the Event Stream Metadata is updated
//     to the version returned by the append (see event.MetadataStore).
//
// If the second step fails, the snapshot is still part of the Event Stream
// and the pointer is stale, never dangling. Writer.Append reports this case
// with a PointerUpdateError, and Writer.UpdatePointer can be used to retry
// only the second step. Reconciler re-derives the pointer from the
// Event Stream contents, for cases where the failure went unnoticed.
//
// The pointer value is the next expected version returned by the
// event.Appender, which is also the version of the snapshot event itself.
// Use ReplaySelector to resume reading the Event Stream from the snapshot,
// included.
//
// Writers for the same Event Stream are not synchronized: when two snapshots
// are written concurrently, the pointer holds the version written by
// the last Metadata update to land, not necessarily the highest one.
package snapshot

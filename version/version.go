// Package version contains the types used to address positions in an
// Event Stream, and to express optimistic concurrency checks when appending.
package version

// Version is the type to specify Event Stream versions.
//
// Versions start from 1, as they represent the length of a single Event Stream:
// the zero value is the version of an empty (or not yet existing) Event Stream.
type Version uint32

// Empty is the version of an Event Stream with no events in it.
const Empty Version = 0

// SelectFromBeginning is a Selector value that will return all Domain Events in an Event Stream.
var SelectFromBeginning = Selector{From: 0}

// Selector specifies which slice of the Event Stream to select when streaming Domain Events
// from the Event Store.
//
// From is inclusive: an event with Version equal to From is part of the selection.
type Selector struct {
	From Version
}

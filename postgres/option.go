package postgres

// Option can be used to change the configuration of an object.
type Option[T any] interface {
	apply(T)
}

type option[T any] func(T)

func newOption[T any](f func(T)) option[T] { return option[T](f) }

func (apply option[T]) apply(val T) { apply(val) }

const (
	// DefaultEventsTableName is the default Domain Events table name an EventStore points to.
	DefaultEventsTableName = "events"
	// DefaultStreamsTableName is the default Event Streams table name an EventStore points to.
	DefaultStreamsTableName = "event_streams"
)

// WithEventsTableName allows you to specify a different Events table name
// that an EventStore should manage.
//
// The table must have the same schema as the one created by RunMigrations.
func WithEventsTableName(tableName string) Option[*EventStore] {
	return newOption(func(store *EventStore) {
		store.eventsTableName = tableName
	})
}

// WithStreamsTableName allows you to specify a different Event Streams table name
// that an EventStore should manage.
//
// The table must have the same schema as the one created by RunMigrations.
func WithStreamsTableName(tableName string) Option[*EventStore] {
	return newOption(func(store *EventStore) {
		store.streamsTableName = tableName
	})
}

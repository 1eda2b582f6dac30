package postgresengine

import (
	"github.com/mccolljr/flurry/eventstore"
)

// Logger interface for SQL query logging, operational metrics, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithEventsTableName sets the events table name for the EventStore.
func WithEventsTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyTableNameSupplied
		}

		es.eventsTableName = tableName

		return nil
	}
}

// WithSnapshotsTableName sets the snapshots table name for the EventStore.
func WithSnapshotsTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyTableNameSupplied
		}

		es.snapshotsTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Row counts and durations (production-safe)
// Warn level: Non-critical issues like an unavailable timestamp conversion function
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithTimestampConversion sets the fmt pattern wrapping a text expression in
// a SQL function that converts it to timestamptz, for example "my_parse(%s)".
// When set, the schema probe for the built-in conversion function is skipped.
func WithTimestampConversion(pattern string) Option {
	return func(es *EventStore) error {
		es.timestampConvert = pattern
		es.timestampConvertFixed = true

		return nil
	}
}

package eventstore

import (
	"context"
	"errors"
)

// Storage is the append/query contract implemented by every backend.
//
// Only the event log is ground truth. Snapshots are a derived, replaceable
// cache keyed by (aggregate-type, identifier); the absence of a snapshot is
// not an error.
type Storage interface {
	// SaveEvents appends events in the given order, assigning monotonic
	// sequence numbers. The append is all-or-nothing within one call.
	SaveEvents(ctx context.Context, events Records) error

	// LoadEvents returns events ordered by ascending sequence number.
	// A nil query returns every event. Backends may push part of the query
	// down to their native filter language; the remainder is re-applied
	// in memory after decoding, so results are correct regardless of how
	// much was pushed down.
	LoadEvents(ctx context.Context, query Predicate) (Records, error)

	// SaveSnapshots upserts each snapshot by its (type, identifier) key.
	// Last write wins.
	SaveSnapshots(ctx context.Context, snapshots Records) error

	// LoadSnapshots returns snapshots with the same filtering discipline
	// as LoadEvents.
	LoadSnapshots(ctx context.Context, query Predicate) (Records, error)

	// Close releases pooled resources. It is idempotent.
	Close(ctx context.Context) error
}

// Storage errors are propagated to the caller; backends do not retry
// automatically.
var (
	// ErrStorageClosed is returned by operations on a closed store.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrConnectingFailed is returned when the backing store cannot be reached.
	ErrConnectingFailed = errors.New("connecting to the backing store failed")

	// ErrInitializingFailed is returned when schema initialization fails.
	// Initialization is idempotent and is re-attempted on the next access.
	ErrInitializingFailed = errors.New("initializing the backing store failed")

	// ErrBuildingQueryFailed is returned when a query cannot be rendered to SQL.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingEventsFailed is returned when the event query fails to execute.
	ErrQueryingEventsFailed = errors.New("querying events failed")

	// ErrAppendingEventsFailed is returned when the event append fails to execute.
	ErrAppendingEventsFailed = errors.New("appending events failed")

	// ErrQueryingSnapshotsFailed is returned when the snapshot query fails to execute.
	ErrQueryingSnapshotsFailed = errors.New("querying snapshots failed")

	// ErrSavingSnapshotsFailed is returned when the snapshot upsert fails to execute.
	ErrSavingSnapshotsFailed = errors.New("saving snapshots failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
	ErrScanningDBRowFailed = errors.New("failed to scan database row")

	// ErrDecodingRecordFailed is returned when a stored row cannot be decoded
	// into a registered record type.
	ErrDecodingRecordFailed = errors.New("failed to decode stored record")

	// ErrEmptyTableNameSupplied is returned when a table name option is empty.
	ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

	// ErrEmptyDSNSupplied is returned when a backend is constructed with an empty DSN.
	ErrEmptyDSNSupplied = errors.New("empty DSN supplied")

	// ErrNilDatabaseConnection is returned when a backend is constructed with a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrNilRegistry is returned when a backend is constructed with a nil registry.
	ErrNilRegistry = errors.New("registry must not be nil")
)

package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/eventstore/postgresengine/internal/adapters"
	"github.com/mccolljr/flurry/eventstore/sqlfilter"
	"github.com/mccolljr/flurry/rwlock"
)

const (
	defaultEventsTableName    = "__events"
	defaultSnapshotsTableName = "__snapshots"

	logMsgBuildSelectQueryFailed = "failed to build select query"
	logMsgBuildInsertQueryFailed = "failed to build insert query"
	logMsgBuildUpsertQueryFailed = "failed to build upsert query"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgDecodeRecordFailed     = "failed to decode stored record"
	logMsgConnectFailed          = "failed to create connection pool"
	logMsgInitSchemaFailed       = "failed to initialize schema"
	logMsgTimestampFnUnavailable = "timestamp conversion function is unavailable"
	logMsgSchemaInitialized      = "schema initialized"
	logMsgEventsLoaded           = "events loaded"
	logMsgEventsAppended         = "events appended"
	logMsgSnapshotsLoaded        = "snapshots loaded"
	logMsgSnapshotsSaved         = "snapshots saved"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "storage operation: "

	logAttrError       = "error"
	logAttrQuery       = "query"
	logAttrRecordType  = "record_type"
	logAttrRecordCount = "record_count"
	logAttrDurationMS  = "duration_ms"

	logActionQuery  = "query"
	logActionAppend = "append"
	logActionUpsert = "upsert"

	colSequenceNum   = "sequence_num"
	colEventType     = "event_type"
	colEventData     = "event_data"
	colAggregateID   = "aggregate_id"
	colAggregateType = "aggregate_type"
	colAggregateData = "aggregate_data"

	dialectPostgres = "postgres"
	castJsonb       = "?::jsonb"

	timestampConvertPattern = "parse_timestamptz(%s)"
)

var json = jsoniter.ConfigFastest

type (
	sqlQueryString = string
	queryDuration  = time.Duration
)

// EventStore is a Postgres-backed eventstore.Storage. Events live in an
// append-only table keyed by a monotonic sequence number; snapshots live in a
// second table upserted by identifier. The record fields are stored in a
// JSONB column, so predicate push-down uses the sqlfilter compiler and any
// residual is re-applied after decoding.
//
// Connection pool and schema initialization are lazy: nothing touches the
// database until the first operation. Initialization is guarded by a
// reader-writer lock with a read-locked fast path and a write-locked slow
// path that re-checks before creating, so concurrent first operations
// initialize exactly once. Schema creation is idempotent and a failed
// initialization is retried on the next access.
type EventStore struct {
	registry *eventstore.Registry
	setup    *rwlock.RWLock

	dsn    string
	ownsDB bool

	// guarded by setup
	db          adapters.DBAdapter
	initialized bool
	closed      bool

	eventsTableName    string
	snapshotsTableName string
	logger             Logger

	// written once during initialization
	timestampConvert      string
	timestampConvertFixed bool
}

// NewEventStore creates an EventStore that connects lazily using the given
// DSN. The pool it creates is owned by the store and released by Close.
func NewEventStore(dsn string, registry *eventstore.Registry, options ...Option) (*EventStore, error) {
	if dsn == "" {
		return nil, eventstore.ErrEmptyDSNSupplied
	}

	es := &EventStore{dsn: dsn, ownsDB: true}

	return finishSetup(es, registry, options)
}

// NewEventStoreFromPGXPool creates an EventStore using a pgx Pool with optional configuration.
// The caller keeps ownership of the pool; Close does not release it.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, registry *eventstore.Registry, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	es := &EventStore{db: adapters.NewPGXAdapter(db)}

	return finishSetup(es, registry, options)
}

// NewEventStoreFromSQLDB creates an EventStore using a sql.DB with optional configuration.
// The caller keeps ownership of the connection; Close does not release it.
func NewEventStoreFromSQLDB(db *sql.DB, registry *eventstore.Registry, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	es := &EventStore{db: adapters.NewSQLAdapter(db)}

	return finishSetup(es, registry, options)
}

// NewEventStoreFromSQLX creates an EventStore using a sqlx.DB with optional configuration.
// The caller keeps ownership of the connection; Close does not release it.
func NewEventStoreFromSQLX(db *sqlx.DB, registry *eventstore.Registry, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	es := &EventStore{db: adapters.NewSQLXAdapter(db)}

	return finishSetup(es, registry, options)
}

func finishSetup(es *EventStore, registry *eventstore.Registry, options []Option) (*EventStore, error) {
	if registry == nil {
		return nil, eventstore.ErrNilRegistry
	}

	es.registry = registry
	es.setup = rwlock.New()
	es.eventsTableName = defaultEventsTableName
	es.snapshotsTableName = defaultSnapshotsTableName

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// SaveEvents implements eventstore.Storage. All events of one call are
// appended inside a single transaction.
func (es *EventStore) SaveEvents(ctx context.Context, events eventstore.Records) error {
	if len(events) == 0 {
		return nil
	}

	db, err := es.adapter(ctx)
	if err != nil {
		return err
	}

	statements := make([]sqlQueryString, 0, len(events))
	for _, event := range events {
		statement, buildErr := es.buildInsertQuery(event)
		if buildErr != nil {
			return buildErr
		}

		statements = append(statements, statement)
	}

	start := time.Now()
	execErr := db.InTransaction(ctx, func(tx adapters.DBExecutor) error {
		for _, statement := range statements {
			if _, err := tx.Exec(ctx, statement); err != nil {
				if es.logger != nil {
					es.logger.Error(logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, statement)
				}

				return err
			}
		}

		return nil
	})
	duration := time.Since(start)
	es.logQueryWithDuration(fmt.Sprintf("%d inserts", len(statements)), logActionAppend, duration)

	if execErr != nil {
		return errors.Join(eventstore.ErrAppendingEventsFailed, execErr)
	}

	es.logOperation(
		logMsgEventsAppended,
		logAttrRecordCount, len(events),
		logAttrDurationMS, es.durationToMilliseconds(duration))

	return nil
}

// LoadEvents implements eventstore.Storage. The query is split into a SQL
// clause and a residual; rows ordered by ascending sequence number are
// decoded through the registry and the residual filters the decoded records.
func (es *EventStore) LoadEvents(ctx context.Context, query eventstore.Predicate) (eventstore.Records, error) {
	db, err := es.adapter(ctx)
	if err != nil {
		return nil, err
	}

	records, err := es.loadRecords(ctx, db, recordSource{
		table:     es.eventsTableName,
		typeCol:   colEventType,
		dataCol:   colEventData,
		construct: es.registry.ConstructEvent,
		queryErr:  eventstore.ErrQueryingEventsFailed,
	}, query)
	if err != nil {
		return nil, err
	}

	es.logOperation(logMsgEventsLoaded, logAttrRecordCount, len(records))

	return records, nil
}

// SaveSnapshots implements eventstore.Storage. Each snapshot is upserted by
// its identifier, computed as "{type}:{idFieldValue}"; last write wins. All
// snapshots of one call are written inside a single transaction.
func (es *EventStore) SaveSnapshots(ctx context.Context, snapshots eventstore.Records) error {
	if len(snapshots) == 0 {
		return nil
	}

	db, err := es.adapter(ctx)
	if err != nil {
		return err
	}

	statements := make([]sqlQueryString, 0, len(snapshots))
	for _, snapshot := range snapshots {
		statement, buildErr := es.buildUpsertQuery(snapshot)
		if buildErr != nil {
			return buildErr
		}

		statements = append(statements, statement)
	}

	start := time.Now()
	execErr := db.InTransaction(ctx, func(tx adapters.DBExecutor) error {
		for _, statement := range statements {
			if _, err := tx.Exec(ctx, statement); err != nil {
				if es.logger != nil {
					es.logger.Error(logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, statement)
				}

				return err
			}
		}

		return nil
	})
	duration := time.Since(start)
	es.logQueryWithDuration(fmt.Sprintf("%d upserts", len(statements)), logActionUpsert, duration)

	if execErr != nil {
		return errors.Join(eventstore.ErrSavingSnapshotsFailed, execErr)
	}

	es.logOperation(
		logMsgSnapshotsSaved,
		logAttrRecordCount, len(snapshots),
		logAttrDurationMS, es.durationToMilliseconds(duration))

	return nil
}

// LoadSnapshots implements eventstore.Storage with the same filtering
// discipline as LoadEvents.
func (es *EventStore) LoadSnapshots(ctx context.Context, query eventstore.Predicate) (eventstore.Records, error) {
	db, err := es.adapter(ctx)
	if err != nil {
		return nil, err
	}

	records, err := es.loadRecords(ctx, db, recordSource{
		table:     es.snapshotsTableName,
		typeCol:   colAggregateType,
		dataCol:   colAggregateData,
		construct: es.registry.ConstructAggregate,
		queryErr:  eventstore.ErrQueryingSnapshotsFailed,
	}, query)
	if err != nil {
		return nil, err
	}

	es.logOperation(logMsgSnapshotsLoaded, logAttrRecordCount, len(records))

	return records, nil
}

// Close implements eventstore.Storage. A pool created by the store is
// released; injected connections stay open for their owner. Close is
// idempotent and any later operation fails with eventstore.ErrStorageClosed.
func (es *EventStore) Close(ctx context.Context) error {
	hold, err := es.setup.Lock(ctx)
	if err != nil {
		return err
	}
	defer hold.Release()

	if es.closed {
		return nil
	}
	es.closed = true

	if es.db != nil && es.ownsDB {
		return es.db.Close()
	}

	return nil
}

// adapter returns the initialized database adapter, connecting and creating
// the schema on first use. Double-checked: the read-locked fast path covers
// every call after the first, the upgraded write hold re-checks before
// initializing so only one goroutine pays the cost.
func (es *EventStore) adapter(ctx context.Context) (adapters.DBAdapter, error) {
	hold, err := es.setup.RLock(ctx)
	if err != nil {
		return nil, err
	}

	if es.closed {
		hold.Release()
		return nil, eventstore.ErrStorageClosed
	}

	if es.initialized {
		db := es.db
		hold.Release()

		return db, nil
	}

	if err = hold.Upgrade(ctx); err != nil {
		return nil, err
	}
	defer hold.Release()

	if es.closed {
		return nil, eventstore.ErrStorageClosed
	}

	if es.initialized {
		return es.db, nil
	}

	if err = es.initialize(ctx); err != nil {
		return nil, err
	}

	return es.db, nil
}

// initialize runs under the write hold. On failure everything it created is
// torn down again so the next access retries from scratch.
func (es *EventStore) initialize(ctx context.Context) error {
	createdPool := false

	if es.db == nil {
		pool, err := pgxpool.New(ctx, es.dsn)
		if err != nil {
			if es.logger != nil {
				es.logger.Error(logMsgConnectFailed, logAttrError, err.Error())
			}

			return errors.Join(eventstore.ErrConnectingFailed, err)
		}

		es.db = adapters.NewPGXAdapter(pool)
		createdPool = true
	}

	if err := es.initSchema(ctx); err != nil {
		if createdPool {
			_ = es.db.Close()
			es.db = nil
		}

		return err
	}

	es.initialized = true
	es.logOperation(logMsgSchemaInitialized)

	return nil
}

// initSchema creates the tables inside one transaction, then probes the
// timestamp conversion function in a second step so that missing privileges
// for CREATE FUNCTION cannot fail table creation.
func (es *EventStore) initSchema(ctx context.Context) error {
	createEvents := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s BIGSERIAL NOT NULL PRIMARY KEY,
			%s VARCHAR(128) NOT NULL,
			%s JSONB NOT NULL DEFAULT '{}'
		)`,
		es.eventsTableName, colSequenceNum, colEventType, colEventData)

	createSnapshots := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s BIGSERIAL NOT NULL PRIMARY KEY,
			%s VARCHAR(128) NOT NULL UNIQUE,
			%s VARCHAR(128) NOT NULL,
			%s JSONB NOT NULL DEFAULT '{}'
		)`,
		es.snapshotsTableName, colSequenceNum, colAggregateID, colAggregateType, colAggregateData)

	err := es.db.InTransaction(ctx, func(tx adapters.DBExecutor) error {
		if _, execErr := tx.Exec(ctx, createEvents); execErr != nil {
			return execErr
		}

		if _, execErr := tx.Exec(ctx, createSnapshots); execErr != nil {
			return execErr
		}

		return nil
	})
	if err != nil {
		if es.logger != nil {
			es.logger.Error(logMsgInitSchemaFailed, logAttrError, err.Error())
		}

		return errors.Join(eventstore.ErrInitializingFailed, err)
	}

	es.probeTimestampConversion(ctx)

	return nil
}

// probeTimestampConversion installs a safe text-to-timestamptz parser.
// If the function cannot be created the store still works, timestamp
// comparisons just stay in the in-memory residual instead of the SQL clause.
func (es *EventStore) probeTimestampConversion(ctx context.Context) {
	if es.timestampConvertFixed {
		return
	}

	createFunction := `
		CREATE OR REPLACE FUNCTION parse_timestamptz(raw text)
			RETURNS timestamp with time zone
		AS $$
		BEGIN
			RETURN raw::timestamptz;
		EXCEPTION WHEN others THEN
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql IMMUTABLE`

	if _, err := es.db.Exec(ctx, createFunction); err != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgTimestampFnUnavailable, logAttrError, err.Error())
		}

		return
	}

	es.timestampConvert = timestampConvertPattern
}

// recordSource describes one of the two tables for loadRecords.
type recordSource struct {
	table     string
	typeCol   string
	dataCol   string
	construct func(name string, data map[string]any) (eventstore.Record, error)
	queryErr  error
}

func (es *EventStore) loadRecords(
	ctx context.Context,
	db adapters.DBAdapter,
	source recordSource,
	query eventstore.Predicate,
) (eventstore.Records, error) {

	compiled := sqlfilter.Compile(query, sqlfilter.Options{
		TypeColumn:       source.typeCol,
		DataColumn:       source.dataCol,
		TimestampConvert: es.timestampConvert,
	})

	sqlQuery, buildErr := es.buildSelectQuery(source, compiled)
	if buildErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildSelectQueryFailed, logAttrError, buildErr.Error())
		}

		return nil, buildErr
	}

	rows, queryErr := es.executeQuery(ctx, db, sqlQuery, source.queryErr)
	if queryErr != nil {
		return nil, queryErr
	}
	defer es.closeRows(rows)

	return es.scanRecords(rows, source, compiled.Residual)
}

func (es *EventStore) buildSelectQuery(source recordSource, compiled sqlfilter.Compiled) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(source.table).
		Select(source.typeCol, source.dataCol).
		Order(goqu.I(colSequenceNum).Asc())

	if compiled.Clause != "" {
		selectStmt = selectStmt.Where(goqu.L(compiled.Clause, compiled.Args...))
	}

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildInsertQuery(event eventstore.Record) (sqlQueryString, error) {
	dataJSON, marshalErr := json.MarshalToString(event.ToMap())
	if marshalErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, marshalErr)
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.eventsTableName).
		Cols(colEventType, colEventData).
		Vals(goqu.Vals{event.RecordType(), goqu.L(castJsonb, dataJSON)})

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildInsertQueryFailed, logAttrError, toSQLErr.Error(), logAttrRecordType, event.RecordType())
		}

		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (es *EventStore) buildUpsertQuery(snapshot eventstore.Record) (sqlQueryString, error) {
	recordType := snapshot.RecordType()

	idField, idErr := es.registry.AggregateIDField(recordType)
	if idErr != nil {
		return "", idErr
	}

	identifier := fmt.Sprintf("%s:%v", recordType, snapshot.ToMap()[idField])

	dataJSON, marshalErr := json.MarshalToString(snapshot.ToMap())
	if marshalErr != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, marshalErr)
	}

	upsertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.snapshotsTableName).
		Cols(colAggregateID, colAggregateType, colAggregateData).
		Vals(goqu.Vals{identifier, recordType, goqu.L(castJsonb, dataJSON)}).
		OnConflict(goqu.DoUpdate(colAggregateID, goqu.Record{
			colAggregateData: goqu.L("excluded." + colAggregateData),
		}))

	sqlQuery, _, toSQLErr := upsertStmt.ToSQL()
	if toSQLErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgBuildUpsertQueryFailed, logAttrError, toSQLErr.Error(), logAttrRecordType, recordType)
		}

		return "", errors.Join(eventstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// executeQuery executes the SQL query and logs it with timing information.
// Failures are wrapped in the sentinel of the source being queried.
func (es *EventStore) executeQuery(ctx context.Context, db adapters.DBAdapter, sqlQuery string, sentinel error) (
	adapters.DBRows,
	error,
) {

	start := time.Now()
	rows, queryErr := db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	es.logQueryWithDuration(sqlQuery, logActionQuery, duration)

	if queryErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgDBQueryFailed, logAttrError, queryErr.Error(), logAttrQuery, sqlQuery)
		}

		return nil, errors.Join(sentinel, queryErr)
	}

	return rows, nil
}

// scanRecords decodes rows via the registry and applies the residual
// predicate to each decoded record before it is included.
func (es *EventStore) scanRecords(
	rows adapters.DBRows,
	source recordSource,
	residual eventstore.Predicate,
) (eventstore.Records, error) {

	records := make(eventstore.Records, 0)

	for rows.Next() {
		var (
			recordType string
			rawData    []byte
		)

		if scanErr := rows.Scan(&recordType, &rawData); scanErr != nil {
			if es.logger != nil {
				es.logger.Error(logMsgScanRowFailed, logAttrError, scanErr.Error())
			}

			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		var data map[string]any
		if unmarshalErr := json.Unmarshal(rawData, &data); unmarshalErr != nil {
			if es.logger != nil {
				es.logger.Error(logMsgDecodeRecordFailed, logAttrError, unmarshalErr.Error(), logAttrRecordType, recordType)
			}

			return nil, errors.Join(eventstore.ErrDecodingRecordFailed, unmarshalErr)
		}

		record, constructErr := source.construct(recordType, data)
		if constructErr != nil {
			if es.logger != nil {
				es.logger.Error(logMsgDecodeRecordFailed, logAttrError, constructErr.Error(), logAttrRecordType, recordType)
			}

			return nil, errors.Join(eventstore.ErrDecodingRecordFailed, constructErr)
		}

		if residual != nil && !eventstore.Evaluate(residual, record) {
			continue
		}

		records = append(records, record)
	}

	if iterErr := rows.Err(); iterErr != nil {
		if es.logger != nil {
			es.logger.Error(logMsgDBQueryFailed, logAttrError, iterErr.Error())
		}

		return nil, errors.Join(source.queryErr, iterErr)
	}

	return records, nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if es.logger != nil {
			es.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if the logger is configured.
func (es *EventStore) logQueryWithDuration(sqlQuery string, action string, duration queryDuration) {
	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, es.durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (es *EventStore) logOperation(action string, args ...any) {
	if es.logger != nil {
		es.logger.Info(logMsgOperation+action, args...)
	}
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

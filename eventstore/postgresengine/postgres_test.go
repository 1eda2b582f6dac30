package postgresengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mccolljr/flurry/eventstore"
	"github.com/mccolljr/flurry/eventstore/postgresengine"
	"github.com/mccolljr/flurry/testutil/config"
	"github.com/mccolljr/flurry/testutil/fixtures"
)

func Test_Factory_Validation(t *testing.T) {
	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	t.Run("empty_dsn_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStore("", registry)
		assert.ErrorIs(t, newErr, eventstore.ErrEmptyDSNSupplied)
	})

	t.Run("nil_pgx_pool_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStoreFromPGXPool(nil, registry)
		assert.ErrorIs(t, newErr, eventstore.ErrNilDatabaseConnection)
	})

	t.Run("nil_sql_db_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStoreFromSQLDB(nil, registry)
		assert.ErrorIs(t, newErr, eventstore.ErrNilDatabaseConnection)
	})

	t.Run("nil_sqlx_db_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStoreFromSQLX(nil, registry)
		assert.ErrorIs(t, newErr, eventstore.ErrNilDatabaseConnection)
	})

	t.Run("nil_registry_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStore("postgres://localhost/db", nil)
		assert.ErrorIs(t, newErr, eventstore.ErrNilRegistry)
	})

	t.Run("empty_table_name_is_rejected", func(t *testing.T) {
		_, newErr := postgresengine.NewEventStore(
			"postgres://localhost/db",
			registry,
			postgresengine.WithEventsTableName(""),
		)
		assert.ErrorIs(t, newErr, eventstore.ErrEmptyTableNameSupplied)

		_, newErr = postgresengine.NewEventStore(
			"postgres://localhost/db",
			registry,
			postgresengine.WithSnapshotsTableName(""),
		)
		assert.ErrorIs(t, newErr, eventstore.ErrEmptyTableNameSupplied)
	})
}

// newTestStore connects lazily via the configured DSN and isolates each test
// run with its own tables.
func newTestStore(t *testing.T) *eventstore.Registry {
	t.Helper()

	if config.PostgresTestDSN() == "" {
		t.Skipf("set %s to run postgres integration tests", config.PostgresDSNEnvVar)
	}

	registry, err := fixtures.NewTodoRegistry()
	require.NoError(t, err)

	return registry
}

func uniqueTableOptions(t *testing.T) []postgresengine.Option {
	t.Helper()

	suffix := fixtures.GivenUniqueID()
	return []postgresengine.Option{
		postgresengine.WithEventsTableName("events_" + suffix.String()[:8]),
		postgresengine.WithSnapshotsTableName("snapshots_" + suffix.String()[:8]),
	}
}

func Test_EventStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	registry := newTestStore(t)

	store, err := postgresengine.NewEventStore(config.PostgresTestDSN(), registry, uniqueTableOptions(t)...)
	require.NoError(t, err)
	defer store.Close(ctx)

	urgent := fixtures.GivenUniqueID()
	casual := fixtures.GivenUniqueID()

	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreatedWithPriority(urgent, "file taxes", 5),
		fixtures.BuildTodoCreated(casual, "water plants"),
		fixtures.BuildTodoCompleted(casual),
	}))

	t.Run("load_everything_in_append_order", func(t *testing.T) {
		events, loadErr := store.LoadEvents(ctx, nil)
		require.NoError(t, loadErr)
		require.Len(t, events, 3)
		assert.Equal(t, fixtures.TodoCompletedEventType, events[2].RecordType())
	})

	t.Run("filter_by_type_pushes_down", func(t *testing.T) {
		events, loadErr := store.LoadEvents(ctx, eventstore.Is(fixtures.TodoCompletedEventType))
		require.NoError(t, loadErr)
		require.Len(t, events, 1)
	})

	t.Run("filter_by_field", func(t *testing.T) {
		events, loadErr := store.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
			"priority": eventstore.MoreEq(5),
		}))
		require.NoError(t, loadErr)
		require.Len(t, events, 1)
		assert.Equal(t, "file taxes", events[0].ToMap()["title"])
	})

	t.Run("not_eq_matches_rows_without_the_field", func(t *testing.T) {
		events, loadErr := store.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
			"priority": eventstore.NotEq(5),
		}))
		require.NoError(t, loadErr)
		require.Len(t, events, 2)
	})

	t.Run("decoded_records_carry_their_fields", func(t *testing.T) {
		events, loadErr := store.LoadEvents(ctx, eventstore.Is(fixtures.TodoCreatedEventType))
		require.NoError(t, loadErr)
		require.Len(t, events, 2)

		created, ok := events[0].(fixtures.TodoCreated)
		require.True(t, ok)
		assert.Equal(t, urgent.String(), created.TodoID)
		assert.Equal(t, 5, created.Priority)
	})

	t.Run("one_of_selects_in_sequence_order", func(t *testing.T) {
		require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
			fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "low", 100),
			fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "mid", 1000),
			fixtures.BuildTodoCreatedWithPriority(fixtures.GivenUniqueID(), "high", 2000),
		}))

		events, loadErr := store.LoadEvents(ctx, eventstore.Where(map[string]eventstore.FieldPredicate{
			"priority": eventstore.OneOf(100, 1000),
		}))
		require.NoError(t, loadErr)
		require.Len(t, events, 2)
		assert.Equal(t, "low", events[0].ToMap()["title"])
		assert.Equal(t, "mid", events[1].ToMap()["title"])
	})
}

func Test_EventStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	registry := newTestStore(t)

	store, err := postgresengine.NewEventStore(config.PostgresTestDSN(), registry, uniqueTableOptions(t)...)
	require.NoError(t, err)
	defer store.Close(ctx)

	id := fixtures.GivenUniqueID()
	todoType := fixtures.TodoType()

	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCreated(id, "buy groceries"),
	}))
	require.NoError(t, todoType.SyncSnapshots(ctx, store, []string{id.String()}))

	snapshots, err := store.LoadSnapshots(ctx, eventstore.Is(fixtures.TodoAggregateName))
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	todo, ok := snapshots[0].(*fixtures.Todo)
	require.True(t, ok)
	assert.False(t, todo.Done)

	// complete the todo and sync again: one row, updated in place
	require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
		fixtures.BuildTodoCompleted(id),
	}))
	require.NoError(t, todoType.SyncSnapshots(ctx, store, []string{id.String()}))

	snapshots, err = store.LoadSnapshots(ctx, nil)
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "upsert must replace the previous snapshot")

	todo, ok = snapshots[0].(*fixtures.Todo)
	require.True(t, ok)
	assert.True(t, todo.Done)
}

func Test_EventStore_QueryFailures_CarryTheirSourceSentinel(t *testing.T) {
	ctx := context.Background()
	registry := newTestStore(t)

	pool := config.PostgresPGXPool()
	defer pool.Close()

	suffix := fixtures.GivenUniqueID().String()[:8]
	eventsTable := "events_" + suffix
	snapshotsTable := "snapshots_" + suffix

	store, err := postgresengine.NewEventStoreFromPGXPool(pool, registry,
		postgresengine.WithEventsTableName(eventsTable),
		postgresengine.WithSnapshotsTableName(snapshotsTable),
	)
	require.NoError(t, err)
	defer store.Close(ctx)

	// first access initializes the schema
	_, err = store.LoadEvents(ctx, nil)
	require.NoError(t, err)

	t.Run("snapshot_query_failure", func(t *testing.T) {
		_, execErr := pool.Exec(ctx, "DROP TABLE "+snapshotsTable)
		require.NoError(t, execErr)

		_, loadErr := store.LoadSnapshots(ctx, nil)
		require.Error(t, loadErr)
		assert.ErrorIs(t, loadErr, eventstore.ErrQueryingSnapshotsFailed)
		assert.NotErrorIs(t, loadErr, eventstore.ErrQueryingEventsFailed)
	})

	t.Run("event_query_failure", func(t *testing.T) {
		_, execErr := pool.Exec(ctx, "DROP TABLE "+eventsTable)
		require.NoError(t, execErr)

		_, loadErr := store.LoadEvents(ctx, nil)
		require.Error(t, loadErr)
		assert.ErrorIs(t, loadErr, eventstore.ErrQueryingEventsFailed)
		assert.NotErrorIs(t, loadErr, eventstore.ErrQueryingSnapshotsFailed)
	})
}

func Test_EventStore_AdapterVariants(t *testing.T) {
	ctx := context.Background()
	registry := newTestStore(t)

	id := fixtures.GivenUniqueID()

	t.Run("pgx_pool", func(t *testing.T) {
		pool := config.PostgresPGXPool()
		defer pool.Close()

		store, err := postgresengine.NewEventStoreFromPGXPool(pool, registry, uniqueTableOptions(t)...)
		require.NoError(t, err)
		defer store.Close(ctx)

		require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
			fixtures.BuildTodoCreated(id, "via pgx"),
		}))

		events, err := store.LoadEvents(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("sql_db", func(t *testing.T) {
		db := config.PostgresSQLDB()
		defer db.Close()

		store, err := postgresengine.NewEventStoreFromSQLDB(db, registry, uniqueTableOptions(t)...)
		require.NoError(t, err)
		defer store.Close(ctx)

		require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
			fixtures.BuildTodoCreated(id, "via database/sql"),
		}))

		events, err := store.LoadEvents(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("sqlx_db", func(t *testing.T) {
		db := config.PostgresSQLX()
		defer db.Close()

		store, err := postgresengine.NewEventStoreFromSQLX(db, registry, uniqueTableOptions(t)...)
		require.NoError(t, err)
		defer store.Close(ctx)

		require.NoError(t, store.SaveEvents(ctx, eventstore.Records{
			fixtures.BuildTodoCreated(id, "via sqlx"),
		}))

		events, err := store.LoadEvents(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

func Test_EventStore_Close(t *testing.T) {
	ctx := context.Background()
	registry := newTestStore(t)

	store, err := postgresengine.NewEventStore(config.PostgresTestDSN(), registry, uniqueTableOptions(t)...)
	require.NoError(t, err)

	// force lazy initialization before closing
	_, err = store.LoadEvents(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, store.Close(ctx))
	require.NoError(t, store.Close(ctx))

	_, err = store.LoadEvents(ctx, nil)
	assert.ErrorIs(t, err, eventstore.ErrStorageClosed)
}

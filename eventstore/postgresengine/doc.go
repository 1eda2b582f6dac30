// Package postgresengine provides a PostgreSQL implementation of the
// eventstore storage contract.
//
// Events are stored in an append-only table with a BIGSERIAL sequence, the
// record discriminator in a VARCHAR column and all remaining fields in a
// JSONB column. Snapshots are upserted into a second table keyed by a unique
// identifier. Predicates are compiled to SQL through the sqlfilter package;
// anything the compiler cannot express is re-evaluated in memory after rows
// are decoded, so query results never depend on push-down coverage.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Lazy connection pool creation and idempotent schema initialization
//   - Predicate push-down with in-memory residual evaluation
//   - Configurable table names and optional logging
//
// Usage examples:
//
//	// Lazy connection from a DSN; the store owns the pool
//	store, _ := postgresengine.NewEventStore(dsn, registry)
//
//	// From an existing pool, with logging
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		registry,
//		postgresengine.WithLogger(logger),
//	)
//
//	events, _ := store.LoadEvents(ctx, query)
//	err := store.SaveEvents(ctx, newEvents)
package postgresengine

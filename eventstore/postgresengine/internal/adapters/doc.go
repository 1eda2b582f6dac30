// Package adapters provides database abstraction for the postgres engine,
// so the same engine code runs on pgx, database/sql and sqlx connections.
package adapters

// Package config provides PostgreSQL database configuration for storage
// engine testing.
//
// The integration tests need a running Postgres instance; its DSN is taken
// from the FLURRY_TEST_POSTGRES_DSN environment variable and tests skip
// themselves when it is unset. Factory functions cover every supported
// adapter type (pgx.Pool, sql.DB, sqlx.DB).
package config

package config

import "os"

// PostgresDSNEnvVar names the environment variable holding the test database DSN.
const PostgresDSNEnvVar = "FLURRY_TEST_POSTGRES_DSN"

// PostgresTestDSN returns the DSN for the test database, or the empty string
// when no test database is configured.
func PostgresTestDSN() string {
	return os.Getenv(PostgresDSNEnvVar)
}

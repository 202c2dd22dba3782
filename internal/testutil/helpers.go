// Package testutil holds helpers shared by package tests.
package testutil

import (
	"os"
	"testing"
)

// PostgresDSNEnv names the variable that points integration tests at a
// disposable PostgreSQL database.
const PostgresDSNEnv = "IPFEED_TEST_POSTGRES_DSN"

// RequirePostgres returns the integration DSN or skips the test when it is
// not set. The database it names is truncated by the callers.
func RequirePostgres(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("Skipping test: requires %s", PostgresDSNEnv)
	}
	return dsn
}

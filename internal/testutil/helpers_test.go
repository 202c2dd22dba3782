package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequirePostgres(t *testing.T) {
	t.Setenv(PostgresDSNEnv, "postgres://feed@localhost/feed_test")
	assert.Equal(t, "postgres://feed@localhost/feed_test", RequirePostgres(t))
}

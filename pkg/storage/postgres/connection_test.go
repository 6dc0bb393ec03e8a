package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoDatabase skips the test unless TEST_POSTGRES_PRIMARY is set, so the
// suite runs in CI with a database and stays quiet locally without one.
func skipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	return dbURL
}

func TestParseReplicaURLs(t *testing.T) {
	assert.Nil(t, ParseReplicaURLs(""))
	assert.Equal(t, []string{"a", "b"}, ParseReplicaURLs("a,b"))
	assert.Equal(t, []string{"a", "b"}, ParseReplicaURLs(" a , b ,"))
}

func TestConnectionManagerPrimaryOnly(t *testing.T) {
	dbURL := skipIfNoDatabase(t)

	cm, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL: dbURL,
		MaxConns:   4,
		MinConns:   1,
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	defer cm.Close()

	// Without replicas, reads fall back to the primary.
	assert.Same(t, cm.Primary(), cm.Replica())
	assert.NoError(t, cm.HealthCheck(context.Background()))
}

func TestApplySchemaIdempotent(t *testing.T) {
	dbURL := skipIfNoDatabase(t)

	cm, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL: dbURL,
		MaxConns:   4,
		MinConns:   1,
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	defer cm.Close()

	ctx := context.Background()
	require.NoError(t, ApplySchema(ctx, cm.Primary()))
	// Re-applying must be a no-op.
	require.NoError(t, ApplySchema(ctx, cm.Primary()))
}

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripshare/internal/storage/storagetest"
)

// TestPostgresStore runs against a disposable database named by
// TEST_DATABASE_URL. Existing rows are truncated first.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	store, err := New(ctx, dsn)
	require.NoError(t, err)
	_, err = store.pool.Exec(ctx, `TRUNCATE users, trips, people, expenses`)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	storagetest.Run(t, store)
}

package pg_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/storekit/storekit/pkg/pg"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// testPool connects to the database named by TEST_DATABASE_URL, or skips.
// Migrations run once per test binary; tests isolate themselves with
// unique entity ids and queue names instead of truncating shared tables.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))

	migrateOnce.Do(func() {
		migrateErr = pg.Migrate(ctx, pool, pg.Config{}, slog.Default())
	})
	require.NoError(t, migrateErr)

	return pool
}

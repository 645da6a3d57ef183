// internal/infrastructure/db/pg_repository_test.go
package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPool connects to the database named by TEST_PGSQL_URL, skipping otherwise
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_PGSQL_URL")
	if url == "" || testing.Short() {
		t.Skip("Skipping PostgreSQL test: TEST_PGSQL_URL not set")
	}

	require.NoError(t, RunMigrations(url))

	pool, err := NewPgxPool(context.Background(), url)
	require.NoError(t, err)

	_, err = pool.Exec(context.Background(), `TRUNCATE currencies, job_metadata`)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func TestPgxRateRepository(t *testing.T) {
	repo := NewPgxRateRepository(openTestPool(t))
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "Dollar", "90.50", day),
		rate("EUR", "Euro", "99.19", day),
	}))
	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "US Dollar", "91.25", day),
	}))

	stored, err := repo.FindByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "USD", stored[1].CurrencyCode)
	assert.Equal(t, "US Dollar", stored[1].Name)
	assert.True(t, decimal.RequireFromString("91.25").Equal(stored[1].Value))
	assert.Equal(t, day, stored[1].Date)
}

func TestPgxJobMetadataRepository(t *testing.T) {
	repo := NewPgxJobMetadataRepository(openTestPool(t))
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "fetch-currencies")
	assert.True(t, errors.Is(err, ErrJobMetadataNotFound))

	require.NoError(t, repo.RecordSuccess(ctx, "fetch-currencies", at, map[string]interface{}{"records": 2}))
	require.NoError(t, repo.RecordFailure(ctx, "fetch-currencies", "boom", at.Add(time.Hour)))
	require.NoError(t, repo.MergeInfo(ctx, "fetch-currencies", "source", "CBR"))

	meta, err := repo.Get(ctx, "fetch-currencies")
	require.NoError(t, err)
	require.NotNil(t, meta.FailureReason)
	assert.Equal(t, "boom", *meta.FailureReason)
	assert.True(t, at.Equal(*meta.LastSuccessfulRun))
	assert.Equal(t, float64(2), meta.AdditionalInfo["records"])
	assert.Equal(t, "CBR", meta.AdditionalInfo["source"])
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host:5432/db", migrateURL("postgres://u:p@host:5432/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("postgresql://host/db"))
	assert.Equal(t, "pgx5://host/db", migrateURL("pgx5://host/db"))
}

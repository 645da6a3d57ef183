// internal/infrastructure/db/badger_rate_repository_test.go
package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()

	badgerOpts := badger.DefaultOptions("").WithInMemory(true)
	badgerOpts.Logger = nil

	badgerDB, err := badger.Open(badgerOpts)
	require.NoError(t, err)

	t.Cleanup(func() {
		badgerDB.Close()
	})

	return badgerDB
}

func rate(code, name, value string, date time.Time) entity.RateRecord {
	return entity.RateRecord{
		CurrencyCode: code,
		Name:         name,
		Value:        decimal.RequireFromString(value),
		Date:         date,
	}
}

func TestBadgerRateRepositoryUpsert(t *testing.T) {
	repo := NewBadgerRateRepository(openTestBadger(t))
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "US Dollar", "90.50", day),
		rate("EUR", "Euro", "99.19", day),
	}))

	stored, err := repo.FindByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	// Ordered by currency code
	assert.Equal(t, "EUR", stored[0].CurrencyCode)
	assert.Equal(t, "USD", stored[1].CurrencyCode)
	assert.True(t, decimal.RequireFromString("90.50").Equal(stored[1].Value))
	assert.Equal(t, day, stored[1].Date)
}

func TestBadgerRateRepositoryUpsertOverwrites(t *testing.T) {
	badgerDB := openTestBadger(t)
	repo := NewBadgerRateRepository(badgerDB)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return created }
	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{rate("USD", "Dollar", "90.50", day)}))

	repo.now = func() time.Time { return created.Add(time.Hour) }
	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{rate("USD", "US Dollar", "91.00", day)}))

	stored, err := repo.FindByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "US Dollar", stored[0].Name)
	assert.True(t, decimal.RequireFromString("91.00").Equal(stored[0].Value))

	// Fields other than value and name survive the overwrite
	var raw storedRate
	require.NoError(t, badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rateKey(day, "USD"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &raw)
		})
	}))
	assert.Equal(t, created, raw.CreatedAt)
	assert.Equal(t, created.Add(time.Hour), raw.UpdatedAt)
}

func TestBadgerRateRepositoryDuplicatesInBatch(t *testing.T) {
	repo := NewBadgerRateRepository(openTestBadger(t))
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "Dollar", "90.10", day),
		rate("USD", "Dollar", "91.20", day),
	}))

	stored, err := repo.FindByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, decimal.RequireFromString("91.20").Equal(stored[0].Value))
}

func TestBadgerRateRepositoryDatesAreSeparate(t *testing.T) {
	repo := NewBadgerRateRepository(openTestBadger(t))
	ctx := context.Background()
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "Dollar", "90", day1),
		rate("USD", "Dollar", "92", day2),
	}))

	first, err := repo.FindByDate(ctx, day1.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, decimal.NewFromInt(90).Equal(first[0].Value))

	empty, err := repo.FindByDate(ctx, day1.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBadgerRateRepositoryRejectsInvalidBatch(t *testing.T) {
	repo := NewBadgerRateRepository(openTestBadger(t))
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := repo.Upsert(ctx, []entity.RateRecord{
		rate("USD", "Dollar", "90", day),
		rate("usd$", "Broken", "1", day),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersist))

	// Nothing from the failed batch landed
	stored, err := repo.FindByDate(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, stored)

	assert.NoError(t, repo.Upsert(ctx, nil))
}

func TestBadgerRateRepositoryClosedDB(t *testing.T) {
	badgerOpts := badger.DefaultOptions("").WithInMemory(true)
	badgerOpts.Logger = nil
	badgerDB, err := badger.Open(badgerOpts)
	require.NoError(t, err)
	require.NoError(t, badgerDB.Close())

	repo := NewBadgerRateRepository(badgerDB)
	err = repo.Upsert(context.Background(), []entity.RateRecord{
		rate("USD", "Dollar", "90", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.True(t, errors.Is(err, apperrors.ErrPersist))
}

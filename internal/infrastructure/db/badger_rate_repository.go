package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
	"github.com/shopspring/decimal"
)

const rateKeyPrefix = "rate:"

// storedRate is the persisted form of a rate record
type storedRate struct {
	CurrencyCode string          `json:"char_code"`
	Name         string          `json:"name"`
	Value        decimal.Decimal `json:"value"`
	Date         string          `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BadgerRateRepository implements the rate repository interface using BadgerDB
type BadgerRateRepository struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerRateRepository creates a new BadgerDB rate repository
func NewBadgerRateRepository(db *badger.DB) *BadgerRateRepository {
	return &BadgerRateRepository{db: db, now: time.Now}
}

func rateKey(date time.Time, code string) []byte {
	return []byte(rateKeyPrefix + date.Format(entity.DateLayout) + ":" + code)
}

// Upsert writes the whole batch in one transaction. On a (code, date) conflict only
// value and name are overwritten; created_at is kept.
func (r *BadgerRateRepository) Upsert(ctx context.Context, records []entity.RateRecord) error {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return apperrors.NewJobError(apperrors.ErrPersist, "validate record", err)
		}
	}

	now := r.now().UTC()

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}

			key := rateKey(rec.Date, rec.CurrencyCode)
			stored := storedRate{
				CurrencyCode: rec.CurrencyCode,
				Date:         rec.Date.Format(entity.DateLayout),
				CreatedAt:    now,
			}

			item, err := txn.Get(key)
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &stored)
				}); err != nil {
					return fmt.Errorf("failed to decode stored rate %s: %w", key, err)
				}
			case err != badger.ErrKeyNotFound:
				return err
			}

			stored.Name = rec.Name
			stored.Value = rec.Value
			stored.UpdatedAt = now

			data, err := json.Marshal(stored)
			if err != nil {
				return fmt.Errorf("failed to marshal rate: %w", err)
			}

			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return apperrors.NewJobError(apperrors.ErrPersist, "upsert rates", err)
	}

	return nil
}

// FindByDate returns the stored rates for a calendar date ordered by currency code
func (r *BadgerRateRepository) FindByDate(ctx context.Context, date time.Time) ([]entity.RateRecord, error) {
	prefix := []byte(rateKeyPrefix + entity.TruncateToDate(date).Format(entity.DateLayout) + ":")
	records := make([]entity.RateRecord, 0)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedRate
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			recDate, err := time.Parse(entity.DateLayout, stored.Date)
			if err != nil {
				return err
			}

			records = append(records, entity.RateRecord{
				CurrencyCode: stored.CurrencyCode,
				Name:         stored.Name,
				Value:        stored.Value,
				Date:         recDate,
			})
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}

	return records, nil
}

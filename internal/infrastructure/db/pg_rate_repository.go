package db

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/apperrors"
	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const upsertRateSQL = `
	INSERT INTO currencies (char_code, name, value, date)
	VALUES ($1, $2, $3::numeric, $4)
	ON CONFLICT (char_code, date)
	DO UPDATE SET value = EXCLUDED.value, name = EXCLUDED.name, updated_at = now()`

// PgxRateRepository implements the rate repository interface on PostgreSQL
type PgxRateRepository struct {
	pool *pgxpool.Pool
}

// NewPgxRateRepository creates a new PostgreSQL rate repository
func NewPgxRateRepository(pool *pgxpool.Pool) *PgxRateRepository {
	return &PgxRateRepository{pool: pool}
}

// Upsert writes the batch inside one transaction; any failed row rolls back the batch
func (r *PgxRateRepository) Upsert(ctx context.Context, records []entity.RateRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return apperrors.NewJobError(apperrors.ErrPersist, "validate record", err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewJobError(apperrors.ErrPersist, "begin transaction", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertRateSQL, rec.CurrencyCode, rec.Name, rec.Value.String(), rec.Date)
	}

	results := tx.SendBatch(ctx, batch)
	for _, rec := range records {
		if _, execErr := results.Exec(); execErr != nil {
			_ = results.Close()
			return apperrors.NewJobError(apperrors.ErrPersist,
				fmt.Sprintf("upsert %s", rec.Key()), execErr)
		}
	}

	if err = results.Close(); err != nil {
		return apperrors.NewJobError(apperrors.ErrPersist, "close batch", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return apperrors.NewJobError(apperrors.ErrPersist, "commit transaction", err)
	}

	return nil
}

// FindByDate returns the stored rates for a calendar date ordered by currency code
func (r *PgxRateRepository) FindByDate(ctx context.Context, date time.Time) ([]entity.RateRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT char_code, name, value::text, date FROM currencies WHERE date = $1 ORDER BY char_code`,
		entity.TruncateToDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	records := make([]entity.RateRecord, 0)
	for rows.Next() {
		var (
			rec   entity.RateRecord
			value string
		)

		if err := rows.Scan(&rec.CurrencyCode, &rec.Name, &value, &rec.Date); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}

		rec.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored value %q: %w", value, err)
		}
		rec.Date = entity.TruncateToDate(rec.Date)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rates: %w", err)
	}

	return records, nil
}

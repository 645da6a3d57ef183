// Package repository internal/domain/repository/rate_repository.go
package repository

import (
	"context"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
)

// RateRepository defines the interface for durable rate storage
type RateRepository interface {
	// Upsert stores the batch atomically, overwriting value and name on (code, date) conflicts
	Upsert(ctx context.Context, records []entity.RateRecord) error

	// FindByDate returns the stored rates for a calendar date ordered by currency code
	FindByDate(ctx context.Context, date time.Time) ([]entity.RateRecord, error)
}

package service

import (
	"context"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
)

// FeedFetcher retrieves the raw upstream rate feed
type FeedFetcher interface {
	// Fetch returns the response body of a single GET to the feed URL
	Fetch(ctx context.Context) ([]byte, error)
}

// FeedParser turns raw feed bytes into rate records
type FeedParser interface {
	Parse(raw []byte, sourceEncoding string) (time.Time, []entity.RateRecord, error)
}

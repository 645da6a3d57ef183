package repository

import (
	"context"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
)

// JobMetadataRepository defines the interface for job run bookkeeping.
// All writes upsert by job name.
type JobMetadataRepository interface {
	// RecordFailure stores the time and reason of a terminal failure
	RecordFailure(ctx context.Context, jobName, reason string, at time.Time) error

	// RecordSuccess stores the time of a successful run and merges info into AdditionalInfo
	RecordSuccess(ctx context.Context, jobName string, at time.Time, info map[string]interface{}) error

	// MergeInfo sets a single AdditionalInfo key
	MergeInfo(ctx context.Context, jobName, key string, value interface{}) error

	// Get returns the metadata row for monitoring
	Get(ctx context.Context, jobName string) (*entity.JobRunMetadata, error)
}

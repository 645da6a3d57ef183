package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxJobMetadataRepository keeps job bookkeeping in the job_metadata table
type PgxJobMetadataRepository struct {
	pool *pgxpool.Pool
}

// NewPgxJobMetadataRepository creates a new PostgreSQL job metadata repository
func NewPgxJobMetadataRepository(pool *pgxpool.Pool) *PgxJobMetadataRepository {
	return &PgxJobMetadataRepository{pool: pool}
}

// RecordFailure stores the time and reason of a terminal failure
func (r *PgxJobMetadataRepository) RecordFailure(ctx context.Context, jobName, reason string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_metadata (job_name, last_attempt_failed_at, failure_reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_name) DO UPDATE SET
			last_attempt_failed_at = EXCLUDED.last_attempt_failed_at,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = now()`,
		jobName, at.UTC(), reason)
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", jobName, err)
	}
	return nil
}

// RecordSuccess stores the time of a successful run and merges info into additional_info
func (r *PgxJobMetadataRepository) RecordSuccess(ctx context.Context, jobName string, at time.Time, info map[string]interface{}) error {
	infoJSON, err := marshalInfo(info)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO job_metadata (job_name, last_successful_run, additional_info)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (job_name) DO UPDATE SET
			last_successful_run = EXCLUDED.last_successful_run,
			additional_info = job_metadata.additional_info || EXCLUDED.additional_info,
			updated_at = now()`,
		jobName, at.UTC(), infoJSON)
	if err != nil {
		return fmt.Errorf("failed to record success for %s: %w", jobName, err)
	}
	return nil
}

// MergeInfo sets a single additional_info key
func (r *PgxJobMetadataRepository) MergeInfo(ctx context.Context, jobName, key string, value interface{}) error {
	infoJSON, err := marshalInfo(map[string]interface{}{key: value})
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO job_metadata (job_name, additional_info)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (job_name) DO UPDATE SET
			additional_info = job_metadata.additional_info || EXCLUDED.additional_info,
			updated_at = now()`,
		jobName, infoJSON)
	if err != nil {
		return fmt.Errorf("failed to merge info for %s: %w", jobName, err)
	}
	return nil
}

// Get returns the metadata row of a job
func (r *PgxJobMetadataRepository) Get(ctx context.Context, jobName string) (*entity.JobRunMetadata, error) {
	var (
		meta     entity.JobRunMetadata
		infoJSON []byte
	)

	err := r.pool.QueryRow(ctx, `
		SELECT job_name, last_attempt_failed_at, failure_reason, last_successful_run, additional_info::text, updated_at
		FROM job_metadata WHERE job_name = $1`, jobName).
		Scan(&meta.JobName, &meta.LastAttemptFailedAt, &meta.FailureReason, &meta.LastSuccessfulRun, &infoJSON, &meta.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobMetadataNotFound, jobName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve job metadata: %w", err)
	}

	if len(infoJSON) > 0 {
		if err := json.Unmarshal(infoJSON, &meta.AdditionalInfo); err != nil {
			return nil, fmt.Errorf("failed to decode additional info: %w", err)
		}
		if len(meta.AdditionalInfo) == 0 {
			meta.AdditionalInfo = nil
		}
	}

	return &meta, nil
}

func marshalInfo(info map[string]interface{}) (string, error) {
	if len(info) == 0 {
		return "{}", nil
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal additional info: %w", err)
	}
	return string(data), nil
}

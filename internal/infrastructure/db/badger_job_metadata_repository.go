package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/domain/entity"
	"github.com/dgraph-io/badger/v3"
)

const jobMetaKeyPrefix = "jobmeta:"

// ErrJobMetadataNotFound is returned by Get for a job that never recorded anything
var ErrJobMetadataNotFound = errors.New("job metadata not found")

// BadgerJobMetadataRepository keeps one JSON document per job name in BadgerDB
type BadgerJobMetadataRepository struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerJobMetadataRepository creates a new BadgerDB job metadata repository
func NewBadgerJobMetadataRepository(db *badger.DB) *BadgerJobMetadataRepository {
	return &BadgerJobMetadataRepository{db: db, now: time.Now}
}

// RecordFailure stores the time and reason of a terminal failure
func (r *BadgerJobMetadataRepository) RecordFailure(ctx context.Context, jobName, reason string, at time.Time) error {
	return r.update(jobName, func(m *entity.JobRunMetadata) {
		failedAt := at.UTC()
		m.LastAttemptFailedAt = &failedAt
		m.FailureReason = &reason
	})
}

// RecordSuccess stores the time of a successful run and merges info
func (r *BadgerJobMetadataRepository) RecordSuccess(ctx context.Context, jobName string, at time.Time, info map[string]interface{}) error {
	return r.update(jobName, func(m *entity.JobRunMetadata) {
		succeededAt := at.UTC()
		m.LastSuccessfulRun = &succeededAt
		m.MergeInfo(info)
	})
}

// MergeInfo sets a single AdditionalInfo key, keeping the others
func (r *BadgerJobMetadataRepository) MergeInfo(ctx context.Context, jobName, key string, value interface{}) error {
	return r.update(jobName, func(m *entity.JobRunMetadata) {
		m.MergeInfo(map[string]interface{}{key: value})
	})
}

// Get returns the metadata row of a job
func (r *BadgerJobMetadataRepository) Get(ctx context.Context, jobName string) (*entity.JobRunMetadata, error) {
	var meta entity.JobRunMetadata

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(jobMetaKeyPrefix + jobName))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobMetadataNotFound, jobName)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to retrieve job metadata: %w", err)
	}

	return &meta, nil
}

// update is a read-modify-write of one job row inside a single transaction
func (r *BadgerJobMetadataRepository) update(jobName string, apply func(m *entity.JobRunMetadata)) error {
	key := []byte(jobMetaKeyPrefix + jobName)

	err := r.db.Update(func(txn *badger.Txn) error {
		meta := entity.JobRunMetadata{JobName: jobName}

		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		apply(&meta)
		meta.UpdatedAt = r.now().UTC()

		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		return txn.Set(key, data)
	})

	if err != nil {
		return fmt.Errorf("failed to store job metadata for %s: %w", jobName, err)
	}

	return nil
}

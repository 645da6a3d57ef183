package entity

import (
	"time"
)

// JobRunMetadata is the bookkeeping row kept for a named background job.
// It is written by the job and read only by external monitoring.
type JobRunMetadata struct {
	JobName             string                 `json:"job_name"`
	LastAttemptFailedAt *time.Time             `json:"last_attempt_failed_at,omitempty"`
	FailureReason       *string                `json:"failure_reason,omitempty"`
	LastSuccessfulRun   *time.Time             `json:"last_successful_run,omitempty"`
	AdditionalInfo      map[string]interface{} `json:"additional_info,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// MergeInfo adds or replaces keys in AdditionalInfo without dropping existing ones
func (m *JobRunMetadata) MergeInfo(info map[string]interface{}) {
	if len(info) == 0 {
		return
	}

	if m.AdditionalInfo == nil {
		m.AdditionalInfo = make(map[string]interface{}, len(info))
	}

	for k, v := range info {
		m.AdditionalInfo[k] = v
	}
}

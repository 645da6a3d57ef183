package handler

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// HealthResponse represents the response for the health endpoint
type HealthResponse struct {
	Status  string     `json:"status"`
	Refresh *JobStatus `json:"refresh,omitempty"`
}

// JobStatus summarizes the refresh job bookkeeping
type JobStatus struct {
	Job                 string  `json:"job"`
	LastSuccessfulRun   *string `json:"last_successful_run"`
	LastAttemptFailedAt *string `json:"last_attempt_failed_at"`
	FailureReason       *string `json:"failure_reason"`
	FeedDate            *string `json:"feed_date,omitempty"`
	StoredRates         *int    `json:"stored_rates,omitempty"`
}

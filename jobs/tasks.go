// Package jobs hosts the asynq worker, scheduler and the background tasks
// that keep the ledger honest: the nightly integrity scan, the balance
// summary warmup and idempotency key cleanup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes wallet accumulators from transactions
	// and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskSummaryWarmup refreshes the cached balance summary.
	TaskSummaryWarmup = "summary:warmup"
	// TaskIdempotencyCleanup prunes idempotency keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// LedgerIntegrityPayload configures one integrity scan run.
type LedgerIntegrityPayload struct {
	// DryRun only logs findings. The scan never writes either way; the flag
	// suppresses the drift gauge update so ad-hoc runs do not clobber the
	// nightly reading.
	DryRun bool `json:"dry_run"`
}

// NewLedgerIntegrityTask constructs the integrity scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// SummaryWarmupPayload configures a cache warmup run.
type SummaryWarmupPayload struct {
	// Force invalidates the cached summary before recomputing.
	Force bool `json:"force"`
}

// NewSummaryWarmupTask constructs the warmup task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

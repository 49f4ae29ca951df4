package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockScan classifies every inventory item and logs shortages.
	TaskStockScan = "inventory:stock_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockScanPayload carries scheduling metadata for a stock scan.
type StockScanPayload struct {
	Category string `json:"category,omitempty"`
}

// NewStockScanTask constructs an Asynq task for a stock scan.
func NewStockScanTask(category string) (*asynq.Task, error) {
	body, err := json.Marshal(StockScanPayload{Category: category})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockScan, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets how old a key must be before it is purged.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for key cleanup.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-hotel/jobs"
)

func TestTaskBuildsSupportedJobs(t *testing.T) {
	c := NewJobsCLI(asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, 24*time.Hour)
	t.Cleanup(func() { _ = c.Close() })

	task, err := c.Task("stock-scan", "kitchen")
	require.NoError(t, err)
	require.Equal(t, jobs.TaskStockScan, task.Type())
	var scan jobs.StockScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &scan))
	require.Equal(t, "kitchen", scan.Category)

	task, err = c.Task(jobs.TaskIdempotencyCleanup, "")
	require.NoError(t, err)
	var cleanup jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &cleanup))
	require.Equal(t, 24*time.Hour, cleanup.Retention)

	task, err = c.Task("idempotency-cleanup", "2h")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(task.Payload(), &cleanup))
	require.Equal(t, 2*time.Hour, cleanup.Retention)

	_, err = c.Task("idempotency-cleanup", "soon")
	require.Error(t, err)
	_, err = c.Task("mail:send", "")
	require.Error(t, err)
}

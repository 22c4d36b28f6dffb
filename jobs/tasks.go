package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile recomputes movement nets against live quantities.
	TaskStockReconcile = "stock:reconcile"
)

// StockReconcilePayload identifies one reconciliation run.
type StockReconcilePayload struct {
	RunID string `json:"run_id"`
}

// NewStockReconcileTask constructs an Asynq task with a fresh run id.
func NewStockReconcileTask() (*asynq.Task, error) {
	data, err := json.Marshal(StockReconcilePayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, data), nil
}

package jobs

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskHousekeepingIdempotency deletes expired dispatch reservations.
	TaskHousekeepingIdempotency = "housekeeping:idempotency"
	// TaskHousekeepingAudit deletes expired audit and approval rows.
	TaskHousekeepingAudit = "housekeeping:audit"
	// TaskHousekeepingAttempts drops attempt counters whose window has passed.
	TaskHousekeepingAttempts = "housekeeping:attempts"
)

// TaskTypes lists every task the worker handles.
func TaskTypes() []string {
	return []string{TaskHousekeepingIdempotency, TaskHousekeepingAudit, TaskHousekeepingAttempts}
}

// HousekeepingPayload optionally overrides the configured retention.
type HousekeepingPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

func (p HousekeepingPayload) retention(fallback time.Duration) time.Duration {
	if p.RetentionHours > 0 {
		return time.Duration(p.RetentionHours) * time.Hour
	}
	return fallback
}

// NewHousekeepingTask builds a housekeeping task. A zero retention keeps the
// worker's configured value.
func NewHousekeepingTask(taskType string, retention time.Duration) (*asynq.Task, error) {
	if !slices.Contains(TaskTypes(), taskType) {
		return nil, fmt.Errorf("jobs: unknown task %q", taskType)
	}
	body, err := json.Marshal(HousekeepingPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

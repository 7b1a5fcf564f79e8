package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/DQHuy2112/BE-QLKH-sub001/internal/jobs"
)

// KeyCleaner deletes idempotency keys older than a cutoff.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LogPruner deletes log rows older than a cutoff.
type LogPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Sweeper evicts expired attempt counters.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// HousekeepingJob trims the tables and keys that grow with every transition.
type HousekeepingJob struct {
	Idempotency          KeyCleaner
	Audit                LogPruner
	Approvals            LogPruner
	Attempts             Sweeper
	IdempotencyRetention time.Duration
	AuditRetention       time.Duration
	Logger               *slog.Logger
	Metrics              *jobmetrics.Metrics
}

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Handlers returns the task handlers for the configured stores.
func (j *HousekeepingJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskHousekeepingIdempotency, Handler: j.HandleIdempotency},
		{Type: TaskHousekeepingAudit, Handler: j.HandleAudit},
		{Type: TaskHousekeepingAttempts, Handler: j.HandleAttempts},
	}
}

// Schedule returns the cron registrations, in UTC.
func Schedule() ([]CronRegistration, error) {
	specs := []struct {
		spec     string
		taskType string
	}{
		{"15 1 * * *", TaskHousekeepingIdempotency},
		{"30 1 * * *", TaskHousekeepingAudit},
		{"*/10 * * * *", TaskHousekeepingAttempts},
	}
	out := make([]CronRegistration, 0, len(specs))
	for _, s := range specs {
		task, err := NewHousekeepingTask(s.taskType, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: s.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	return out, nil
}

// HandleIdempotency processes TaskHousekeepingIdempotency.
func (j *HousekeepingJob) HandleIdempotency(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	if j.Idempotency == nil {
		return errors.New("housekeeping: idempotency store not configured")
	}
	return j.run(TaskHousekeepingIdempotency, func() (int64, error) {
		return j.Idempotency.Cleanup(ctx, payload.retention(j.IdempotencyRetention))
	})
}

// HandleAudit processes TaskHousekeepingAudit. Approval rows share the audit
// retention.
func (j *HousekeepingJob) HandleAudit(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	if j.Audit == nil && j.Approvals == nil {
		return errors.New("housekeeping: audit stores not configured")
	}
	retention := payload.retention(j.AuditRetention)
	return j.run(TaskHousekeepingAudit, func() (int64, error) {
		var total int64
		for _, p := range []LogPruner{j.Audit, j.Approvals} {
			if p == nil {
				continue
			}
			n, err := p.Prune(ctx, retention)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	})
}

// HandleAttempts processes TaskHousekeepingAttempts.
func (j *HousekeepingJob) HandleAttempts(ctx context.Context, t *asynq.Task) error {
	if _, err := decodePayload(t); err != nil {
		return err
	}
	if j.Attempts == nil {
		return errors.New("housekeeping: attempt tracker not configured")
	}
	return j.run(TaskHousekeepingAttempts, func() (int64, error) {
		n, err := j.Attempts.Sweep(ctx)
		return int64(n), err
	})
}

func (j *HousekeepingJob) run(task string, fn func() (int64, error)) (resultErr error) {
	tracker := j.metrics().Track(task)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("task", task))
	removed, err := fn()
	j.metrics().AddRemoved(task, removed)
	if err != nil {
		logger.Error("housekeeping failed", slog.Int64("removed", removed), slog.Any("error", err))
		return err
	}
	logger.Info("housekeeping done", slog.Int64("removed", removed))
	return nil
}

func decodePayload(t *asynq.Task) (HousekeepingPayload, error) {
	var payload HousekeepingPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, asynq.SkipRetry
	}
	return payload, nil
}

func (j *HousekeepingJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *HousekeepingJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sekolah-digital/sekolah-api/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditRecord is the task type for persisting audit entries.
	TaskTypeAuditRecord = "audit:record"
)

// NewAuditRecordTask constructs an Asynq task carrying one audit entry.
func NewAuditRecordTask(entry audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditRecord, data), nil
}

// NewAuditRecordHandler processes TaskTypeAuditRecord tasks by appending the
// entry through the repository.
func NewAuditRecordHandler(repo *audit.Repository, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var entry audit.Entry
		if err := json.Unmarshal(t.Payload(), &entry); err != nil {
			if logger != nil {
				logger.Error("audit task payload malformed", slog.Any("error", err))
			}
			return asynq.SkipRetry
		}
		return repo.Append(ctx, entry)
	}
}

package cron

import (
	"context"
	"log/slog"
)

// HeartbeatSchedule fires on the 4th second of every minute.
const HeartbeatSchedule = "4 * * * * *"

// LogTask returns a task that emits msg at info level together with the
// job's next due instant.
func LogTask(logger *slog.Logger, msg string) Task {
	return func(_ context.Context, id JobID, q Querier) error {
		attrs := []any{"job_id", id.String()}
		if next, ok := q.NextTick(id); ok {
			attrs = append(attrs, "next", next)
		}
		logger.Info(msg, attrs...)
		return nil
	}
}

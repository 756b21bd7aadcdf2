package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup refreshes the statistics snapshot and collection caches.
	TaskStatsWarmup = "stats:warmup"
	// WarmupSchedule runs the warmup every 15 minutes.
	WarmupSchedule = "*/15 * * * *"
)

// StatsWarmupPayload names the snapshot scope to refresh.
type StatsWarmupPayload struct {
	Scope string `json:"scope"`
}

// NewStatsWarmupTask constructs the warmup task for scope.
func NewStatsWarmupTask(scope string) (*asynq.Task, error) {
	data, err := json.Marshal(StatsWarmupPayload{Scope: scope})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, data), nil
}

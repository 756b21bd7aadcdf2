package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ecclesia/ecclesia/internal/apiclient"
	jobmetrics "github.com/ecclesia/ecclesia/internal/jobs"
	"github.com/ecclesia/ecclesia/internal/stats"
)

// OrganisationScope is the snapshot scope warmed with the service token.
const OrganisationScope = "organisation"

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Snapshotter yields the statistics snapshot for a scope.
type Snapshotter interface {
	Snapshot(ctx context.Context, scope string) (stats.Snapshot, bool, error)
}

// StatsWarmupJob loads every collection through the API client so the
// read-through caches and the statistics snapshot are populated.
type StatsWarmupJob struct {
	Stats   Snapshotter
	Token   string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(svc Snapshotter, token string, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{Stats: svc, Token: token, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Stats == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Scope == "" {
		payload.Scope = OrganisationScope
	}
	if j.Token == "" {
		j.logger().Warn("no service token configured, skipping warmup")
		return nil
	}

	tracker := j.metrics().Track(TaskStatsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("scope", payload.Scope))
	start := time.Now()
	ctx = apiclient.WithToken(ctx, j.Token)
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	snap, cached, err := j.Stats.Snapshot(ctx, payload.Scope)
	if err != nil {
		logger.Error("warm statistics", slog.Any("error", err))
		return err
	}
	j.record(snap)
	logger.Info("completed stats warmup", slog.Bool("cached", cached), slog.Int("members", snap.Members), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *StatsWarmupJob) record(snap stats.Snapshot) {
	m := j.metrics()
	m.SetWarmed("members", snap.Members)
	m.SetWarmed("committees", snap.Committees)
	m.SetWarmed("ministries", snap.Ministries)
	m.SetWarmed("pasteurs", snap.Pastors)
	transfers := 0
	for _, b := range snap.Transfers {
		transfers += b.Count
	}
	m.SetWarmed("transfers", transfers)
	for _, t := range snap.Finance {
		m.SetWarmed(t.Kind, t.Count)
	}
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatsWarmup))
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

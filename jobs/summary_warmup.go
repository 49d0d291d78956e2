package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scholaris-erp/scholaris-erp/internal/jobs"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// SummaryWarmupJob pre-populates the balance summary cache so the first
// dashboard request after an invalidation does not pay for the aggregate.
type SummaryWarmupJob struct {
	Wallets *wallet.Service
	Cache   wallet.SummaryCache
	Logger  *slog.Logger
	Tracker *jobmetrics.Metrics
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(wallets *wallet.Service, cache wallet.SummaryCache, logger *slog.Logger, tracker *jobmetrics.Metrics) *SummaryWarmupJob {
	return &SummaryWarmupJob{Wallets: wallets, Cache: cache, Logger: logger, Tracker: tracker}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Wallets == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.tracker().Track(TaskSummaryWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Force && j.Cache != nil {
		if err := j.Cache.Invalidate(ctx); err != nil {
			resultErr = err
			logger.Error("invalidate summary cache", slog.Any("error", err))
			return resultErr
		}
	}

	summary, err := j.Wallets.Summary(ctx)
	if err != nil {
		resultErr = err
		logger.Error("warm summary cache", slog.Any("error", err))
		return resultErr
	}
	logger.Info("summary cache warmed",
		slog.String("grand_total", summary.GrandTotal.String()))
	return resultErr
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSummaryWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSummaryWarmup))
}

func (j *SummaryWarmupJob) tracker() *jobmetrics.Metrics {
	if j.Tracker != nil {
		return j.Tracker
	}
	return defaultJobMetrics
}

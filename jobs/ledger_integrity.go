package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/scholaris-erp/scholaris-erp/internal/jobs"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// integrityLockTTL bounds how long a crashed scan blocks the next one.
const integrityLockTTL = 10 * time.Minute

// LedgerIntegrityJob recomputes every wallet's accumulators from its
// transactions and checks transfer leg pairing. The scan is read only; drift
// is reported through logs and the drift gauge, never auto-corrected.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracker *jobmetrics.Metrics
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, metrics *observability.Metrics, tracker *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Redis: rdb, Logger: logger, Metrics: metrics, Tracker: tracker}
}

// Handle processes ledger integrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.tracker().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()

	if j.Redis != nil {
		ok, err := j.Redis.SetNX(ctx, shared.IntegrityLockKey(), "1", integrityLockTTL).Result()
		if err != nil {
			resultErr = err
			logger.Error("acquire integrity lock", slog.Any("error", err))
			return resultErr
		}
		if !ok {
			logger.Info("integrity scan already running, skipping")
			return nil
		}
		defer func() {
			_ = j.Redis.Del(context.WithoutCancel(ctx), shared.IntegrityLockKey()).Err()
		}()
	}

	logger.Info("starting ledger integrity scan", slog.Bool("dry_run", payload.DryRun))
	start := time.Now()

	drifted, err := j.scanWallets(ctx, logger)
	if err != nil {
		resultErr = err
		logger.Error("scan wallets", slog.Any("error", err))
		return resultErr
	}
	broken, err := j.scanTransferGroups(ctx, logger)
	if err != nil {
		resultErr = err
		logger.Error("scan transfer groups", slog.Any("error", err))
		return resultErr
	}

	total := drifted + broken
	if !payload.DryRun {
		j.Metrics.SetIntegrityDrift(total)
	}
	logger.Info("completed ledger integrity scan",
		slog.Int("drifted_wallets", drifted),
		slog.Int("broken_transfer_groups", broken),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

// scanWallets compares each wallet's stored receivable and payable totals
// against the sums of its transactions by direction.
func (j *LedgerIntegrityJob) scanWallets(ctx context.Context, logger *slog.Logger) (int, error) {
	rows, err := j.Pool.Query(ctx, `
SELECT w.id, w.name,
       w.receivable_amount::text, w.payable_amount::text,
       COALESCE(SUM(t.amount) FILTER (WHERE t.direction = 'in'), 0)::text,
       COALESCE(SUM(t.amount) FILTER (WHERE t.direction = 'out'), 0)::text
FROM wallets w
LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
GROUP BY w.id
ORDER BY w.id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	drifted := 0
	for rows.Next() {
		var (
			id                      int64
			name                    string
			storedIn, storedOut     string
			computedIn, computedOut string
		)
		if err := rows.Scan(&id, &name, &storedIn, &storedOut, &computedIn, &computedOut); err != nil {
			return 0, err
		}
		sr, err := money.Parse(storedIn)
		if err != nil {
			return 0, err
		}
		sp, err := money.Parse(storedOut)
		if err != nil {
			return 0, err
		}
		cr, err := money.Parse(computedIn)
		if err != nil {
			return 0, err
		}
		cp, err := money.Parse(computedOut)
		if err != nil {
			return 0, err
		}
		if sr.Equal(cr) && sp.Equal(cp) {
			continue
		}
		drifted++
		logger.Warn("wallet accumulator drift",
			slog.Int64("wallet_id", id),
			slog.String("wallet", name),
			slog.String("stored_receivable", sr.String()),
			slog.String("computed_receivable", cr.String()),
			slog.String("stored_payable", sp.String()),
			slog.String("computed_payable", cp.String()))
	}
	return drifted, rows.Err()
}

// scanTransferGroups flags transfer groups that do not consist of exactly two
// legs of equal amount. A reversed leg leaves its counterpart orphaned, which
// this scan surfaces.
func (j *LedgerIntegrityJob) scanTransferGroups(ctx context.Context, logger *slog.Logger) (int, error) {
	rows, err := j.Pool.Query(ctx, `
SELECT transfer_group_id::text, COUNT(*), MIN(amount)::text, MAX(amount)::text
FROM wallet_transactions
WHERE transfer_group_id IS NOT NULL
GROUP BY transfer_group_id
HAVING COUNT(*) <> 2 OR MIN(amount) <> MAX(amount)`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	broken := 0
	for rows.Next() {
		var (
			groupID    string
			legs       int
			minA, maxA string
		)
		if err := rows.Scan(&groupID, &legs, &minA, &maxA); err != nil {
			return 0, err
		}
		broken++
		logger.Warn("unbalanced transfer group",
			slog.String("transfer_group_id", groupID),
			slog.Int("legs", legs),
			slog.String("min_amount", minA),
			slog.String("max_amount", maxA))
	}
	return broken, rows.Err()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) tracker() *jobmetrics.Metrics {
	if j.Tracker != nil {
		return j.Tracker
	}
	return defaultJobMetrics
}

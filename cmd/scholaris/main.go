package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/app"
	"github.com/scholaris-erp/scholaris-erp/internal/coupon"
	"github.com/scholaris-erp/scholaris-erp/internal/expense"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/payment"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/cache"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/transfer"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
	"github.com/scholaris-erp/scholaris-erp/jobs"
	"github.com/scholaris-erp/scholaris-erp/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.Files); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(pool)

	adminsRepo := admins.NewRepository(pool)
	adminsService := admins.NewService(adminsRepo)
	adminsHandler := admins.NewHandler(logger, adminsService)

	summaryCache := wallet.NewRedisSummaryCache(redisClient, cfg.SummaryCacheTTL)
	walletRepo := wallet.NewRepository(pool)
	walletService := wallet.NewService(walletRepo, adminsService, summaryCache, metrics)
	walletHandler := wallet.NewHandler(logger, walletService, adminsService)

	transferRepo := transfer.NewRepository(pool)
	transferService := transfer.NewService(transferRepo, adminsService)
	transferHandler := transfer.NewHandler(logger, transferService)

	couponRepo := coupon.NewRepository(pool)
	couponService := coupon.NewService(couponRepo)
	couponHandler := coupon.NewHandler(logger, couponService)

	expenseRepo := expense.NewRepository(pool)
	expenseService := expense.NewService(expenseRepo)
	expenseHandler := expense.NewHandler(logger, expenseService)

	paymentRepo := payment.NewRepository(pool)
	paymentService := payment.NewService(paymentRepo, adminsService, idempotencyStore, summaryCache)
	paymentHandler := payment.NewHandler(logger, paymentService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AdminsHandler:   adminsHandler,
		WalletHandler:   walletHandler,
		TransferHandler: transferHandler,
		CouponHandler:   couponHandler,
		ExpenseHandler:  expenseHandler,
		PaymentHandler:  paymentHandler,
		JobsHandler:     jobsHandler,
		Pool:            pool,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package app

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/coupon"
	"github.com/scholaris-erp/scholaris-erp/internal/expense"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/payment"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/transfer"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
	"github.com/scholaris-erp/scholaris-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AdminsHandler   *admins.Handler
	WalletHandler   *wallet.Handler
	TransferHandler *transfer.Handler
	CouponHandler   *coupon.Handler
	ExpenseHandler  *expense.Handler
	PaymentHandler  *payment.Handler
	JobsHandler     *jobs.Handler
	Pool            *pgxpool.Pool
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Scholaris defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(actorMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Error("readiness probe failed", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.AdminsHandler != nil {
			api.Route("/admins", params.AdminsHandler.MountRoutes)
		}
		if params.WalletHandler != nil {
			api.Route("/wallets", params.WalletHandler.MountRoutes)
		}
		if params.TransferHandler != nil {
			api.Route("/transfer-requests", params.TransferHandler.MountRoutes)
		}
		if params.CouponHandler != nil {
			api.Route("/coupons", params.CouponHandler.MountRoutes)
		}
		if params.ExpenseHandler != nil {
			api.Route("/expenses", params.ExpenseHandler.MountRoutes)
		}
		if params.PaymentHandler != nil {
			api.Route("/payments", params.PaymentHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			api.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

// actorMiddleware resolves the acting admin from the X-Admin-ID header set by
// the authenticating proxy in front of this service.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("X-Admin-ID"); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}

package payment

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/httpx"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Handler exposes payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/students/{studentID}", h.listForStudent)
	r.Get("/{id}", h.get)
}

type paymentResponse struct {
	ID             int64        `json:"id"`
	StudentID      int64        `json:"student_id"`
	Amount         money.Amount `json:"amount"`
	CouponCode     *string      `json:"coupon_code,omitempty"`
	DiscountAmount money.Amount `json:"discount_amount"`
	FinalAmount    money.Amount `json:"final_amount"`
	ReceivedBy     int64        `json:"received_by"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		StudentID:      p.StudentID,
		Amount:         p.Amount,
		CouponCode:     p.CouponCode,
		DiscountAmount: p.DiscountAmount,
		FinalAmount:    p.FinalAmount,
		ReceivedBy:     p.ReceivedBy,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	payments, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": total}})
}

type createRequest struct {
	StudentID  int64  `json:"student_id" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	CouponCode string `json:"coupon_code" validate:"omitempty,len=5"`
	Notes      string `json:"notes" validate:"max=255"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount")
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		StudentID:      req.StudentID,
		Amount:         amount,
		CouponCode:     req.CouponCode,
		ReceivedBy:     shared.ActorFromContext(r.Context()),
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("payment recorded",
		slog.Int64("payment_id", created.ID),
		slog.Int64("student_id", created.StudentID),
		slog.String("final_amount", created.FinalAmount.String()))
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": toPaymentResponse(created)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid payment id")
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toPaymentResponse(p)})
}

func (h *Handler) listForStudent(w http.ResponseWriter, r *http.Request) {
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid student id")
		return
	}
	payments, err := h.service.ListForStudent(r.Context(), studentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

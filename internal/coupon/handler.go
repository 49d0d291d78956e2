package coupon

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/httpx"
)

// Handler exposes coupon endpoints.
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

// MountRoutes registers coupon routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/verify", h.verify)
	r.Get("/students/{studentID}", h.studentHistory)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Get("/{id}/logs", h.logs)
}

type couponResponse struct {
	ID              int64        `json:"id"`
	Code            string       `json:"code"`
	Name            string       `json:"name"`
	DiscountType    DiscountType `json:"discount_type"`
	DiscountValue   money.Amount `json:"discount_value"`
	IsUsed          bool         `json:"is_used"`
	UsedByStudentID *int64       `json:"used_by_student_id,omitempty"`
	UsedByAdminID   *int64       `json:"used_by_admin_id,omitempty"`
	UsedAt          *time.Time   `json:"used_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

func toCouponResponse(c Coupon) couponResponse {
	return couponResponse{
		ID:              c.ID,
		Code:            c.Code,
		Name:            c.Name,
		DiscountType:    c.DiscountType,
		DiscountValue:   c.DiscountValue,
		IsUsed:          c.IsUsed,
		UsedByStudentID: c.UsedByStudentID,
		UsedByAdminID:   c.UsedByAdminID,
		UsedAt:          c.UsedAt,
		CreatedAt:       c.CreatedAt,
	}
}

type logResponse struct {
	ID        int64        `json:"id"`
	CouponID  int64        `json:"coupon_id"`
	PaymentID *int64       `json:"payment_id,omitempty"`
	StudentID *int64       `json:"student_id,omitempty"`
	AdminID   int64        `json:"admin_id"`
	Amount    money.Amount `json:"amount"`
	Discount  money.Amount `json:"discount"`
	Final     money.Amount `json:"final_amount"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func toLogResponses(logs []Log) []logResponse {
	out := make([]logResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, logResponse{
			ID:        l.ID,
			CouponID:  l.CouponID,
			PaymentID: l.PaymentID,
			StudentID: l.StudentID,
			AdminID:   l.AdminID,
			Amount:    l.Amount,
			Discount:  l.Discount,
			Final:     l.Final,
			Notes:     l.Notes,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	coupons, total, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, toCouponResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": total}})
}

type createRequest struct {
	Code          string `json:"code" validate:"omitempty,len=5,alphanum,uppercase"`
	Name          string `json:"name" validate:"required,max=120"`
	DiscountType  string `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue string `json:"discount_value" validate:"required"`
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
	value, err := money.Parse(req.DiscountValue)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid discount value")
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Code:          req.Code,
		Name:          req.Name,
		DiscountType:  DiscountType(req.DiscountType),
		DiscountValue: value,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("coupon created", slog.String("code", created.Code), slog.String("type", string(created.DiscountType)))
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": toCouponResponse(created)})
}

type verifyRequest struct {
	Code   string `json:"code" validate:"required,len=5"`
	Amount string `json:"amount" validate:"required"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
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
	calc, err := h.service.Verify(r.Context(), req.Code, amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": calc})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid coupon id")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toCouponResponse(c)})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid coupon id")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	value, err := money.Parse(req.DiscountValue)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid discount value")
		return
	}
	updated, err := h.service.Update(r.Context(), id, CreateInput{
		Name:          req.Name,
		DiscountType:  DiscountType(req.DiscountType),
		DiscountValue: value,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toCouponResponse(updated)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid coupon id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid coupon id")
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toLogResponses(logs)})
}

func (h *Handler) studentHistory(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseID(r, "studentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid student id")
		return
	}
	history, err := h.service.StudentHistory(r.Context(), studentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	savings, err := h.service.TotalSavings(r.Context(), studentID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"history":       toLogResponses(history),
		"total_savings": savings,
	}})
}

func parseID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

package transfer

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

// Handler exposes transfer request endpoints.
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

// MountRoutes registers transfer request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/mine", h.listMine)
	r.Get("/{id}", h.get)
	r.Post("/{id}/process", h.process)
	r.Post("/{id}/cancel", h.cancel)
}

type requestResponse struct {
	ID                 int64        `json:"id"`
	FromAdminID        int64        `json:"from_admin_id"`
	ToAdminID          int64        `json:"to_admin_id"`
	Amount             money.Amount `json:"amount"`
	Status             Status       `json:"status"`
	Notes              string       `json:"notes,omitempty"`
	CancellationReason string       `json:"cancellation_reason,omitempty"`
	ProcessedBy        *int64       `json:"processed_by,omitempty"`
	ProcessedAt        *time.Time   `json:"processed_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

func toRequestResponse(req Request) requestResponse {
	return requestResponse{
		ID:                 req.ID,
		FromAdminID:        req.FromAdminID,
		ToAdminID:          req.ToAdminID,
		Amount:             req.Amount,
		Status:             req.Status,
		Notes:              req.Notes,
		CancellationReason: req.CancellationReason,
		ProcessedBy:        req.ProcessedBy,
		ProcessedAt:        req.ProcessedAt,
		CreatedAt:          req.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	requests, total, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": total}})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	requests, err := h.service.ListForAdmin(r.Context(), actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

type createRequest struct {
	ToAdminID int64  `json:"to_admin_id" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	Notes     string `json:"notes" validate:"max=255"`
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
		FromAdminID: shared.ActorFromContext(r.Context()),
		ToAdminID:   req.ToAdminID,
		Amount:      amount,
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transfer request created",
		slog.Int64("request_id", created.ID),
		slog.String("status", string(created.Status)),
		slog.String("amount", created.Amount.String()))
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": toRequestResponse(created)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toRequestResponse(req)})
}

type processRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
	Reason string `json:"reason" validate:"max=255"`
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	var req processRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	processed, err := h.service.Process(r.Context(), id, Action(req.Action), shared.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transfer request processed",
		slog.Int64("request_id", processed.ID),
		slog.String("status", string(processed.Status)))
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toRequestResponse(processed)})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid request id")
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toRequestResponse(cancelled)})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

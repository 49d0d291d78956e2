package wallet

import (
	"context"
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

// Handler exposes the ledger over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	dir      AdminDirectory
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, dir AdminDirectory) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		dir:      dir,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listWallets)
	r.Post("/", h.createWallet)
	r.Get("/summary", h.summary)
	r.Get("/logs", h.listLogs)
	r.Post("/transfers", h.transfer)
	r.Post("/transfers/direct", h.directTransfer)
	r.Post("/adjustments", h.adjust)
	r.Post("/transactions/{id}/reverse", h.reverseTransaction)
	r.Get("/{id}", h.getWallet)
	r.Patch("/{id}", h.updateWallet)
	r.Get("/{id}/transactions", h.listTransactions)
}

type walletResponse struct {
	ID           int64        `json:"id"`
	OwnerAdminID *int64       `json:"owner_admin_id,omitempty"`
	Name         string       `json:"name"`
	Type         Type         `json:"type"`
	Receivable   money.Amount `json:"receivable_amount"`
	Payable      money.Amount `json:"payable_amount"`
	Balance      money.Amount `json:"balance"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func toWalletResponse(w Wallet) walletResponse {
	resp := walletResponse{
		ID:         w.ID,
		Name:       w.Name,
		Type:       w.Type,
		Receivable: w.Receivable,
		Payable:    w.Payable,
		Balance:    w.Balance(),
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
	if w.Owner.Kind == OwnerAdmin {
		id := w.Owner.AdminID
		resp.OwnerAdminID = &id
	}
	return resp
}

type transactionResponse struct {
	ID               int64        `json:"id"`
	WalletID         int64        `json:"wallet_id"`
	Type             TxType       `json:"type"`
	Amount           money.Amount `json:"amount"`
	Direction        Direction    `json:"direction"`
	Description      string       `json:"description,omitempty"`
	RelatedPaymentID *int64       `json:"related_payment_id,omitempty"`
	RelatedExpenseID *int64       `json:"related_expense_id,omitempty"`
	TransferGroupID  *string      `json:"transfer_group_id,omitempty"`
	CreatedBy        int64        `json:"created_by"`
	CreatedAt        time.Time    `json:"created_at"`
}

func toTransactionResponse(t Transaction) transactionResponse {
	resp := transactionResponse{
		ID:               t.ID,
		WalletID:         t.WalletID,
		Type:             t.Type,
		Amount:           t.Amount,
		Direction:        t.Direction,
		Description:      t.Description,
		RelatedPaymentID: t.RelatedPaymentID,
		RelatedExpenseID: t.RelatedExpenseID,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
	}
	if t.TransferGroupID != nil {
		group := t.TransferGroupID.String()
		resp.TransferGroupID = &group
	}
	return resp
}

type transferResponse struct {
	Outgoing transactionResponse `json:"outgoing"`
	Incoming transactionResponse `json:"incoming"`
}

type logResponse struct {
	ID            int64          `json:"id"`
	AdminID       int64          `json:"admin_id"`
	PaymentID     *int64         `json:"payment_id,omitempty"`
	ExpenseID     *int64         `json:"expense_id,omitempty"`
	Type          LogType        `json:"type"`
	Amount        money.Amount   `json:"amount"`
	BalanceBefore money.Amount   `json:"balance_before"`
	BalanceAfter  money.Amount   `json:"balance_after"`
	Description   string         `json:"description,omitempty"`
	Meta          map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toLogResponse(l Log) logResponse {
	return logResponse{
		ID:            l.ID,
		AdminID:       l.AdminID,
		PaymentID:     l.PaymentID,
		ExpenseID:     l.ExpenseID,
		Type:          l.Type,
		Amount:        l.Amount,
		BalanceBefore: l.BalanceBefore,
		BalanceAfter:  l.BalanceAfter,
		Description:   l.Description,
		Meta:          l.Meta,
		CreatedAt:     l.CreatedAt,
	}
}

type pageMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

func (h *Handler) listWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.service.List(r.Context(), Type(r.URL.Query().Get("type")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, wal := range wallets {
		out = append(out, toWalletResponse(wal))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}

type createWalletRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Type         string `json:"type" validate:"required,oneof=staff expense"`
	OwnerAdminID int64  `json:"owner_admin_id" validate:"required_if=Type staff"`
}

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateWallet(r.Context(), CreateWalletInput{
		OwnerAdminID: req.OwnerAdminID,
		Name:         req.Name,
		Type:         Type(req.Type),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": toWalletResponse(created)})
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid wallet id")
		return
	}
	wal, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toWalletResponse(wal)})
}

type updateWalletRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (h *Handler) updateWallet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid wallet id")
		return
	}
	var req updateWalletRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateWallet(r.Context(), id, req.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toWalletResponse(updated)})
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid wallet id")
		return
	}
	page, perPage := pageParams(r)
	txns, total, err := h.service.Transactions(r.Context(), id, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": pageMeta{Page: page, PerPage: perPage, Total: total},
	})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	logs, total, err := h.service.Logs(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]logResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toLogResponse(l))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": pageMeta{Page: page, PerPage: perPage, Total: total},
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

type transferRequest struct {
	FromWalletID int64  `json:"from_wallet_id" validate:"required"`
	ToWalletID   int64  `json:"to_wallet_id" validate:"required"`
	Amount       string `json:"amount" validate:"required"`
	Note         string `json:"note" validate:"max=255"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, h.service.Transfer)
}

// directTransfer bypasses routing rules and is restricted to administrators.
func (h *Handler) directTransfer(w http.ResponseWriter, r *http.Request) {
	if !h.actorIsAdministrator(r) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "direct transfers require the administrator role")
		return
	}
	h.handleTransfer(w, r, h.service.DirectTransfer)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, exec func(ctx context.Context, in TransferInput) (TransferResult, error)) {
	var req transferRequest
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
	result, err := exec(r.Context(), TransferInput{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       amount,
		ActorID:      shared.ActorFromContext(r.Context()),
		Note:         req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": transferResponse{
		Outgoing: toTransactionResponse(result.Outgoing),
		Incoming: toTransactionResponse(result.Incoming),
	}})
}

type adjustRequest struct {
	WalletID    int64  `json:"wallet_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Direction   string `json:"direction" validate:"required,oneof=in out"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	if !h.actorIsAdministrator(r) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "adjustments require the administrator role")
		return
	}
	var req adjustRequest
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
	txn, err := h.service.Adjust(r.Context(), AdjustInput{
		WalletID:    req.WalletID,
		Amount:      amount,
		Direction:   Direction(req.Direction),
		ActorID:     shared.ActorFromContext(r.Context()),
		Description: req.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": toTransactionResponse(txn)})
}

func (h *Handler) reverseTransaction(w http.ResponseWriter, r *http.Request) {
	if !h.actorIsAdministrator(r) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "reversals require the administrator role")
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid transaction id")
		return
	}
	txn, err := h.service.Reverse(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("transaction reversed",
		slog.Int64("transaction_id", txn.ID),
		slog.Int64("wallet_id", txn.WalletID),
		slog.String("amount", txn.Amount.String()),
		slog.Int64("actor_id", shared.ActorFromContext(r.Context())))
	httpx.JSON(w, http.StatusOK, map[string]any{"data": toTransactionResponse(txn)})
}

func (h *Handler) actorIsAdministrator(r *http.Request) bool {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		return false
	}
	admin, err := h.dir.Get(r.Context(), actorID)
	if err != nil {
		return false
	}
	return admin.IsAdministrator()
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pg := shared.NewPagination(page, perPage, 0)
	return pg.Page, pg.PerPage
}

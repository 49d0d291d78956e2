package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// Service wraps transfer request business rules.
type Service struct {
	repo Repository
	dir  wallet.AdminDirectory
}

// NewService constructs a new Service.
func NewService(repo Repository, dir wallet.AdminDirectory) *Service {
	return &Service{repo: repo, dir: dir}
}

// CreateInput groups fields for opening a transfer request.
type CreateInput struct {
	FromAdminID int64
	ToAdminID   int64
	Amount      money.Amount
	Notes       string
}

// Validate ensures request input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.FromAdminID == 0 || in.ToAdminID == 0 {
		return errors.New("transfer: both admins required")
	}
	if in.FromAdminID == in.ToAdminID {
		return errors.New("transfer: cannot request a transfer to yourself")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("transfer: amount must be positive, got %s", in.Amount)
	}
	return nil
}

// Create opens a transfer request. The requester's staff wallet must cover
// the amount before any record exists. Administrators skip the approval
// round trip: their requests execute immediately and are born accepted.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	if err := in.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	from, err := s.dir.Get(ctx, in.FromAdminID)
	if err != nil {
		return Request{}, err
	}
	to, err := s.dir.Get(ctx, in.ToAdminID)
	if err != nil {
		return Request{}, err
	}
	if !to.IsActive {
		return Request{}, fmt.Errorf("%w: recipient account is inactive", shared.ErrValidation)
	}

	var created Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		senderWallet, err := tx.GetOrCreateStaffWallet(ctx, from.ID, fmt.Sprintf("%s's Wallet", from.Name))
		if err != nil {
			return err
		}
		balance := senderWallet.Balance()
		if !balance.IsPositive() || balance.LessThan(in.Amount) {
			return fmt.Errorf("%w in %s. Available balance: %s", shared.ErrInsufficientBalance, senderWallet.Name, balance.FormatUSD())
		}

		req := Request{
			FromAdminID: from.ID,
			ToAdminID:   to.ID,
			Amount:      in.Amount.Round2(),
			Status:      StatusPending,
			Notes:       in.Notes,
		}
		if from.IsAdministrator() {
			if _, err := wallet.ExecuteAdminTransfer(ctx, tx, wallet.AdminTransferInput{
				FromAdmin: from,
				ToAdmin:   to,
				Amount:    req.Amount,
				ActorID:   from.ID,
				Notes:     in.Notes,
			}); err != nil {
				return err
			}
			now := time.Now()
			req.Status = StatusAccepted
			req.ProcessedBy = &from.ID
			req.ProcessedAt = &now
		}
		created, err = tx.InsertRequest(ctx, req)
		return err
	})
	if err != nil {
		return Request{}, err
	}
	return created, nil
}

// Action enumerates processing decisions.
type Action string

const (
	// ActionAccept executes the transfer.
	ActionAccept Action = "accept"
	// ActionReject declines the request.
	ActionReject Action = "reject"
)

// Process decides a pending request. Accepting re-checks the sender balance
// under lock: a sender that no longer covers the amount auto-cancels the
// request with ReasonLowBalance instead of failing the call. Non-pending
// requests conflict with ErrAlreadyProcessed and mutate nothing.
func (s *Service) Process(ctx context.Context, id int64, action Action, actorID int64, reason string) (Request, error) {
	if action != ActionAccept && action != ActionReject {
		return Request{}, fmt.Errorf("%w: unknown action %q", shared.ErrValidation, action)
	}
	actor, err := s.dir.Get(ctx, actorID)
	if err != nil {
		return Request{}, err
	}

	var processed Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request is already %s", shared.ErrAlreadyProcessed, req.Status)
		}
		if actor.ID != req.ToAdminID && !actor.IsAdministrator() {
			return fmt.Errorf("%w: only the recipient or an administrator can process this request", shared.ErrValidation)
		}
		now := time.Now()

		if action == ActionReject {
			if err := tx.SetStatus(ctx, req.ID, StatusRejected, reason, actor.ID, now); err != nil {
				return err
			}
			processed = req
			processed.Status = StatusRejected
			processed.CancellationReason = reason
			processed.ProcessedBy = &actor.ID
			processed.ProcessedAt = &now
			return nil
		}

		from, err := s.dir.Get(ctx, req.FromAdminID)
		if err != nil {
			return err
		}
		to, err := s.dir.Get(ctx, req.ToAdminID)
		if err != nil {
			return err
		}
		senderWallet, err := tx.GetOrCreateStaffWallet(ctx, from.ID, fmt.Sprintf("%s's Wallet", from.Name))
		if err != nil {
			return err
		}
		if senderWallet.Balance().LessThan(req.Amount) {
			if err := tx.SetStatus(ctx, req.ID, StatusCancelled, ReasonLowBalance, actor.ID, now); err != nil {
				return err
			}
			processed = req
			processed.Status = StatusCancelled
			processed.CancellationReason = ReasonLowBalance
			processed.ProcessedBy = &actor.ID
			processed.ProcessedAt = &now
			return nil
		}

		if _, err := wallet.ExecuteAdminTransfer(ctx, tx, wallet.AdminTransferInput{
			FromAdmin: from,
			ToAdmin:   to,
			Amount:    req.Amount,
			ActorID:   actor.ID,
			Notes:     req.Notes,
		}); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, req.ID, StatusAccepted, "", actor.ID, now); err != nil {
			return err
		}
		processed = req
		processed.Status = StatusAccepted
		processed.ProcessedBy = &actor.ID
		processed.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return processed, nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Request, error) {
	var cancelled Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request is already %s", shared.ErrAlreadyProcessed, req.Status)
		}
		if req.FromAdminID != actorID {
			return fmt.Errorf("%w: only the requester can cancel", shared.ErrValidation)
		}
		now := time.Now()
		if err := tx.SetStatus(ctx, req.ID, StatusCancelled, "Cancelled by requester", actorID, now); err != nil {
			return err
		}
		cancelled = req
		cancelled.Status = StatusCancelled
		cancelled.CancellationReason = "Cancelled by requester"
		cancelled.ProcessedBy = &actorID
		cancelled.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return cancelled, nil
}

// Get returns the request by id.
func (s *Service) Get(ctx context.Context, id int64) (Request, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, page, perPage int) ([]Request, int, error) {
	if status != "" {
		switch status {
		case StatusPending, StatusAccepted, StatusRejected, StatusCancelled:
		default:
			return nil, 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
		}
	}
	return s.repo.List(ctx, status, page, perPage)
}

// ListForAdmin returns the requests an admin sent or received.
func (s *Service) ListForAdmin(ctx context.Context, adminID int64) ([]Request, error) {
	return s.repo.ListForAdmin(ctx, adminID)
}

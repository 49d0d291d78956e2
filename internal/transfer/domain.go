// Package transfer implements wallet transfer requests between admins: a
// small state machine whose accept path executes the actual ledger transfer
// in the same transaction as the status flip.
package transfer

import (
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// Status enumerates request states.
type Status string

const (
	// StatusPending awaits a decision from the recipient.
	StatusPending Status = "pending"
	// StatusAccepted means the transfer executed.
	StatusAccepted Status = "accepted"
	// StatusRejected means the recipient declined; no ledger effect.
	StatusRejected Status = "rejected"
	// StatusCancelled means the request was withdrawn or auto-cancelled.
	StatusCancelled Status = "cancelled"
)

// ReasonLowBalance is recorded when an accepted request auto-cancels because
// the sender no longer covers the amount.
const ReasonLowBalance = "Low balance on account"

// Request is one wallet transfer request. Terminal states are immutable;
// only pending requests can be processed.
type Request struct {
	ID                 int64
	FromAdminID        int64
	ToAdminID          int64
	Amount             money.Amount
	Status             Status
	Notes              string
	CancellationReason string
	ProcessedBy        *int64
	ProcessedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsPending reports whether the request still awaits processing.
func (r Request) IsPending() bool { return r.Status == StatusPending }

// Package wallet implements the ledger engine: wallet balance derivation,
// transaction application and reversal, transfer routing, and the append-only
// transaction log. No other package mutates wallet accumulators.
package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// Type enumerates wallet kinds.
type Type string

const (
	// TypeStaff is an admin-owned wallet collecting student payments.
	TypeStaff Type = "staff"
	// TypeMainCashbox is the single system-owned hub wallet.
	TypeMainCashbox Type = "main_cashbox"
	// TypeExpense is a wallet expenses are paid from.
	TypeExpense Type = "expense"
)

// Types returns all wallet types.
func Types() []Type {
	return []Type{TypeStaff, TypeMainCashbox, TypeExpense}
}

// OwnerKind discriminates the wallet owner union.
type OwnerKind string

const (
	// OwnerSystem marks an unowned, system-level wallet.
	OwnerSystem OwnerKind = "system"
	// OwnerAdmin marks a wallet owned by an admin.
	OwnerAdmin OwnerKind = "admin"
)

// OwnerRef is a tagged union over the possible wallet owners: the system
// (no owner) or a specific admin. AdminID is meaningful only when Kind is
// OwnerAdmin.
type OwnerRef struct {
	Kind    OwnerKind
	AdminID int64
}

// SystemOwner returns the unowned variant.
func SystemOwner() OwnerRef {
	return OwnerRef{Kind: OwnerSystem}
}

// AdminOwner returns the admin-owned variant.
func AdminOwner(adminID int64) OwnerRef {
	return OwnerRef{Kind: OwnerAdmin, AdminID: adminID}
}

// IsSystem reports whether the wallet has no owner.
func (o OwnerRef) IsSystem() bool {
	return o.Kind != OwnerAdmin
}

// Wallet holds the two monotonic accumulators whose difference is the
// spendable balance. The balance itself is never stored.
type Wallet struct {
	ID         int64
	Owner      OwnerRef
	Name       string
	Type       Type
	Receivable money.Amount
	Payable    money.Amount
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Balance is computed fresh on every read: receivable minus payable.
func (w Wallet) Balance() money.Amount {
	return w.Receivable.Sub(w.Payable)
}

// IsStaff reports whether the wallet is a staff wallet.
func (w Wallet) IsStaff() bool { return w.Type == TypeStaff }

// IsMainCashbox reports whether the wallet is the main cashbox.
func (w Wallet) IsMainCashbox() bool { return w.Type == TypeMainCashbox }

// IsExpense reports whether the wallet is an expense wallet.
func (w Wallet) IsExpense() bool { return w.Type == TypeExpense }

// TxType enumerates transaction kinds.
type TxType string

const (
	TxPaymentIn   TxType = "payment_in"
	TxTransferIn  TxType = "transfer_in"
	TxTransferOut TxType = "transfer_out"
	TxExpense     TxType = "expense"
	TxAdjustment  TxType = "adjustment"
)

// Direction marks which accumulator a transaction feeds.
type Direction string

const (
	// DirectionIn increases the wallet's receivable total.
	DirectionIn Direction = "in"
	// DirectionOut increases the wallet's payable total.
	DirectionOut Direction = "out"
)

// Transaction is one immutable directional movement against one wallet.
// The only lifecycle event after creation is reversal, which applies the
// inverse accumulator change and deletes the row.
type Transaction struct {
	ID               int64
	WalletID         int64
	Type             TxType
	Amount           money.Amount
	Direction        Direction
	Description      string
	RelatedPaymentID *int64
	RelatedExpenseID *int64
	// TransferGroupID correlates the two legs of a transfer. Both rows of a
	// transfer carry the same group id; standalone transactions carry none.
	TransferGroupID *uuid.UUID
	CreatedBy       int64
	CreatedAt       time.Time
}

// IsIncoming reports whether the transaction feeds receivable.
func (t Transaction) IsIncoming() bool { return t.Direction == DirectionIn }

// IsTransferLeg reports whether the transaction is one leg of a transfer.
func (t Transaction) IsTransferLeg() bool {
	return t.Type == TxTransferIn || t.Type == TxTransferOut
}

// LogType enumerates logical action kinds recorded in the audit trail.
type LogType string

const (
	LogPayment     LogType = "payment"
	LogRefund      LogType = "refund"
	LogAdjustment  LogType = "adjustment"
	LogTransferIn  LogType = "transfer_in"
	LogTransferOut LogType = "transfer_out"
	LogExpense     LogType = "expense"
)

// Log is an append-only audit record of a financial action, snapshotting the
// acting wallet's balance around the operation. Logs are never updated or
// deleted, and are not corrected when a transaction is later reversed.
type Log struct {
	ID            int64
	AdminID       int64
	PaymentID     *int64
	ExpenseID     *int64
	Type          LogType
	Amount        money.Amount
	BalanceBefore money.Amount
	BalanceAfter  money.Amount
	Description   string
	// Meta holds structured context keyed per log type, e.g. counterpart
	// wallet/admin ids and names on transfer logs.
	Meta      map[string]any
	CreatedAt time.Time
}

// BalanceSummary aggregates balances by wallet type for the dashboard.
type BalanceSummary struct {
	StaffTotal   money.Amount `json:"staff_total"`
	MainCashbox  money.Amount `json:"main_cashbox"`
	ExpenseTotal money.Amount `json:"expense_total"`
	GrandTotal   money.Amount `json:"grand_total"`
}

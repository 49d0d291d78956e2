package wallet

import (
	"errors"
	"fmt"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// CreditInput groups fields for crediting a staff wallet with a payment.
type CreditInput struct {
	AdminID     int64
	Amount      money.Amount
	PaymentID   int64
	Description string
}

// Validate ensures credit input meets minimum criteria.
func (in CreditInput) Validate() error {
	if in.AdminID == 0 {
		return errors.New("wallet: admin required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("wallet: amount must be positive, got %s", in.Amount)
	}
	if in.PaymentID == 0 {
		return errors.New("wallet: payment reference required")
	}
	return nil
}

// DebitInput groups fields for posting an expense debit.
type DebitInput struct {
	WalletID    int64
	Amount      money.Amount
	ExpenseID   int64
	ActorID     int64
	Description string
}

// Validate ensures debit input meets minimum criteria.
func (in DebitInput) Validate() error {
	if in.WalletID == 0 {
		return errors.New("wallet: wallet required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("wallet: amount must be positive, got %s", in.Amount)
	}
	if in.ExpenseID == 0 {
		return errors.New("wallet: expense reference required")
	}
	return nil
}

// TransferInput groups fields for a wallet-to-wallet transfer.
type TransferInput struct {
	FromWalletID int64
	ToWalletID   int64
	Amount       money.Amount
	ActorID      int64
	Note         string
}

// Validate ensures transfer input meets minimum criteria.
func (in TransferInput) Validate() error {
	if in.FromWalletID == 0 || in.ToWalletID == 0 {
		return errors.New("wallet: both wallets required")
	}
	if in.FromWalletID == in.ToWalletID {
		return errors.New("wallet: cannot transfer to the same wallet")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("wallet: amount must be positive, got %s", in.Amount)
	}
	if in.ActorID == 0 {
		return errors.New("wallet: acting admin required")
	}
	return nil
}

// TransferResult carries the two legs produced by a transfer.
type TransferResult struct {
	Outgoing Transaction
	Incoming Transaction
}

// AdminTransferInput groups fields for moving money between two admins'
// primary staff wallets. Admins are resolved by the caller so wallet naming
// and log metadata can use their display names.
type AdminTransferInput struct {
	FromAdmin admins.Admin
	ToAdmin   admins.Admin
	Amount    money.Amount
	ActorID   int64
	Notes     string
}

// Validate ensures admin transfer input meets minimum criteria.
func (in AdminTransferInput) Validate() error {
	if in.FromAdmin.ID == 0 || in.ToAdmin.ID == 0 {
		return errors.New("wallet: both admins required")
	}
	if in.FromAdmin.ID == in.ToAdmin.ID {
		return errors.New("wallet: cannot transfer to yourself")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("wallet: amount must be positive, got %s", in.Amount)
	}
	return nil
}

// AdjustInput groups fields for a manual balance adjustment.
type AdjustInput struct {
	WalletID    int64
	Amount      money.Amount
	Direction   Direction
	ActorID     int64
	Description string
}

// Validate ensures adjustment input meets minimum criteria.
func (in AdjustInput) Validate() error {
	if in.WalletID == 0 {
		return errors.New("wallet: wallet required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("wallet: amount must be positive, got %s", in.Amount)
	}
	if in.Direction != DirectionIn && in.Direction != DirectionOut {
		return fmt.Errorf("wallet: unknown direction %q", in.Direction)
	}
	if in.ActorID == 0 {
		return errors.New("wallet: acting admin required")
	}
	return nil
}

// CreateWalletInput groups fields for explicit wallet creation.
type CreateWalletInput struct {
	OwnerAdminID int64
	Name         string
	Type         Type
}

// Validate restricts explicit creation to staff and expense wallets; the
// main cashbox only comes to life through its get-or-create accessor.
func (in CreateWalletInput) Validate() error {
	if in.Name == "" {
		return errors.New("wallet: name required")
	}
	if in.Type != TypeStaff && in.Type != TypeExpense {
		return fmt.Errorf("wallet: invalid wallet type %q, allowed: staff, expense", in.Type)
	}
	return nil
}

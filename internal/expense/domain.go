// Package expense implements expense posting against expense wallets and the
// category catalog behind it. Every expense is paired with a ledger debit in
// the same transaction; expenses are never deleted.
package expense

import (
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// Category groups expenses for reporting.
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expense is one posted expense. Amount and wallet are frozen at creation;
// only the category and description may change afterwards.
type Expense struct {
	ID          int64
	WalletID    int64
	CategoryID  int64
	Amount      money.Amount
	Date        time.Time
	Description string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

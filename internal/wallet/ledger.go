package wallet

import (
	"context"
	"fmt"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// ApplyTransaction persists a transaction row and applies its accumulator
// side effect to the owning wallet in the same transaction: direction in
// feeds receivable, direction out feeds payable. It returns the created row
// and the refreshed wallet. This is the single write path for wallet
// accumulators; callers must hold the wallet row lock.
func ApplyTransaction(ctx context.Context, tx TxRepository, txn Transaction) (Transaction, Wallet, error) {
	if !txn.Amount.IsPositive() {
		return Transaction{}, Wallet{}, fmt.Errorf("wallet: transaction amount must be positive, got %s", txn.Amount)
	}
	if txn.Direction != DirectionIn && txn.Direction != DirectionOut {
		return Transaction{}, Wallet{}, fmt.Errorf("wallet: unknown direction %q", txn.Direction)
	}
	created, err := tx.InsertTransaction(ctx, txn)
	if err != nil {
		return Transaction{}, Wallet{}, err
	}
	var receivableDelta, payableDelta money.Amount
	if created.Direction == DirectionIn {
		receivableDelta = created.Amount
	} else {
		payableDelta = created.Amount
	}
	updated, err := tx.AddToTotals(ctx, created.WalletID, receivableDelta, payableDelta)
	if err != nil {
		return Transaction{}, Wallet{}, err
	}
	return created, updated, nil
}

// ReverseTransaction applies the inverse accumulator change and deletes the
// row. Any transaction log written when the transaction was created is left
// untouched, so the audit trail keeps reflecting the original action even
// after the reversal.
func ReverseTransaction(ctx context.Context, tx TxRepository, id int64) (Transaction, error) {
	txn, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if _, err := tx.GetWalletForUpdate(ctx, txn.WalletID); err != nil {
		return Transaction{}, err
	}
	var receivableDelta, payableDelta money.Amount
	if txn.Direction == DirectionIn {
		receivableDelta = txn.Amount.Neg()
	} else {
		payableDelta = txn.Amount.Neg()
	}
	if _, err := tx.AddToTotals(ctx, txn.WalletID, receivableDelta, payableDelta); err != nil {
		return Transaction{}, err
	}
	if err := tx.DeleteTransaction(ctx, id); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

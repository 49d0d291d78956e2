package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	GetWallet(ctx context.Context, id int64) (Wallet, error)
	ListWallets(ctx context.Context, typ Type) ([]Wallet, error)
	ListWalletsByOwner(ctx context.Context, adminID int64) ([]Wallet, error)
	ListTransactions(ctx context.Context, walletID int64, page, perPage int) ([]Transaction, int, error)
	ListLogs(ctx context.Context, page, perPage int) ([]Log, int, error)
	SummaryTotals(ctx context.Context) (BalanceSummary, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes ledger writes available within a transaction. Sibling
// packages embed it in their own tx interfaces so an expense row, a transfer
// request flip and the wallet legs it causes share one atomic unit.
type TxRepository interface {
	GetWalletForUpdate(ctx context.Context, id int64) (Wallet, error)
	GetOrCreateStaffWallet(ctx context.Context, adminID int64, name string) (Wallet, error)
	GetOrCreateMainCashbox(ctx context.Context) (Wallet, error)
	CreateWallet(ctx context.Context, w Wallet) (Wallet, error)
	RenameWallet(ctx context.Context, id int64, name string) error
	// AddToTotals applies signed deltas to the accumulators and returns the
	// refreshed row. Negative deltas are used only by the reversal path.
	AddToTotals(ctx context.Context, walletID int64, receivableDelta, payableDelta money.Amount) (Wallet, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	InsertLog(ctx context.Context, log Log) (Log, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const walletColumns = `id, owner_admin_id, name, type, receivable_amount::text, payable_amount::text, created_at, updated_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w          Wallet
		ownerID    *int64
		receivable string
		payable    string
	)
	if err := row.Scan(&w.ID, &ownerID, &w.Name, &w.Type, &receivable, &payable, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, shared.ErrNotFound
		}
		return Wallet{}, err
	}
	if ownerID != nil {
		w.Owner = AdminOwner(*ownerID)
	} else {
		w.Owner = SystemOwner()
	}
	var err error
	if w.Receivable, err = money.Parse(receivable); err != nil {
		return Wallet{}, err
	}
	if w.Payable, err = money.Parse(payable); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func ownerParam(o OwnerRef) any {
	if o.IsSystem() {
		return nil
	}
	return o.AdminID
}

func (r *repository) GetWallet(ctx context.Context, id int64) (Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id=$1`, id))
}

func (r *repository) ListWallets(ctx context.Context, typ Type) ([]Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets`
	args := []any{}
	if typ != "" {
		query += ` WHERE type=$1`
		args = append(args, typ)
	}
	query += ` ORDER BY created_at DESC`
	return r.queryWallets(ctx, query, args...)
}

func (r *repository) ListWalletsByOwner(ctx context.Context, adminID int64) ([]Wallet, error) {
	return r.queryWallets(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_admin_id=$1 ORDER BY created_at ASC`, adminID)
}

func (r *repository) queryWallets(ctx context.Context, query string, args ...any) ([]Wallet, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const txnColumns = `id, wallet_id, transaction_type, amount::text, direction, description, related_payment_id, related_expense_id, transfer_group_id, created_by_admin_id, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t      Transaction
		amount string
	)
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &amount, &t.Direction, &t.Description,
		&t.RelatedPaymentID, &t.RelatedExpenseID, &t.TransferGroupID, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	if t.Amount, err = money.Parse(amount); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID int64, page, perPage int) ([]Transaction, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id=$1`, walletID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+txnColumns+` FROM wallet_transactions WHERE wallet_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		walletID, pg.PerPage, (pg.Page-1)*pg.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

const logColumns = `id, admin_id, payment_id, expense_id, transaction_type, amount::text, balance_before::text, balance_after::text, description, metadata, created_at`

func scanLog(row pgx.Row) (Log, error) {
	var (
		l             Log
		amount        string
		balanceBefore string
		balanceAfter  string
		meta          []byte
	)
	err := row.Scan(&l.ID, &l.AdminID, &l.PaymentID, &l.ExpenseID, &l.Type, &amount,
		&balanceBefore, &balanceAfter, &l.Description, &meta, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Log{}, shared.ErrNotFound
		}
		return Log{}, err
	}
	if l.Amount, err = money.Parse(amount); err != nil {
		return Log{}, err
	}
	if l.BalanceBefore, err = money.Parse(balanceBefore); err != nil {
		return Log{}, err
	}
	if l.BalanceAfter, err = money.Parse(balanceAfter); err != nil {
		return Log{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &l.Meta); err != nil {
			return Log{}, fmt.Errorf("wallet: decode log metadata: %w", err)
		}
	}
	return l, nil
}

func (r *repository) ListLogs(ctx context.Context, page, perPage int) ([]Log, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+` FROM transaction_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pg.PerPage, (pg.Page-1)*pg.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// SummaryTotals aggregates receivable-payable per wallet type in a single
// scan so the summary is consistent without locking every wallet row.
func (r *repository) SummaryTotals(ctx context.Context) (BalanceSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, COALESCE(SUM(receivable_amount - payable_amount), 0)::text FROM wallets GROUP BY type`)
	if err != nil {
		return BalanceSummary{}, err
	}
	defer rows.Close()
	var summary BalanceSummary
	for rows.Next() {
		var (
			typ   Type
			total string
		)
		if err := rows.Scan(&typ, &total); err != nil {
			return BalanceSummary{}, err
		}
		amount, err := money.Parse(total)
		if err != nil {
			return BalanceSummary{}, err
		}
		switch typ {
		case TypeStaff:
			summary.StaffTotal = amount
		case TypeMainCashbox:
			summary.MainCashbox = amount
		case TypeExpense:
			summary.ExpenseTotal = amount
		}
	}
	if err := rows.Err(); err != nil {
		return BalanceSummary{}, err
	}
	summary.GrandTotal = summary.StaffTotal.Add(summary.MainCashbox).Add(summary.ExpenseTotal)
	return summary, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open pgx transaction with ledger write operations.
// Sibling repositories call this to run ledger legs inside their own
// transactions.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetWalletForUpdate(ctx context.Context, id int64) (Wallet, error) {
	return scanWallet(r.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id=$1 FOR UPDATE`, id))
}

// GetOrCreateStaffWallet returns the admin's primary staff wallet, creating
// it lazily on first reference. The returned row is locked for the remainder
// of the transaction.
func (r *txRepository) GetOrCreateStaffWallet(ctx context.Context, adminID int64, name string) (Wallet, error) {
	_, err := r.tx.Exec(ctx, `INSERT INTO wallets (owner_admin_id, name, type, receivable_amount, payable_amount)
SELECT $1, $2, 'staff', 0, 0
WHERE NOT EXISTS (SELECT 1 FROM wallets WHERE owner_admin_id=$1 AND type='staff')`, adminID, name)
	if err != nil {
		return Wallet{}, err
	}
	return scanWallet(r.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_admin_id=$1 AND type='staff' ORDER BY id ASC LIMIT 1 FOR UPDATE`, adminID))
}

// GetOrCreateMainCashbox returns the singleton system wallet, locked. The
// partial unique index on (type) WHERE owner_admin_id IS NULL keeps the
// insert idempotent under concurrency.
func (r *txRepository) GetOrCreateMainCashbox(ctx context.Context) (Wallet, error) {
	_, err := r.tx.Exec(ctx, `INSERT INTO wallets (owner_admin_id, name, type, receivable_amount, payable_amount)
VALUES (NULL, 'Main Cashbox', 'main_cashbox', 0, 0)
ON CONFLICT DO NOTHING`)
	if err != nil {
		return Wallet{}, err
	}
	return scanWallet(r.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_admin_id IS NULL AND type='main_cashbox' FOR UPDATE`))
}

func (r *txRepository) CreateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO wallets (owner_admin_id, name, type, receivable_amount, payable_amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		ownerParam(w.Owner), w.Name, w.Type, w.Receivable.String(), w.Payable.String())
	if err := row.Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (r *txRepository) RenameWallet(ctx context.Context, id int64, name string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE wallets SET name=$2, updated_at=NOW() WHERE id=$1`, id, name)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) AddToTotals(ctx context.Context, walletID int64, receivableDelta, payableDelta money.Amount) (Wallet, error) {
	return scanWallet(r.tx.QueryRow(ctx, `UPDATE wallets
SET receivable_amount = receivable_amount + $2::numeric,
    payable_amount = payable_amount + $3::numeric,
    updated_at = NOW()
WHERE id=$1
RETURNING `+walletColumns, walletID, receivableDelta.String(), payableDelta.String()))
}

func (r *txRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM wallet_transactions WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO wallet_transactions
(wallet_id, transaction_type, amount, direction, description, related_payment_id, related_expense_id, transfer_group_id, created_by_admin_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		txn.WalletID, txn.Type, txn.Amount.String(), txn.Direction, txn.Description,
		txn.RelatedPaymentID, txn.RelatedExpenseID, txn.TransferGroupID, txn.CreatedBy)
	if err := row.Scan(&txn.ID, &txn.CreatedAt); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM wallet_transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertLog(ctx context.Context, log Log) (Log, error) {
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return Log{}, fmt.Errorf("wallet: encode log metadata: %w", err)
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO transaction_logs
(admin_id, payment_id, expense_id, transaction_type, amount, balance_before, balance_after, description, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		log.AdminID, log.PaymentID, log.ExpenseID, log.Type, log.Amount.String(),
		log.BalanceBefore.String(), log.BalanceAfter.String(), log.Description, metaJSON)
	if err := row.Scan(&log.ID, &log.CreatedAt); err != nil {
		return Log{}, err
	}
	return log, nil
}

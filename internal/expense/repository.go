package expense

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// Repository encapsulates DB operations for expenses and categories.
type Repository interface {
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	GetExpense(ctx context.Context, id int64) (Expense, error)
	ListExpenses(ctx context.Context, filter ListFilter, page, perPage int) ([]Expense, int, error)
	UpdateExpenseDetails(ctx context.Context, id int64, categoryID int64, description string) (Expense, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository carries the ledger operations expense posting needs for
// transaction context alongside the expense insert.
type TxRepository interface {
	wallet.TxRepository
	InsertExpense(ctx context.Context, e Expense) (Expense, error)
}

// ListFilter narrows expense listings.
type ListFilter struct {
	WalletID   int64
	CategoryID int64
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed expense repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, shared.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM expense_categories WHERE id=$1`, id))
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM expense_categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO expense_categories (name, description)
VALUES ($1,$2) RETURNING id, created_at, updated_at`, c.Name, c.Description)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (r *repository) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `UPDATE expense_categories SET name=$2, description=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+categoryColumns, c.ID, c.Name, c.Description))
}

const expenseColumns = `id, wallet_id, category_id, amount::text, expense_date, description, created_by_admin_id, created_at, updated_at`

func scanExpense(row pgx.Row) (Expense, error) {
	var (
		e      Expense
		amount string
	)
	err := row.Scan(&e.ID, &e.WalletID, &e.CategoryID, &amount, &e.Date,
		&e.Description, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, shared.ErrNotFound
		}
		return Expense{}, err
	}
	if e.Amount, err = money.Parse(amount); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (r *repository) GetExpense(ctx context.Context, id int64) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=$1`, id))
}

func (r *repository) ListExpenses(ctx context.Context, filter ListFilter, page, perPage int) ([]Expense, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	where := ` WHERE 1=1`
	args := []any{}
	if filter.WalletID != 0 {
		args = append(args, filter.WalletID)
		where += ` AND wallet_id=$1`
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		if len(args) == 1 {
			where += ` AND category_id=$1`
		} else {
			where += ` AND category_id=$2`
		}
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limitArgs := append(args, pg.PerPage, (pg.Page-1)*pg.PerPage)
	query := `SELECT ` + expenseColumns + ` FROM expenses` + where +
		` ORDER BY expense_date DESC, id DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateExpenseDetails(ctx context.Context, id int64, categoryID int64, description string) (Expense, error) {
	return scanExpense(r.pool.QueryRow(ctx, `UPDATE expenses SET category_id=$2, description=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+expenseColumns, id, categoryID, description))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: wallet.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	wallet.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertExpense(ctx context.Context, e Expense) (Expense, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO expenses (wallet_id, category_id, amount, expense_date, description, created_by_admin_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		e.WalletID, e.CategoryID, e.Amount.String(), e.Date, e.Description, e.CreatedBy)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Expense{}, err
	}
	return e, nil
}

package coupon

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Repository encapsulates DB operations for coupons.
type Repository interface {
	GetByID(ctx context.Context, id int64) (Coupon, error)
	GetByCode(ctx context.Context, code string) (Coupon, error)
	List(ctx context.Context, page, perPage int) ([]Coupon, int, error)
	ListLogs(ctx context.Context, couponID int64) ([]Log, error)
	StudentHistory(ctx context.Context, studentID int64) ([]Log, error)
	TotalSavings(ctx context.Context, studentID int64) (money.Amount, error)
	Create(ctx context.Context, c Coupon) (Coupon, error)
	Update(ctx context.Context, c Coupon) (Coupon, error)
	Delete(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the coupon writes that run inside a transaction.
// The payment package composes these with the ledger credit so a coupon is
// consumed in the same atomic unit as the payment it discounts.
type TxRepository interface {
	GetByCodeForUpdate(ctx context.Context, code string) (Coupon, error)
	MarkUsed(ctx context.Context, couponID int64, studentID *int64, adminID int64) error
	InsertLog(ctx context.Context, log Log) (Log, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed coupon repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const couponColumns = `id, code, name, discount_type, discount_value::text, is_used, used_by_student_id, used_by_admin_id, used_at, created_at, updated_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var (
		c     Coupon
		value string
	)
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.DiscountType, &value, &c.IsUsed,
		&c.UsedByStudentID, &c.UsedByAdminID, &c.UsedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Coupon{}, shared.ErrCouponNotFound
		}
		return Coupon{}, err
	}
	if c.DiscountValue, err = money.Parse(value); err != nil {
		return Coupon{}, err
	}
	return c, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code=$1`, code))
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Coupon, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pg.PerPage, (pg.Page-1)*pg.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

const logColumns = `id, coupon_id, payment_id, student_id, admin_id, amount::text, discount::text, final_amount::text, notes, created_at`

func scanLog(row pgx.Row) (Log, error) {
	var (
		l        Log
		amount   string
		discount string
		final    string
	)
	err := row.Scan(&l.ID, &l.CouponID, &l.PaymentID, &l.StudentID, &l.AdminID,
		&amount, &discount, &final, &l.Notes, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Log{}, shared.ErrNotFound
		}
		return Log{}, err
	}
	if l.Amount, err = money.Parse(amount); err != nil {
		return Log{}, err
	}
	if l.Discount, err = money.Parse(discount); err != nil {
		return Log{}, err
	}
	if l.Final, err = money.Parse(final); err != nil {
		return Log{}, err
	}
	return l, nil
}

func (r *repository) queryLogs(ctx context.Context, query string, args ...any) ([]Log, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Log
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) ListLogs(ctx context.Context, couponID int64) ([]Log, error) {
	return r.queryLogs(ctx, `SELECT `+logColumns+` FROM coupon_logs WHERE coupon_id=$1 ORDER BY created_at DESC`, couponID)
}

func (r *repository) StudentHistory(ctx context.Context, studentID int64) ([]Log, error) {
	return r.queryLogs(ctx, `SELECT `+logColumns+` FROM coupon_logs WHERE student_id=$1 ORDER BY created_at DESC`, studentID)
}

func (r *repository) TotalSavings(ctx context.Context, studentID int64) (money.Amount, error) {
	var total string
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(discount), 0)::text FROM coupon_logs WHERE student_id=$1`, studentID).Scan(&total)
	if err != nil {
		return money.Amount{}, err
	}
	return money.Parse(total)
}

func (r *repository) Create(ctx context.Context, c Coupon) (Coupon, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO coupons (code, name, discount_type, discount_value)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		c.Code, c.Name, c.DiscountType, c.DiscountValue.String())
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Coupon{}, mapUniqueViolation(err)
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, c Coupon) (Coupon, error) {
	row := r.pool.QueryRow(ctx, `UPDATE coupons SET name=$2, discount_type=$3, discount_value=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+couponColumns, c.ID, c.Name, c.DiscountType, c.DiscountValue.String())
	return scanCoupon(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCouponNotFound
	}
	return nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// mapUniqueViolation converts a 23505 on the code column into the domain
// sentinel so callers can retry generation.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicateCode
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open pgx transaction with coupon write operations.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetByCodeForUpdate(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(r.tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code=$1 FOR UPDATE`, code))
}

func (r *txRepository) MarkUsed(ctx context.Context, couponID int64, studentID *int64, adminID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE coupons
SET is_used=TRUE, used_by_student_id=$2, used_by_admin_id=$3, used_at=NOW(), updated_at=NOW()
WHERE id=$1 AND is_used=FALSE`, couponID, studentID, adminID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrCouponUsed
	}
	return nil
}

func (r *txRepository) InsertLog(ctx context.Context, log Log) (Log, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO coupon_logs (coupon_id, payment_id, student_id, admin_id, amount, discount, final_amount, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		log.CouponID, log.PaymentID, log.StudentID, log.AdminID,
		log.Amount.String(), log.Discount.String(), log.Final.String(), log.Notes)
	if err := row.Scan(&log.ID, &log.CreatedAt); err != nil {
		return Log{}, err
	}
	return log, nil
}

package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/coupon"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// Repository encapsulates DB operations for payments.
type Repository interface {
	Get(ctx context.Context, id int64) (Payment, error)
	ListForStudent(ctx context.Context, studentID int64) ([]Payment, error)
	List(ctx context.Context, page, perPage int) ([]Payment, int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository spans the three concerns a payment touches in one
// transaction: the payment row, the ledger credit and coupon redemption.
type TxRepository interface {
	wallet.TxRepository
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	Coupons() coupon.TxRepository
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed payment repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const paymentColumns = `id, student_id, amount::text, coupon_code, discount_amount::text, final_amount::text, received_by_admin_id, notes, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p        Payment
		amount   string
		discount string
		final    string
	)
	err := row.Scan(&p.ID, &p.StudentID, &amount, &p.CouponCode, &discount, &final,
		&p.ReceivedBy, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, err
	}
	if p.Amount, err = money.Parse(amount); err != nil {
		return Payment{}, err
	}
	if p.DiscountAmount, err = money.Parse(discount); err != nil {
		return Payment{}, err
	}
	if p.FinalAmount, err = money.Parse(final); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *repository) ListForStudent(ctx context.Context, studentID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE student_id=$1 ORDER BY created_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Payment, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		pg.PerPage, (pg.Page-1)*pg.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			TxRepository: wallet.NewTxRepository(tx),
			coupons:      coupon.NewTxRepository(tx),
			tx:           tx,
		})
	})
}

type txRepository struct {
	wallet.TxRepository
	coupons coupon.TxRepository
	tx      pgx.Tx
}

func (r *txRepository) Coupons() coupon.TxRepository {
	return r.coupons
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payments
(student_id, amount, coupon_code, discount_amount, final_amount, received_by_admin_id, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		p.StudentID, p.Amount.String(), p.CouponCode, p.DiscountAmount.String(),
		p.FinalAmount.String(), p.ReceivedBy, p.Notes)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

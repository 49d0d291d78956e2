package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// Repository encapsulates DB operations for transfer requests.
type Repository interface {
	Get(ctx context.Context, id int64) (Request, error)
	List(ctx context.Context, status Status, page, perPage int) ([]Request, int, error)
	ListForAdmin(ctx context.Context, adminID int64) ([]Request, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository carries the wallet operations request processing needs for
// transaction context: the status flip and the two ledger legs commit
// together or not at all.
type TxRepository interface {
	wallet.TxRepository
	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	InsertRequest(ctx context.Context, req Request) (Request, error)
	SetStatus(ctx context.Context, id int64, status Status, reason string, processedBy int64, processedAt time.Time) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed transfer request repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, from_admin_id, to_admin_id, amount::text, status, notes, cancellation_reason, processed_by_admin_id, processed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req    Request
		amount string
	)
	err := row.Scan(&req.ID, &req.FromAdminID, &req.ToAdminID, &amount, &req.Status,
		&req.Notes, &req.CancellationReason, &req.ProcessedBy, &req.ProcessedAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrNotFound
		}
		return Request{}, err
	}
	if req.Amount, err = money.Parse(amount); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM wallet_transfer_requests WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, status Status, page, perPage int) ([]Request, int, error) {
	pg := shared.NewPagination(page, perPage, 0)
	where := ``
	args := []any{}
	if status != "" {
		where = ` WHERE status=$1`
		args = append(args, status)
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transfer_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + requestColumns + ` FROM wallet_transfer_requests` + where + ` ORDER BY created_at DESC, id DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, pg.PerPage, (pg.Page-1)*pg.PerPage)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (r *repository) ListForAdmin(ctx context.Context, adminID int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM wallet_transfer_requests
WHERE from_admin_id=$1 OR to_admin_id=$1 ORDER BY created_at DESC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
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

func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	return scanRequest(r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM wallet_transfer_requests WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertRequest(ctx context.Context, req Request) (Request, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO wallet_transfer_requests
(from_admin_id, to_admin_id, amount, status, notes, cancellation_reason, processed_by_admin_id, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		req.FromAdminID, req.ToAdminID, req.Amount.String(), req.Status,
		req.Notes, req.CancellationReason, req.ProcessedBy, req.ProcessedAt)
	if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status, reason string, processedBy int64, processedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE wallet_transfer_requests
SET status=$2, cancellation_reason=$3, processed_by_admin_id=$4, processed_at=$5, updated_at=NOW()
WHERE id=$1`, id, status, reason, processedBy, processedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/scholaris-erp/scholaris-erp/internal/coupon"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// KeyStore guards payment intake against duplicate client submissions.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "payments"

// Service wraps payment business rules.
type Service struct {
	repo  Repository
	dir   wallet.AdminDirectory
	keys  KeyStore
	cache wallet.SummaryCache
}

// NewService constructs a new Service. keys and cache may be nil.
func NewService(repo Repository, dir wallet.AdminDirectory, keys KeyStore, cache wallet.SummaryCache) *Service {
	return &Service{repo: repo, dir: dir, keys: keys, cache: cache}
}

// CreateInput groups fields for recording a payment.
type CreateInput struct {
	StudentID      int64
	Amount         money.Amount
	CouponCode     string
	ReceivedBy     int64
	Notes          string
	IdempotencyKey string
}

// Validate ensures payment input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.StudentID == 0 {
		return errors.New("payment: student required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("payment: amount must be positive, got %s", in.Amount)
	}
	if in.ReceivedBy == 0 {
		return errors.New("payment: receiving admin required")
	}
	return nil
}

// Create records a payment. The payment row, the optional coupon redemption
// and the staff wallet credit commit as one transaction; an idempotency key,
// when supplied, blocks duplicate submissions and is released again if the
// transaction fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	receiver, err := s.dir.Get(ctx, in.ReceivedBy)
	if err != nil {
		return Payment{}, err
	}
	if s.keys != nil && in.IdempotencyKey != "" {
		if err := s.keys.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return Payment{}, err
		}
	}

	var created Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		amount := in.Amount.Round2()
		discount := money.Amount{}
		final := amount
		var couponCode *string

		if in.CouponCode != "" {
			// Lock the coupon row first so the calculation the payment stores
			// matches what Apply consumes below.
			c, err := tx.Coupons().GetByCodeForUpdate(ctx, in.CouponCode)
			if err != nil {
				return err
			}
			if c.IsUsed {
				return fmt.Errorf("%w: coupon %s has already been used", shared.ErrCouponUsed, c.Code)
			}
			calc, err := coupon.CalculateDiscount(c, amount)
			if err != nil {
				return err
			}
			discount = calc.Discount
			final = calc.FinalAmount
			couponCode = &c.Code
		}

		created, err = tx.InsertPayment(ctx, Payment{
			StudentID:      in.StudentID,
			Amount:         amount,
			CouponCode:     couponCode,
			DiscountAmount: discount,
			FinalAmount:    final,
			ReceivedBy:     receiver.ID,
			Notes:          in.Notes,
		})
		if err != nil {
			return err
		}

		if couponCode != nil {
			if _, err := coupon.Apply(ctx, tx.Coupons(), coupon.ApplyInput{
				Code:      *couponCode,
				Amount:    amount,
				StudentID: &in.StudentID,
				AdminID:   receiver.ID,
				PaymentID: &created.ID,
				Notes:     in.Notes,
			}); err != nil {
				return err
			}
		}

		if final.IsPositive() {
			_, _, err = wallet.CreditStaffWallet(ctx, tx, receiver, wallet.CreditInput{
				AdminID:     receiver.ID,
				Amount:      final,
				PaymentID:   created.ID,
				Description: fmt.Sprintf("Payment from student #%d", in.StudentID),
			})
			return err
		}
		return nil
	})
	if err != nil {
		// Release the key so a corrected retry is not locked out.
		if s.keys != nil && in.IdempotencyKey != "" && !errors.Is(err, shared.ErrIdempotencyConflict) {
			_ = s.keys.Delete(ctx, in.IdempotencyKey)
		}
		return Payment{}, err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
	return created, nil
}

// Get returns the payment by id.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.Get(ctx, id)
}

// List returns one page of payments, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Payment, int, error) {
	return s.repo.List(ctx, page, perPage)
}

// ListForStudent returns a student's payments, newest first.
func (s *Service) ListForStudent(ctx context.Context, studentID int64) ([]Payment, error) {
	return s.repo.ListForStudent(ctx, studentID)
}

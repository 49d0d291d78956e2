// Package coupon implements single-use discount coupons: discount
// calculation, verification, and the locked one-time application that runs
// inside a payment transaction.
package coupon

import (
	"fmt"
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// CodeLength is the fixed length of generated coupon codes.
const CodeLength = 5

// DiscountType enumerates how a coupon's value is interpreted.
type DiscountType string

const (
	// DiscountPercent discounts value percent of the amount.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed discounts a fixed value, capped at the amount.
	DiscountFixed DiscountType = "fixed"
)

// Coupon is a single-use discount voucher. Once applied it stays on record
// with the student and admin that consumed it.
type Coupon struct {
	ID              int64
	Code            string
	Name            string
	DiscountType    DiscountType
	DiscountValue   money.Amount
	IsUsed          bool
	UsedByStudentID *int64
	UsedByAdminID   *int64
	UsedAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Log snapshots one coupon application: the amounts around the discount and
// the payment it served.
type Log struct {
	ID        int64
	CouponID  int64
	PaymentID *int64
	StudentID *int64
	AdminID   int64
	Amount    money.Amount
	Discount  money.Amount
	Final     money.Amount
	Notes     string
	CreatedAt time.Time
}

// Calculation is the outcome of applying a coupon's discount to an amount.
type Calculation struct {
	OriginalAmount money.Amount `json:"original_amount"`
	Discount       money.Amount `json:"discount"`
	FinalAmount    money.Amount `json:"final_amount"`
}

// CalculateDiscount computes the discount a coupon grants on an amount.
// Percent coupons take value percent of the amount; fixed coupons take the
// value capped at the amount so the result never goes negative. Both legs
// are rounded to cents, half away from zero.
func CalculateDiscount(c Coupon, amount money.Amount) (Calculation, error) {
	if amount.IsNegative() {
		return Calculation{}, fmt.Errorf("%w: amount cannot be negative", shared.ErrValidation)
	}
	if c.DiscountValue.IsNegative() {
		return Calculation{}, fmt.Errorf("%w: discount value cannot be negative", shared.ErrValidation)
	}
	var discount money.Amount
	switch c.DiscountType {
	case DiscountPercent:
		discount = amount.MulPercent(c.DiscountValue)
	case DiscountFixed:
		discount = c.DiscountValue.Min(amount)
	default:
		return Calculation{}, fmt.Errorf("%w: unknown discount type %q", shared.ErrValidation, c.DiscountType)
	}
	discount = discount.Round2()
	final := amount.Sub(discount).Round2()
	if final.IsNegative() {
		final = money.Amount{}
	}
	return Calculation{
		OriginalAmount: amount.Round2(),
		Discount:       discount,
		FinalAmount:    final,
	}, nil
}

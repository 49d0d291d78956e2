// Package payment implements student payment intake: the payment record,
// optional coupon redemption and the staff wallet credit are one atomic
// unit, guarded by an idempotency key against client retries.
package payment

import (
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
)

// Payment is one received student payment. DiscountAmount and FinalAmount
// snapshot the coupon calculation at intake time.
type Payment struct {
	ID             int64
	StudentID      int64
	Amount         money.Amount
	CouponCode     *string
	DiscountAmount money.Amount
	FinalAmount    money.Amount
	ReceivedBy     int64
	Notes          string
	CreatedAt      time.Time
}

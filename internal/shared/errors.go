package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates caller-fixable invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientBalance indicates the source wallet cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidTransferRoute indicates a wallet-type pairing the generic
	// transfer endpoint does not allow.
	ErrInvalidTransferRoute = errors.New("invalid transfer route")
	// ErrAlreadyProcessed indicates a state transition on a transfer request
	// that already left the pending state.
	ErrAlreadyProcessed = errors.New("transfer request already processed")
	// ErrCouponUsed indicates a one-time coupon redeemed a second time.
	ErrCouponUsed = errors.New("coupon already used")
	// ErrCouponNotFound indicates an unknown coupon code.
	ErrCouponNotFound = errors.New("invalid coupon code")
	// ErrDuplicateCode indicates a coupon code collision.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrDeletionRefused indicates a record protected for audit integrity.
	ErrDeletionRefused = errors.New("deletion refused for audit purposes")
)

package coupon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generation retries before giving up on a unique code.
const maxCodeAttempts = 5

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

// Service wraps coupon business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput groups fields for coupon creation. Code is optional; when
// empty a random 5-character code is generated.
type CreateInput struct {
	Code          string
	Name          string
	DiscountType  DiscountType
	DiscountValue money.Amount
}

// Validate ensures coupon input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.Name == "" {
		return errors.New("coupon: name required")
	}
	switch in.DiscountType {
	case DiscountPercent:
		if in.DiscountValue.IsNegative() || in.DiscountValue.GreaterThan(money.MustParse("100")) {
			return errors.New("coupon: percent value must be between 0 and 100")
		}
	case DiscountFixed:
		if in.DiscountValue.IsNegative() {
			return errors.New("coupon: fixed value cannot be negative")
		}
	default:
		return fmt.Errorf("coupon: unknown discount type %q", in.DiscountType)
	}
	if in.Code != "" && !codePattern.MatchString(in.Code) {
		return errors.New("coupon: code must be 5 uppercase letters or digits")
	}
	return nil
}

// Create stores a new coupon. Generated codes retry on collision; explicit
// codes surface ErrDuplicateCode to the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (Coupon, error) {
	if err := in.Validate(); err != nil {
		return Coupon{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	c := Coupon{
		Code:          in.Code,
		Name:          in.Name,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue.Round2(),
	}
	if c.Code != "" {
		return s.repo.Create(ctx, c)
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return Coupon{}, err
		}
		c.Code = code
		created, err := s.repo.Create(ctx, c)
		if errors.Is(err, shared.ErrDuplicateCode) {
			continue
		}
		return created, err
	}
	return Coupon{}, fmt.Errorf("coupon: %w after %d attempts", shared.ErrDuplicateCode, maxCodeAttempts)
}

// Get returns the coupon by id.
func (s *Service) Get(ctx context.Context, id int64) (Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of coupons, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Coupon, int, error) {
	return s.repo.List(ctx, page, perPage)
}

// Verify calculates the discount a code would grant without consuming it.
func (s *Service) Verify(ctx context.Context, code string, amount money.Amount) (Calculation, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Calculation{}, err
	}
	if c.IsUsed {
		return Calculation{}, fmt.Errorf("%w: coupon %s has already been used", shared.ErrCouponUsed, c.Code)
	}
	return CalculateDiscount(c, amount)
}

// Update edits coupon attributes. Used coupons are frozen; their logs
// reference the values that applied at redemption time.
func (s *Service) Update(ctx context.Context, id int64, in CreateInput) (Coupon, error) {
	if err := in.Validate(); err != nil {
		return Coupon{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Coupon{}, err
	}
	if existing.IsUsed {
		return Coupon{}, fmt.Errorf("%w: used coupons cannot be edited", shared.ErrCouponUsed)
	}
	existing.Name = in.Name
	existing.DiscountType = in.DiscountType
	existing.DiscountValue = in.DiscountValue.Round2()
	return s.repo.Update(ctx, existing)
}

// Delete removes an unused coupon.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsUsed {
		return fmt.Errorf("%w: used coupons cannot be deleted", shared.ErrCouponUsed)
	}
	return s.repo.Delete(ctx, existing.ID)
}

// History returns a coupon's application log.
func (s *Service) History(ctx context.Context, couponID int64) ([]Log, error) {
	if _, err := s.repo.GetByID(ctx, couponID); err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, couponID)
}

// StudentHistory returns the applications recorded for one student.
func (s *Service) StudentHistory(ctx context.Context, studentID int64) ([]Log, error) {
	return s.repo.StudentHistory(ctx, studentID)
}

// TotalSavings sums the discounts a student has received.
func (s *Service) TotalSavings(ctx context.Context, studentID int64) (money.Amount, error) {
	return s.repo.TotalSavings(ctx, studentID)
}

// ApplyInput groups fields for consuming a coupon.
type ApplyInput struct {
	Code      string
	Amount    money.Amount
	StudentID *int64
	AdminID   int64
	PaymentID *int64
	Notes     string
}

// Apply consumes a coupon inside an open transaction. The row is locked and
// is_used re-checked under the lock, so two concurrent payments holding the
// same code cannot both redeem it. The losing transaction gets ErrCouponUsed.
func Apply(ctx context.Context, tx TxRepository, in ApplyInput) (Calculation, error) {
	c, err := tx.GetByCodeForUpdate(ctx, in.Code)
	if err != nil {
		return Calculation{}, err
	}
	if c.IsUsed {
		return Calculation{}, fmt.Errorf("%w: coupon %s has already been used", shared.ErrCouponUsed, c.Code)
	}
	calc, err := CalculateDiscount(c, in.Amount)
	if err != nil {
		return Calculation{}, err
	}
	if err := tx.MarkUsed(ctx, c.ID, in.StudentID, in.AdminID); err != nil {
		return Calculation{}, err
	}
	if _, err := tx.InsertLog(ctx, Log{
		CouponID:  c.ID,
		PaymentID: in.PaymentID,
		StudentID: in.StudentID,
		AdminID:   in.AdminID,
		Amount:    calc.OriginalAmount,
		Discount:  calc.Discount,
		Final:     calc.FinalAmount,
		Notes:     in.Notes,
	}); err != nil {
		return Calculation{}, err
	}
	return calc, nil
}

func generateCode() (string, error) {
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("coupon: generate code: %w", err)
		}
		buf[i] = codeCharset[n.Int64()]
	}
	return string(buf), nil
}

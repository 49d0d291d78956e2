package coupon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

type fakeRepo struct {
	coupons map[int64]Coupon
	logs    []Log
	nextID  int64
	nextLog int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{coupons: map[int64]Coupon{}}
}

func (r *fakeRepo) seed(code string, typ DiscountType, value string) Coupon {
	r.nextID++
	c := Coupon{ID: r.nextID, Code: code, Name: "Test " + code, DiscountType: typ, DiscountValue: money.MustParse(value)}
	r.coupons[c.ID] = c
	return c
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (Coupon, error) {
	c, ok := r.coupons[id]
	if !ok {
		return Coupon{}, shared.ErrCouponNotFound
	}
	return c, nil
}

func (r *fakeRepo) GetByCode(_ context.Context, code string) (Coupon, error) {
	for _, c := range r.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return Coupon{}, shared.ErrCouponNotFound
}

func (r *fakeRepo) List(_ context.Context, _, _ int) ([]Coupon, int, error) {
	var out []Coupon
	for _, c := range r.coupons {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeRepo) ListLogs(_ context.Context, couponID int64) ([]Log, error) {
	var out []Log
	for _, l := range r.logs {
		if l.CouponID == couponID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeRepo) StudentHistory(_ context.Context, studentID int64) ([]Log, error) {
	var out []Log
	for _, l := range r.logs {
		if l.StudentID != nil && *l.StudentID == studentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeRepo) TotalSavings(_ context.Context, studentID int64) (money.Amount, error) {
	var total money.Amount
	for _, l := range r.logs {
		if l.StudentID != nil && *l.StudentID == studentID {
			total = total.Add(l.Discount)
		}
	}
	return total, nil
}

func (r *fakeRepo) Create(_ context.Context, c Coupon) (Coupon, error) {
	for _, existing := range r.coupons {
		if existing.Code == c.Code {
			return Coupon{}, shared.ErrDuplicateCode
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.coupons[c.ID] = c
	return c, nil
}

func (r *fakeRepo) Update(_ context.Context, c Coupon) (Coupon, error) {
	if _, ok := r.coupons[c.ID]; !ok {
		return Coupon{}, shared.ErrCouponNotFound
	}
	r.coupons[c.ID] = c
	return c, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.coupons[id]; !ok {
		return shared.ErrCouponNotFound
	}
	delete(r.coupons, id)
	return nil
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *fakeRepo) GetByCodeForUpdate(ctx context.Context, code string) (Coupon, error) {
	return r.GetByCode(ctx, code)
}

func (r *fakeRepo) MarkUsed(_ context.Context, couponID int64, studentID *int64, adminID int64) error {
	c, ok := r.coupons[couponID]
	if !ok || c.IsUsed {
		return shared.ErrCouponUsed
	}
	c.IsUsed = true
	c.UsedByStudentID = studentID
	c.UsedByAdminID = &adminID
	r.coupons[couponID] = c
	return nil
}

func (r *fakeRepo) InsertLog(_ context.Context, log Log) (Log, error) {
	r.nextLog++
	log.ID = r.nextLog
	r.logs = append(r.logs, log)
	return log, nil
}

func TestCalculateDiscountPercent(t *testing.T) {
	c := Coupon{DiscountType: DiscountPercent, DiscountValue: money.MustParse("20")}
	calc, err := CalculateDiscount(c, money.MustParse("250"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", calc.Discount.String())
	assert.Equal(t, "200.00", calc.FinalAmount.String())
}

func TestCalculateDiscountFixedCappedAtAmount(t *testing.T) {
	c := Coupon{DiscountType: DiscountFixed, DiscountValue: money.MustParse("100")}
	calc, err := CalculateDiscount(c, money.MustParse("50"))
	require.NoError(t, err)
	assert.Equal(t, "50.00", calc.Discount.String())
	assert.Equal(t, "0.00", calc.FinalAmount.String(), "discount never drives the total below zero")
}

func TestCalculateDiscountRoundsHalfUp(t *testing.T) {
	c := Coupon{DiscountType: DiscountPercent, DiscountValue: money.MustParse("15")}
	calc, err := CalculateDiscount(c, money.MustParse("33.30"))
	require.NoError(t, err)
	// 33.30 * 15% = 4.995, rounds to 5.00
	assert.Equal(t, "5.00", calc.Discount.String())
	assert.Equal(t, "28.30", calc.FinalAmount.String())
}

func TestCalculateDiscountUnknownType(t *testing.T) {
	_, err := CalculateDiscount(Coupon{DiscountType: "bogus"}, money.MustParse("10"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateGeneratesCode(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		Name:          "Spring enrollment",
		DiscountType:  DiscountPercent,
		DiscountValue: money.MustParse("10"),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{5}$`, created.Code)
}

func TestCreateRejectsPercentOver100(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		Name:          "Too generous",
		DiscountType:  DiscountPercent,
		DiscountValue: money.MustParse("150"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateExplicitCodeConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("ABC12", DiscountFixed, "25")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Code:          "ABC12",
		Name:          "Duplicate",
		DiscountType:  DiscountFixed,
		DiscountValue: money.MustParse("25"),
	})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
}

func TestVerifyDoesNotConsume(t *testing.T) {
	repo := newFakeRepo()
	c := repo.seed("SAVE5", DiscountFixed, "5")
	svc := NewService(repo)

	calc, err := svc.Verify(context.Background(), "SAVE5", money.MustParse("30"))
	require.NoError(t, err)
	assert.Equal(t, "5.00", calc.Discount.String())
	assert.False(t, repo.coupons[c.ID].IsUsed)
}

func TestApplyIsSingleUse(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("ONE11", DiscountPercent, "50")
	studentID := int64(7)
	ctx := context.Background()

	calc, err := Apply(ctx, repo, ApplyInput{
		Code:      "ONE11",
		Amount:    money.MustParse("80"),
		StudentID: &studentID,
		AdminID:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, "40.00", calc.Discount.String())
	assert.Equal(t, "40.00", calc.FinalAmount.String())
	require.Len(t, repo.logs, 1)
	assert.Equal(t, "80.00", repo.logs[0].Amount.String())

	_, err = Apply(ctx, repo, ApplyInput{Code: "ONE11", Amount: money.MustParse("80"), AdminID: 2})
	require.ErrorIs(t, err, shared.ErrCouponUsed)
	assert.Len(t, repo.logs, 1, "a rejected application writes no log")
}

func TestUsedCouponIsFrozen(t *testing.T) {
	repo := newFakeRepo()
	c := repo.seed("USED1", DiscountFixed, "10")
	svc := NewService(repo)
	ctx := context.Background()

	_, err := Apply(ctx, repo, ApplyInput{Code: "USED1", Amount: money.MustParse("20"), AdminID: 1})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, "USED1", money.MustParse("20"))
	require.ErrorIs(t, err, shared.ErrCouponUsed)

	_, err = svc.Update(ctx, c.ID, CreateInput{Name: "Renamed", DiscountType: DiscountFixed, DiscountValue: money.MustParse("10")})
	require.ErrorIs(t, err, shared.ErrCouponUsed)

	err = svc.Delete(ctx, c.ID)
	require.ErrorIs(t, err, shared.ErrCouponUsed)
}

func TestStudentSavings(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("AAA11", DiscountFixed, "10")
	repo.seed("BBB22", DiscountFixed, "15")
	svc := NewService(repo)
	studentID := int64(3)
	ctx := context.Background()

	_, err := Apply(ctx, repo, ApplyInput{Code: "AAA11", Amount: money.MustParse("100"), StudentID: &studentID, AdminID: 1})
	require.NoError(t, err)
	_, err = Apply(ctx, repo, ApplyInput{Code: "BBB22", Amount: money.MustParse("100"), StudentID: &studentID, AdminID: 1})
	require.NoError(t, err)

	history, err := svc.StudentHistory(ctx, studentID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	savings, err := svc.TotalSavings(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, "25.00", savings.String())
}

package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/coupon"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

type fakeStore struct {
	payments   map[int64]Payment
	wallets    map[int64]wallet.Wallet
	txns       map[int64]wallet.Transaction
	walletLogs []wallet.Log
	coupons    map[int64]coupon.Coupon
	couponLogs []coupon.Log
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments: map[int64]Payment{},
		wallets:  map[int64]wallet.Wallet{},
		txns:     map[int64]wallet.Transaction{},
		coupons:  map[int64]coupon.Coupon{},
	}
}

func (s *fakeStore) next() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) seedCoupon(code string, typ coupon.DiscountType, value string) coupon.Coupon {
	c := coupon.Coupon{ID: s.next(), Code: code, Name: "Test " + code, DiscountType: typ, DiscountValue: money.MustParse(value)}
	s.coupons[c.ID] = c
	return c
}

func (s *fakeStore) staffBalance(adminID int64) string {
	for _, w := range s.wallets {
		if w.Owner.Kind == wallet.OwnerAdmin && w.Owner.AdminID == adminID {
			return w.Balance().String()
		}
	}
	return ""
}

func (s *fakeStore) Get(_ context.Context, id int64) (Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ListForStudent(_ context.Context, studentID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range s.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) List(_ context.Context, _, _ int) ([]Payment, int, error) {
	var out []Payment
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	paymentSnap := make(map[int64]Payment, len(s.payments))
	for k, v := range s.payments {
		paymentSnap[k] = v
	}
	walletSnap := make(map[int64]wallet.Wallet, len(s.wallets))
	for k, v := range s.wallets {
		walletSnap[k] = v
	}
	txnSnap := make(map[int64]wallet.Transaction, len(s.txns))
	for k, v := range s.txns {
		txnSnap[k] = v
	}
	couponSnap := make(map[int64]coupon.Coupon, len(s.coupons))
	for k, v := range s.coupons {
		couponSnap[k] = v
	}
	walletLogSnap := append([]wallet.Log(nil), s.walletLogs...)
	couponLogSnap := append([]coupon.Log(nil), s.couponLogs...)

	if err := fn(ctx, (*fakeTx)(s)); err != nil {
		s.payments = paymentSnap
		s.wallets = walletSnap
		s.txns = txnSnap
		s.coupons = couponSnap
		s.walletLogs = walletLogSnap
		s.couponLogs = couponLogSnap
		return err
	}
	return nil
}

type fakeTx fakeStore

func (t *fakeTx) GetWalletForUpdate(_ context.Context, id int64) (wallet.Wallet, error) {
	w, ok := t.wallets[id]
	if !ok {
		return wallet.Wallet{}, shared.ErrNotFound
	}
	return w, nil
}

func (t *fakeTx) GetOrCreateStaffWallet(_ context.Context, adminID int64, name string) (wallet.Wallet, error) {
	for _, w := range t.wallets {
		if w.Owner.Kind == wallet.OwnerAdmin && w.Owner.AdminID == adminID && w.Type == wallet.TypeStaff {
			return w, nil
		}
	}
	w := wallet.Wallet{ID: (*fakeStore)(t).next(), Owner: wallet.AdminOwner(adminID), Name: name, Type: wallet.TypeStaff}
	t.wallets[w.ID] = w
	return w, nil
}

func (t *fakeTx) GetOrCreateMainCashbox(context.Context) (wallet.Wallet, error) {
	panic("not used by payment tests")
}

func (t *fakeTx) CreateWallet(context.Context, wallet.Wallet) (wallet.Wallet, error) {
	panic("not used by payment tests")
}

func (t *fakeTx) RenameWallet(context.Context, int64, string) error {
	panic("not used by payment tests")
}

func (t *fakeTx) AddToTotals(_ context.Context, walletID int64, receivableDelta, payableDelta money.Amount) (wallet.Wallet, error) {
	w, ok := t.wallets[walletID]
	if !ok {
		return wallet.Wallet{}, shared.ErrNotFound
	}
	w.Receivable = w.Receivable.Add(receivableDelta)
	w.Payable = w.Payable.Add(payableDelta)
	t.wallets[walletID] = w
	return w, nil
}

func (t *fakeTx) GetTransaction(_ context.Context, id int64) (wallet.Transaction, error) {
	txn, ok := t.txns[id]
	if !ok {
		return wallet.Transaction{}, shared.ErrNotFound
	}
	return txn, nil
}

func (t *fakeTx) InsertTransaction(_ context.Context, txn wallet.Transaction) (wallet.Transaction, error) {
	txn.ID = (*fakeStore)(t).next()
	t.txns[txn.ID] = txn
	return txn, nil
}

func (t *fakeTx) DeleteTransaction(_ context.Context, id int64) error {
	delete(t.txns, id)
	return nil
}

func (t *fakeTx) InsertLog(_ context.Context, log wallet.Log) (wallet.Log, error) {
	log.ID = (*fakeStore)(t).next()
	t.walletLogs = append(t.walletLogs, log)
	return log, nil
}

func (t *fakeTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	p.ID = (*fakeStore)(t).next()
	t.payments[p.ID] = p
	return p, nil
}

func (t *fakeTx) Coupons() coupon.TxRepository {
	return (*fakeCouponTx)(t)
}

type fakeCouponTx fakeStore

func (t *fakeCouponTx) GetByCodeForUpdate(_ context.Context, code string) (coupon.Coupon, error) {
	for _, c := range t.coupons {
		if c.Code == code {
			return c, nil
		}
	}
	return coupon.Coupon{}, shared.ErrCouponNotFound
}

func (t *fakeCouponTx) MarkUsed(_ context.Context, couponID int64, studentID *int64, adminID int64) error {
	c, ok := t.coupons[couponID]
	if !ok || c.IsUsed {
		return shared.ErrCouponUsed
	}
	c.IsUsed = true
	c.UsedByStudentID = studentID
	c.UsedByAdminID = &adminID
	t.coupons[couponID] = c
	return nil
}

func (t *fakeCouponTx) InsertLog(_ context.Context, log coupon.Log) (coupon.Log, error) {
	log.ID = (*fakeStore)(t).next()
	t.couponLogs = append(t.couponLogs, log)
	return log, nil
}

type fakeDirectory struct{}

func (fakeDirectory) Get(_ context.Context, id int64) (admins.Admin, error) {
	if id == 1 {
		return admins.Admin{ID: 1, Name: "Alice", Role: admins.RoleStaff, IsActive: true}, nil
	}
	return admins.Admin{}, shared.ErrNotFound
}

type fakeKeys struct {
	keys map[string]bool
}

func (k *fakeKeys) CheckAndInsert(_ context.Context, key, _ string) error {
	if k.keys == nil {
		k.keys = map[string]bool{}
	}
	if k.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	k.keys[key] = true
	return nil
}

func (k *fakeKeys) Delete(_ context.Context, key string) error {
	delete(k.keys, key)
	return nil
}

func TestCreatePaymentCreditsStaffWallet(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakeDirectory{}, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		StudentID:  7,
		Amount:     money.MustParse("150"),
		ReceivedBy: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "150.00", created.FinalAmount.String())
	assert.Equal(t, "0.00", created.DiscountAmount.String())
	assert.Nil(t, created.CouponCode)
	assert.Equal(t, "150.00", store.staffBalance(1))

	require.Len(t, store.walletLogs, 1)
	assert.Equal(t, wallet.LogPayment, store.walletLogs[0].Type)
}

func TestCreatePaymentWithCoupon(t *testing.T) {
	store := newFakeStore()
	store.seedCoupon("SAVE2", coupon.DiscountPercent, "20")
	svc := NewService(store, fakeDirectory{}, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		StudentID:  7,
		Amount:     money.MustParse("250"),
		CouponCode: "SAVE2",
		ReceivedBy: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", created.DiscountAmount.String())
	assert.Equal(t, "200.00", created.FinalAmount.String())
	require.NotNil(t, created.CouponCode)
	assert.Equal(t, "SAVE2", *created.CouponCode)

	assert.Equal(t, "200.00", store.staffBalance(1), "only the discounted amount is credited")

	require.Len(t, store.couponLogs, 1)
	require.NotNil(t, store.couponLogs[0].PaymentID)
	assert.Equal(t, created.ID, *store.couponLogs[0].PaymentID)
	for _, c := range store.coupons {
		assert.True(t, c.IsUsed)
	}
}

func TestCreatePaymentUsedCouponRollsBackEverything(t *testing.T) {
	store := newFakeStore()
	store.seedCoupon("ONCE1", coupon.DiscountFixed, "30")
	svc := NewService(store, fakeDirectory{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{StudentID: 7, Amount: money.MustParse("100"), CouponCode: "ONCE1", ReceivedBy: 1})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{StudentID: 8, Amount: money.MustParse("100"), CouponCode: "ONCE1", ReceivedBy: 1})
	require.ErrorIs(t, err, shared.ErrCouponUsed)

	assert.Len(t, store.payments, 1, "the rejected payment leaves no row")
	assert.Equal(t, "70.00", store.staffBalance(1), "the rejected payment credits nothing")
	assert.Len(t, store.couponLogs, 1)
}

func TestCreatePaymentZeroFinalSkipsCredit(t *testing.T) {
	store := newFakeStore()
	store.seedCoupon("FULL0", coupon.DiscountFixed, "500")
	svc := NewService(store, fakeDirectory{}, nil, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		StudentID:  7,
		Amount:     money.MustParse("300"),
		CouponCode: "FULL0",
		ReceivedBy: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", created.FinalAmount.String())
	assert.Empty(t, store.txns, "a fully discounted payment moves no money")
}

func TestCreatePaymentIdempotency(t *testing.T) {
	store := newFakeStore()
	keys := &fakeKeys{}
	svc := NewService(store, fakeDirectory{}, keys, nil)
	ctx := context.Background()

	in := CreateInput{StudentID: 7, Amount: money.MustParse("100"), ReceivedBy: 1, IdempotencyKey: "abc-123"}
	_, err := svc.Create(ctx, in)
	require.NoError(t, err)

	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Len(t, store.payments, 1)
	assert.Equal(t, "100.00", store.staffBalance(1), "the retry does not double-credit")
}

func TestCreatePaymentFailureReleasesKey(t *testing.T) {
	store := newFakeStore()
	keys := &fakeKeys{}
	svc := NewService(store, fakeDirectory{}, keys, nil)
	ctx := context.Background()

	in := CreateInput{StudentID: 7, Amount: money.MustParse("100"), CouponCode: "NOPE1", ReceivedBy: 1, IdempotencyKey: "retry-me"}
	_, err := svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrCouponNotFound)

	// The key was released, so the corrected retry goes through.
	in.CouponCode = ""
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)
}

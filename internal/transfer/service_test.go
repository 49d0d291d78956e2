package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

type fakeStore struct {
	requests map[int64]Request
	wallets  map[int64]wallet.Wallet
	txns     map[int64]wallet.Transaction
	logs     []wallet.Log
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: map[int64]Request{},
		wallets:  map[int64]wallet.Wallet{},
		txns:     map[int64]wallet.Transaction{},
	}
}

func (s *fakeStore) next() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) seedStaffWallet(adminID int64, name, receivable string) wallet.Wallet {
	w := wallet.Wallet{ID: s.next(), Owner: wallet.AdminOwner(adminID), Name: name, Type: wallet.TypeStaff, Receivable: money.MustParse(receivable)}
	s.wallets[w.ID] = w
	return w
}

func (s *fakeStore) balanceOf(adminID int64) string {
	for _, w := range s.wallets {
		if w.Owner.Kind == wallet.OwnerAdmin && w.Owner.AdminID == adminID {
			return w.Balance().String()
		}
	}
	return ""
}

func (s *fakeStore) Get(_ context.Context, id int64) (Request, error) {
	req, ok := s.requests[id]
	if !ok {
		return Request{}, shared.ErrNotFound
	}
	return req, nil
}

func (s *fakeStore) List(_ context.Context, status Status, _, _ int) ([]Request, int, error) {
	var out []Request
	for _, req := range s.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) ListForAdmin(_ context.Context, adminID int64) ([]Request, error) {
	var out []Request
	for _, req := range s.requests {
		if req.FromAdminID == adminID || req.ToAdminID == adminID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	requestSnap := make(map[int64]Request, len(s.requests))
	for k, v := range s.requests {
		requestSnap[k] = v
	}
	walletSnap := make(map[int64]wallet.Wallet, len(s.wallets))
	for k, v := range s.wallets {
		walletSnap[k] = v
	}
	txnSnap := make(map[int64]wallet.Transaction, len(s.txns))
	for k, v := range s.txns {
		txnSnap[k] = v
	}
	logSnap := append([]wallet.Log(nil), s.logs...)

	if err := fn(ctx, (*fakeTx)(s)); err != nil {
		s.requests = requestSnap
		s.wallets = walletSnap
		s.txns = txnSnap
		s.logs = logSnap
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
	panic("not used by transfer tests")
}

func (t *fakeTx) CreateWallet(context.Context, wallet.Wallet) (wallet.Wallet, error) {
	panic("not used by transfer tests")
}

func (t *fakeTx) RenameWallet(context.Context, int64, string) error {
	panic("not used by transfer tests")
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
	t.logs = append(t.logs, log)
	return log, nil
}

func (t *fakeTx) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	return (*fakeStore)(t).Get(ctx, id)
}

func (t *fakeTx) InsertRequest(_ context.Context, req Request) (Request, error) {
	req.ID = (*fakeStore)(t).next()
	req.CreatedAt = time.Now()
	t.requests[req.ID] = req
	return req, nil
}

func (t *fakeTx) SetStatus(_ context.Context, id int64, status Status, reason string, processedBy int64, processedAt time.Time) error {
	req, ok := t.requests[id]
	if !ok {
		return shared.ErrNotFound
	}
	req.Status = status
	req.CancellationReason = reason
	req.ProcessedBy = &processedBy
	req.ProcessedAt = &processedAt
	t.requests[id] = req
	return nil
}

type fakeDirectory struct {
	admins map[int64]admins.Admin
}

func (d *fakeDirectory) Get(_ context.Context, id int64) (admins.Admin, error) {
	a, ok := d.admins[id]
	if !ok {
		return admins.Admin{}, shared.ErrNotFound
	}
	return a, nil
}

func newTestService(store *fakeStore) *Service {
	dir := &fakeDirectory{admins: map[int64]admins.Admin{
		1: {ID: 1, Name: "Alice", Role: admins.RoleAdministrator, IsActive: true},
		2: {ID: 2, Name: "Bob", Role: admins.RoleStaff, IsActive: true},
		3: {ID: 3, Name: "Carol", Role: admins.RoleStaff, IsActive: true},
	}}
	return NewService(store, dir)
}

func TestCreatePendingRequestHasNoLedgerEffect(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), CreateInput{
		FromAdminID: 2,
		ToAdminID:   3,
		Amount:      money.MustParse("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)
	assert.Nil(t, created.ProcessedBy)
	assert.Empty(t, store.txns, "a pending request moves no money")
	assert.Equal(t, "300.00", store.balanceOf(2))
}

func TestCreateRejectsUncoveredAmount(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "50.00")
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), CreateInput{
		FromAdminID: 2,
		ToAdminID:   3,
		Amount:      money.MustParse("50.01"),
	})
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)
	assert.Empty(t, store.requests, "no record exists for an uncovered request")
}

func TestCreateRejectsZeroBalanceSender(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), CreateInput{
		FromAdminID: 2,
		ToAdminID:   3,
		Amount:      money.MustParse("0.01"),
	})
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)
	assert.Empty(t, store.requests)
}

func TestAdministratorRequestExecutesImmediately(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(1, "Alice's Wallet", "500.00")
	svc := newTestService(store)

	created, err := svc.Create(context.Background(), CreateInput{
		FromAdminID: 1,
		ToAdminID:   2,
		Amount:      money.MustParse("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, created.Status)
	require.NotNil(t, created.ProcessedBy)
	assert.Equal(t, int64(1), *created.ProcessedBy, "administrator requests are self-processed")

	assert.Equal(t, "300.00", store.balanceOf(1))
	assert.Equal(t, "200.00", store.balanceOf(2))
	assert.Len(t, store.txns, 2, "two legs recorded")
	assert.Len(t, store.logs, 2, "sender and receiver logs recorded")
}

func TestAcceptExecutesTransfer(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("100")})
	require.NoError(t, err)

	processed, err := svc.Process(ctx, created.ID, ActionAccept, 3, "")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, processed.Status)
	assert.Equal(t, "200.00", store.balanceOf(2))
	assert.Equal(t, "100.00", store.balanceOf(3))
}

func TestAcceptAutoCancelsOnLowBalance(t *testing.T) {
	store := newFakeStore()
	w := store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("250")})
	require.NoError(t, err)

	// Balance drains between creation and acceptance.
	drained := store.wallets[w.ID]
	drained.Payable = money.MustParse("200")
	store.wallets[w.ID] = drained

	processed, err := svc.Process(ctx, created.ID, ActionAccept, 3, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, processed.Status)
	assert.Equal(t, ReasonLowBalance, processed.CancellationReason)
	assert.Empty(t, store.txns, "auto-cancel moves no money")
	assert.Equal(t, "100.00", store.balanceOf(2))
}

func TestRejectLeavesLedgerUntouched(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("100")})
	require.NoError(t, err)

	processed, err := svc.Process(ctx, created.ID, ActionReject, 3, "Not expected")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, processed.Status)
	assert.Equal(t, "Not expected", processed.CancellationReason)
	assert.Empty(t, store.txns)
	assert.Equal(t, "300.00", store.balanceOf(2))
}

func TestProcessNonPendingConflicts(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("100")})
	require.NoError(t, err)
	_, err = svc.Process(ctx, created.ID, ActionAccept, 3, "")
	require.NoError(t, err)

	_, err = svc.Process(ctx, created.ID, ActionAccept, 3, "")
	require.ErrorIs(t, err, shared.ErrAlreadyProcessed)
	assert.Len(t, store.txns, 2, "the second attempt mutates nothing")
	assert.Equal(t, "200.00", store.balanceOf(2))
}

func TestProcessRequiresRecipientOrAdministrator(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("100")})
	require.NoError(t, err)

	_, err = svc.Process(ctx, created.ID, ActionAccept, 2, "")
	require.ErrorIs(t, err, shared.ErrValidation, "the requester cannot accept their own request")

	processed, err := svc.Process(ctx, created.ID, ActionAccept, 1, "")
	require.NoError(t, err, "an administrator can process on the recipient's behalf")
	assert.Equal(t, StatusAccepted, processed.Status)
}

func TestCancelOnlyByRequester(t *testing.T) {
	store := newFakeStore()
	store.seedStaffWallet(2, "Bob's Wallet", "300.00")
	svc := newTestService(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{FromAdminID: 2, ToAdminID: 3, Amount: money.MustParse("100")})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, created.ID, 3)
	require.ErrorIs(t, err, shared.ErrValidation)

	cancelled, err := svc.Cancel(ctx, created.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

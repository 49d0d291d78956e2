package expense

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// fakeRepo backs the expense service with in-memory state and a snapshotting
// WithTx so failures roll everything back like the real transaction does.
type fakeRepo struct {
	categories map[int64]Category
	expenses   map[int64]Expense
	wallets    map[int64]wallet.Wallet
	txns       map[int64]wallet.Transaction
	walletLogs []wallet.Log
	nextID     int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		categories: map[int64]Category{},
		expenses:   map[int64]Expense{},
		wallets:    map[int64]wallet.Wallet{},
		txns:       map[int64]wallet.Transaction{},
	}
}

func (r *fakeRepo) next() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) seedCategory(name string) Category {
	c := Category{ID: r.next(), Name: name}
	r.categories[c.ID] = c
	return c
}

func (r *fakeRepo) seedWallet(typ wallet.Type, name, receivable string) wallet.Wallet {
	w := wallet.Wallet{ID: r.next(), Owner: wallet.SystemOwner(), Name: name, Type: typ, Receivable: money.MustParse(receivable)}
	r.wallets[w.ID] = w
	return w
}

func (r *fakeRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return Category{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) ListCategories(_ context.Context) ([]Category, error) {
	var out []Category
	for _, c := range r.categories {
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeRepo) CreateCategory(_ context.Context, c Category) (Category, error) {
	c.ID = r.next()
	r.categories[c.ID] = c
	return c, nil
}

func (r *fakeRepo) UpdateCategory(_ context.Context, c Category) (Category, error) {
	r.categories[c.ID] = c
	return c, nil
}

func (r *fakeRepo) GetExpense(_ context.Context, id int64) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return Expense{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *fakeRepo) ListExpenses(_ context.Context, filter ListFilter, _, _ int) ([]Expense, int, error) {
	var out []Expense
	for _, e := range r.expenses {
		if filter.WalletID != 0 && e.WalletID != filter.WalletID {
			continue
		}
		if filter.CategoryID != 0 && e.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *fakeRepo) UpdateExpenseDetails(_ context.Context, id int64, categoryID int64, description string) (Expense, error) {
	e, ok := r.expenses[id]
	if !ok {
		return Expense{}, shared.ErrNotFound
	}
	e.CategoryID = categoryID
	e.Description = description
	r.expenses[id] = e
	return e, nil
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	expenseSnap := make(map[int64]Expense, len(r.expenses))
	for k, v := range r.expenses {
		expenseSnap[k] = v
	}
	walletSnap := make(map[int64]wallet.Wallet, len(r.wallets))
	for k, v := range r.wallets {
		walletSnap[k] = v
	}
	txnSnap := make(map[int64]wallet.Transaction, len(r.txns))
	for k, v := range r.txns {
		txnSnap[k] = v
	}
	logSnap := append([]wallet.Log(nil), r.walletLogs...)

	if err := fn(ctx, (*fakeTx)(r)); err != nil {
		r.expenses = expenseSnap
		r.wallets = walletSnap
		r.txns = txnSnap
		r.walletLogs = logSnap
		return err
	}
	return nil
}

type fakeTx fakeRepo

func (t *fakeTx) GetWalletForUpdate(_ context.Context, id int64) (wallet.Wallet, error) {
	w, ok := t.wallets[id]
	if !ok {
		return wallet.Wallet{}, shared.ErrNotFound
	}
	return w, nil
}

func (t *fakeTx) GetOrCreateStaffWallet(context.Context, int64, string) (wallet.Wallet, error) {
	panic("not used by expense tests")
}

func (t *fakeTx) GetOrCreateMainCashbox(context.Context) (wallet.Wallet, error) {
	panic("not used by expense tests")
}

func (t *fakeTx) CreateWallet(context.Context, wallet.Wallet) (wallet.Wallet, error) {
	panic("not used by expense tests")
}

func (t *fakeTx) RenameWallet(context.Context, int64, string) error {
	panic("not used by expense tests")
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
	txn.ID = (*fakeRepo)(t).next()
	t.txns[txn.ID] = txn
	return txn, nil
}

func (t *fakeTx) DeleteTransaction(_ context.Context, id int64) error {
	delete(t.txns, id)
	return nil
}

func (t *fakeTx) InsertLog(_ context.Context, log wallet.Log) (wallet.Log, error) {
	log.ID = (*fakeRepo)(t).next()
	t.walletLogs = append(t.walletLogs, log)
	return log, nil
}

func (t *fakeTx) InsertExpense(_ context.Context, e Expense) (Expense, error) {
	e.ID = (*fakeRepo)(t).next()
	t.expenses[e.ID] = e
	return e, nil
}

func TestCreateExpenseDebitsWallet(t *testing.T) {
	repo := newFakeRepo()
	cat := repo.seedCategory("Utilities")
	w := repo.seedWallet(wallet.TypeExpense, "Operations", "500.00")
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		WalletID:    w.ID,
		CategoryID:  cat.ID,
		Amount:      money.MustParse("120.50"),
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Description: "Electricity bill",
		ActorID:     1,
	})
	require.NoError(t, err)

	got := repo.wallets[w.ID]
	assert.Equal(t, "379.50", got.Balance().String())

	require.Len(t, repo.txns, 1)
	for _, txn := range repo.txns {
		assert.Equal(t, wallet.TxExpense, txn.Type)
		assert.Equal(t, wallet.DirectionOut, txn.Direction)
		require.NotNil(t, txn.RelatedExpenseID)
		assert.Equal(t, created.ID, *txn.RelatedExpenseID)
	}
	require.Len(t, repo.walletLogs, 1)
	assert.Equal(t, wallet.LogExpense, repo.walletLogs[0].Type)
	assert.Equal(t, "500.00", repo.walletLogs[0].BalanceBefore.String())
	assert.Equal(t, "379.50", repo.walletLogs[0].BalanceAfter.String())
}

func TestCreateExpenseRejectsNonExpenseWallet(t *testing.T) {
	repo := newFakeRepo()
	cat := repo.seedCategory("Utilities")
	w := repo.seedWallet(wallet.TypeMainCashbox, "Main Cashbox", "500.00")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		WalletID:   w.ID,
		CategoryID: cat.ID,
		Amount:     money.MustParse("10"),
		ActorID:    1,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, repo.expenses, "no expense row without a valid wallet")
	assert.Equal(t, "500.00", repo.wallets[w.ID].Balance().String())
}

func TestCreateExpenseInsufficientBalance(t *testing.T) {
	repo := newFakeRepo()
	cat := repo.seedCategory("Utilities")
	w := repo.seedWallet(wallet.TypeExpense, "Operations", "100.00")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		WalletID:   w.ID,
		CategoryID: cat.ID,
		Amount:     money.MustParse("100.01"),
		ActorID:    1,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientBalance)
	assert.Empty(t, repo.expenses)
	assert.Empty(t, repo.txns)
	assert.Equal(t, "100.00", repo.wallets[w.ID].Balance().String())
}

func TestCreateExpenseUnknownCategory(t *testing.T) {
	repo := newFakeRepo()
	w := repo.seedWallet(wallet.TypeExpense, "Operations", "100.00")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		WalletID:   w.ID,
		CategoryID: 99,
		Amount:     money.MustParse("10"),
		ActorID:    1,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateOnlyChangesCategoryAndDescription(t *testing.T) {
	repo := newFakeRepo()
	cat := repo.seedCategory("Utilities")
	other := repo.seedCategory("Maintenance")
	w := repo.seedWallet(wallet.TypeExpense, "Operations", "500.00")
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		WalletID:   w.ID,
		CategoryID: cat.ID,
		Amount:     money.MustParse("50"),
		ActorID:    1,
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, other.ID, "Reclassified")
	require.NoError(t, err)
	assert.Equal(t, other.ID, updated.CategoryID)
	assert.Equal(t, "Reclassified", updated.Description)
	assert.Equal(t, "50.00", updated.Amount.String(), "amount is frozen after posting")
	assert.Equal(t, w.ID, updated.WalletID, "wallet is frozen after posting")
}

func TestDeleteIsRefused(t *testing.T) {
	repo := newFakeRepo()
	cat := repo.seedCategory("Utilities")
	w := repo.seedWallet(wallet.TypeExpense, "Operations", "500.00")
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		WalletID:   w.ID,
		CategoryID: cat.ID,
		Amount:     money.MustParse("50"),
		ActorID:    1,
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrDeletionRefused)
	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err, "the expense survives the delete attempt")
}

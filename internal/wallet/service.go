package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/scholaris-erp/scholaris-erp/internal/admins"
	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// AdminDirectory resolves admins for wallet naming and log metadata.
type AdminDirectory interface {
	Get(ctx context.Context, id int64) (admins.Admin, error)
}

// SummaryCache caches the balance summary between mutations.
type SummaryCache interface {
	Get(ctx context.Context) (BalanceSummary, bool, error)
	Set(ctx context.Context, summary BalanceSummary) error
	Invalidate(ctx context.Context) error
}

// Metrics records ledger activity counters. Implementations live in the
// observability package; a nil Metrics disables recording.
type Metrics interface {
	TransactionRecorded(txType string)
	TransferExecuted(route string)
}

// Service wraps ledger business rules.
type Service struct {
	repo    Repository
	dir     AdminDirectory
	cache   SummaryCache
	metrics Metrics
	flight  singleflight.Group
}

// NewService constructs a new Service. cache and metrics may be nil.
func NewService(repo Repository, dir AdminDirectory, cache SummaryCache, metrics Metrics) *Service {
	return &Service{repo: repo, dir: dir, cache: cache, metrics: metrics}
}

// Get returns the wallet by id.
func (s *Service) Get(ctx context.Context, id int64) (Wallet, error) {
	return s.repo.GetWallet(ctx, id)
}

// List returns wallets, optionally filtered by type.
func (s *Service) List(ctx context.Context, typ Type) ([]Wallet, error) {
	if typ != "" && typ != TypeStaff && typ != TypeMainCashbox && typ != TypeExpense {
		return nil, fmt.Errorf("%w: unknown wallet type %q", shared.ErrValidation, typ)
	}
	return s.repo.ListWallets(ctx, typ)
}

// ListByOwner returns the wallets owned by one admin.
func (s *Service) ListByOwner(ctx context.Context, adminID int64) ([]Wallet, error) {
	return s.repo.ListWalletsByOwner(ctx, adminID)
}

// Transactions returns one page of a wallet's transaction history, newest
// first, with the total row count.
func (s *Service) Transactions(ctx context.Context, walletID int64, page, perPage int) ([]Transaction, int, error) {
	if _, err := s.repo.GetWallet(ctx, walletID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListTransactions(ctx, walletID, page, perPage)
}

// Logs returns one page of the audit trail, newest first.
func (s *Service) Logs(ctx context.Context, page, perPage int) ([]Log, int, error) {
	return s.repo.ListLogs(ctx, page, perPage)
}

// Balance returns the wallet's current spendable balance.
func (s *Service) Balance(ctx context.Context, id int64) (money.Amount, error) {
	w, err := s.repo.GetWallet(ctx, id)
	if err != nil {
		return money.Amount{}, err
	}
	return w.Balance(), nil
}

// Summary returns per-type balance totals. Reads go through the cache when
// one is configured; concurrent misses collapse into a single DB query.
func (s *Service) Summary(ctx context.Context) (BalanceSummary, error) {
	if s.cache != nil {
		if summary, ok, err := s.cache.Get(ctx); err == nil && ok {
			return summary, nil
		}
	}
	v, err, _ := s.flight.Do("summary", func() (any, error) {
		summary, err := s.repo.SummaryTotals(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			_ = s.cache.Set(ctx, summary)
		}
		return summary, nil
	})
	if err != nil {
		return BalanceSummary{}, err
	}
	return v.(BalanceSummary), nil
}

// StaffWalletFor returns the admin's primary staff wallet, creating it on
// first reference.
func (s *Service) StaffWalletFor(ctx context.Context, adminID int64) (Wallet, error) {
	admin, err := s.dir.Get(ctx, adminID)
	if err != nil {
		return Wallet{}, err
	}
	var w Wallet
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err = tx.GetOrCreateStaffWallet(ctx, admin.ID, staffWalletName(admin))
		return err
	})
	return w, err
}

// MainCashbox returns the singleton hub wallet, creating it on first
// reference.
func (s *Service) MainCashbox(ctx context.Context) (Wallet, error) {
	var w Wallet
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		w, err = tx.GetOrCreateMainCashbox(ctx)
		return err
	})
	return w, err
}

// CreateWallet explicitly creates a staff or expense wallet. Staff wallets
// require an owning admin; expense wallets are system-owned.
func (s *Service) CreateWallet(ctx context.Context, in CreateWalletInput) (Wallet, error) {
	if err := in.Validate(); err != nil {
		return Wallet{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	owner := SystemOwner()
	if in.Type == TypeStaff {
		if in.OwnerAdminID == 0 {
			return Wallet{}, fmt.Errorf("%w: staff wallet requires an owner", shared.ErrValidation)
		}
		admin, err := s.dir.Get(ctx, in.OwnerAdminID)
		if err != nil {
			return Wallet{}, err
		}
		owner = AdminOwner(admin.ID)
	}
	var w Wallet
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		w, err = tx.CreateWallet(ctx, Wallet{Owner: owner, Name: in.Name, Type: in.Type})
		return err
	})
	return w, err
}

// UpdateWallet renames a wallet. Type, owner and the accumulators are not
// updatable through this path.
func (s *Service) UpdateWallet(ctx context.Context, id int64, name string) (Wallet, error) {
	if name == "" {
		return Wallet{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.RenameWallet(ctx, id, name)
	})
	if err != nil {
		return Wallet{}, err
	}
	return s.repo.GetWallet(ctx, id)
}

// CreditStaffWallet records a payment credit against the admin's staff
// wallet in its own transaction. Payment posting composes the package-level
// CreditStaffWallet inside the payment transaction instead.
func (s *Service) CreditStaffWallet(ctx context.Context, in CreditInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	admin, err := s.dir.Get(ctx, in.AdminID)
	if err != nil {
		return Transaction{}, err
	}
	var txn Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		txn, _, err = CreditStaffWallet(ctx, tx, admin, in)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterMutation(ctx, txn.Type)
	return txn, nil
}

// DebitForExpense records an expense debit against a wallet in its own
// transaction. Expense posting composes the package-level DebitForExpense
// inside the expense transaction instead.
func (s *Service) DebitForExpense(ctx context.Context, in DebitInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, _, err = DebitForExpense(ctx, tx, in)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterMutation(ctx, txn.Type)
	return txn, nil
}

// Transfer moves money along the allowed routes: staff to main cashbox, or
// main cashbox to an expense wallet. Both wallets are locked in ascending id
// order, the balance is checked after locking, and the two legs plus both
// audit logs commit atomically.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := in.Validate(); err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	var (
		result TransferResult
		route  string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		from, to, err := lockPair(ctx, tx, in.FromWalletID, in.ToWalletID)
		if err != nil {
			return err
		}
		switch {
		case from.IsStaff() && to.IsMainCashbox():
			route = "staff_to_cashbox"
		case from.IsMainCashbox() && to.IsExpense():
			route = "cashbox_to_expense"
		default:
			return fmt.Errorf("%w: %s to %s", shared.ErrInvalidTransferRoute, from.Type, to.Type)
		}
		result, err = executeTransfer(ctx, tx, from, to, in.Amount, in.ActorID, in.Note)
		return err
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.afterMutation(ctx, TxTransferOut)
	if s.metrics != nil {
		s.metrics.TransferExecuted(route)
	}
	return result, nil
}

// DirectTransfer moves money between any two wallets without routing rules.
// It is reserved for administrators; the handler enforces the role.
func (s *Service) DirectTransfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := in.Validate(); err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		from, to, err := lockPair(ctx, tx, in.FromWalletID, in.ToWalletID)
		if err != nil {
			return err
		}
		result, err = executeTransfer(ctx, tx, from, to, in.Amount, in.ActorID, in.Note)
		return err
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.afterMutation(ctx, TxTransferOut)
	if s.metrics != nil {
		s.metrics.TransferExecuted("direct")
	}
	return result, nil
}

// Reverse undoes a single transaction: the inverse accumulator change is
// applied and the row is deleted. Audit logs written at creation time stay
// as they were.
func (s *Service) Reverse(ctx context.Context, txnID int64) (Transaction, error) {
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, err = ReverseTransaction(ctx, tx, txnID)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterMutation(ctx, txn.Type)
	return txn, nil
}

// Adjust applies a manual correction to a wallet and records it in the
// audit trail.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetWalletForUpdate(ctx, in.WalletID)
		if err != nil {
			return err
		}
		before := w.Balance()
		var updated Wallet
		txn, updated, err = ApplyTransaction(ctx, tx, Transaction{
			WalletID:    w.ID,
			Type:        TxAdjustment,
			Amount:      in.Amount,
			Direction:   in.Direction,
			Description: in.Description,
			CreatedBy:   in.ActorID,
		})
		if err != nil {
			return err
		}
		_, err = tx.InsertLog(ctx, Log{
			AdminID:       logAdminFor(w, in.ActorID),
			Type:          LogAdjustment,
			Amount:        in.Amount,
			BalanceBefore: before,
			BalanceAfter:  updated.Balance(),
			Description:   in.Description,
			Meta: map[string]any{
				"wallet_id": w.ID,
				"direction": string(in.Direction),
			},
		})
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.afterMutation(ctx, TxAdjustment)
	return txn, nil
}

func (s *Service) afterMutation(ctx context.Context, txType TxType) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.TransactionRecorded(string(txType))
	}
}

// CreditStaffWallet applies a payment credit to the admin's staff wallet
// inside an open transaction. The wallet is created lazily and locked.
func CreditStaffWallet(ctx context.Context, tx TxRepository, admin admins.Admin, in CreditInput) (Transaction, Log, error) {
	w, err := tx.GetOrCreateStaffWallet(ctx, admin.ID, staffWalletName(admin))
	if err != nil {
		return Transaction{}, Log{}, err
	}
	before := w.Balance()
	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Payment #%d received", in.PaymentID)
	}
	txn, updated, err := ApplyTransaction(ctx, tx, Transaction{
		WalletID:         w.ID,
		Type:             TxPaymentIn,
		Amount:           in.Amount,
		Direction:        DirectionIn,
		Description:      description,
		RelatedPaymentID: &in.PaymentID,
		CreatedBy:        admin.ID,
	})
	if err != nil {
		return Transaction{}, Log{}, err
	}
	log, err := tx.InsertLog(ctx, Log{
		AdminID:       admin.ID,
		PaymentID:     &in.PaymentID,
		Type:          LogPayment,
		Amount:        in.Amount,
		BalanceBefore: before,
		BalanceAfter:  updated.Balance(),
		Description:   description,
		Meta:          map[string]any{"wallet_id": w.ID},
	})
	if err != nil {
		return Transaction{}, Log{}, err
	}
	return txn, log, nil
}

// DebitForExpense posts an expense debit against a wallet inside an open
// transaction. The wallet must be an expense wallet with sufficient balance.
func DebitForExpense(ctx context.Context, tx TxRepository, in DebitInput) (Transaction, Log, error) {
	w, err := tx.GetWalletForUpdate(ctx, in.WalletID)
	if err != nil {
		return Transaction{}, Log{}, err
	}
	if !w.IsExpense() {
		return Transaction{}, Log{}, fmt.Errorf("%w: expenses can only be paid from an expense wallet, got %s", shared.ErrValidation, w.Type)
	}
	before := w.Balance()
	if before.LessThan(in.Amount) {
		return Transaction{}, Log{}, fmt.Errorf("%w in %s. Available balance: %s", shared.ErrInsufficientBalance, w.Name, before.FormatUSD())
	}
	description := in.Description
	if description == "" {
		description = fmt.Sprintf("Expense #%d", in.ExpenseID)
	}
	txn, updated, err := ApplyTransaction(ctx, tx, Transaction{
		WalletID:         w.ID,
		Type:             TxExpense,
		Amount:           in.Amount,
		Direction:        DirectionOut,
		Description:      description,
		RelatedExpenseID: &in.ExpenseID,
		CreatedBy:        in.ActorID,
	})
	if err != nil {
		return Transaction{}, Log{}, err
	}
	log, err := tx.InsertLog(ctx, Log{
		AdminID:       in.ActorID,
		ExpenseID:     &in.ExpenseID,
		Type:          LogExpense,
		Amount:        in.Amount,
		BalanceBefore: before,
		BalanceAfter:  updated.Balance(),
		Description:   description,
		Meta:          map[string]any{"wallet_id": w.ID},
	})
	if err != nil {
		return Transaction{}, Log{}, err
	}
	return txn, log, nil
}

// ExecuteAdminTransfer moves money between two admins' primary staff wallets
// inside an open transaction. The transfer package calls this when a request
// is accepted, so the request flip and both legs commit together.
func ExecuteAdminTransfer(ctx context.Context, tx TxRepository, in AdminTransferInput) (TransferResult, error) {
	if err := in.Validate(); err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	// Lock in ascending admin id order so two opposing transfers cannot
	// deadlock each other.
	first, second := in.FromAdmin, in.ToAdmin
	if second.ID < first.ID {
		first, second = second, first
	}
	firstWallet, err := tx.GetOrCreateStaffWallet(ctx, first.ID, staffWalletName(first))
	if err != nil {
		return TransferResult{}, err
	}
	secondWallet, err := tx.GetOrCreateStaffWallet(ctx, second.ID, staffWalletName(second))
	if err != nil {
		return TransferResult{}, err
	}
	from, to := firstWallet, secondWallet
	if from.Owner.AdminID != in.FromAdmin.ID {
		from, to = to, from
	}
	actorID := in.ActorID
	if actorID == 0 {
		actorID = in.FromAdmin.ID
	}
	return executeTransfer(ctx, tx, from, to, in.Amount, actorID, in.Notes)
}

// lockPair locks two wallets in ascending id order and returns them in the
// caller's from/to order.
func lockPair(ctx context.Context, tx TxRepository, fromID, toID int64) (Wallet, Wallet, error) {
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}
	first, err := tx.GetWalletForUpdate(ctx, firstID)
	if err != nil {
		return Wallet{}, Wallet{}, err
	}
	second, err := tx.GetWalletForUpdate(ctx, secondID)
	if err != nil {
		return Wallet{}, Wallet{}, err
	}
	if first.ID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

// executeTransfer writes the two legs of a transfer and both audit logs.
// Callers must already hold row locks on both wallets. The legs share a
// transfer group id, and the balance check happens here, under the lock.
func executeTransfer(ctx context.Context, tx TxRepository, from, to Wallet, amount money.Amount, actorID int64, note string) (TransferResult, error) {
	fromBefore := from.Balance()
	if fromBefore.LessThan(amount) {
		return TransferResult{}, fmt.Errorf("%w in %s. Available balance: %s", shared.ErrInsufficientBalance, from.Name, fromBefore.FormatUSD())
	}
	toBefore := to.Balance()

	group := uuid.New()
	outDescription := note
	if outDescription == "" {
		outDescription = fmt.Sprintf("Transfer to %s", to.Name)
	}
	inDescription := note
	if inDescription == "" {
		inDescription = fmt.Sprintf("Transfer from %s", from.Name)
	}

	outgoing, fromUpdated, err := ApplyTransaction(ctx, tx, Transaction{
		WalletID:        from.ID,
		Type:            TxTransferOut,
		Amount:          amount,
		Direction:       DirectionOut,
		Description:     outDescription,
		TransferGroupID: &group,
		CreatedBy:       actorID,
	})
	if err != nil {
		return TransferResult{}, err
	}
	incoming, toUpdated, err := ApplyTransaction(ctx, tx, Transaction{
		WalletID:        to.ID,
		Type:            TxTransferIn,
		Amount:          amount,
		Direction:       DirectionIn,
		Description:     inDescription,
		TransferGroupID: &group,
		CreatedBy:       actorID,
	})
	if err != nil {
		return TransferResult{}, err
	}

	if _, err := tx.InsertLog(ctx, Log{
		AdminID:       logAdminFor(from, actorID),
		Type:          LogTransferOut,
		Amount:        amount,
		BalanceBefore: fromBefore,
		BalanceAfter:  fromUpdated.Balance(),
		Description:   outDescription,
		Meta: map[string]any{
			"transfer_group_id":  group.String(),
			"from_wallet_id":     from.ID,
			"to_wallet_id":       to.ID,
			"to_wallet_name":     to.Name,
			"transaction_id":     outgoing.ID,
			"counterpart_txn_id": incoming.ID,
		},
	}); err != nil {
		return TransferResult{}, err
	}
	if _, err := tx.InsertLog(ctx, Log{
		AdminID:       logAdminFor(to, actorID),
		Type:          LogTransferIn,
		Amount:        amount,
		BalanceBefore: toBefore,
		BalanceAfter:  toUpdated.Balance(),
		Description:   inDescription,
		Meta: map[string]any{
			"transfer_group_id":  group.String(),
			"from_wallet_id":     from.ID,
			"from_wallet_name":   from.Name,
			"to_wallet_id":       to.ID,
			"transaction_id":     incoming.ID,
			"counterpart_txn_id": outgoing.ID,
		},
	}); err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Outgoing: outgoing, Incoming: incoming}, nil
}

// logAdminFor picks the admin a log row is attributed to: the wallet owner
// when there is one, otherwise the acting admin.
func logAdminFor(w Wallet, actorID int64) int64 {
	if w.Owner.Kind == OwnerAdmin {
		return w.Owner.AdminID
	}
	return actorID
}

func staffWalletName(admin admins.Admin) string {
	return fmt.Sprintf("%s's Wallet", admin.Name)
}

package expense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/money"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
	"github.com/scholaris-erp/scholaris-erp/internal/wallet"
)

// Service wraps expense business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput groups fields for posting an expense.
type CreateInput struct {
	WalletID    int64
	CategoryID  int64
	Amount      money.Amount
	Date        time.Time
	Description string
	ActorID     int64
}

// Validate ensures expense input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.WalletID == 0 {
		return errors.New("expense: wallet required")
	}
	if in.CategoryID == 0 {
		return errors.New("expense: category required")
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("expense: amount must be positive, got %s", in.Amount)
	}
	if in.ActorID == 0 {
		return errors.New("expense: acting admin required")
	}
	return nil
}

// Create posts an expense: the target wallet must be an expense wallet with
// enough balance, checked under lock before the expense row exists. The row
// insert, the ledger debit and the audit log commit as one unit.
func (s *Service) Create(ctx context.Context, in CreateInput) (Expense, error) {
	if err := in.Validate(); err != nil {
		return Expense{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		return Expense{}, fmt.Errorf("expense: category %d: %w", in.CategoryID, err)
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	var created Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		w, err := tx.GetWalletForUpdate(ctx, in.WalletID)
		if err != nil {
			return err
		}
		if !w.IsExpense() {
			return fmt.Errorf("%w: expenses can only be paid from an expense wallet, got %s", shared.ErrValidation, w.Type)
		}
		if w.Balance().LessThan(in.Amount) {
			return fmt.Errorf("%w in %s. Available balance: %s", shared.ErrInsufficientBalance, w.Name, w.Balance().FormatUSD())
		}
		created, err = tx.InsertExpense(ctx, Expense{
			WalletID:    in.WalletID,
			CategoryID:  in.CategoryID,
			Amount:      in.Amount.Round2(),
			Date:        date,
			Description: in.Description,
			CreatedBy:   in.ActorID,
		})
		if err != nil {
			return err
		}
		_, _, err = wallet.DebitForExpense(ctx, tx, wallet.DebitInput{
			WalletID:    in.WalletID,
			Amount:      created.Amount,
			ExpenseID:   created.ID,
			ActorID:     in.ActorID,
			Description: in.Description,
		})
		return err
	})
	if err != nil {
		return Expense{}, err
	}
	return created, nil
}

// Get returns the expense by id.
func (s *Service) Get(ctx context.Context, id int64) (Expense, error) {
	return s.repo.GetExpense(ctx, id)
}

// List returns one page of expenses, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, page, perPage int) ([]Expense, int, error) {
	return s.repo.ListExpenses(ctx, filter, page, perPage)
}

// Update changes the category and description of an expense. The amount,
// wallet and date are frozen because the ledger debit already happened.
func (s *Service) Update(ctx context.Context, id int64, categoryID int64, description string) (Expense, error) {
	if categoryID == 0 {
		return Expense{}, fmt.Errorf("%w: category required", shared.ErrValidation)
	}
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		return Expense{}, fmt.Errorf("expense: category %d: %w", categoryID, err)
	}
	if _, err := s.repo.GetExpense(ctx, id); err != nil {
		return Expense{}, err
	}
	return s.repo.UpdateExpenseDetails(ctx, id, categoryID, description)
}

// Delete is refused unconditionally. Posted expenses have a matching ledger
// debit and audit log; removing the row would orphan both.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetExpense(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: expenses cannot be deleted", shared.ErrDeletionRefused)
}

// CreateCategory adds an expense category.
func (s *Service) CreateCategory(ctx context.Context, name, description string) (Category, error) {
	if name == "" {
		return Category{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	return s.repo.CreateCategory(ctx, Category{Name: name, Description: description})
}

// UpdateCategory edits an expense category.
func (s *Service) UpdateCategory(ctx context.Context, id int64, name, description string) (Category, error) {
	if name == "" {
		return Category{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	existing, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	existing.Name = name
	existing.Description = description
	return s.repo.UpdateCategory(ctx, existing)
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

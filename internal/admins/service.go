package admins

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Service wraps admin business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the admin by id.
func (s *Service) Get(ctx context.Context, id int64) (Admin, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive returns active admins ordered by name, used for transfer
// counterpart selection.
func (s *Service) ListActive(ctx context.Context) ([]Admin, error) {
	return s.repo.ListActive(ctx)
}

// Register creates an admin with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string, role Role) (Admin, error) {
	if name == "" || email == "" {
		return Admin{}, errors.New("admins: name and email required")
	}
	if role != RoleAdministrator && role != RoleStaff {
		return Admin{}, fmt.Errorf("admins: unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Admin{}, fmt.Errorf("admins: hash password: %w", err)
	}
	return s.repo.Create(ctx, Admin{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     true,
	})
}

// VerifyPassword checks a candidate password against the stored hash.
func (s *Service) VerifyPassword(admin Admin, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) == nil
}

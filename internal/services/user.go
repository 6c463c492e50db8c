package services

import (
	"context"
	"errors"

	"github.com/fileharbor/apiserver/internal/store"
	"github.com/fileharbor/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateRole(ctx context.Context, id, role string) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// FindOrCreate resolves a user by email, creating the record on first
// sign-in. Two concurrent first sign-ins for the same email race on the
// unique constraint; the loser re-reads and returns the winner's record.
func (s *UserService) FindOrCreate(ctx context.Context, user types.User) (types.User, error) {
	existing, err := s.repo.GetByEmail(ctx, user.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	created, err := s.repo.Create(ctx, user)
	if err == nil {
		return created, nil
	}
	if errors.Is(err, store.ErrConflict) {
		return s.repo.GetByEmail(ctx, user.Email)
	}
	return types.User{}, err
}

// PromoteToAdmin sets the user's role to ADMIN. Promoting an admin is a
// no-op that still succeeds. Tokens minted before the promotion keep
// their old role until the user signs in again.
func (s *UserService) PromoteToAdmin(ctx context.Context, id string) (types.User, error) {
	return s.repo.UpdateRole(ctx, id, types.RoleAdmin)
}

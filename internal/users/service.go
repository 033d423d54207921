package users

import (
	"context"
	"errors"
	"strings"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]auth.User, int, error)
	GetUser(ctx context.Context, id string) (auth.User, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id string, role auth.Role) error
}

// Service handles user administration.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) (Page, error) {
	filter = filter.normalized()
	filter.Query = strings.TrimSpace(filter.Query)
	list, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Users: list, Pagination: NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// SetActive changes the active flag of target on behalf of actor. Admins
// cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor auth.User, targetID string, active bool) (auth.User, error) {
	if actor.ID == targetID && !active {
		return auth.User{}, httpx.NewError(httpx.ErrValidation, "You cannot deactivate your own account")
	}
	if err := s.repo.SetActive(ctx, targetID, active); err != nil {
		return auth.User{}, notFound(err)
	}
	return s.get(ctx, targetID)
}

// SetRole changes the role of target on behalf of actor. Admins cannot
// demote themselves.
func (s *Service) SetRole(ctx context.Context, actor auth.User, targetID string, role auth.Role) (auth.User, error) {
	if !role.Valid() {
		return auth.User{}, httpx.ValidationFailed(map[string]string{"role": "must be one of: user moderator admin"})
	}
	if actor.ID == targetID && role != auth.RoleAdmin {
		return auth.User{}, httpx.NewError(httpx.ErrValidation, "You cannot change your own role")
	}
	if err := s.repo.SetRole(ctx, targetID, role); err != nil {
		return auth.User{}, notFound(err)
	}
	return s.get(ctx, targetID)
}

func (s *Service) get(ctx context.Context, id string) (auth.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return auth.User{}, notFound(err)
	}
	return user, nil
}

func notFound(err error) error {
	if errors.Is(err, httpx.ErrNotFound) {
		return httpx.NewError(httpx.ErrNotFound, "User not found")
	}
	return err
}

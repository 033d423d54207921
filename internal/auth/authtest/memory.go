// Package authtest provides an in-process auth.Repository for tests in any
// package. No binary links it.
package authtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// MemoryRepository implements auth.Repository over a map. Emails are compared
// exactly after auth.NormalizeEmail and usernames after auth.FoldUsername,
// matching the users table indexes.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]auth.User
	now   func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]auth.User), now: time.Now}
}

// Create inserts user after checking uniqueness.
func (m *MemoryRepository) Create(_ context.Context, user auth.User) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = auth.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return auth.User{}, auth.DuplicateEmail()
		}
		if auth.FoldUsername(u.Username) == auth.FoldUsername(user.Username) {
			return auth.User{}, auth.DuplicateUsername()
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = auth.RoleUser
	}
	now := m.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Interests = slices.Clone(user.Interests)
	m.users[user.ID] = user
	return withoutHash(user), nil
}

// FindByID returns the user without credentials.
func (m *MemoryRepository) FindByID(ctx context.Context, id string) (auth.User, error) {
	u, err := m.FindCredentialsByID(ctx, id)
	if err != nil {
		return auth.User{}, err
	}
	return withoutHash(u), nil
}

// FindCredentialsByID returns the user including the password hash.
func (m *MemoryRepository) FindCredentialsByID(_ context.Context, id string) (auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, httpx.ErrNotFound
	}
	return clone(u), nil
}

// FindCredentialsByIdentifier matches email first, then username.
func (m *MemoryRepository) FindCredentialsByIdentifier(_ context.Context, identifier string) (auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email := auth.NormalizeEmail(identifier)
	for _, u := range m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	username := auth.FoldUsername(identifier)
	for _, u := range m.users {
		if auth.FoldUsername(u.Username) == username {
			return clone(u), nil
		}
	}
	return auth.User{}, httpx.ErrNotFound
}

// EmailExists reports whether email is registered.
func (m *MemoryRepository) EmailExists(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = auth.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// UsernameExists reports whether username is taken.
func (m *MemoryRepository) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	username = auth.FoldUsername(username)
	for _, u := range m.users {
		if auth.FoldUsername(u.Username) == username {
			return true, nil
		}
	}
	return false, nil
}

// UpdateProfile applies update to the stored user.
func (m *MemoryRepository) UpdateProfile(_ context.Context, id string, update auth.ProfileUpdate) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.User{}, httpx.ErrNotFound
	}
	u = update.Apply(u)
	u.UpdatedAt = m.now().UTC()
	m.users[id] = u
	return withoutHash(clone(u)), nil
}

// UpdatePassword replaces the stored hash.
func (m *MemoryRepository) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *auth.User) {
		u.PasswordHash = hash
		u.UpdatedAt = m.now().UTC()
	})
}

// TouchLastLogin records the login time.
func (m *MemoryRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return m.mutate(id, func(u *auth.User) {
		at := at.UTC()
		u.LastLogin = &at
	})
}

// MarkVerified sets the verified flag.
func (m *MemoryRepository) MarkVerified(ctx context.Context, id string) (auth.User, error) {
	if err := m.mutate(id, func(u *auth.User) { u.IsVerified = true }); err != nil {
		return auth.User{}, err
	}
	return m.FindByID(ctx, id)
}

// SetActive toggles the active flag.
func (m *MemoryRepository) SetActive(_ context.Context, id string, active bool) error {
	return m.mutate(id, func(u *auth.User) { u.IsActive = active })
}

// SetRole changes the role.
func (m *MemoryRepository) SetRole(_ context.Context, id string, role auth.Role) error {
	return m.mutate(id, func(u *auth.User) { u.Role = role })
}

func (m *MemoryRepository) mutate(id string, fn func(*auth.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func clone(u auth.User) auth.User {
	u.Interests = slices.Clone(u.Interests)
	return u
}

func withoutHash(u auth.User) auth.User {
	u.PasswordHash = ""
	return u
}

var _ auth.Repository = (*MemoryRepository)(nil)

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecoguard/ecoguard/internal/platform/db"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// Repository defines persistence operations for the credential store. Plain
// reads never return the password hash; the Credentials lookups do.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindCredentialsByID(ctx context.Context, id string) (User, error)
	FindCredentialsByIdentifier(ctx context.Context, identifier string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	MarkVerified(ctx context.Context, id string) (User, error)
}

// Unique index names from the users migration.
const (
	emailConstraint    = "users_email_key"
	usernameConstraint = "users_username_key"
)

// DuplicateEmail is returned when the email is already registered.
func DuplicateEmail() error {
	return &httpx.Error{
		Kind:    httpx.ErrDuplicate,
		Message: "Email already registered",
		Fields:  map[string]string{"email": "already registered"},
	}
}

// DuplicateUsername is returned when the username is already taken.
func DuplicateUsername() error {
	return &httpx.Error{
		Kind:    httpx.ErrDuplicate,
		Message: "Username already taken",
		Fields:  map[string]string{"username": "already taken"},
	}
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const publicColumns = `id::text, email, username, first_name, last_name, phone, bio, avatar, interests,
	newsletter, is_active, is_verified, role, created_at, updated_at, last_login`

const credentialColumns = publicColumns + `, password_hash`

// Create inserts a user. Unique index violations map to duplicate errors.
func (r *PGRepository) Create(ctx context.Context, user User) (User, error) {
	user.Email = NormalizeEmail(user.Email)
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.Interests == nil {
		user.Interests = []string{}
	}
	const query = `INSERT INTO users (id, email, username, password_hash, first_name, last_name, phone, bio,
		avatar, interests, newsletter, is_active, is_verified, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + publicColumns
	row := r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.Phone, user.Bio, user.Avatar, user.Interests, user.Newsletter, user.IsActive,
		user.IsVerified, string(user.Role),
	)
	created, err := scanUser(row, false)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			if constraint == usernameConstraint {
				return User{}, DuplicateUsername()
			}
			return User{}, DuplicateEmail()
		}
		return User{}, fmt.Errorf("auth: insert user: %w", err)
	}
	return created, nil
}

// FindByID fetches a user without credentials.
func (r *PGRepository) FindByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, httpx.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+publicColumns+` FROM users WHERE id = $1`, id)
	return r.one(row, false)
}

// FindCredentialsByID fetches a user including the password hash.
func (r *PGRepository) FindCredentialsByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, httpx.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM users WHERE id = $1`, id)
	return r.one(row, true)
}

// identifierKeys returns the lookup keys for a login identifier. Stored emails
// are already normalized, so the email key is compared exactly; usernames are
// ASCII, where folding and SQL lower() agree.
func identifierKeys(identifier string) (email, username string) {
	return NormalizeEmail(identifier), FoldUsername(identifier)
}

// FindCredentialsByIdentifier looks a user up by email or username.
func (r *PGRepository) FindCredentialsByIdentifier(ctx context.Context, identifier string) (User, error) {
	email, username := identifierKeys(identifier)
	row := r.pool.QueryRow(ctx, `SELECT `+credentialColumns+` FROM users
		WHERE email = $1 OR lower(username) = $2
		ORDER BY (email = $1) DESC LIMIT 1`, email, username)
	return r.one(row, true)
}

// EmailExists reports whether email is registered.
func (r *PGRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, NormalizeEmail(email))
}

// UsernameExists reports whether username is taken.
func (r *PGRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`, username)
}

// UpdateProfile applies the allow-listed fields of update.
func (r *PGRepository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	next := update.Apply(current)
	if next.Interests == nil {
		next.Interests = []string{}
	}
	const query = `UPDATE users SET first_name = $2, last_name = $3, phone = $4, bio = $5, avatar = $6,
		interests = $7, newsletter = $8, updated_at = NOW()
		WHERE id = $1 RETURNING ` + publicColumns
	row := r.pool.QueryRow(ctx, query, id, next.FirstName, next.LastName, next.Phone, next.Bio,
		next.Avatar, next.Interests, next.Newsletter)
	return r.one(row, false)
}

// UpdatePassword replaces the stored password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// TouchLastLogin records a successful login without touching other fields.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("auth: touch last login: %w", err)
	}
	return nil
}

// MarkVerified flags the user's email as verified.
func (r *PGRepository) MarkVerified(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW()
		WHERE id = $1 RETURNING `+publicColumns, id)
	return r.one(row, false)
}

func (r *PGRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("auth: exists query: %w", err)
	}
	return found, nil
}

func (r *PGRepository) one(row pgx.Row, withHash bool) (User, error) {
	user, err := scanUser(row, withHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, httpx.ErrNotFound
		}
		return User{}, fmt.Errorf("auth: scan user: %w", err)
	}
	return user, nil
}

// ScanUser reads a row selected with the public column list.
func ScanUser(row pgx.Row) (User, error) {
	return scanUser(row, false)
}

// PublicColumns is the column list ScanUser expects.
const PublicColumns = publicColumns

func scanUser(row pgx.Row, withHash bool) (User, error) {
	var (
		u    User
		role string
	)
	dest := []any{
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.Bio, &u.Avatar,
		&u.Interests, &u.Newsletter, &u.IsActive, &u.IsVerified, &role, &u.CreatedAt, &u.UpdatedAt,
		&u.LastLogin,
	}
	if withHash {
		dest = append(dest, &u.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

var _ Repository = (*PGRepository)(nil)

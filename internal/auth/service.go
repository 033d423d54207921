package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// VerificationMailer delivers email verification links.
type VerificationMailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
}

// ServiceConfig aggregates Service dependencies. Revocations and Mailer are optional.
type ServiceConfig struct {
	Repo          Repository
	Hasher        PasswordHasher
	Tokens        *TokenIssuer
	Revocations   RevocationStore
	Mailer        VerificationMailer
	Logger        *slog.Logger
	VerifyBaseURL string
	Now           func() time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo        Repository
	hasher      PasswordHasher
	tokens      *TokenIssuer
	revocations RevocationStore
	mailer      VerificationMailer
	logger      *slog.Logger
	verifyURL   string
	now         func() time.Time
	dummyHash   string
}

// NewService constructs a new Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repo == nil || cfg.Hasher == nil || cfg.Tokens == nil {
		return nil, errors.New("auth: repository, hasher and token issuer are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	// Compared against when the identifier is unknown so both paths pay the hash cost.
	dummy, err := cfg.Hasher.Hash("ecoguard-timing-equalizer")
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:        cfg.Repo,
		hasher:      cfg.Hasher,
		tokens:      cfg.Tokens,
		revocations: cfg.Revocations,
		mailer:      cfg.Mailer,
		logger:      logger,
		verifyURL:   cfg.VerifyBaseURL,
		now:         now,
		dummyHash:   dummy,
	}, nil
}

// Session is the result of a successful register or login.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries validated registration fields.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Username   string
	Email      string
	Password   string
	Phone      string
	Interests  []string
	Newsletter bool
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if err := checkPassword("password", in.Password); err != nil {
		return Session{}, err
	}

	// Fast path only; the unique index decides races.
	taken, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return Session{}, err
	}
	if taken {
		return Session{}, DuplicateEmail()
	}
	taken, err = s.repo.UsernameExists(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if taken {
		return Session{}, DuplicateUsername()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Interests:    normalizeInterests(in.Interests),
		Newsletter:   in.Newsletter,
		IsActive:     true,
		Role:         RoleUser,
	})
	if err != nil {
		return Session{}, err
	}

	session, err := s.issueSession(user)
	if err != nil {
		return Session{}, err
	}
	s.sendVerification(ctx, user)
	return session, nil
}

// Login verifies credentials. Unknown identifiers and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (Session, error) {
	user, err := s.repo.FindCredentialsByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			_ = s.hasher.Compare(s.dummyHash, password)
			return Session{}, invalidCredentials()
		}
		return Session{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, httpx.ErrInvalidCredentials) {
			return Session{}, invalidCredentials()
		}
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, deactivated()
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("touch last login", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLogin = &now
	}
	return s.issueSession(withoutHash(user))
}

// Authenticate verifies an access token and resolves its active user.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return Identity{}, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return Identity{}, err
	}
	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return Identity{}, httpx.NewError(httpx.ErrUnauthorized, "User not found")
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, deactivated()
	}
	return Identity{User: user, Claims: claims}, nil
}

// Profile returns the current user.
func (s *Service) Profile(ctx context.Context, id string) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, httpx.ErrNotFound) {
		return User{}, httpx.NewError(httpx.ErrNotFound, "User not found")
	}
	return user, err
}

// UpdateProfile applies an allow-listed update.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (User, error) {
	if update.Empty() {
		return s.Profile(ctx, id)
	}
	return s.repo.UpdateProfile(ctx, id, update)
}

// ChangePassword re-verifies the current password, stores the new hash and
// returns a fresh access token.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) (string, error) {
	if err := checkPassword("newPassword", next); err != nil {
		return "", err
	}
	user, err := s.repo.FindCredentialsByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.hasher.Compare(user.PasswordHash, current); err != nil {
		if errors.Is(err, httpx.ErrInvalidCredentials) {
			return "", httpx.NewError(httpx.ErrInvalidCredentials, "Current password is incorrect")
		}
		return "", err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return "", err
	}
	return s.tokens.IssueAccess(id)
}

// Refresh mints a new access token from a refresh token. The refresh token is
// not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, httpx.ErrTokenExpired) {
			return "", httpx.NewError(httpx.ErrTokenExpired, "Refresh token expired")
		}
		return "", invalidRefresh()
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return "", invalidRefresh()
	}
	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return "", invalidRefresh()
		}
		return "", err
	}
	if !user.IsActive {
		return "", invalidRefresh()
	}
	return s.tokens.IssueAccess(user.ID)
}

// Logout revokes the presented access token and, when supplied and owned by
// the same user, the refresh token. Without a revocation store it only
// acknowledges.
func (s *Service) Logout(ctx context.Context, access *Claims, refreshToken string) error {
	if s.revocations == nil || access == nil {
		return nil
	}
	if err := s.revoke(ctx, access); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	refresh, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil || refresh.Subject != access.Subject {
		return nil
	}
	return s.revoke(ctx, refresh)
}

// VerifyEmail marks the token's user as verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (User, error) {
	claims, err := s.tokens.VerifyVerification(token)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.MarkVerified(ctx, claims.Subject)
	if errors.Is(err, httpx.ErrNotFound) {
		return User{}, httpx.NewError(httpx.ErrInvalidToken, "Invalid verification token")
	}
	return user, err
}

// AccessTTL exposes the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.tokens.AccessTTL()
}

func (s *Service) issueSession(user User) (Session, error) {
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) checkRevoked(ctx context.Context, claims *Claims) error {
	if s.revocations == nil {
		return nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return httpx.NewError(httpx.ErrInvalidToken, "Token has been revoked")
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, claims *Claims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) sendVerification(ctx context.Context, user User) {
	if s.mailer == nil || s.verifyURL == "" {
		return
	}
	token, err := s.tokens.IssueVerification(user.ID)
	if err != nil {
		s.logger.Warn("issue verification token", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	link, err := verificationLink(s.verifyURL, token)
	if err != nil {
		s.logger.Warn("build verification link", slog.Any("error", err))
		return
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if err := s.mailer.SendVerification(ctx, user.Email, name, link); err != nil {
		s.logger.Warn("enqueue verification email", slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

func verificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("auth: parse verify url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func invalidCredentials() error {
	return httpx.NewError(httpx.ErrInvalidCredentials, "Invalid credentials")
}

func invalidRefresh() error {
	return httpx.NewError(httpx.ErrInvalidToken, "Invalid refresh token")
}

func deactivated() error {
	return httpx.NewError(httpx.ErrAccountDeactivated, "Account is deactivated")
}

// checkPassword enforces the length policy on a new password.
func checkPassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return weakPassword(field)
	}
	if len(password) > MaxPasswordBytes {
		return longPassword(field)
	}
	return nil
}

func longPassword(field string) error {
	return &httpx.Error{
		Kind:    httpx.ErrValidation,
		Message: fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes),
		Fields:  map[string]string{field: fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)},
	}
}

func weakPassword(field string) error {
	return &httpx.Error{
		Kind:    httpx.ErrValidation,
		Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		Fields:  map[string]string{field: fmt.Sprintf("must be at least %d characters", MinPasswordLength)},
	}
}

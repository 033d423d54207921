package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// Token lifetimes.
const (
	DefaultAccessTokenTTL = 7 * 24 * time.Hour
	RefreshTokenTTL       = 30 * 24 * time.Hour
	VerificationTokenTTL  = 24 * time.Hour
)

// TokenType distinguishes tokens signed with the same secret.
type TokenType string

const (
	TokenAccess       TokenType = "access"
	TokenRefresh      TokenType = "refresh"
	TokenVerification TokenType = "verify"
)

// Claims are the JWT claims minted by TokenIssuer. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"typ"`
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	Issuer        string
	Now           func() time.Time
}

// TokenIssuer mints and verifies signed, time-bound tokens. Access and refresh
// tokens use distinct secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenIssuer validates cfg and builds a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("auth: token secrets must be provided")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     ttl,
		issuer:        cfg.Issuer,
		now:           now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration {
	return ti.accessTTL
}

// IssueAccess mints an access token for userID.
func (ti *TokenIssuer) IssueAccess(userID string) (string, error) {
	return ti.issue(TokenAccess, ti.accessSecret, ti.accessTTL, userID)
}

// IssueRefresh mints a refresh token for userID.
func (ti *TokenIssuer) IssueRefresh(userID string) (string, error) {
	return ti.issue(TokenRefresh, ti.refreshSecret, RefreshTokenTTL, userID)
}

// IssueVerification mints an email verification token for userID.
func (ti *TokenIssuer) IssueVerification(userID string) (string, error) {
	return ti.issue(TokenVerification, ti.accessSecret, VerificationTokenTTL, userID)
}

// VerifyAccess validates an access token.
func (ti *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return ti.verify(token, ti.accessSecret, TokenAccess)
}

// VerifyRefresh validates a refresh token.
func (ti *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return ti.verify(token, ti.refreshSecret, TokenRefresh)
}

// VerifyVerification validates an email verification token.
func (ti *TokenIssuer) VerifyVerification(token string) (*Claims, error) {
	return ti.verify(token, ti.accessSecret, TokenVerification)
}

func (ti *TokenIssuer) issue(typ TokenType, secret []byte, ttl time.Duration, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("auth: token subject required")
	}
	now := ti.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    ti.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (ti *TokenIssuer) verify(token string, secret []byte, typ TokenType) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, httpx.NewError(httpx.ErrTokenExpired, "Token expired")
		}
		return nil, httpx.NewError(httpx.ErrInvalidToken, "Invalid token")
	}
	if !parsed.Valid || claims.Type != typ || claims.Subject == "" {
		return nil, httpx.NewError(httpx.ErrInvalidToken, "Invalid token")
	}
	return claims, nil
}

package auth

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Interests is the closed set of interest tags a profile may carry.
var Interests = []string{
	"wildlife",
	"marine",
	"forests",
	"climate",
	"birds",
	"volunteering",
	"donations",
	"education",
}

// MinPasswordLength is the minimum accepted length of a plaintext password.
const MinPasswordLength = 8

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const MaxPasswordBytes = 72

// User represents an account in the credential store. PasswordHash is only
// populated by credential lookups.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Bio          string
	Avatar       string
	Interests    []string
	Newsletter   bool
	IsActive     bool
	IsVerified   bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}

// PublicProfile is the projection of a User that is safe to return to clients.
type PublicProfile struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	FullName   string     `json:"fullName"`
	Phone      string     `json:"phone,omitempty"`
	Bio        string     `json:"bio,omitempty"`
	Avatar     string     `json:"avatar,omitempty"`
	Interests  []string   `json:"interests"`
	Newsletter bool       `json:"newsletter"`
	IsActive   bool       `json:"isActive"`
	IsVerified bool       `json:"isVerified"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
}

// NewPublicProfile projects u without its credential.
func NewPublicProfile(u User) PublicProfile {
	interests := slices.Clone(u.Interests)
	if interests == nil {
		interests = []string{}
	}
	return PublicProfile{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Phone:      u.Phone,
		Bio:        u.Bio,
		Avatar:     u.Avatar,
		Interests:  interests,
		Newsletter: u.Newsletter,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
		LastLogin:  u.LastLogin,
	}
}

// ProfileUpdate lists the only fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Bio        *string
	Avatar     *string
	Interests  *[]string
	Newsletter *bool
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.Bio == nil &&
		p.Avatar == nil && p.Interests == nil && p.Newsletter == nil
}

// Apply returns a copy of u with the update applied.
func (p ProfileUpdate) Apply(u User) User {
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Bio != nil {
		u.Bio = strings.TrimSpace(*p.Bio)
	}
	if p.Avatar != nil {
		u.Avatar = strings.TrimSpace(*p.Avatar)
	}
	if p.Interests != nil {
		u.Interests = normalizeInterests(*p.Interests)
	}
	if p.Newsletter != nil {
		u.Newsletter = *p.Newsletter
	}
	return u
}

// NormalizeEmail folds an email address for case-insensitive comparison.
// Stored emails are always in this form; lookups fold their input and compare
// exactly.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// FoldUsername folds a username for case-insensitive comparison. The stored
// username keeps the casing the user registered with.
func FoldUsername(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

func normalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func withoutHash(u User) User {
	u.PasswordHash = ""
	return u
}

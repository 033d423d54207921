package auth

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

type registerRequest struct {
	FirstName  string   `json:"firstName" validate:"required,max=50"`
	LastName   string   `json:"lastName" validate:"required,max=50"`
	Username   string   `json:"username" validate:"required,min=3,max=30,username"`
	Email      string   `json:"email" validate:"required,email,max=254"`
	Password   string   `json:"password" validate:"required,min=8,max=72"`
	Phone      string   `json:"phone" validate:"omitempty,max=20"`
	Interests  []string `json:"interests" validate:"omitempty,max=8,dive,oneof=wildlife marine forests climate birds volunteering donations education"`
	Newsletter bool     `json:"newsletter"`
}

func (r registerRequest) input() RegisterInput {
	return RegisterInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Username:   r.Username,
		Email:      r.Email,
		Password:   r.Password,
		Phone:      r.Phone,
		Interests:  r.Interests,
		Newsletter: r.Newsletter,
	}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// updateProfileRequest holds the allow-listed profile fields. Anything else in
// the body is ignored by the decoder.
type updateProfileRequest struct {
	FirstName  *string   `json:"firstName" validate:"omitnil,min=1,max=50"`
	LastName   *string   `json:"lastName" validate:"omitnil,min=1,max=50"`
	Phone      *string   `json:"phone" validate:"omitnil,max=20"`
	Bio        *string   `json:"bio" validate:"omitnil,max=500"`
	Avatar     *string   `json:"avatar" validate:"omitempty,url,max=2048"`
	Interests  *[]string `json:"interests" validate:"omitnil,max=8,dive,oneof=wildlife marine forests climate birds volunteering donations education"`
	Newsletter *bool     `json:"newsletter"`
}

func (r updateProfileRequest) update() ProfileUpdate {
	return ProfileUpdate{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Phone:      r.Phone,
		Bio:        r.Bio,
		Avatar:     r.Avatar,
		Interests:  r.Interests,
		Newsletter: r.Newsletter,
	}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

package users

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SubscriptionTier is the billing plan attached to a FlowCraft account.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Profile is the snapshot of the authenticated principal returned by GET /auth/profile.
// The client treats it as opaque beyond checking that one is present.
type Profile struct {
	ID               string           `json:"id"`
	Email            string           `json:"email"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	IsActive         bool             `json:"is_active"`
	IsVerified       bool             `json:"is_verified"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	CreatedAt        time.Time        `json:"created_at"`
}

func (p *Profile) FullName() string {
	return p.FirstName + " " + p.LastName
}

// ProfileUpdate is the body of PUT /auth/profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// User is the account record held by the development auth backend.
type User struct {
	ID               string           `json:"id,omitempty"`
	Email            string           `json:"email,omitempty"`
	PasswordHash     string           `json:"-"` // never serialize
	FirstName        string           `json:"first_name,omitempty"`
	LastName         string           `json:"last_name,omitempty"`
	Active           bool             `json:"is_active,omitempty"`
	Verified         bool             `json:"is_verified,omitempty"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier,omitempty"`
	CreatedAt        time.Time        `json:"created_at,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at,omitempty"`
}

// Profile converts the stored account to its wire representation.
func (u *User) Profile() *Profile {
	tier := u.SubscriptionTier
	if tier == "" {
		tier = TierFree
	}
	return &Profile{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		IsActive:         u.Active,
		IsVerified:       u.Verified,
		SubscriptionTier: tier,
		CreatedAt:        u.CreatedAt,
	}
}

// ValidatePasswordStrength checks the password is at least 8 characters long.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

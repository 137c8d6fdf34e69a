package domain

import (
	"context"
	"time"
)

// ProviderFacebook is the only third-party login provider.
const ProviderFacebook = "facebook"

// OAuth links a User to an account at a third-party login provider.
// One provider account belongs to at most one user.
type OAuth struct {
	ID             int    `json:"id"`
	UserID         int    `json:"user_id" gorm:"notNull;index"`
	Provider       string `json:"provider" gorm:"notNull;uniqueIndex:idx_provider_user"`
	ProviderUserID string `json:"provider_user_id" gorm:"notNull;uniqueIndex:idx_provider_user"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderProfile is what a provider tells us about the person logging in.
type ProviderProfile struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// OAuthService is a set of methods to log users in through a third-party provider.
type OAuthService interface {
	Login(ctx context.Context, provider string, profile *ProviderProfile) (*User, error)
}

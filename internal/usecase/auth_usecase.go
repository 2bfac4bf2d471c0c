// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"forum/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// LoginInput carries an identity that a provider has already vouched for.
type LoginInput struct {
	Identity *entity.ExternalIdentity
}

// ProviderLoginInput carries a raw provider credential, such as a Google ID token.
type ProviderLoginInput struct {
	Provider   entity.ProviderType
	Credential string
}

// ReissueInput carries the refresh token presented by the client.
type ReissueInput struct {
	RefreshToken string
}

// LogoutInput carries whatever the request could tell about the caller.
// Every field is optional.
type LogoutInput struct {
	Principal    *entity.Principal
	AccessToken  string
	RefreshToken string
}

// --- Output DTOs ---

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionOutput is returned by a successful login or reissue.
type SessionOutput struct {
	Tokens  TokenPair
	Account *entity.Account
	Cookies []*entity.TokenCookie
}

// LogoutOutput always carries the cookie-clearing directives.
// AccountID is uuid.Nil when the caller could not be identified.
type LogoutOutput struct {
	AccountID uuid.UUID
	Cookies   []*entity.TokenCookie
}

// AuthUsecase defines the token lifecycle operations.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	// Login binds the identity to an account and starts a new session, replacing any earlier one.
	Login(ctx context.Context, input *LoginInput) (*SessionOutput, error)

	// LoginWithProvider verifies a provider credential and then performs Login.
	LoginWithProvider(ctx context.Context, input *ProviderLoginInput) (*SessionOutput, error)

	// Reissue rotates a refresh token into a new pair. The presented token stops working.
	Reissue(ctx context.Context, input *ReissueInput) (*SessionOutput, error)

	// Logout ends the caller's session when one can be identified. It never fails.
	Logout(ctx context.Context, input *LogoutInput) *LogoutOutput

	// Authenticate turns a valid access token into a Principal.
	Authenticate(ctx context.Context, accessToken string) (*entity.Principal, error)

	// ClearCookies returns the directives that remove both token cookies.
	ClearCookies() []*entity.TokenCookie
}

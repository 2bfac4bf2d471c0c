package service

import (
	"context"

	"forum/internal/domain/entity"
)

// OAuthAuthService defines the interface for OAuth authentication operations.
// It verifies a credential issued by the provider and normalizes the result.
type OAuthAuthService interface {
	// VerifyIDToken verifies an OAuth ID token and returns the normalized identity.
	VerifyIDToken(ctx context.Context, idToken string) (*entity.ExternalIdentity, error)

	// GetProvider returns the OAuth provider type
	GetProvider() entity.ProviderType
}

// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProviderType names an upstream identity provider.
type ProviderType string

const (
	// ProviderTypeGoogle identifies Google Sign-In.
	ProviderTypeGoogle ProviderType = "google"
	// ProviderTypeGitHub identifies GitHub OAuth.
	ProviderTypeGitHub ProviderType = "github"
)

// String returns the string representation of the ProviderType.
func (p ProviderType) String() string {
	return string(p)
}

// ExternalIdentity is the normalized profile an identity provider hands over once its own login handshake completes.
type ExternalIdentity struct {
	Provider   ProviderType // Which provider vouched for this identity.
	ProviderID string       // The user's stable ID at the provider (e.g., Google's 'sub' claim).
	Email      string       // Email reported by the provider, used for merge-by-email.
	Name       string       // Display name reported by the provider.
	AvatarURL  string       // Profile picture URL, may be empty.
}

// RefreshToken is the single live refresh credential of an account.
// An account holds zero or one of these; a new login or reissue replaces it in place.
type RefreshToken struct {
	AccountID uuid.UUID // Owner of the token and the record's unique key.
	Token     string    // The raw signed token value. Stores persist only its hash.
	ExpiresAt time.Time // The instant the record stops being usable.
	CreatedAt time.Time // When the record was first created for this account.
	UpdatedAt time.Time // When the token value was last replaced.
}

// IsExpired reports whether the record is no longer usable at now. Expiry is strict: expiresAt == now is expired.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account is the internal identity of a forum member.
// It is created on the first external login for an unknown email and never deleted by the auth core.
type Account struct {
	ID                 uuid.UUID               // Stable for the lifetime of the account; the subject of every token.
	Email              string                  // Unique across accounts.
	Name               string                  // Display name, refreshed from the provider on each login.
	Handle             string                  // Unique display handle such as "alice#4821".
	AvatarURL          string                  // Profile picture, refreshed from the provider on each login.
	Role               Role                    // Single role tag.
	ExternalIdentities map[ProviderType]string // Provider name to provider user ID.
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Roles returns the account's role as a slice for token claims.
func (a *Account) Roles() Roles {
	if a.Role == "" {
		return Roles{RoleUser}
	}

	return Roles{a.Role}
}

// LinkProvider records the provider link, replacing an earlier ID for the same provider.
func (a *Account) LinkProvider(provider ProviderType, providerID string) {
	if a.ExternalIdentities == nil {
		a.ExternalIdentities = make(map[ProviderType]string)
	}
	a.ExternalIdentities[provider] = providerID
}

// ApplyProfile copies the denormalized profile fields from a fresh provider login.
func (a *Account) ApplyProfile(identity *ExternalIdentity) {
	if identity.Name != "" {
		a.Name = identity.Name
	}
	if identity.AvatarURL != "" {
		a.AvatarURL = identity.AvatarURL
	}
}

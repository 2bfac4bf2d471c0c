package entity

import "github.com/google/uuid"

// Principal is the authenticated caller derived from a valid access token.
type Principal struct {
	AccountID uuid.UUID
	Email     string
	Roles     Roles
}

// HasRole reports whether the principal carries role.
func (p *Principal) HasRole(role Role) bool {
	return p.Roles.Contains(role)
}

package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Decode failures. An expired token is otherwise well formed and correctly signed.
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// TokenSubject is the identity a token is minted for.
// Email, Name and Roles are only encoded into access tokens.
type TokenSubject struct {
	AccountID uuid.UUID
	Email     string
	Name      string
	Roles     []string
}

// Claims are the decoded contents of a token.
type Claims struct {
	Subject   uuid.UUID
	Kind      TokenKind
	Roles     []string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is a freshly signed token and its absolute expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService encodes and decodes signed tokens. It performs no I/O.
type TokenService interface {
	// Issue signs a token of the given kind for subject, valid for ttl.
	Issue(subject *TokenSubject, kind TokenKind, ttl time.Duration) (*IssuedToken, error)

	// Decode verifies the signature and expiry of a token.
	// It fails with ErrTokenExpired, ErrTokenMalformed or ErrTokenSignatureInvalid.
	Decode(token string) (*Claims, error)

	// DecodeIgnoringExpiry verifies the signature but accepts expired tokens.
	// Only cleanup paths that need the subject of a dead token may use it.
	DecodeIgnoringExpiry(token string) (*Claims, error)

	// AccessTTL returns the configured lifetime of access tokens.
	AccessTTL() time.Duration

	// RefreshTTL returns the configured lifetime of refresh tokens.
	RefreshTTL() time.Duration
}

// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"time"

	"forum/config"
	"forum/internal/domain/service"
	"forum/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenClaims is the wire form of a token. Refresh tokens leave the profile fields empty.
type tokenClaims struct {
	Kind  service.TokenKind `json:"kind"`
	Roles []string          `json:"roles,omitempty"`
	Email string            `json:"email,omitempty"`
	Name  string            `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// jwtService is a concrete implementation of the TokenService interface using HMAC-signed JWTs.
type jwtService struct {
	signingKey []byte           // Process-wide HMAC key, never mutated after construction.
	accessTTL  time.Duration    // Time-to-live for access tokens.
	refreshTTL time.Duration    // Time-to-live for refresh tokens.
	clockSkew  time.Duration    // Leeway applied when checking expiry.
	now        func() time.Time // Clock, replaceable in tests.
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	return newJWTService(cfg, time.Now)
}

func newJWTService(cfg *config.Config, now func() time.Time) (*jwtService, error) {
	if cfg.Token == nil {
		return nil, errors.New("token config must be provided")
	}

	key, err := cfg.Token.DecodedSigningKey()
	if err != nil {
		return nil, err
	}
	if cfg.Token.AccessTTLSeconds <= 0 || cfg.Token.RefreshTTLSeconds <= 0 {
		return nil, errors.New("token ttl values must be positive")
	}

	return &jwtService{
		signingKey: key,
		accessTTL:  cfg.Token.AccessTTL(),
		refreshTTL: cfg.Token.RefreshTTL(),
		clockSkew:  cfg.Token.ClockSkew(),
		now:        now,
	}, nil
}

// Issue signs a token of the given kind.
func (s *jwtService) Issue(subject *service.TokenSubject, kind service.TokenKind, ttl time.Duration) (*service.IssuedToken, error) {
	if subject == nil || subject.AccountID == uuid.Nil {
		return nil, errors.New("token subject must be provided")
	}
	if ttl <= 0 {
		return nil, errors.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := s.now()
	claims := &tokenClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	switch kind {
	case service.TokenKindAccess:
		claims.Roles = subject.Roles
		claims.Email = subject.Email
		claims.Name = subject.Name
	case service.TokenKindRefresh:
		// subject only
	default:
		return nil, errors.Errorf("unknown token kind: %s", kind)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign token")
	}

	return &service.IssuedToken{
		Value:     signed,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Decode verifies signature and expiry.
func (s *jwtService) Decode(token string) (*service.Claims, error) {
	return s.decode(token, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(s.now),
	))
}

// DecodeIgnoringExpiry verifies the signature only.
func (s *jwtService) DecodeIgnoringExpiry(token string) (*service.Claims, error) {
	return s.decode(token, jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	))
}

// AccessTTL returns the configured duration for access tokens.
func (s *jwtService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the configured duration for refresh tokens.
func (s *jwtService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) decode(token string, parser *jwt.Parser) (*service.Claims, error) {
	claims := &tokenClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return s.signingKey, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	return toDomainClaims(claims)
}

// classifyParseError collapses jwt errors onto the three decode failures.
// The parser verifies the signature before claims, so an expired error implies a valid signature.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(service.ErrTokenExpired, err.Error())
	case errors.IsAny(err, jwt.ErrTokenSignatureInvalid, jwt.ErrTokenUnverifiable, jwt.ErrSignatureInvalid):
		return errors.Wrap(service.ErrTokenSignatureInvalid, err.Error())
	default:
		return errors.Wrap(service.ErrTokenMalformed, err.Error())
	}
}

func toDomainClaims(claims *tokenClaims) (*service.Claims, error) {
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(service.ErrTokenMalformed, "subject is not an account id")
	}
	if claims.Kind != service.TokenKindAccess && claims.Kind != service.TokenKindRefresh {
		return nil, errors.Wrapf(service.ErrTokenMalformed, "unknown token kind %q", claims.Kind)
	}
	if claims.ExpiresAt == nil {
		return nil, errors.Wrap(service.ErrTokenMalformed, "missing exp")
	}

	result := &service.Claims{
		Subject:   subject,
		Kind:      claims.Kind,
		Roles:     claims.Roles,
		Email:     claims.Email,
		Name:      claims.Name,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}

	return result, nil
}

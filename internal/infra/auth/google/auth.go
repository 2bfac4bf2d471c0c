package google

import (
	"context"
	"log/slog"
	"strings"

	"forum/config"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/service"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
)

var validIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// validateFunc checks an ID token's signature, expiry and audience.
type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// AuthServiceImpl implements service.OAuthAuthService for Google Sign-In ID tokens.
type AuthServiceImpl struct {
	clientID string
	validate validateFunc
	logger   *slog.Logger
}

// NewAuthService creates a new Google AuthService
func NewAuthService(cfg *config.Config, logger *slog.Logger) service.OAuthAuthService {
	return &AuthServiceImpl{
		clientID: cfg.GoogleOAuth.ClientID,
		validate: idtoken.Validate,
		logger:   logger,
	}
}

// VerifyIDToken implements service.OAuthAuthService interface
func (s *AuthServiceImpl) VerifyIDToken(ctx context.Context, idToken string) (*entity.ExternalIdentity, error) {
	if s.clientID == "" {
		return nil, errors.New("google client id is not configured")
	}

	payload, err := s.validate(ctx, idToken, s.clientID)
	if err != nil {
		s.logger.Warn("Google ID token rejected", slog.Any("error", err))

		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("invalid ID token")
	}

	identity, err := identityFromPayload(payload)
	if err != nil {
		s.logger.Warn("Google ID token claims rejected", slog.Any("error", err))

		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage(err.Error())
	}

	s.logger.Debug("Google ID token verified", slog.String("provider_id", identity.ProviderID))

	return identity, nil
}

// GetProvider returns the OAuth provider type
func (s *AuthServiceImpl) GetProvider() entity.ProviderType {
	return entity.ProviderTypeGoogle
}

func identityFromPayload(payload *idtoken.Payload) (*entity.ExternalIdentity, error) {
	if !validIssuers[payload.Issuer] {
		return nil, errors.Errorf("invalid issuer: %s", payload.Issuer)
	}
	if payload.Subject == "" {
		return nil, errors.New("missing subject")
	}

	email := stringClaim(payload.Claims, "email")
	if email == "" {
		return nil, errors.New("missing email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); !ok || !verified {
		return nil, errors.New("email not verified")
	}

	return &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGoogle,
		ProviderID: payload.Subject,
		Email:      strings.ToLower(email),
		Name:       stringClaim(payload.Claims, "name"),
		AvatarURL:  stringClaim(payload.Claims, "picture"),
	}, nil
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)

	return strings.TrimSpace(value)
}

// Package github signs members in with a GitHub OAuth authorization code.
package github

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"forum/config"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/domain/service"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultAPIURL = "https://api.github.com"

var scopes = []string{"read:user", "user:email"}

type user struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type email struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// AuthServiceImpl implements service.OAuthAuthService by exchanging the code and reading the GitHub user API.
type AuthServiceImpl struct {
	oauth  *oauth2.Config
	apiURL string
	logger *slog.Logger
}

// NewAuthService creates a new GitHub AuthService
func NewAuthService(cfg *config.Config, logger *slog.Logger) service.OAuthAuthService {
	return newAuthService(&oauth2.Config{
		ClientID:     cfg.GitHubOAuth.ClientID,
		ClientSecret: cfg.GitHubOAuth.ClientSecret,
		RedirectURL:  cfg.GitHubOAuth.RedirectURL,
		Endpoint:     github.Endpoint,
		Scopes:       scopes,
	}, defaultAPIURL, logger)
}

func newAuthService(oauthCfg *oauth2.Config, apiURL string, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		oauth:  oauthCfg,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		logger: logger,
	}
}

// VerifyIDToken exchanges the authorization code and resolves the account's primary verified email.
func (s *AuthServiceImpl) VerifyIDToken(ctx context.Context, code string) (*entity.ExternalIdentity, error) {
	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" {
		return nil, errors.New("github oauth app is not configured")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("GitHub code exchange rejected", slog.Any("error", err))

		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("invalid authorization code")
	}

	client := s.oauth.Client(ctx, token)

	var profile user
	if err := s.get(ctx, client, "/user", &profile); err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("missing user id")
	}

	var emails []email
	if err := s.get(ctx, client, "/user/emails", &emails); err != nil {
		return nil, err
	}

	address := primaryVerified(emails)
	if address == "" {
		return nil, domainerrors.ErrOAuthTokenInvalid.WrapMessage("no verified primary email")
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = profile.Login
	}

	identity := &entity.ExternalIdentity{
		Provider:   entity.ProviderTypeGitHub,
		ProviderID: strconv.FormatInt(profile.ID, 10),
		Email:      strings.ToLower(address),
		Name:       name,
		AvatarURL:  profile.AvatarURL,
	}

	s.logger.Debug("GitHub identity verified", slog.String("provider_id", identity.ProviderID))

	return identity, nil
}

// GetProvider returns the OAuth provider type
func (s *AuthServiceImpl) GetProvider() entity.ProviderType {
	return entity.ProviderTypeGitHub
}

// get decodes a GitHub API response. A 401 or 403 means the token was not accepted.
func (s *AuthServiceImpl) get(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build github request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "github %s request failed", path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		s.logger.Warn("GitHub rejected access token", slog.String("path", path), slog.Int("status", resp.StatusCode))

		return domainerrors.ErrOAuthTokenInvalid.WrapMessage("github rejected the access token")
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("github %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode github %s", path)
	}

	return nil
}

func primaryVerified(emails []email) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.TrimSpace(e.Email)
		}
	}

	return ""
}

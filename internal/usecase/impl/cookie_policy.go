package impl

import (
	"time"

	"forum/config"
	"forum/internal/domain/entity"
	"forum/internal/usecase"
)

// cookiePolicy turns token pairs into cookie directives. Rendering them is the transport's job.
type cookiePolicy struct {
	accessName  string
	refreshName string
	accessPath  string
	refreshPath string
	secure      bool
}

func newCookiePolicy(cfg *config.CookieConfig) *cookiePolicy {
	resolved := cfg.Resolved()

	return &cookiePolicy{
		accessName:  resolved.AccessName,
		refreshName: resolved.RefreshName,
		accessPath:  resolved.AccessPath,
		refreshPath: resolved.RefreshPath,
		secure:      resolved.IsSecure(),
	}
}

// sessionCookies sets both cookies with a max-age equal to the token lifetime.
func (p *cookiePolicy) sessionCookies(pair *usecase.TokenPair, accessTTL, refreshTTL time.Duration) []*entity.TokenCookie {
	return []*entity.TokenCookie{
		p.cookie(p.accessName, pair.AccessToken, p.accessPath, accessTTL),
		p.cookie(p.refreshName, pair.RefreshToken, p.refreshPath, refreshTTL),
	}
}

// clearCookies removes both cookies on the same paths they were set on.
func (p *cookiePolicy) clearCookies() []*entity.TokenCookie {
	return []*entity.TokenCookie{
		p.cookie(p.accessName, "", p.accessPath, 0),
		p.cookie(p.refreshName, "", p.refreshPath, 0),
	}
}

func (p *cookiePolicy) cookie(name, value, path string, ttl time.Duration) *entity.TokenCookie {
	return &entity.TokenCookie{
		Name:          name,
		Value:         value,
		MaxAgeSeconds: int(ttl / time.Second),
		Path:          path,
		HTTPOnly:      true,
		Secure:        p.secure,
	}
}

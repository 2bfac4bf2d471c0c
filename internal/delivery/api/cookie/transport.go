// Package cookie renders token cookie directives onto echo responses and reads tokens back from requests.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"forum/config"
	"forum/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

const bearerPrefix = "bearer "

// Transport is the HTTP side of token delivery. The auth core decides what to set; Transport decides how.
type Transport struct {
	accessName  string
	refreshName string
	domain      string
	sameSite    http.SameSite
}

// NewTransport is the constructor for Transport.
func NewTransport(cfg *config.Config) *Transport {
	cookieCfg := cfg.Cookie.Resolved()

	return &Transport{
		accessName:  cookieCfg.AccessName,
		refreshName: cookieCfg.RefreshName,
		domain:      cookieCfg.Domain,
		sameSite:    cookieCfg.SameSiteMode(),
	}
}

// Write sets or clears one cookie per directive.
func (t *Transport) Write(c echo.Context, directives []*entity.TokenCookie) {
	for _, directive := range directives {
		cookie := &http.Cookie{
			Name:     directive.Name,
			Value:    directive.Value,
			Path:     directive.Path,
			Domain:   t.domain,
			MaxAge:   directive.MaxAgeSeconds,
			HttpOnly: directive.HTTPOnly,
			Secure:   directive.Secure,
			SameSite: t.sameSite,
		}
		if directive.IsClear() {
			cookie.Value = ""
			cookie.MaxAge = -1
			cookie.Expires = time.Unix(0, 0)
		}
		c.SetCookie(cookie)
	}
}

// AccessToken reads the Bearer header, then the access cookie.
func (t *Transport) AccessToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}

	return t.read(c, t.accessName)
}

// RefreshToken reads the refresh cookie.
func (t *Transport) RefreshToken(c echo.Context) string {
	return t.read(c, t.refreshName)
}

func (t *Transport) read(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}

	return cookie.Value
}

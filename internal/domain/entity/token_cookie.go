package entity

// TokenCookie is a transport-neutral instruction to set or clear one token cookie.
type TokenCookie struct {
	Name          string
	Value         string
	MaxAgeSeconds int // 0 clears the cookie
	Path          string
	HTTPOnly      bool
	Secure        bool
}

// IsClear reports whether the directive removes the cookie.
func (c *TokenCookie) IsClear() bool {
	return c.MaxAgeSeconds <= 0
}

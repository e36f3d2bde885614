package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// DefaultContextKey is the locals key request middleware stores verified
	// claims under.
	DefaultContextKey = "user"
	// DefaultLockoutThreshold is the number of consecutive failed logins
	// after which password checks stop counting.
	DefaultLockoutThreshold = 5
	// DefaultAccessTokenTTL keeps access tokens short lived.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL bounds how long a session survives without a login.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// DefaultTokenLookup reads the bearer token from the Authorization header.
	DefaultTokenLookup = "header:Authorization"
	// DefaultAuthScheme is the Authorization header scheme.
	DefaultAuthScheme = "Bearer"
	// DefaultRefreshCookieName names the HTTP-only refresh token cookie.
	DefaultRefreshCookieName = "refresh_token"

	minSigningKeyLength = 32
)

// HardenedConfig is a concrete Config with validation and safe defaults.
// Zero-value fields fall back to defaults at read time, only the signing key
// is mandatory.
type HardenedConfig struct {
	SigningKey        string
	SigningMethod     string
	ContextKey        string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	LockoutThreshold  int
	TokenLookup       string
	AuthScheme        string
	Issuer            string
	Audience          []string
	RefreshCookieName string
}

// Verify interface compliance
var _ Config = (*HardenedConfig)(nil)

// Validate rejects configurations that would weaken token security. Signing
// keys shorter than 32 bytes are refused outright rather than warned about.
func (c *HardenedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SigningKey,
			validation.Required,
			validation.Length(minSigningKeyLength, 0),
		),
		validation.Field(&c.AccessTokenTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.RefreshTokenTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.LockoutThreshold, validation.Min(0)),
	)
}

func (c *HardenedConfig) GetSigningKey() string { return c.SigningKey }

func (c *HardenedConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

func (c *HardenedConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return DefaultContextKey
	}
	return c.ContextKey
}

func (c *HardenedConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c *HardenedConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c *HardenedConfig) GetLockoutThreshold() int {
	if c.LockoutThreshold <= 0 {
		return DefaultLockoutThreshold
	}
	return c.LockoutThreshold
}

func (c *HardenedConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return DefaultTokenLookup
	}
	return c.TokenLookup
}

func (c *HardenedConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return c.AuthScheme
}

func (c *HardenedConfig) GetIssuer() string { return c.Issuer }

func (c *HardenedConfig) GetAudience() []string { return c.Audience }

func (c *HardenedConfig) GetRefreshCookieName() string {
	if c.RefreshCookieName == "" {
		return DefaultRefreshCookieName
	}
	return c.RefreshCookieName
}

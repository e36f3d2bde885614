package tokenware

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SigningKey holds a verification key pinned to an algorithm.
type SigningKey struct {
	JWTAlg string
	Key    any
}

// JWKSConfig configures a remote JWK Set backed validator for tokens issued
// by an external identity provider.
type JWKSConfig struct {
	// JWKSetURLs are fetched and refreshed in the background.
	JWKSetURLs []string
	// GivenKeys are static keys checked alongside the remote sets, keyed by kid.
	GivenKeys map[string]SigningKey
	// Issuer, when set, must match the token's iss claim.
	Issuer string
	// Audience, when set, must be present in the token's aud claim.
	Audience string
}

// JWKSValidator validates externally issued JWTs against one or more JWK
// Sets. It satisfies TokenValidator, so it can serve as the middleware's
// validator directly or as one arm of a composite validator.
type JWKSValidator struct {
	keyFunc jwt.Keyfunc
	issuer  string
	aud     string
}

// NewJWKSValidator builds the validator and starts background refresh of the
// configured JWK Set URLs.
func NewJWKSValidator(cfg JWKSConfig) (*JWKSValidator, error) {
	if len(cfg.JWKSetURLs) == 0 && len(cfg.GivenKeys) == 0 {
		return nil, errors.New("at least one JWK Set URL or given key is required")
	}

	var givenKeys map[string]keyfunc.GivenKey
	if len(cfg.GivenKeys) > 0 {
		givenKeys = make(map[string]keyfunc.GivenKey, len(cfg.GivenKeys))
		for kid, key := range cfg.GivenKeys {
			givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
	}

	var kf jwt.Keyfunc
	if len(cfg.JWKSetURLs) > 0 {
		multi, err := multiKeyfunc(givenKeys, cfg.JWKSetURLs)
		if err != nil {
			return nil, err
		}
		kf = multi
	} else {
		kf = keyfunc.NewGiven(givenKeys).Keyfunc
	}

	return &JWKSValidator{
		keyFunc: kf,
		issuer:  cfg.Issuer,
		aud:     cfg.Audience,
	}, nil
}

// Validate satisfies the TokenValidator interface.
func (v *JWKSValidator) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if v.aud != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.aud))
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, v.keyFunc, parserOptions...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrJWTMissingOrMalformed
	}

	return externalClaims{claims: claims}, nil
}

func multiKeyfunc(givenKeys map[string]keyfunc.GivenKey, jwtSetUrls []string) (jwt.Keyfunc, error) {
	opts := keyfuncOptions(givenKeys)
	m := make(map[string]keyfunc.Options, len(jwtSetUrls))
	for _, url := range jwtSetUrls {
		m[url] = opts
	}
	mopts := keyfunc.MultipleOptions{
		KeySelector: keyfunc.KeySelectorFirst,
	}
	multi, err := keyfunc.GetMultiple(m, mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT URLs: %w", err)
	}
	return multi.Keyfunc, nil
}

func keyfuncOptions(givenKeys map[string]keyfunc.GivenKey) keyfunc.Options {
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

// externalClaims adapts a verified map claim set to the AuthClaims surface.
type externalClaims struct {
	claims jwt.MapClaims
}

func (c externalClaims) Subject() string {
	sub, _ := c.claims.GetSubject()
	return sub
}

func (c externalClaims) UserID() string {
	if uid, ok := c.claims["uid"].(string); ok && uid != "" {
		return uid
	}
	return c.Subject()
}

func (c externalClaims) Role() string {
	role, _ := c.claims["role"].(string)
	return role
}

func (c externalClaims) TokenID() string {
	jti, _ := c.claims["jti"].(string)
	return jti
}

func (c externalClaims) Expires() time.Time {
	exp, err := c.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func (c externalClaims) IssuedAt() time.Time {
	iat, err := c.claims.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}
	}
	return iat.Time
}

func (c externalClaims) HasRole(role string) bool {
	return c.Role() == role
}

func (c externalClaims) IsAtLeast(minRole string) bool {
	hierarchy := map[string]int{
		"guest": 0,
		"user":  1,
		"admin": 2,
	}

	current, ok := hierarchy[c.Role()]
	if !ok {
		return false
	}

	min, ok := hierarchy[minRole]
	if !ok {
		return false
	}

	return current >= min
}

var _ TokenValidator = (*JWKSValidator)(nil)
var _ AuthClaims = externalClaims{}

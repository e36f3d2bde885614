package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-apiauth/middleware/tokenware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteAuthenticator binds the authenticator and credential store to the
// request pipeline: it validates bearer tokens, resolves the acting
// principal, and manages the refresh token cookie.
type RouteAuthenticator struct {
	auth             Authenticator
	store            CredentialStore
	cfg              Config
	validator        TokenValidator
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, store CredentialStore, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		auth:      auther,
		store:     store,
		cfg:       cfg,
		validator: auther.TokenService(),
		Logger:    defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

// WithTokenValidator swaps the validator used by ProtectedRoute, for
// deployments that accept externally issued tokens.
func (a *RouteAuthenticator) WithTokenValidator(validator TokenValidator) *RouteAuthenticator {
	if validator != nil {
		a.validator = validator
	}
	return a
}

// ProtectedRoute validates the bearer token and resolves the principal. A
// missing or invalid token never fails the request here: the middleware
// degrades to anonymous and the authorization gate produces the denial.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return tokenware.New(tokenware.Config{
		TokenValidator:  validatorAdapter{inner: a.validator},
		ContextKey:      a.cfg.GetContextKey(),
		TokenLookup:     a.cfg.GetTokenLookup(),
		AuthScheme:      a.cfg.GetAuthScheme(),
		ContextEnricher: a.resolvePrincipal,
	})
}

// StrictRoute rejects at the transport instead of degrading to anonymous.
// Used for endpoints where a 401 body beats an anonymous passthrough.
func (a *RouteAuthenticator) StrictRoute() router.MiddlewareFunc {
	return tokenware.New(tokenware.Config{
		TokenValidator:  validatorAdapter{inner: a.validator},
		ContextKey:      a.cfg.GetContextKey(),
		TokenLookup:     a.cfg.GetTokenLookup(),
		AuthScheme:      a.cfg.GetAuthScheme(),
		ContextEnricher: a.resolvePrincipal,
		ErrorHandler:    a.MakeClientRouteAuthErrorHandler(false),
	})
}

// resolvePrincipal reloads the account referenced by the verified claims and
// attaches it to the standard context. The record is always re-read so role
// and active-state changes take effect within a token's lifetime. Lookup
// failures leave the request anonymous rather than erroring.
func (a *RouteAuthenticator) resolvePrincipal(c context.Context, claims tokenware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	user, err := a.loadUser(c, authClaims)
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			a.Logger.Error("principal lookup error: %v", err)
		}
		return c
	}

	principal := NewPrincipal(user, authClaims)

	return WithPrincipal(WithClaimsContext(c, authClaims), principal)
}

func (a *RouteAuthenticator) loadUser(ctx context.Context, claims AuthClaims) (*User, error) {
	if id, err := uuid.Parse(claims.UserID()); err == nil {
		return a.store.GetByID(ctx, id)
	}
	return a.store.GetByEmail(ctx, NormalizeEmail(claims.Subject()))
}

// SetTokenCookies stores the refresh token in an HTTP-only cookie so browser
// clients never expose it to script. The access token travels in the
// response body and is the client's to hold.
func (a *RouteAuthenticator) SetTokenCookies(ctx router.Context, pair *TokenPair) {
	if pair == nil {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     a.cfg.GetRefreshCookieName(),
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  time.Now().Add(a.cfg.GetRefreshTokenTTL()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearTokenCookies expires the refresh cookie, the logout path.
func (a *RouteAuthenticator) ClearTokenCookies(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     a.cfg.GetRefreshCookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// RefreshTokenFromRequest reads the refresh token from the request body
// field when present, falling back to the HTTP-only cookie.
func (a *RouteAuthenticator) RefreshTokenFromRequest(ctx router.Context, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	return ctx.Cookies(a.cfg.GetRefreshCookieName())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.AuthErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	return c.JSON(router.StatusUnauthorized, map[string]string{
		"error": richErr.Message,
		"code":  richErr.TextCode,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(router.StatusInternalServerError, map[string]string{
			"error": "An unexpected server error occurred",
		})
	}
}

// validatorAdapter bridges the package's TokenValidator to the middleware's
// mirrored interface.
type validatorAdapter struct {
	inner TokenValidator
}

func (v validatorAdapter) Validate(tokenString string) (tokenware.AuthClaims, error) {
	claims, err := v.inner.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Gate evaluates role requirements against the resolved principal right
// before a protected operation runs. It re-checks active and lockout state
// at request time so an account disabled or locked after its access token
// was issued is still denied within the token's lifetime.
type Gate struct {
	lockoutThreshold int
	logger           Logger
}

// NewGate returns an authorization gate configured from opts.
func NewGate(opts Config) *Gate {
	threshold := DefaultLockoutThreshold
	if opts != nil && opts.GetLockoutThreshold() > 0 {
		threshold = opts.GetLockoutThreshold()
	}
	return &Gate{
		lockoutThreshold: threshold,
		logger:           defLogger{},
	}
}

func (g *Gate) WithLogger(logger Logger) *Gate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// Requires allows the principal through when it is authenticated, operable,
// and holds one of the allowed roles. An empty allowed set means any
// authenticated, operable principal passes.
//
// Denials are deliberately uniform: everything past the anonymous check
// answers ErrForbidden without saying whether the role was wrong or the
// account non-operable.
func (g *Gate) Requires(principal *Principal, allowed ...Role) error {
	if principal == nil {
		return ErrUnauthorized
	}

	if !g.operable(principal) {
		g.logger.Debug("gate denied non-operable account: %s", principal.ID())
		return ErrForbidden
	}

	if len(allowed) > 0 && !principal.Role().In(allowed...) {
		g.logger.Debug("gate denied role %s for account: %s", principal.Role(), principal.ID())
		return ErrForbidden
	}

	return nil
}

// RequireRoles wraps a handler with a Requires check against the principal
// resolved by request middleware. Anonymous requests answer 401, everything
// else that fails answers 403.
func (g *Gate) RequireRoles(allowed ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			principal, _ := GetRouterPrincipal(ctx)

			if err := g.Requires(principal, allowed...); err != nil {
				status := router.StatusForbidden
				if errors.Is(err, ErrUnauthorized) {
					status = router.StatusUnauthorized
				}
				return ctx.JSON(status, map[string]string{
					"error": err.Error(),
				})
			}

			return next(ctx)
		}
	}
}

func (g *Gate) operable(principal *Principal) bool {
	if !principal.IsActive() {
		return false
	}
	return !principal.Locked(g.lockoutThreshold)
}

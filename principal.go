package auth

// Principal is the authenticated caller attached to a request. It pairs the
// account record loaded for this request with the verified token claims. The
// record wins whenever the two disagree, claims are an issuance-time snapshot.
type Principal struct {
	user   *User
	claims AuthClaims
}

// NewPrincipal builds a Principal from a loaded account record and the
// verified claims that referenced it.
func NewPrincipal(user *User, claims AuthClaims) *Principal {
	if user == nil {
		return nil
	}
	return &Principal{user: user, claims: claims}
}

// ID returns the account identifier.
func (p *Principal) ID() string {
	return p.user.ID.String()
}

// Email returns the normalized account email.
func (p *Principal) Email() string {
	return p.user.Email
}

// Role returns the account's current role as stored, not the token snapshot.
func (p *Principal) Role() Role {
	return p.user.Role
}

// IsActive reports whether the account is enabled.
func (p *Principal) IsActive() bool {
	return p.user.Active
}

// LoginAttempts returns the current consecutive failed login count.
func (p *Principal) LoginAttempts() int {
	return p.user.LoginAttempts
}

// Locked reports whether the account has hit the failed-login threshold.
func (p *Principal) Locked(threshold int) bool {
	return p.user.LoginAttempts >= threshold
}

// User returns the underlying account record.
func (p *Principal) User() *User {
	return p.user
}

// Claims returns the verified token claims, nil for principals built outside
// a token flow.
func (p *Principal) Claims() AuthClaims {
	return p.claims
}

// Identity adapts the principal for token issuance.
func (p *Principal) Identity() Identity {
	return p.user.Identity()
}

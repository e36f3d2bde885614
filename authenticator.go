package auth

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// RegisterUserMessage carries the attributes needed to create an account.
type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	UseHashid bool   `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the message before any store or hashing work happens.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&e.Phone, phoneNumberRule),
	)
}

// phoneNumberRule accepts an empty phone and otherwise requires a number the
// libphonenumber data set considers valid. Region-less input must carry a
// country prefix.
var phoneNumberRule = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	parsed, err := phonenumbers.Parse(s, "ZZ")
	if err != nil {
		return fmt.Errorf("must be a valid phone number")
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return fmt.Errorf("must be a valid phone number")
	}
	return nil
})

// Auther orchestrates credential verification, lockout bookkeeping and token
// issuance over a CredentialStore.
type Auther struct {
	store            CredentialStore
	passwords        PasswordAuthenticator
	tokenService     TokenService
	tokenValidator   TokenValidator
	signingKey       []byte
	accessTTL        time.Duration
	refreshTTL       time.Duration
	issuer           string
	audience         []string
	lockoutThreshold int
	logger           Logger
	activitySink     ActivitySink
	claimsDecorator  ClaimsDecorator
}

// Verify interface compliance
var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator backed by the given store.
func NewAuthenticator(store CredentialStore, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetAccessTokenTTL(),
		opts.GetRefreshTokenTTL(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		store:            store,
		passwords:        bcryptAuthenticator{},
		tokenService:     tokenService,
		signingKey:       []byte(opts.GetSigningKey()),
		accessTTL:        opts.GetAccessTokenTTL(),
		refreshTTL:       opts.GetRefreshTokenTTL(),
		issuer:           opts.GetIssuer(),
		audience:         opts.GetAudience(),
		lockoutThreshold: opts.GetLockoutThreshold(),
		logger:           defLogger{},
		activitySink:     noopActivitySink{},
		claimsDecorator:  noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.accessTTL,
		s.refreshTTL,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithPasswordAuthenticator swaps the password hashing implementation.
func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates a new account and logs it in. Email uniqueness is checked
// up front and again by the store's unique index; either failure surfaces as
// ErrDuplicateEmail.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, *TokenPair, error) {
	msg.Email = NormalizeEmail(msg.Email)

	if err := msg.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryValidation, "invalid registration payload")
	}

	if existing, err := s.store.GetByEmail(ctx, msg.Email); err == nil && existing != nil {
		s.emitAuthEvent(ctx, ActivityEventRegisterFailure, ActorRef{Type: "unknown"}, "", msg.Email, map[string]any{
			"error": ErrDuplicateEmail.Error(),
		})
		return nil, nil, ErrDuplicateEmail
	} else if err != nil && !errors.IsNotFound(err) {
		s.logger.Error("Register lookup error: %v", err)
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "registration lookup failed")
	}

	hash, err := s.passwords.HashPassword(msg.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &User{
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Email:        msg.Email,
		Phone:        msg.Phone,
		PasswordHash: hash,
		Role:         registrationRole(msg.Role),
		Active:       true,
	}

	if msg.UseHashid {
		if id, err := hashid.NewUUID(msg.Email); err == nil {
			user.ID = id
		}
	}

	user, err = s.store.Save(ctx, user)
	if err != nil {
		s.logger.Error("Register save error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventRegisterFailure, ActorRef{Type: "unknown"}, "", msg.Email, map[string]any{
			"error": err.Error(),
		})
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.Category == errors.CategoryConflict {
			return nil, nil, ErrDuplicateEmail
		}
		return nil, nil, errors.Wrap(err, errors.CategoryInternal, "could not create user")
	}

	pair, err := s.issueTokenPair(ctx, user.Identity())
	if err != nil {
		return nil, nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegisterSuccess, s.actorFromUser(user), user.ID.String(), user.Email, nil)

	return user, pair, nil
}

// Login verifies credentials and issues a token pair.
//
// Unknown emails, wrong passwords and locked accounts all answer with
// ErrInvalidCredentials so callers cannot enumerate accounts or probe lock
// state. Deactivated accounts answer ErrAccountDisabled before any password
// work, and never touch the lockout counter.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	email = NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil || user == nil {
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("Login lookup error: %v", err)
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "login lookup failed")
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", email, map[string]any{
			"error": ErrIdentityNotFound.Error(),
		})
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), email, map[string]any{
			"error": ErrAccountDisabled.Error(),
		})
		return nil, nil, ErrAccountDisabled
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if trackErr := s.trackAttemptedLogin(ctx, user); trackErr != nil {
			s.logger.Error("Login failed to persist attempt counter: %v", trackErr)
		}
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromUser(user), user.ID.String(), email, map[string]any{
			"error":    err.Error(),
			"attempts": user.LoginAttempts,
		})
		if user.LoginAttempts >= s.lockoutThreshold {
			s.emitAuthEvent(ctx, ActivityEventLoginLockout, s.actorFromUser(user), user.ID.String(), email, map[string]any{
				"attempts": user.LoginAttempts,
			})
		}
		return nil, nil, ErrInvalidCredentials
	}

	// A correct password does not unlock an account past the threshold. The
	// counter has to be reset out of band.
	if user.LoginAttempts >= s.lockoutThreshold {
		s.emitAuthEvent(ctx, ActivityEventLoginLockout, s.actorFromUser(user), user.ID.String(), email, map[string]any{
			"attempts": user.LoginAttempts,
		})
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.trackSuccessfulLogin(ctx, user); err != nil {
		s.logger.Error("Login failed to reset attempt counter: %v", err)
	}

	pair, err := s.issueTokenPair(ctx, user.Identity())
	if err != nil {
		return nil, nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromUser(user), user.ID.String(), email, nil)

	return user, pair, nil
}

// Refresh validates a refresh token and rotates the pair. The account record
// is reloaded so the new access token carries the account's current role, not
// the role at original login time.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(refreshToken)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, "", "", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	email := NormalizeEmail(claims.Subject())

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil || user == nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, "", email, map[string]any{
			"error": ErrIdentityNotFound.Error(),
		})
		if err != nil && !errors.IsNotFound(err) {
			s.logger.Error("Refresh lookup error: %v", err)
			return nil, errors.Wrap(err, errors.CategoryInternal, "refresh lookup failed")
		}
		return nil, ErrTokenMalformed
	}

	if !user.Active {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, s.actorFromUser(user), user.ID.String(), email, map[string]any{
			"error": ErrAccountDisabled.Error(),
		})
		return nil, ErrAccountDisabled
	}

	if user.LoginAttempts >= s.lockoutThreshold {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, s.actorFromUser(user), user.ID.String(), email, map[string]any{
			"error":    ErrInvalidCredentials.Error(),
			"attempts": user.LoginAttempts,
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, user.Identity())
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRefreshSuccess, s.actorFromUser(user), user.ID.String(), email, nil)

	return pair, nil
}

func (s *Auther) issueTokenPair(ctx context.Context, identity Identity) (*TokenPair, error) {
	access, err := s.generateAccessToken(ctx, identity)
	if err != nil {
		s.logger.Error("failed to issue access token: %v", err)
		return nil, err
	}

	refresh, err := s.tokenService.IssueRefreshToken(identity)
	if err != nil {
		s.logger.Error("failed to issue refresh token: %v", err)
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// generateAccessToken builds access claims, lets the decorator extend them,
// and signs. The immutable snapshot rejects decorators that rewrite identity
// or registered claims.
func (s *Auther) generateAccessToken(ctx context.Context, identity Identity) (string, error) {
	claims := s.newAccessClaims(identity)
	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed: %v", err)
		return "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated immutable claims: %v", err)
		return "", err
	}

	return s.tokenService.SignClaims(claims)
}

func (s *Auther) newAccessClaims(identity Identity) *JWTClaims {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(s.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(s.audience))
		copy(aud, s.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Email(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		UID:      identity.ID(),
		UserRole: Role(identity.Role()),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

// trackAttemptedLogin bumps the lockout counter. Stores that implement
// UserTracker get the atomic path; everyone else gets read-modify-write,
// which can lose concurrent increments and is accepted as such.
func (s *Auther) trackAttemptedLogin(ctx context.Context, user *User) error {
	now := time.Now()
	user.LoginAttempts++
	user.LoginAttemptAt = &now

	if tracker, ok := s.store.(UserTracker); ok {
		return tracker.TrackAttemptedLogin(ctx, user)
	}

	_, err := s.store.Save(ctx, user)
	return err
}

func (s *Auther) trackSuccessfulLogin(ctx context.Context, user *User) error {
	now := time.Now()
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	user.LoggedInAt = &now

	if tracker, ok := s.store.(UserTracker); ok {
		return tracker.TrackSuccessfulLogin(ctx, user)
	}

	_, err := s.store.Save(ctx, user)
	return err
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID, email string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Email:     email,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}

// registrationRole defaults to the standard user role; callers may pass an
// explicit valid role for administrative account creation.
func registrationRole(role string) Role {
	if r, ok := ParseRole(role); ok {
		return r
	}
	return RoleUser
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", core.ErrUnauthenticated)

	errDuplicateIdentity = &core.ValidationError{Message: "Email or username already exists"}
)

// Session is an authenticated user and the token that proves it.
type Session struct {
	User      core.User
	Token     string
	ExpiresAt time.Time
}

// UserService handles registration, login and profiles.
type UserService struct {
	store  storage.Store
	tokens *auth.TokenIssuer
	options
}

func NewUserService(store storage.Store, tokens *auth.TokenIssuer, opts ...Option) *UserService {
	return &UserService{store: store, tokens: tokens, options: buildOptions(log.ComponentUser, opts)}
}

// Register creates the user and provisions the default categories and the
// Cash account in the same storage transaction.
func (s *UserService) Register(ctx context.Context, in core.RegisterInput) (Session, error) {
	in, err := in.Normalize()
	if err != nil {
		return Session{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.stamp()
	u := core.User{
		ID:           s.newID(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		ThemeID:      core.DefaultTheme,
		Currency:     core.DefaultCurrency,
		Locale:       core.DefaultLocale,
		CreatedAt:    now,
	}
	seed := core.DefaultSeed(u.ID, s.newID, now)

	if err := s.store.RegisterUser(ctx, u, seed); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return Session{}, errDuplicateIdentity
		}
		return Session{}, fmt.Errorf("register user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpRegister)
	return s.session(u)
}

// Login checks the credentials and stamps lastLoginAt.
func (s *UserService) Login(ctx context.Context, in core.LoginInput) (Session, error) {
	in, err := in.Normalize()
	if err != nil {
		return Session{}, err
	}

	u, err := s.store.GetUserByEmail(ctx, in.Email)
	switch {
	case isNotFound(err):
		// Spend the same bcrypt time as a real comparison.
		auth.CompareDummy(in.Password)
		return Session{}, ErrInvalidCredentials
	case err != nil:
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPasswordHash(in.Password, u.PasswordHash) {
		s.logger.InfoContext(ctx, "Login rejected",
			log.FieldUserID, u.ID,
			log.FieldOperation, log.OpLogin)
		return Session{}, ErrInvalidCredentials
	}

	now := s.stamp()
	if err := s.store.TouchLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, fmt.Errorf("record login: %w", err)
	}
	u.LastLoginAt = &now

	s.logger.InfoContext(ctx, "User logged in",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpLogin)
	return s.session(u)
}

func (s *UserService) session(u core.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: u, Token: token, ExpiresAt: s.now().Add(s.tokens.TTL())}, nil
}

// Authenticate verifies a session token and returns its user id.
// It does not touch storage; Profile reports users that no longer exist.
func (s *UserService) Authenticate(token string) (string, error) {
	if token == "" {
		return "", core.ErrUnauthenticated
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	return claims.UserID, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (core.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("load profile: %w", err)
	}
	return u, nil
}

// UpdateProfile applies the fields present in upd.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.User, error) {
	if err := upd.Validate(); err != nil {
		return core.User{}, err
	}
	u, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Profile updated",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpUpdate)
	return u, nil
}

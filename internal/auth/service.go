package auth

import (
	"context"
	"fmt"
	"strings"

	"gigbridge/internal/session"
	"gigbridge/internal/users"

	"github.com/go-playground/validator/v10"
)

// Backend is the auth service surface the screen-facing operations need.
type Backend interface {
	PasswordSignIn(ctx context.Context, email, password string) (*session.Session, error)
	SignUp(ctx context.Context, email, password, role, redirectTo string) (SignUpResult, error)
	ExchangeAuthCode(ctx context.Context, code string) (*session.Session, error)
	VerifyRecoveryCode(ctx context.Context, code string) (*session.Session, error)
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error
}

// Establisher receives sessions produced by sign-in flows.
type Establisher interface {
	Establish(ctx context.Context, s *session.Session) error
}

// Service implements the explicit user actions of the auth screens. Each one
// establishes its resulting session in the caller's session store.
type Service struct {
	backend Backend
	// redirectTo is the link target embedded in confirmation and recovery emails.
	redirectTo string
	validate   *validator.Validate
}

// NewService creates a new auth Service.
func NewService(backend Backend, redirectTo string) *Service {
	return &Service{
		backend:    backend,
		redirectTo: redirectTo,
		validate:   validator.New(),
	}
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email    string
	Password string
	Role     string
}

// SignIn authenticates with a password and establishes the session.
func (s *Service) SignIn(ctx context.Context, store Establisher, email, password string) (*session.Session, error) {
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	sess, err := s.backend.PasswordSignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := store.Establish(ctx, sess); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	return sess, nil
}

// Register creates an account with its role recorded in session metadata.
func (s *Service) Register(ctx context.Context, store Establisher, input SignUpInput) (SignUpResult, error) {
	email := normalizeEmail(input.Email)
	if err := s.checkEmail(email); err != nil {
		return SignUpResult{}, err
	}
	if err := s.checkPassword(input.Password); err != nil {
		return SignUpResult{}, err
	}
	role, err := users.ParseRole(input.Role)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("%w: role must be student or business", ErrInvalidInput)
	}

	result, err := s.backend.SignUp(ctx, email, input.Password, string(role), s.redirectTo)
	if err != nil {
		return SignUpResult{}, err
	}
	if result.Session.Present() {
		if err := store.Establish(ctx, result.Session); err != nil {
			return SignUpResult{}, fmt.Errorf("establish session: %w", err)
		}
	}
	return result, nil
}

// CompleteOAuth exchanges the code returned to the web callback and establishes the session.
func (s *Service) CompleteOAuth(ctx context.Context, store Establisher, code string) (*session.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidCode)
	}
	sess, err := s.backend.ExchangeAuthCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := store.Establish(ctx, sess); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	return sess, nil
}

// ForgotPassword requests a recovery email.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return err
	}
	return s.backend.RequestPasswordReset(ctx, email, s.redirectTo)
}

// ResetPassword consumes a recovery code, sets the new password and
// establishes the session the code authorized.
func (s *Service) ResetPassword(ctx context.Context, store Establisher, code, password string) (*session.Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidCode)
	}
	if err := s.checkPassword(password); err != nil {
		return nil, err
	}

	sess, err := s.backend.VerifyRecoveryCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.backend.UpdatePassword(ctx, sess.AccessToken, password); err != nil {
		return nil, err
	}
	if err := store.Establish(ctx, sess); err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}
	return sess, nil
}

func (s *Service) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) checkPassword(password string) error {
	if err := s.validate.Var(password, "required,min=8,max=72"); err != nil {
		return fmt.Errorf("%w: password must be 8 to 72 characters", ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Unconfigured is the Backend used when no auth service is configured. Every call fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) PasswordSignIn(context.Context, string, string) (*session.Session, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignUp(context.Context, string, string, string, string) (SignUpResult, error) {
	return SignUpResult{}, ErrNotConfigured
}

func (Unconfigured) ExchangeAuthCode(context.Context, string) (*session.Session, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SessionFromTokens(context.Context, string, string) (*session.Session, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) VerifyRecoveryCode(context.Context, string) (*session.Session, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) RequestPasswordReset(context.Context, string, string) error {
	return ErrNotConfigured
}

func (Unconfigured) UpdatePassword(context.Context, string, string) error {
	return ErrNotConfigured
}

func (Unconfigured) Refresh(context.Context, string) (*session.Session, error) {
	return nil, ErrNotConfigured
}

func (Unconfigured) SignOut(context.Context, *session.Session) error {
	return nil
}

func (Unconfigured) AuthURL(string, string, string) string {
	return ""
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gigbridge/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AccessClaims are the claims the backend places in its access tokens.
type AccessClaims struct {
	Email         string       `json:"email"`
	EmailVerified bool         `json:"email_verified"`
	UserMetadata  UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata is the user-supplied data attached at sign-up. It is never
// trusted for email confirmation.
type UserMetadata struct {
	Role string `json:"role,omitempty"`
}

// TokenVerifier validates backend-issued access tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenVerifier returns a verifier for HS256 tokens signed with secret.
// An empty issuer disables the issuer check.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Verify parses and validates an access token.
func (v *TokenVerifier) Verify(accessToken string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// Session builds a session from a verified access token and its refresh token.
func (v *TokenVerifier) Session(accessToken, refreshToken string) (*session.Session, error) {
	claims, err := v.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	s := &session.Session{
		UserID:         userID,
		Email:          claims.Email,
		EmailConfirmed: claims.EmailVerified,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		Metadata:       session.Metadata{Role: claims.UserMetadata.Role},
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

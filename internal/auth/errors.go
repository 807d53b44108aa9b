package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	// ErrTransient marks failures that are safe to retry: network errors, timeouts, 5xx, rate limits.
	ErrTransient = errors.New("auth service temporarily unavailable")
	// ErrInvalidCode is returned when an authorization or recovery code is invalid, used or expired.
	ErrInvalidCode = errors.New("link is invalid or has expired")
	// ErrPermission is returned when the auth service refuses the caller's credentials.
	ErrPermission = errors.New("auth service denied the request")
	// ErrInvalidCredentials is returned when an email and password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned when an access token fails verification.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrAccountExists is returned when signing up with an email that is already registered.
	ErrAccountExists = errors.New("an account with this email already exists")
	// ErrRejected is returned for any other client error reported by the auth service.
	ErrRejected = errors.New("auth service rejected the request")
	// ErrInvalidInput is returned when request fields fail validation before reaching the backend.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotConfigured is returned when no backend auth service is configured.
	ErrNotConfigured = errors.New("auth backend not configured")
)

// statusError is a non-2xx response from the auth service REST API.
type statusError struct {
	Status  int
	Code    string
	Message string
}

func (e *statusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("auth service returned %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("auth service returned %d: %s", e.Status, msg)
}

// classify maps a backend failure onto the package taxonomy. rejected is the
// error used when the backend refuses the request with a 4xx.
func classify(err error, rejected error) error {
	if err == nil {
		return nil
	}

	if isTransport(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if retrieveErr.ErrorCode == "invalid_grant" && status < 500 && status != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", rejected, describe(retrieveErr.ErrorCode, retrieveErr.ErrorDescription))
		}
		return classifyStatus(status, rejected, describe(retrieveErr.ErrorCode, retrieveErr.ErrorDescription))
	}

	var se *statusError
	if errors.As(err, &se) {
		return classifyStatus(se.Status, rejected, describe(se.Code, se.Message))
	}

	return err
}

func classifyStatus(status int, rejected error, detail string) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s", ErrTransient, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrPermission, detail)
	default:
		return fmt.Errorf("%w: %s", rejected, detail)
	}
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func describe(code, message string) string {
	switch {
	case code != "" && message != "":
		return code + ": " + message
	case message != "":
		return message
	case code != "":
		return code
	default:
		return "no detail"
	}
}

package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the side of the marketplace an account belongs to.
type Role string

const (
	RoleStudent  Role = "student"
	RoleBusiness Role = "business"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleBusiness
}

// ParseRole normalizes and validates a textual role.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.IsValid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, value)
	}
	return role, nil
}

var (
	// ErrNotFound is returned when no user record exists for an account.
	ErrNotFound = errors.New("user record not found")
	// ErrValidation is returned when supplied fields are invalid.
	ErrValidation = errors.New("validation error")
	// ErrConflict is returned when a write contradicts the stored record.
	ErrConflict = errors.New("user record conflict")
	// ErrPermission is returned when the store refuses access to the record.
	ErrPermission = errors.New("user record access denied")
	// ErrUnauthenticated is returned when a writer runs without a confirmed session.
	ErrUnauthenticated = errors.New("confirmed session required")
)

// Record is the application-level row holding an account's role and onboarding state.
type Record struct {
	ID               uuid.UUID `json:"id"`
	Role             Role      `json:"role"`
	ProfileCompleted bool      `json:"profileCompleted"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// StudentProfile is collected by the student onboarding flow.
type StudentProfile struct {
	FullName       string `json:"fullName" validate:"required,min=2,max=120"`
	University     string `json:"university" validate:"required,max=160"`
	Major          string `json:"major" validate:"omitempty,max=120"`
	GraduationYear int    `json:"graduationYear" validate:"required,gte=1950,lte=2100"`
	Bio            string `json:"bio" validate:"omitempty,max=2000"`
}

// BusinessProfile is collected by the business onboarding flow.
type BusinessProfile struct {
	CompanyName string `json:"companyName" validate:"required,min=2,max=160"`
	Industry    string `json:"industry" validate:"required,max=120"`
	Website     string `json:"website" validate:"omitempty,url,max=255"`
	Description string `json:"description" validate:"omitempty,max=4000"`
}

// Profile holds exactly one role-specific profile.
type Profile struct {
	Student  *StudentProfile  `json:"student,omitempty"`
	Business *BusinessProfile `json:"business,omitempty"`
}

// Role returns the role the profile belongs to.
func (p Profile) Role() (Role, error) {
	switch {
	case p.Student != nil && p.Business == nil:
		return RoleStudent, nil
	case p.Business != nil && p.Student == nil:
		return RoleBusiness, nil
	default:
		return "", fmt.Errorf("%w: exactly one of student or business profile is required", ErrValidation)
	}
}

func (p *Profile) normalize() {
	if s := p.Student; s != nil {
		s.FullName = strings.TrimSpace(s.FullName)
		s.University = strings.TrimSpace(s.University)
		s.Major = strings.TrimSpace(s.Major)
		s.Bio = strings.TrimSpace(s.Bio)
	}
	if b := p.Business; b != nil {
		b.CompanyName = strings.TrimSpace(b.CompanyName)
		b.Industry = strings.TrimSpace(b.Industry)
		b.Website = strings.TrimSpace(b.Website)
		b.Description = strings.TrimSpace(b.Description)
	}
}

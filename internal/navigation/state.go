// Package navigation decides where a client belongs given its session, its
// user record and its current location, and drives it there.
package navigation

import (
	"gigbridge/internal/session"
	"gigbridge/internal/users"
)

// State is the outcome class of one resolution.
type State string

const (
	StateAuthRequired       State = "auth_required"
	StateForceSignOut       State = "force_sign_out"
	StateNeedsRoleSelection State = "needs_role_selection"
	StateNeedsOnboarding    State = "needs_onboarding"
	StateAuthorized         State = "authorized"
	StatePasswordReset      State = "password_reset"
	// StateDeferred means the pass could not decide and left the client where it is.
	StateDeferred State = "deferred"
)

// Inputs is everything Evaluate looks at.
type Inputs struct {
	Session  *session.Session
	Record   *users.Record
	Location Location
	// ResetCode is the code of a pending password-reset link.
	ResetCode string
	// LinkError is set when the auth-callback link consumed by this pass failed.
	LinkError string
	// AccessDenied is set when the record store refused to serve the session's user.
	AccessDenied bool
}

// Destination is the canonical route for a state plus the locations that already satisfy it.
type Destination struct {
	Entry   Route
	accepts func(Location) bool
}

// Accepts reports whether loc already satisfies the destination.
func (d Destination) Accepts(loc Location) bool {
	if d.accepts == nil {
		return false
	}
	return d.accepts(loc)
}

// Decision is the result of Evaluate.
type Decision struct {
	State       State
	Role        users.Role
	Destination Destination
	// Navigate is nil when the location already satisfies the destination.
	Navigate *Route
	// SignOut asks the caller to end the session before navigating.
	SignOut bool
}

// Evaluate computes the decision for in. It performs no I/O.
func Evaluate(in Inputs) Decision {
	var d Decision

	resetCode := in.ResetCode
	if resetCode == "" && in.Location.Path == PathResetPassword && !mustSignOut(in) {
		// A recovery already in progress stays on its screen until the code is used.
		resetCode = in.Location.Query.Get("code")
	}

	switch {
	case resetCode != "":
		d = Decision{State: StatePasswordReset, Destination: resetDestination(resetCode)}

	case in.LinkError != "" && !in.Session.Confirmed():
		d = Decision{
			State:       StateAuthRequired,
			Destination: linkErrorDestination(in.LinkError),
			SignOut:     in.Session.Present(),
		}

	case !in.Session.Present():
		d = Decision{State: StateAuthRequired, Destination: loginDestination()}

	case mustSignOut(in):
		d = Decision{State: StateForceSignOut, Destination: signedOutDestination(), SignOut: true}

	case in.Record == nil || !in.Record.Role.IsValid():
		d = Decision{State: StateNeedsRoleSelection, Destination: roleSelectionDestination()}

	case !in.Record.ProfileCompleted:
		d = Decision{
			State:       StateNeedsOnboarding,
			Role:        in.Record.Role,
			Destination: onboardingDestination(in.Record.Role),
		}

	default:
		d = Decision{State: StateAuthorized, Role: in.Record.Role, Destination: homeDestination()}
	}

	if !d.Destination.Accepts(in.Location) {
		entry := d.Destination.Entry
		d.Navigate = &entry
	}
	return d
}

// mustSignOut reports whether a present session has to be ended:
// its email is unconfirmed or the record store refused the user.
func mustSignOut(in Inputs) bool {
	return in.Session.Present() && (!in.Session.Confirmed() || in.AccessDenied)
}

func loginDestination() Destination {
	return Destination{
		Entry: Route{Path: PathLogin},
		accepts: func(loc Location) bool {
			g := loc.Group()
			return g == GroupAuth || g == GroupAuthCallback
		},
	}
}

// signedOutDestination excludes the callback screen: a forced sign-out must leave it.
func signedOutDestination() Destination {
	return Destination{
		Entry: Route{Path: PathLogin},
		accepts: func(loc Location) bool {
			return loc.Group() == GroupAuth
		},
	}
}

func linkErrorDestination(code string) Destination {
	entry := NewRoute(PathLogin, "error", code)
	return Destination{
		Entry: entry,
		accepts: func(loc Location) bool {
			return loc.Path == PathLogin && loc.Query.Get("error") == code
		},
	}
}

func roleSelectionDestination() Destination {
	return Destination{
		Entry: Route{Path: PathSelectRole},
		accepts: func(loc Location) bool {
			return loc.Path == PathSelectRole
		},
	}
}

func onboardingDestination(role users.Role) Destination {
	entry := OnboardingRoute(role)
	return Destination{
		Entry: entry,
		accepts: func(loc Location) bool {
			return loc.Within(entry.Path)
		},
	}
}

func homeDestination() Destination {
	return Destination{
		Entry: Route{Path: PathHome},
		accepts: func(loc Location) bool {
			return loc.Group() == GroupProtected
		},
	}
}

func resetDestination(code string) Destination {
	entry := NewRoute(PathResetPassword, "code", code)
	return Destination{
		Entry: entry,
		accepts: func(loc Location) bool {
			return loc.Path == PathResetPassword && loc.Query.Get("code") == code
		},
	}
}

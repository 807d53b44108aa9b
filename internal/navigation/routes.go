package navigation

import (
	"net/url"
	"strings"

	"gigbridge/internal/users"
)

// Group is the screen family a location belongs to.
type Group string

const (
	GroupAuth         Group = "auth"
	GroupProtected    Group = "protected"
	GroupOnboarding   Group = "onboarding"
	GroupAuthCallback Group = "auth_callback"
	GroupUnknown      Group = "unknown"
)

// Screen paths the state machine routes between.
const (
	PathLogin          = "/login"
	PathSignup         = "/signup"
	PathForgotPassword = "/forgot-password"
	PathResetPassword  = "/reset-password"
	PathVerifyEmail    = "/verify-email"
	PathSelectRole     = "/select-role"
	PathOnboarding     = "/onboarding"
	PathAuthCallback   = "/auth/callback"
	PathHome           = "/home"
)

var authPaths = map[string]struct{}{
	PathLogin:          {},
	PathSignup:         {},
	PathForgotPassword: {},
	PathResetPassword:  {},
	PathVerifyEmail:    {},
}

// protectedSections are the first path segments of the signed-in app.
var protectedSections = map[string]struct{}{
	"home":          {},
	"issues":        {},
	"messages":      {},
	"notifications": {},
	"profile":       {},
	"applications":  {},
	"settings":      {},
}

// layoutGroups maps file-router group segments such as "(tabs)" to location groups.
var layoutGroups = map[string]Group{
	"(auth)":       GroupAuth,
	"(tabs)":       GroupProtected,
	"(onboarding)": GroupOnboarding,
}

// Route is a navigation target.
type Route struct {
	Path  string
	Query url.Values
}

// NewRoute builds a route from a path and optional key/value query pairs.
func NewRoute(path string, kv ...string) Route {
	r := Route{Path: path}
	for i := 0; i+1 < len(kv); i += 2 {
		if r.Query == nil {
			r.Query = url.Values{}
		}
		r.Query.Set(kv[i], kv[i+1])
	}
	return r
}

// String renders the route as a path with an encoded query.
func (r Route) String() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Equal reports whether two routes render identically.
func (r Route) Equal(other Route) bool {
	return r.String() == other.String()
}

// OnboardingRoute is the first onboarding step for role.
func OnboardingRoute(role users.Role) Route {
	return Route{Path: PathOnboarding + "/" + string(role)}
}

// Location is where the client currently is.
type Location struct {
	Path  string
	Query url.Values
	// layout is the group named by a file-router segment, if the path carried one.
	layout Group
}

// ParseLocation normalizes a client-reported path such as "/(tabs)/home" or
// "/reset-password?code=abc".
func ParseLocation(raw string) Location {
	raw = strings.TrimSpace(raw)
	var loc Location
	if raw == "" {
		return loc
	}

	path, query, _ := strings.Cut(raw, "?")
	if q, err := url.ParseQuery(query); err == nil && len(q) > 0 {
		loc.Query = q
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if seg == "" {
			continue
		}
		if g, ok := layoutGroups[seg]; ok {
			if loc.layout == "" {
				loc.layout = g
			}
			continue
		}
		if strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")") {
			continue
		}
		segments = append(segments, seg)
	}
	loc.Path = "/" + strings.Join(segments, "/")
	return loc
}

// Known reports whether the client has reported a location at all.
func (l Location) Known() bool {
	return l.Path != ""
}

// String renders the location like a route.
func (l Location) String() string {
	return Route{Path: l.Path, Query: l.Query}.String()
}

// Equal reports whether two locations render identically.
func (l Location) Equal(other Location) bool {
	return l.String() == other.String()
}

// Group classifies the location.
func (l Location) Group() Group {
	switch {
	case l.Path == PathAuthCallback:
		return GroupAuthCallback
	case l.Path == PathSelectRole || l.Path == PathOnboarding || strings.HasPrefix(l.Path, PathOnboarding+"/"):
		return GroupOnboarding
	}
	if _, ok := authPaths[l.Path]; ok {
		return GroupAuth
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(l.Path, "/"), "/")
	if _, ok := protectedSections[first]; ok {
		return GroupProtected
	}
	if l.layout != "" {
		return l.layout
	}
	return GroupUnknown
}

// Within reports whether the location is the route's path or one of its sub-screens.
func (l Location) Within(path string) bool {
	return l.Path == path || strings.HasPrefix(l.Path, path+"/")
}

// Package deeplink turns URLs handed to the app by the OS into routing intents.
package deeplink

import (
	"log/slog"
	"net/url"
	"strings"
)

// Kind classifies a decoded deep link.
type Kind string

const (
	KindNone          Kind = "none"
	KindAuthCallback  Kind = "auth_callback"
	KindPasswordReset Kind = "password_reset"
)

// Path families served by deep links.
const (
	PathAuthCallback  = "/auth/callback"
	PathResetPassword = "/reset-password"
)

const typeRecovery = "recovery"

// Intent is a decoded deep link, consumed once by the next resolution pass.
type Intent struct {
	Kind             Kind       `json:"kind" yaml:"kind"`
	Code             string     `json:"code,omitempty" yaml:"code,omitempty"`
	AccessToken      string     `json:"-" yaml:"-"`
	RefreshToken     string     `json:"-" yaml:"-"`
	Type             string     `json:"type,omitempty" yaml:"type,omitempty"`
	ErrorCode        string     `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	ErrorDescription string     `json:"errorDescription,omitempty" yaml:"errorDescription,omitempty"`
	Params           url.Values `json:"params,omitempty" yaml:"params,omitempty"`
}

// None is the intent for unrecognized or absent links.
func None() Intent {
	return Intent{Kind: KindNone}
}

// HasCode reports whether the link carries an authorization or recovery code.
func (i Intent) HasCode() bool {
	return i.Code != ""
}

// HasTokens reports whether the link carries an implicit-flow access token.
func (i Intent) HasTokens() bool {
	return i.AccessToken != ""
}

// Failed reports whether the provider reported an error in the link.
func (i Intent) Failed() bool {
	return i.ErrorCode != "" || i.ErrorDescription != ""
}

// LogValue keeps tokens out of logs.
func (i Intent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", string(i.Kind)),
		slog.Bool("has_code", i.HasCode()),
		slog.Bool("has_tokens", i.HasTokens()),
		slog.String("type", i.Type),
		slog.String("error", i.ErrorCode),
	)
}

// Decoder recognizes the app's custom scheme and its universal-link host.
type Decoder struct {
	scheme string
	host   string
	logger *slog.Logger
}

// NewDecoder builds a Decoder for links like scheme://auth/callback and https://host/auth/callback.
func NewDecoder(scheme, host string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		scheme: strings.ToLower(strings.TrimSuffix(strings.TrimSpace(scheme), "://")),
		host:   strings.ToLower(strings.TrimSpace(host)),
		logger: logger,
	}
}

// Decode parses raw into an Intent. It never fails: anything it cannot use
// decodes to KindNone.
func (d *Decoder) Decode(raw string) Intent {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return None()
	}

	u, err := url.Parse(raw)
	if err != nil {
		d.logger.Debug("deep link parse failed", "error", err)
		return None()
	}

	path, ok := d.routePath(u)
	if !ok {
		return None()
	}

	params, err := mergeParams(u)
	if err != nil {
		d.logger.Debug("deep link parameters malformed", "path", path, "error", err)
		return None()
	}

	intent := Intent{
		Code:             params.Get("code"),
		AccessToken:      params.Get("access_token"),
		RefreshToken:     params.Get("refresh_token"),
		Type:             params.Get("type"),
		ErrorCode:        params.Get("error"),
		ErrorDescription: params.Get("error_description"),
	}
	params.Del("access_token")
	params.Del("refresh_token")
	if len(params) > 0 {
		intent.Params = params
	}

	switch {
	case intent.HasCode() && strings.EqualFold(intent.Type, typeRecovery):
		intent.Kind = KindPasswordReset
	case path == PathResetPassword:
		if !intent.HasCode() {
			return None()
		}
		intent.Kind = KindPasswordReset
	case path == PathAuthCallback:
		if !intent.HasCode() && !intent.HasTokens() && !intent.Failed() {
			return None()
		}
		intent.Kind = KindAuthCallback
	default:
		return None()
	}

	return intent
}

// routePath extracts the logical path of a recognized link.
func (d *Decoder) routePath(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)

	var path string
	switch {
	case d.scheme != "" && scheme == d.scheme:
		switch {
		case u.Opaque != "":
			// scheme:auth/callback
			path = "/" + u.Opaque
		case u.Host != "":
			// scheme://auth/callback parses "auth" as the host.
			path = "/" + u.Host + u.Path
		default:
			path = u.Path
		}
	case (scheme == "https" || scheme == "http") && d.host != "" && strings.EqualFold(u.Hostname(), d.host):
		path = u.Path
	default:
		return "", false
	}

	path = "/" + strings.Trim(strings.ToLower(path), "/")
	if path != PathAuthCallback && path != PathResetPassword {
		return "", false
	}
	return path, true
}

// mergeParams combines query and fragment parameters; the fragment wins per key.
func mergeParams(u *url.URL) (url.Values, error) {
	merged, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, err
	}

	if fragment := u.EscapedFragment(); fragment != "" {
		fromFragment, err := url.ParseQuery(fragment)
		if err != nil {
			return nil, err
		}
		for key, values := range fromFragment {
			merged[key] = values
		}
	}
	return merged, nil
}

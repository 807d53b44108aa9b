package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gigbridge/internal/auth"
	"gigbridge/internal/deeplink"
	"gigbridge/internal/session"
	"gigbridge/internal/users"

	"github.com/google/uuid"
)

// Link error codes placed on the login route.
const (
	LinkErrorExpired = "link_expired"
	LinkErrorFailed  = "auth_failed"
)

// SessionSource is the client's session store.
type SessionSource interface {
	Current(ctx context.Context) (*session.Session, error)
	Establish(ctx context.Context, s *session.Session) error
	SignOut(ctx context.Context) error
}

// CodeExchanger turns auth-callback links into sessions.
type CodeExchanger interface {
	ExchangeAuthCode(ctx context.Context, code string) (*session.Session, error)
	SessionFromTokens(ctx context.Context, accessToken, refreshToken string) (*session.Session, error)
}

// RecordStore reads and lazily creates user records.
type RecordStore interface {
	Get(ctx context.Context, id uuid.UUID) (users.Record, error)
	Insert(ctx context.Context, record users.Record) (users.Record, error)
}

// Navigator performs a navigation on the client.
type Navigator interface {
	Navigate(route Route)
	// Clear withdraws a navigation the client has not performed yet.
	Clear()
}

// IntentDecoder parses deep links.
type IntentDecoder interface {
	Decode(raw string) deeplink.Intent
}

// Recorder observes resolution passes.
type Recorder interface {
	ObservePass(state string, navigated bool, duration time.Duration)
	ObserveDeepLink(kind string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePass(string, bool, time.Duration) {}
func (nopRecorder) ObserveDeepLink(string)                  {}

// Dependencies wires a Resolver to its client's adapters.
type Dependencies struct {
	Sessions  SessionSource
	Exchanger CodeExchanger
	Records   RecordStore
	Navigator Navigator
	Decoder   IntentDecoder
	Recorder  Recorder
	Logger    *slog.Logger
}

// Outcome reports what one pass did.
type Outcome struct {
	State     State      `json:"state"`
	Role      users.Role `json:"role,omitempty"`
	Navigate  *Route     `json:"-"`
	SignedOut bool       `json:"signedOut"`
	LinkError string     `json:"linkError,omitempty"`
}

// Resolver runs resolution passes for one client. Passes are serialized; a
// navigation already issued from the same location is not issued again.
type Resolver struct {
	sessions  SessionSource
	exchanger CodeExchanger
	records   RecordStore
	nav       Navigator
	decoder   IntentDecoder
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	// mu serializes passes and guards location and last.
	mu       sync.Mutex
	location Location
	last     *issued

	intentMu  sync.Mutex
	pending   *deeplink.Intent
	intentSeq uint64

	lifeMu sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type issued struct {
	route Route
	from  Location
}

// NewResolver builds a Resolver. Exchanger and Recorder may be nil.
func NewResolver(deps Dependencies) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	decoder := deps.Decoder
	if decoder == nil {
		decoder = deeplink.NewDecoder("", "", logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		sessions:  deps.Sessions,
		exchanger: deps.Exchanger,
		records:   deps.Records,
		nav:       deps.Navigator,
		decoder:   decoder,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnDeepLink decodes raw and queues it for the next pass. A newer link replaces
// one that has not been consumed yet.
func (r *Resolver) OnDeepLink(raw string) deeplink.Intent {
	intent := r.decoder.Decode(raw)
	r.recorder.ObserveDeepLink(string(intent.Kind))
	if intent.Kind == deeplink.KindNone {
		return intent
	}

	r.intentMu.Lock()
	if r.pending != nil {
		r.logger.Debug("deep link superseded", "previous", *r.pending, "next", intent)
	}
	r.intentSeq++
	r.pending = &intent
	r.intentMu.Unlock()
	return intent
}

// ResolveAndNavigate runs one pass for the client at loc. The returned error is
// set only when the pass was deferred; the client then stays where it is.
func (r *Resolver) ResolveAndNavigate(ctx context.Context, loc Location) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pass(ctx, loc)
}

// ResolveCurrent runs a pass at the location the client last reported.
func (r *Resolver) ResolveCurrent(ctx context.Context) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pass(ctx, r.location)
}

// HandleSessionEvent re-runs resolution in the background at the last reported location.
func (r *Resolver) HandleSessionEvent(ev session.Event) {
	if ev.Kind == session.EventSignedOut {
		r.dropIntent()
	}

	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return
	}
	r.wg.Add(1)
	r.lifeMu.Unlock()

	go func() {
		defer r.wg.Done()
		r.background(ev.Kind)
	}()
}

// Close stops background passes and waits for running ones to finish.
func (r *Resolver) Close() {
	r.lifeMu.Lock()
	if r.closed {
		r.lifeMu.Unlock()
		return
	}
	r.closed = true
	r.lifeMu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// idle waits for background passes started so far.
func (r *Resolver) idle() {
	r.wg.Wait()
}

func (r *Resolver) background(kind session.EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil || !r.location.Known() {
		return
	}
	if _, err := r.pass(r.ctx, r.location); err != nil {
		r.logger.Warn("background resolution deferred", "trigger", kind, "error", err)
	}
}

// pass runs with r.mu held.
func (r *Resolver) pass(ctx context.Context, loc Location) (out Outcome, err error) {
	start := r.now()
	defer func() {
		r.recorder.ObservePass(string(out.State), out.Navigate != nil, r.now().Sub(start))
	}()

	if r.last != nil && !r.last.from.Equal(loc) {
		r.last = nil
	}
	r.location = loc

	in := Inputs{Location: loc}
	intent, seq := r.takeIntent()

	if intent != nil && intent.Kind == deeplink.KindPasswordReset {
		in.ResetCode = intent.Code
		return r.apply(ctx, Evaluate(in), ""), nil
	}

	if intent != nil && intent.Kind == deeplink.KindAuthCallback {
		linkErr, err := r.consumeCallback(ctx, *intent, seq)
		if err != nil {
			return r.deferred(loc, "auth callback", err), err
		}
		in.LinkError = linkErr
	}

	sess, err := r.sessions.Current(ctx)
	if err != nil {
		return r.deferred(loc, "load session", err), err
	}
	in.Session = sess

	if sess.Confirmed() {
		record, denied, err := r.loadRecord(ctx, sess)
		if err != nil {
			return r.deferred(loc, "load user record", err), err
		}
		in.Record = record
		in.AccessDenied = denied
	}

	return r.apply(ctx, Evaluate(in), in.LinkError), nil
}

// apply carries out a decision: sign-out first, then at most one navigation.
func (r *Resolver) apply(ctx context.Context, d Decision, linkErr string) Outcome {
	out := Outcome{State: d.State, Role: d.Role, LinkError: linkErr}

	if d.SignOut {
		if err := r.sessions.SignOut(ctx); err != nil {
			r.logger.Error("sign-out before redirect failed", "state", d.State, "error", err)
		}
		out.SignedOut = true
	}

	if d.Navigate == nil {
		// The client is already somewhere acceptable; an older navigation must not move it.
		r.nav.Clear()
		r.last = nil
		return out
	}
	if r.last != nil && r.last.route.Equal(*d.Navigate) {
		return out
	}

	route := *d.Navigate
	r.nav.Navigate(route)
	r.last = &issued{route: route, from: r.location}
	out.Navigate = &route
	r.logger.Info("navigation issued", "state", d.State, "from", r.location.String(), "to", route.String())
	return out
}

// deferred leaves the client in place after a failure.
func (r *Resolver) deferred(loc Location, step string, err error) Outcome {
	r.logger.Warn("resolution deferred", "step", step, "location", loc.String(), "error", err)
	return Outcome{State: StateDeferred}
}

// consumeCallback exchanges an auth-callback link. It returns a link error code
// for terminal failures, or an error when the exchange should be retried.
func (r *Resolver) consumeCallback(ctx context.Context, intent deeplink.Intent, seq uint64) (string, error) {
	if intent.Failed() {
		code := intent.ErrorCode
		if code == "" {
			code = LinkErrorFailed
		}
		r.logger.Info("auth callback reported provider error", "error", code, "description", intent.ErrorDescription)
		return code, nil
	}
	if r.exchanger == nil {
		r.logger.Warn("auth callback received but no exchanger configured")
		return LinkErrorFailed, nil
	}

	var (
		sess *session.Session
		err  error
	)
	if intent.HasCode() {
		sess, err = r.exchanger.ExchangeAuthCode(ctx, intent.Code)
	} else {
		sess, err = r.exchanger.SessionFromTokens(ctx, intent.AccessToken, intent.RefreshToken)
	}

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrTransient):
		r.requeue(intent, seq)
		return "", fmt.Errorf("exchange auth callback: %w", err)
	case errors.Is(err, auth.ErrInvalidCode), errors.Is(err, auth.ErrInvalidToken):
		r.logger.Info("auth callback link rejected", "error", err)
		return LinkErrorExpired, nil
	default:
		r.logger.Warn("auth callback exchange failed", "error", err)
		return LinkErrorFailed, nil
	}

	if err := r.sessions.Establish(ctx, sess); err != nil {
		return "", fmt.Errorf("establish callback session: %w", err)
	}
	return "", nil
}

// loadRecord fetches the session user's record, creating it from the role in
// session metadata when it is missing.
func (r *Resolver) loadRecord(ctx context.Context, sess *session.Session) (*users.Record, bool, error) {
	record, err := r.records.Get(ctx, sess.UserID)
	switch {
	case err == nil:
		return &record, false, nil
	case errors.Is(err, users.ErrPermission):
		r.logger.Warn("user record access denied, forcing sign-out", "user_id", sess.UserID, "error", err)
		return nil, true, nil
	case !errors.Is(err, users.ErrNotFound):
		return nil, false, err
	}

	role := users.Role(sess.Metadata.Role)
	if !role.IsValid() {
		return nil, false, nil
	}

	created, err := r.records.Insert(ctx, users.Record{ID: sess.UserID, Role: role})
	switch {
	case err == nil:
		r.logger.Info("user record created from session metadata", "user_id", sess.UserID, "role", role)
		return &created, false, nil
	case errors.Is(err, users.ErrConflict):
		existing, err := r.records.Get(ctx, sess.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("reload user record: %w", err)
		}
		return &existing, false, nil
	case errors.Is(err, users.ErrPermission):
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("create user record: %w", err)
	}
}

func (r *Resolver) takeIntent() (*deeplink.Intent, uint64) {
	r.intentMu.Lock()
	defer r.intentMu.Unlock()
	intent := r.pending
	r.pending = nil
	return intent, r.intentSeq
}

// requeue restores intent unless a newer link arrived meanwhile.
func (r *Resolver) requeue(intent deeplink.Intent, seq uint64) {
	r.intentMu.Lock()
	defer r.intentMu.Unlock()
	if r.intentSeq == seq && r.pending == nil {
		r.pending = &intent
	}
}

func (r *Resolver) dropIntent() {
	r.intentMu.Lock()
	defer r.intentMu.Unlock()
	r.pending = nil
}

// Pending reports the kind of the queued deep link, if any.
func (r *Resolver) Pending() deeplink.Kind {
	r.intentMu.Lock()
	defer r.intentMu.Unlock()
	if r.pending == nil {
		return deeplink.KindNone
	}
	return r.pending.Kind
}

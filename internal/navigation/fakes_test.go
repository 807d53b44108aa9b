package navigation

import (
	"context"
	"sync"
	"testing"

	"gigbridge/internal/deeplink"
	"gigbridge/internal/platform/logging"
	"gigbridge/internal/session"
	"gigbridge/internal/users"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// journal records side effects in order across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeSessions struct {
	mu           sync.Mutex
	log          *journal
	current      *session.Session
	currentErr   error
	currentCalls int
	signOutCalls int
	established  []*session.Session
}

func (f *fakeSessions) Current(context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

func (f *fakeSessions) Establish(_ context.Context, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
	f.established = append(f.established, s)
	f.log.add("establish")
	return nil
}

func (f *fakeSessions) SignOut(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	f.current = nil
	f.log.add("sign_out")
	return nil
}

func (f *fakeSessions) set(s *session.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = s
}

func (f *fakeSessions) calls() (current, signOut int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls, f.signOutCalls
}

type fakeExchanger struct {
	exchange   func(ctx context.Context, code string) (*session.Session, error)
	fromTokens func(ctx context.Context, access, refresh string) (*session.Session, error)
}

func (f *fakeExchanger) ExchangeAuthCode(ctx context.Context, code string) (*session.Session, error) {
	return f.exchange(ctx, code)
}

func (f *fakeExchanger) SessionFromTokens(ctx context.Context, access, refresh string) (*session.Session, error) {
	return f.fromTokens(ctx, access, refresh)
}

type fakeRecords struct {
	*users.InMemoryRepository
	mu        sync.Mutex
	getErr    error
	insertErr error
	gets      int
	inserts   int
}

func newFakeRecords(initial ...users.Record) *fakeRecords {
	return &fakeRecords{InMemoryRepository: users.NewInMemoryRepository(initial...)}
}

func (f *fakeRecords) Get(ctx context.Context, id uuid.UUID) (users.Record, error) {
	f.mu.Lock()
	f.gets++
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return users.Record{}, err
	}
	return f.InMemoryRepository.Get(ctx, id)
}

func (f *fakeRecords) Insert(ctx context.Context, record users.Record) (users.Record, error) {
	f.mu.Lock()
	f.inserts++
	err := f.insertErr
	f.mu.Unlock()
	if err != nil {
		return users.Record{}, err
	}
	return f.InMemoryRepository.Insert(ctx, record)
}

type recordingNavigator struct {
	mu     sync.Mutex
	log    *journal
	routes []string
	clears int
}

func (n *recordingNavigator) Navigate(route Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route.String())
	n.log.add("navigate " + route.String())
}

func (n *recordingNavigator) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clears++
}

func (n *recordingNavigator) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

type harness struct {
	resolver  *Resolver
	sessions  *fakeSessions
	records   *fakeRecords
	nav       *recordingNavigator
	exchanger *fakeExchanger
	log       *journal
}

func newHarness(t *testing.T, sess *session.Session, records ...users.Record) *harness {
	t.Helper()
	j := &journal{}
	h := &harness{
		sessions:  &fakeSessions{log: j, current: sess},
		records:   newFakeRecords(records...),
		nav:       &recordingNavigator{log: j},
		exchanger: &fakeExchanger{},
		log:       j,
	}
	h.resolver = NewResolver(Dependencies{
		Sessions:  h.sessions,
		Exchanger: h.exchanger,
		Records:   h.records,
		Navigator: h.nav,
		Decoder:   deeplink.NewDecoder("app", "links.example.com", logging.Discard()),
		Logger:    logging.Discard(),
	})
	t.Cleanup(h.resolver.Close)
	return h
}

func (h *harness) resolve(t *testing.T, location string) Outcome {
	t.Helper()
	out, err := h.resolver.ResolveAndNavigate(context.Background(), ParseLocation(location))
	require.NoError(t, err)
	return out
}

func confirmed(role string) *session.Session {
	return &session.Session{
		UserID:         uuid.New(),
		Email:          "user@example.com",
		EmailConfirmed: true,
		AccessToken:    "access",
		Metadata:       session.Metadata{Role: role},
	}
}

func unconfirmed() *session.Session {
	s := confirmed("")
	s.EmailConfirmed = false
	return s
}

// Package clients owns the per-app-instance context objects: one session
// store, resolver and navigation mailbox for every running client.
package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gigbridge/internal/navigation"
	"gigbridge/internal/session"

	"github.com/google/uuid"
)

// ErrUnknownClient is returned when a client id has no live instance and no persisted session.
var ErrUnknownClient = errors.New("unknown client")

// Gauge reports the number of registered clients.
type Gauge interface {
	SetActiveClients(n int)
}

// Config wires every client the registry creates.
type Config struct {
	Sessions   session.Repository
	Backend    session.Backend
	Exchanger  navigation.CodeExchanger
	Records    navigation.RecordStore
	Decoder    navigation.IntentDecoder
	Recorder   navigation.Recorder
	Gauge      Gauge
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// Client is one running app instance.
type Client struct {
	ID       string
	Sessions *session.Store
	Resolver *navigation.Resolver
	Mailbox  *navigation.Mailbox

	unsubscribe func()
	mu          sync.Mutex
	lastSeen    time.Time
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) close() {
	c.unsubscribe()
	c.Resolver.Close()
}

// Registry tracks live clients.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		clients: make(map[string]*Client),
	}
}

// Open creates a client with a fresh id.
func (r *Registry) Open() *Client {
	c := r.build(uuid.NewString())
	r.add(c)
	r.logger.Info("client opened", "client_id", c.ID)
	return c
}

// Get returns the live client for id.
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	r.mu.Unlock()
	if ok {
		c.touch(r.now())
	}
	return c, ok
}

// Resume returns the live client for id, or rebuilds it when a session is still
// persisted for that id (after a restart or an idle eviction).
func (r *Registry) Resume(ctx context.Context, id string) (*Client, error) {
	if c, ok := r.Get(id); ok {
		return c, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUnknownClient
	}

	if _, err := r.cfg.Sessions.Load(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnknownClient
		}
		return nil, fmt.Errorf("load persisted session: %w", err)
	}

	r.mu.Lock()
	if existing, ok := r.clients[id]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	c := r.build(id)
	r.clients[id] = c
	n := len(r.clients)
	r.mu.Unlock()

	r.report(n)
	r.logger.Info("client resumed", "client_id", id)
	return c, nil
}

// Close tears down the client. Its persisted session is left alone.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	c, ok := r.clients[id]
	delete(r.clients, id)
	n := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return false
	}
	c.close()
	r.report(n)
	r.logger.Info("client closed", "client_id", id)
	return true
}

// Sweep closes clients not seen for longer than idle and returns how many it closed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Client
	for id, c := range r.clients {
		if c.idleSince().Before(cutoff) {
			stale = append(stale, c)
			delete(r.clients, id)
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	for _, c := range stale {
		c.close()
	}
	if len(stale) > 0 {
		r.report(n)
		r.logger.Info("idle clients evicted", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps idle clients every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}

// Shutdown closes every client.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		all = append(all, c)
		delete(r.clients, id)
	}
	r.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	r.report(0)
}

// Len returns the number of live clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Registry) add(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.report(n)
}

func (r *Registry) report(n int) {
	if r.cfg.Gauge != nil {
		r.cfg.Gauge.SetActiveClients(n)
	}
}

func (r *Registry) build(id string) *Client {
	logger := r.logger.With("client_id", id)
	store := session.NewStore(id, r.cfg.Sessions, r.cfg.Backend, r.cfg.SessionTTL, r.logger)
	mailbox := &navigation.Mailbox{}
	resolver := navigation.NewResolver(navigation.Dependencies{
		Sessions:  store,
		Exchanger: r.cfg.Exchanger,
		Records:   r.cfg.Records,
		Navigator: mailbox,
		Decoder:   r.cfg.Decoder,
		Recorder:  r.cfg.Recorder,
		Logger:    logger,
	})

	unsubscribe := store.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventSignedOut {
			mailbox.Clear()
		}
		resolver.HandleSessionEvent(ev)
	})

	return &Client{
		ID:          id,
		Sessions:    store,
		Resolver:    resolver,
		Mailbox:     mailbox,
		unsubscribe: unsubscribe,
		lastSeen:    r.now(),
	}
}

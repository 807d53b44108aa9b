package navigation

import "sync"

// Mailbox is a Navigator that holds the latest navigation until the client collects it.
type Mailbox struct {
	mu      sync.Mutex
	pending *Route
}

// Navigate replaces any uncollected navigation with route.
func (m *Mailbox) Navigate(route Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &route
}

// Take returns and clears the pending navigation.
func (m *Mailbox) Take() (Route, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Route{}, false
	}
	route := *m.pending
	m.pending = nil
	return route, true
}

// Clear drops the pending navigation.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

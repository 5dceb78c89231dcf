package store

import (
	"fmt"

	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// Save creates a session from a captured snapshot. The name is normalized;
// with no explicit order the session appends at max+1 for its domain, and
// an explicit order shifts every sibling at or above it up by one first
// (insertion into a dense ordered list). The new session becomes the
// domain's active session.
func (m *Manager) Save(domain, name string, order *int, snapshot types.StoredSession) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := 0
	if order != nil {
		target = *order
	} else {
		max := 0
		for _, s := range m.state.Sessions {
			if s.Domain == domain && s.Order > max {
				max = s.Order
			}
		}
		target = max + 1
	}

	// Make room: shift siblings at or above the requested order.
	for i := range m.state.Sessions {
		s := &m.state.Sessions[i]
		if s.Domain == domain && s.Order >= target {
			s.Order++
		}
	}

	now := m.now()
	session := types.Session{
		ID:             m.newID(),
		Name:           normalizeName(name),
		Order:          target,
		Domain:         domain,
		Cookies:        snapshot.Cookies,
		LocalStorage:   snapshot.LocalStorage,
		SessionStorage: snapshot.SessionStorage,
		CreatedAt:      now,
		LastUsed:       now,
	}
	if session.Cookies == nil {
		session.Cookies = []types.Cookie{}
	}
	if session.LocalStorage == nil {
		session.LocalStorage = map[string]string{}
	}
	if session.SessionStorage == nil {
		session.SessionStorage = map[string]string{}
	}

	m.state.Sessions = append(m.state.Sessions, session)
	m.state.Active[domain] = session.ID

	if err := m.persist(); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

// Rename updates a session's name unconditionally and optionally moves it
// to a new order. The move is a contiguous-range shift of the siblings
// between the old and new position, equivalent to removing the session and
// reinserting it with a make-room shift.
func (m *Manager) Rename(sessionID, newName string, newOrder *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(sessionID)
	if i < 0 {
		return ErrNotFound
	}
	session := &m.state.Sessions[i]
	session.Name = normalizeName(newName)

	if newOrder != nil && *newOrder != session.Order {
		oldOrder := session.Order
		target := *newOrder

		for j := range m.state.Sessions {
			s := &m.state.Sessions[j]
			if s.ID == sessionID || s.Domain != session.Domain {
				continue
			}
			switch {
			case target < oldOrder && s.Order >= target && s.Order < oldOrder:
				s.Order++
			case target > oldOrder && s.Order > oldOrder && s.Order <= target:
				s.Order--
			}
		}
		session.Order = target
	}

	return m.persist()
}

// Delete removes a session and compacts the sibling orders above it so the
// domain's orders stay dense. The active-map entry for the session (if any)
// is dropped with it.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(sessionID)
	if i < 0 {
		return ErrNotFound
	}
	deleted := m.state.Sessions[i]
	m.state.Sessions = append(m.state.Sessions[:i], m.state.Sessions[i+1:]...)

	for j := range m.state.Sessions {
		s := &m.state.Sessions[j]
		if s.Domain == deleted.Domain && s.Order > deleted.Order {
			s.Order--
		}
	}

	if m.state.Active[deleted.Domain] == deleted.ID {
		delete(m.state.Active, deleted.Domain)
	}

	return m.persist()
}

// Replace overwrites a session's payload with a fresh snapshot and bumps
// lastUsed. Order and name are untouched. The session becomes its domain's
// active session, since its payload now mirrors the live state.
func (m *Manager) Replace(sessionID string, snapshot types.StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(sessionID)
	if i < 0 {
		return ErrNotFound
	}
	session := &m.state.Sessions[i]

	session.Cookies = snapshot.Cookies
	if session.Cookies == nil {
		session.Cookies = []types.Cookie{}
	}
	session.LocalStorage = snapshot.LocalStorage
	if session.LocalStorage == nil {
		session.LocalStorage = map[string]string{}
	}
	session.SessionStorage = snapshot.SessionStorage
	if session.SessionStorage == nil {
		session.SessionStorage = map[string]string{}
	}
	session.LastUsed = m.now()
	m.state.Active[session.Domain] = session.ID

	return m.persist()
}

// MarkSwitched records that a session was just applied to the browser: its
// domain's active-map entry points at it and lastUsed bumps.
func (m *Manager) MarkSwitched(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(sessionID)
	if i < 0 {
		return ErrNotFound
	}
	session := &m.state.Sessions[i]
	session.LastUsed = m.now()
	m.state.Active[session.Domain] = session.ID

	return m.persist()
}

// Detach drops a domain's active-map entry without touching any stored
// session, used when the user starts a fresh unassociated session.
func (m *Manager) Detach(domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.state.Active, domain)
	return m.persist()
}

// Clear removes sessions by scope: ScopeCurrent drops one domain's sessions
// and its active entry, ScopeAll empties the whole collection and map.
func (m *Manager) Clear(scope types.Scope, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch scope {
	case types.ScopeCurrent:
		kept := m.state.Sessions[:0]
		for _, s := range m.state.Sessions {
			if s.Domain != domain {
				kept = append(kept, s)
			}
		}
		m.state.Sessions = kept
		delete(m.state.Active, domain)
	case types.ScopeAll:
		m.state.Sessions = []types.Session{}
		m.state.Active = types.ActiveSessions{}
	default:
		return fmt.Errorf("invalid clear option %q", scope)
	}

	return m.persist()
}

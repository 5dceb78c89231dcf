// Package store owns the persisted session collection and the
// active-session map, and enforces the per-domain order invariants on every
// mutation.
//
// The working copy is an explicit State loaded once when the store opens;
// every mutating operation rewrites the persisted blobs in full. The
// persisted store is the single source of truth: there is no delta
// persistence and no merge-on-conflict (last writer wins).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/kv"
	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/shared/id"
	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// ErrNotFound is returned when an operation names a session id that does
// not exist in the collection.
var ErrNotFound = errors.New("Session not found")

// DefaultSessionName replaces empty or whitespace-only names.
const DefaultSessionName = "Unnamed Session"

// State is the store's working copy: the full session collection, the
// domain -> active session id map, and the UI listing preference.
type State struct {
	Sessions []types.Session
	Active   types.ActiveSessions
	ViewMode types.ViewMode
}

// Manager owns a State and keeps it in sync with the kv store.
type Manager struct {
	mu     sync.Mutex
	kv     kv.Store
	state  State
	logger *logging.Logger

	// Injectable for deterministic tests.
	now   func() int64
	newID func() string
}

// Open loads the persisted state into a new Manager. Missing blobs mean a
// fresh install; undecodable blobs are logged and replaced with empty state
// rather than blocking startup.
func Open(store kv.Store, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		kv:     store,
		logger: logger.Component("store"),
		now:    func() int64 { return time.Now().UnixMilli() },
		newID:  func() string { return id.NewSessionID().String() },
	}
	m.load()
	return m, nil
}

func (m *Manager) load() {
	m.state = State{
		Sessions: []types.Session{},
		Active:   types.ActiveSessions{},
		ViewMode: types.ViewModeList,
	}

	if data, err := m.kv.Get(kv.KeySessions); err == nil {
		if err := json.Unmarshal(data, &m.state.Sessions); err != nil {
			m.logger.Warn("undecodable sessions blob, starting empty", zap.Error(err))
			m.state.Sessions = []types.Session{}
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		m.logger.Warn("failed to load sessions blob", zap.Error(err))
	}

	if data, err := m.kv.Get(kv.KeyActiveSessions); err == nil {
		if err := json.Unmarshal(data, &m.state.Active); err != nil {
			m.logger.Warn("undecodable active-sessions blob, starting empty", zap.Error(err))
			m.state.Active = types.ActiveSessions{}
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		m.logger.Warn("failed to load active-sessions blob", zap.Error(err))
	}

	if data, err := m.kv.Get(kv.KeyViewMode); err == nil {
		var mode types.ViewMode
		if err := json.Unmarshal(data, &mode); err == nil && (mode == types.ViewModeList || mode == types.ViewModeGrid) {
			m.state.ViewMode = mode
		}
	}
}

// persist rewrites every persisted blob from the working copy.
func (m *Manager) persist() error {
	sessions, err := json.Marshal(m.state.Sessions)
	if err != nil {
		return fmt.Errorf("failed to encode sessions: %w", err)
	}
	active, err := json.Marshal(m.state.Active)
	if err != nil {
		return fmt.Errorf("failed to encode active sessions: %w", err)
	}
	mode, err := json.Marshal(m.state.ViewMode)
	if err != nil {
		return fmt.Errorf("failed to encode view mode: %w", err)
	}

	if err := m.kv.Set(kv.KeySessions, sessions); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	if err := m.kv.Set(kv.KeyActiveSessions, active); err != nil {
		return fmt.Errorf("failed to persist active sessions: %w", err)
	}
	if err := m.kv.Set(kv.KeyViewMode, mode); err != nil {
		return fmt.Errorf("failed to persist view mode: %w", err)
	}
	return nil
}

// Sessions returns a copy of the whole collection.
func (m *Manager) Sessions() []types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.Session, len(m.state.Sessions))
	copy(out, m.state.Sessions)
	return out
}

// ForDomain returns the domain's sessions sorted by order.
func (m *Manager) ForDomain(domain string) []types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Session
	for _, s := range m.state.Sessions {
		if s.Domain == domain {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (types.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.index(sessionID); i >= 0 {
		return m.state.Sessions[i], true
	}
	return types.Session{}, false
}

// ActiveFor returns the active session id tracked for a domain.
func (m *Manager) ActiveFor(domain string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.state.Active[domain]
	return sid, ok
}

// ViewMode returns the persisted listing preference.
func (m *Manager) ViewMode() types.ViewMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ViewMode
}

// SetViewMode persists a new listing preference.
func (m *Manager) SetViewMode(mode types.ViewMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mode != types.ViewModeList && mode != types.ViewModeGrid {
		return fmt.Errorf("invalid view mode %q", mode)
	}
	m.state.ViewMode = mode
	return m.persist()
}

// index finds a session's position by id; -1 when absent. Caller holds mu.
func (m *Manager) index(sessionID string) int {
	for i := range m.state.Sessions {
		if m.state.Sessions[i].ID == sessionID {
			return i
		}
	}
	return -1
}

// normalizeName trims and falls back to the default placeholder.
func normalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return DefaultSessionName
	}
	return trimmed
}

package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// Import rejections. These are fail-fast: nothing is mutated unless the
// whole document validates.
var (
	ErrInvalidJSON   = errors.New("Invalid JSON format")
	ErrInvalidImport = errors.New("Invalid import data format")
	ErrInvalidRecord = errors.New("Invalid session data in import file")
)

// Export builds the versioned export document. ScopeCurrent filters by
// domain; ScopeAll includes everything. Records are included verbatim.
func (m *Manager) Export(scope types.Scope, domain string) types.ExportDocument {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := []types.Session{}
	for _, s := range m.state.Sessions {
		if scope == types.ScopeCurrent && s.Domain != domain {
			continue
		}
		sessions = append(sessions, s)
	}

	return types.ExportDocument{
		Version:    types.ExportVersion,
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Sessions:   sessions,
	}
}

// ExportJSON renders the export document pretty-printed, the way the
// download file is written.
func (m *Manager) ExportJSON(scope types.Scope, domain string) (string, error) {
	doc := m.Export(scope, domain)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Import parses and validates an export document, then merges its sessions
// into the collection. Validation is fail-fast: a sessions array must be
// present and every record must carry a non-empty id, domain, and name, or
// nothing is imported. A missing cookies array or storage map defaults to
// empty. Every imported session gets a freshly minted id (imported ids are
// never trusted), while imported order values are kept verbatim (density
// against existing domain orders is not re-established; see DESIGN.md).
func (m *Manager) Import(data []byte) error {
	var doc types.ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ErrInvalidJSON
	}
	return m.merge(doc.Sessions, types.ImportModeMerge)
}

// ImportNew applies an ImportPayload: merge appends to the collection,
// replace swaps the whole collection out. Ids are regenerated either way.
func (m *Manager) ImportNew(payload types.ImportPayload) error {
	mode := payload.Mode
	if mode == "" {
		mode = types.ImportModeMerge
	}
	return m.merge(payload.Sessions, mode)
}

func (m *Manager) merge(incoming []types.Session, mode types.ImportMode) error {
	if incoming == nil {
		return ErrInvalidImport
	}
	for _, s := range incoming {
		if s.ID == "" || s.Domain == "" || s.Name == "" {
			return ErrInvalidRecord
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	appended := make([]types.Session, 0, len(incoming))
	for _, s := range incoming {
		s.ID = m.newID()
		if s.Cookies == nil {
			s.Cookies = []types.Cookie{}
		}
		if s.LocalStorage == nil {
			s.LocalStorage = map[string]string{}
		}
		if s.SessionStorage == nil {
			s.SessionStorage = map[string]string{}
		}
		if s.CreatedAt == 0 {
			s.CreatedAt = now
		}
		if s.LastUsed == 0 {
			s.LastUsed = now
		}
		appended = append(appended, s)
	}

	if mode == types.ImportModeReplace {
		m.state.Sessions = appended
		m.state.Active = types.ActiveSessions{}
	} else {
		m.state.Sessions = append(m.state.Sessions, appended...)
	}

	return m.persist()
}

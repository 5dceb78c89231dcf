package types

// SameSite values mirror the browser's cookie attribute. "unspecified" is
// never written back on restore.
const (
	SameSiteUnspecified = "unspecified"
	SameSiteNoRestrict  = "no_restriction"
	SameSiteLax         = "lax"
	SameSiteStrict      = "strict"
)

// Cookie is a single cookie record inside a snapshot. Snapshots carry
// cookies wholesale; only the cookie handler interprets these fields.
type Cookie struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Domain     string  `json:"domain"`
	Path       string  `json:"path"`
	Secure     bool    `json:"secure"`
	HTTPOnly   bool    `json:"httpOnly"`
	SameSite   string  `json:"sameSite,omitempty"`
	Session    bool    `json:"session"`
	Expires    float64 `json:"expirationDate,omitempty"`
	StoreID    string  `json:"storeId,omitempty"`
	HostOnly   bool    `json:"hostOnly,omitempty"`
	Partitioned bool   `json:"partitioned,omitempty"`
}

// StoredSession is the live-state snapshot captured from (or applied to) a
// page: its cookies plus both page storage areas.
type StoredSession struct {
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
}

// EmptyStoredSession returns a snapshot with no cookies and empty storage
// maps, used as the fallback when capture yields nothing.
func EmptyStoredSession() StoredSession {
	return StoredSession{
		Cookies:        []Cookie{},
		LocalStorage:   map[string]string{},
		SessionStorage: map[string]string{},
	}
}

// Session is a persisted snapshot with identity and placement. Order is a
// per-domain rank kept dense (1..N) by the store; Domain never changes after
// creation.
type Session struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Order          int               `json:"order"`
	Domain         string            `json:"domain"`
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
	CreatedAt      int64             `json:"createdAt"`
	LastUsed       int64             `json:"lastUsed"`
}

// Snapshot returns the session's payload as a StoredSession.
func (s *Session) Snapshot() StoredSession {
	return StoredSession{
		Cookies:        s.Cookies,
		LocalStorage:   s.LocalStorage,
		SessionStorage: s.SessionStorage,
	}
}

// ActiveSessions maps a domain to the id of the session currently considered
// live on that domain. An absent entry means the browser state is
// unassociated.
type ActiveSessions map[string]string

// ViewMode is a UI listing preference persisted alongside the sessions.
type ViewMode string

const (
	ViewModeList ViewMode = "list"
	ViewModeGrid ViewMode = "grid"
)

// ExportDocument is the versioned export/import file format.
type ExportDocument struct {
	Version    string    `json:"version"`
	ExportDate string    `json:"exportDate"`
	Sessions   []Session `json:"sessions"`
}

// ExportVersion is written into every export document.
const ExportVersion = "1.0"

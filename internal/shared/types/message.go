package types

import "encoding/json"

// Action discriminates messages from the UI layer.
type Action string

const (
	ActionGetCurrentSession Action = "getCurrentSession"
	ActionSwitchSession     Action = "switchSession"
	ActionClearSession      Action = "clearSession"
	ActionClearSessions     Action = "clearSessions"
	ActionExportSessions    Action = "exportSessions"
	ActionImportSessions    Action = "importSessions"
	ActionImportSessionsNew Action = "IMPORT_SESSIONS_NEW"
)

// Scope selects between the current domain and everything.
type Scope string

const (
	ScopeCurrent Scope = "current"
	ScopeAll     Scope = "all"
)

// ImportMode selects how imported sessions combine with existing ones.
type ImportMode string

const (
	ImportModeMerge   ImportMode = "merge"
	ImportModeReplace ImportMode = "replace"
)

// Message is a tagged request from the UI layer. Only the fields relevant to
// the Action are populated; the router validates per-action requirements.
type Message struct {
	Action Action `json:"action"`

	// getCurrentSession, clearSession, clearSessions, exportSessions
	Domain string `json:"domain,omitempty"`

	// getCurrentSession, switchSession, clearSession
	TabID string `json:"tabId,omitempty"`

	// switchSession
	SessionData *Session `json:"sessionData,omitempty"`

	// clearSessions
	ClearOption Scope `json:"clearOption,omitempty"`

	// exportSessions
	ExportOption Scope `json:"exportOption,omitempty"`

	// importSessions (raw JSON document), IMPORT_SESSIONS_NEW (ImportPayload)
	Data json.RawMessage `json:"data,omitempty"`
}

// ImportPayload is the body of an IMPORT_SESSIONS_NEW message.
type ImportPayload struct {
	Sessions []Session  `json:"sessions"`
	Mode     ImportMode `json:"mode"`
}

// Result represents an operation result returned to the UI layer. Every
// response is this envelope; raw errors never cross the boundary.
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
}

// Ok builds a success result carrying data (may be nil).
func Ok(data interface{}) *Result {
	return &Result{Success: true, Data: data}
}

// Fail builds a failure result with a message.
func Fail(msg string) *Result {
	return &Result{Success: false, Error: &msg}
}

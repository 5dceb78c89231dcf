// Package router maps tagged messages from the UI layer onto store and
// live-browser operations.
//
// Every request walks the same path: permission gate, action lookup,
// handler, result envelope. No raw error ever crosses the boundary; every
// outcome is a types.Result.
package router

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/grants"
	"github.com/sessionvault/sessionvault/internal/infrastructure/monitoring"
	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// ErrUnknownAction is the failure message for unrecognized action tags.
const ErrUnknownAction = "Unknown action"

// Live is the coordinator surface the router drives.
type Live interface {
	Current(ctx context.Context, domain, tabID string) (types.StoredSession, error)
	Switch(ctx context.Context, session *types.Session, tabID string) error
	Clear(ctx context.Context, domain, tabID string) error
	ClearDomain(ctx context.Context, domain string) error
}

// Store is the session-store surface the router drives.
type Store interface {
	MarkSwitched(sessionID string) error
	Clear(scope types.Scope, domain string) error
	ExportJSON(scope types.Scope, domain string) (string, error)
	Import(data []byte) error
	ImportNew(payload types.ImportPayload) error
}

// Gate is the permission precondition checked before any dispatch.
type Gate interface {
	Verify() error
}

type handlerFunc func(ctx context.Context, msg types.Message) *types.Result

// Router dispatches messages by action tag.
type Router struct {
	handlers sync.Map
	gate     Gate
	live     Live
	store    Store
	metrics  *monitoring.Metrics
	logger   *logging.Logger
}

// New creates a router with all actions registered.
func New(gate Gate, live Live, store Store, metrics *monitoring.Metrics, logger *logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Router{
		gate:    gate,
		live:    live,
		store:   store,
		metrics: metrics,
		logger:  logger.Component("router"),
	}

	r.register(types.ActionGetCurrentSession, r.getCurrentSession)
	r.register(types.ActionSwitchSession, r.switchSession)
	r.register(types.ActionClearSession, r.clearSession)
	r.register(types.ActionClearSessions, r.clearSessions)
	r.register(types.ActionExportSessions, r.exportSessions)
	r.register(types.ActionImportSessions, r.importSessions)
	r.register(types.ActionImportSessionsNew, r.importSessionsNew)

	return r
}

func (r *Router) register(action types.Action, h handlerFunc) {
	r.handlers.Store(action, h)
}

// Dispatch runs one message through the gate and its handler. The returned
// result is never nil and carries every failure as a message, including
// permission denial and unknown actions.
func (r *Router) Dispatch(ctx context.Context, msg types.Message) *types.Result {
	timer := monitoring.NewTimer(r.metrics, string(msg.Action))

	if err := r.gate.Verify(); err != nil {
		r.logger.Warn("dispatch blocked by permission gate",
			zap.String("action", string(msg.Action)))
		timer.Stop("denied")
		return types.Fail(grants.ErrPermissionDenied.Error())
	}

	val, ok := r.handlers.Load(msg.Action)
	if !ok {
		timer.Stop("unknown")
		return types.Fail(ErrUnknownAction)
	}

	result := val.(handlerFunc)(ctx, msg)
	if result.Success {
		timer.Stop("success")
	} else {
		timer.Stop("error")
	}
	return result
}

func (r *Router) getCurrentSession(ctx context.Context, msg types.Message) *types.Result {
	snapshot, err := r.live.Current(ctx, msg.Domain, msg.TabID)
	if err != nil {
		return types.Fail(err.Error())
	}
	return types.Ok(snapshot)
}

func (r *Router) switchSession(ctx context.Context, msg types.Message) *types.Result {
	if err := r.live.Switch(ctx, msg.SessionData, msg.TabID); err != nil {
		return types.Fail(err.Error())
	}

	// The switched session may be transient data that was never saved;
	// a missing store record is not a failure here.
	if msg.SessionData != nil && msg.SessionData.ID != "" {
		if err := r.store.MarkSwitched(msg.SessionData.ID); err != nil {
			r.logger.Debug("switched session not in store",
				zap.String("id", msg.SessionData.ID))
		}
	}

	if r.metrics != nil {
		r.metrics.IncSessionsSwitched()
	}
	return types.Ok(nil)
}

func (r *Router) clearSession(ctx context.Context, msg types.Message) *types.Result {
	if err := r.live.Clear(ctx, msg.Domain, msg.TabID); err != nil {
		return types.Fail(err.Error())
	}
	return types.Ok(nil)
}

func (r *Router) clearSessions(ctx context.Context, msg types.Message) *types.Result {
	scope := msg.ClearOption
	if scope == "" {
		scope = types.ScopeCurrent
	}

	if err := r.store.Clear(scope, msg.Domain); err != nil {
		return types.Fail(err.Error())
	}

	// Live state is only wiped for the requesting domain; the coordinator
	// resolves a tab on it when one is open.
	if msg.Domain != "" {
		if err := r.live.ClearDomain(ctx, msg.Domain); err != nil {
			return types.Fail(err.Error())
		}
	}
	return types.Ok(nil)
}

func (r *Router) exportSessions(_ context.Context, msg types.Message) *types.Result {
	scope := msg.ExportOption
	if scope == "" {
		scope = types.ScopeCurrent
	}

	doc, err := r.store.ExportJSON(scope, msg.Domain)
	if err != nil {
		return types.Fail(err.Error())
	}
	return types.Ok(doc)
}

func (r *Router) importSessions(_ context.Context, msg types.Message) *types.Result {
	data := []byte(msg.Data)

	// The document may arrive as a JSON-encoded string (file text passed
	// through verbatim) or as the raw object.
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		data = []byte(text)
	}

	if err := r.store.Import(data); err != nil {
		return types.Fail(err.Error())
	}
	return types.Ok(nil)
}

func (r *Router) importSessionsNew(_ context.Context, msg types.Message) *types.Result {
	var payload types.ImportPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return types.Fail("Invalid JSON format")
	}

	if err := r.store.ImportNew(payload); err != nil {
		return types.Fail(err.Error())
	}

	if r.metrics != nil {
		r.metrics.AddSessionsImported(len(payload.Sessions))
	}
	return types.Ok(nil)
}

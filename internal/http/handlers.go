package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sessionvault/sessionvault/internal/cdp"
	"github.com/sessionvault/sessionvault/internal/grants"
	"github.com/sessionvault/sessionvault/internal/infrastructure/monitoring"
	"github.com/sessionvault/sessionvault/internal/shared/types"
	"github.com/sessionvault/sessionvault/internal/store"
)

// maxImportSize caps uploaded export documents.
const maxImportSize = 10 * 1024 * 1024

// Dispatcher runs tagged messages through the permission-gated router.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg types.Message) *types.Result
}

// Live is the browser coordinator surface the REST endpoints use.
type Live interface {
	Current(ctx context.Context, domain, tabID string) (types.StoredSession, error)
	Switch(ctx context.Context, session *types.Session, tabID string) error
	Clear(ctx context.Context, domain, tabID string) error
}

// Tabs lists the browser's open pages. Nil when no browser is attached.
type Tabs interface {
	Pages(ctx context.Context) ([]cdp.TargetInfo, error)
	DomainForTab(ctx context.Context, tabID string) (string, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	dispatcher Dispatcher
	store      *store.Manager
	live       Live
	tabs       Tabs
	grantsSrc  *grants.KVSource
	metrics    *monitoring.Metrics
	version    string
}

// NewHandlers creates a new handler set
func NewHandlers(
	dispatcher Dispatcher,
	sessionStore *store.Manager,
	live Live,
	tabs Tabs,
	grantsSrc *grants.KVSource,
	metrics *monitoring.Metrics,
	version string,
) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		store:      sessionStore,
		live:       live,
		tabs:       tabs,
		grantsSrc:  grantsSrc,
		metrics:    metrics,
		version:    version,
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sessionvault",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	payload := gin.H{
		"status":   "healthy",
		"sessions": len(h.store.Sessions()),
		"browser":  gin.H{"attached": h.tabs != nil},
	}
	if h.metrics != nil {
		snapshot := h.metrics.GetSnapshot()
		payload["requests"] = gin.H{
			"total":  snapshot.TotalRequests,
			"errors": snapshot.TotalErrors,
		}
	}
	c.JSON(http.StatusOK, payload)
}

// Message dispatches one tagged message through the permission-gated
// router. The reply is always the result envelope with status 200; failure
// lives inside the envelope, not the status code.
func (h *Handlers) Message(c *gin.Context) {
	var msg types.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, types.Fail("Invalid JSON format"))
		return
	}
	c.JSON(http.StatusOK, h.dispatcher.Dispatch(c.Request.Context(), msg))
}

// ListSessions lists stored sessions, filtered and ordered per domain when
// one is given.
func (h *Handlers) ListSessions(c *gin.Context) {
	domain := c.Query("domain")

	if domain == "" {
		c.JSON(http.StatusOK, gin.H{"sessions": h.store.Sessions()})
		return
	}

	payload := gin.H{"sessions": h.store.ForDomain(domain)}
	if active, ok := h.store.ActiveFor(domain); ok {
		payload["active"] = active
	}
	c.JSON(http.StatusOK, payload)
}

type saveSessionRequest struct {
	Domain string `json:"domain" binding:"required"`
	Name   string `json:"name"`
	Order  *int   `json:"order"`
	TabID  string `json:"tabId"`
}

// SaveSession captures the live state of a tab and stores it under a name.
// Without a tab handle the session is saved with an empty payload.
func (h *Handlers) SaveSession(c *gin.Context) {
	var req saveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot := types.EmptyStoredSession()
	if req.TabID != "" {
		var err error
		snapshot, err = h.live.Current(c.Request.Context(), req.Domain, req.TabID)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}

	session, err := h.store.Save(req.Domain, req.Name, req.Order, snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.IncSessionsSaved()
		h.metrics.SetSessionsStored(len(h.store.Sessions()))
	}
	c.JSON(http.StatusCreated, session)
}

type renameSessionRequest struct {
	Name  string `json:"name" binding:"required"`
	Order *int   `json:"order"`
}

// RenameSession renames and optionally reorders one session.
func (h *Handlers) RenameSession(c *gin.Context) {
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Rename(c.Param("id"), req.Name, req.Order); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteSession removes one session.
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		h.storeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.SetSessionsStored(len(h.store.Sessions()))
	}
	c.Status(http.StatusNoContent)
}

type tabRequest struct {
	TabID string `json:"tabId" binding:"required"`
}

// ReplaceSession overwrites a session's payload with the live state of a
// tab, keeping name and order.
func (h *Handlers) ReplaceSession(c *gin.Context) {
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": store.ErrNotFound.Error()})
		return
	}

	snapshot, err := h.live.Current(c.Request.Context(), session.Domain, req.TabID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Replace(session.ID, snapshot); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SwitchSession applies a stored session to the browser and records it as
// the domain's active session.
func (h *Handlers) SwitchSession(c *gin.Context) {
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": store.ErrNotFound.Error()})
		return
	}

	if err := h.live.Switch(c.Request.Context(), &session, req.TabID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.MarkSwitched(session.ID); err != nil {
		h.storeError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSessionsSwitched()
	}
	c.Status(http.StatusNoContent)
}

type detachRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// DetachSession starts a fresh unassociated session for a domain: the
// active-map entry is dropped, stored sessions stay.
func (h *Handlers) DetachSession(c *gin.Context) {
	var req detachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Detach(req.Domain); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type clearRequest struct {
	Scope  types.Scope `json:"scope" binding:"required"`
	Domain string      `json:"domain"`
	TabID  string      `json:"tabId"`
}

// ClearSessions drops stored sessions by scope and, when a tab handle is
// given, wipes the live state of that tab's domain too.
func (h *Handlers) ClearSessions(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Clear(req.Scope, req.Domain); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TabID != "" && req.Domain != "" {
		if err := h.live.Clear(c.Request.Context(), req.Domain, req.TabID); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}

	if h.metrics != nil {
		h.metrics.SetSessionsStored(len(h.store.Sessions()))
	}
	c.Status(http.StatusNoContent)
}

// Export streams the export document as a downloadable JSON file.
func (h *Handlers) Export(c *gin.Context) {
	scope := types.Scope(c.DefaultQuery("scope", string(types.ScopeAll)))
	domain := c.Query("domain")

	doc, err := h.store.ExportJSON(scope, domain)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sessions-export.json"`)
	c.Data(http.StatusOK, "application/json", []byte(doc))
}

// Import accepts an export document and merges its sessions into the store.
func (h *Handlers) Import(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File size must be less than 10MB."})
		return
	}

	before := len(h.store.Sessions())
	if err := h.store.Import(body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	imported := len(h.store.Sessions()) - before
	if h.metrics != nil {
		h.metrics.AddSessionsImported(imported)
		h.metrics.SetSessionsStored(len(h.store.Sessions()))
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// GetViewMode returns the persisted popup layout preference.
func (h *Handlers) GetViewMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"viewMode": h.store.ViewMode()})
}

type viewModeRequest struct {
	ViewMode types.ViewMode `json:"viewMode" binding:"required"`
}

// SetViewMode updates the persisted popup layout preference.
func (h *Handlers) SetViewMode(c *gin.Context) {
	var req viewModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.SetViewMode(req.ViewMode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetGrants returns the recorded capability and origin grants.
func (h *Handlers) GetGrants(c *gin.Context) {
	granted, err := h.grantsSrc.Granted()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, granted)
}

// PutGrants records the capability and origin grants the daemon holds.
func (h *Handlers) PutGrants(c *gin.Context) {
	var g grants.Grants
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.grantsSrc.Save(g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTabs lists the browser's open pages with resolved domains.
func (h *Handlers) ListTabs(c *gin.Context) {
	if h.tabs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "browser not attached"})
		return
	}

	pages, err := h.tabs.Pages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tabs": pages})
}

func (h *Handlers) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

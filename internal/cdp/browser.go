package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sessionvault/sessionvault/internal/cookies"
	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/shared/domains"
	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// DefaultStoreID names the browser's default cookie store. CDP addresses it
// by omitting browserContextId.
const DefaultStoreID = ""

// Browser adapts the raw protocol client into the facilities the rest of
// the daemon consumes: cookie stores, page-script evaluation, tab reload.
type Browser struct {
	client *Client
	logger *logging.Logger

	// targetID → attached sessionID
	mu       sync.Mutex
	sessions map[string]string
}

// NewBrowser wraps a connected client.
func NewBrowser(client *Client, logger *logging.Logger) *Browser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Browser{
		client:   client,
		logger:   logger.Component("browser"),
		sessions: map[string]string{},
	}
}

// --- cookie store ---

type browserContextsReply struct {
	BrowserContextIDs []string `json:"browserContextIds"`
}

// StoreIDs enumerates cookie stores: the default context plus every
// additional browser context (incognito windows, container profiles).
func (b *Browser) StoreIDs(ctx context.Context) ([]string, error) {
	var reply browserContextsReply
	if err := b.client.Call(ctx, "", "Target.getBrowserContexts", nil, &reply); err != nil {
		return nil, err
	}
	return append([]string{DefaultStoreID}, reply.BrowserContextIDs...), nil
}

// wireCookie is the Network.Cookie shape.
type wireCookie struct {
	Name        string  `json:"name"`
	Value       string  `json:"value"`
	Domain      string  `json:"domain"`
	Path        string  `json:"path"`
	Expires     float64 `json:"expires"`
	HTTPOnly    bool    `json:"httpOnly"`
	Secure      bool    `json:"secure"`
	Session     bool    `json:"session"`
	SameSite    string  `json:"sameSite,omitempty"`
	Partitioned bool    `json:"partitioned,omitempty"`
}

// cookieParam is the Storage.setCookies entry shape.
type cookieParam struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	URL      string  `json:"url,omitempty"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
	Expires  float64 `json:"expires,omitempty"`
}

// GetAll returns every cookie in one store.
func (b *Browser) GetAll(ctx context.Context, storeID string) ([]types.Cookie, error) {
	params := map[string]interface{}{}
	if storeID != DefaultStoreID {
		params["browserContextId"] = storeID
	}

	var reply struct {
		Cookies []wireCookie `json:"cookies"`
	}
	if err := b.client.Call(ctx, "", "Storage.getCookies", params, &reply); err != nil {
		return nil, err
	}

	out := make([]types.Cookie, 0, len(reply.Cookies))
	for _, c := range reply.Cookies {
		out = append(out, types.Cookie{
			Name:        c.Name,
			Value:       c.Value,
			Domain:      c.Domain,
			Path:        c.Path,
			Secure:      c.Secure,
			HTTPOnly:    c.HTTPOnly,
			SameSite:    sameSiteFromWire(c.SameSite),
			Session:     c.Session,
			Expires:     expiresFromWire(c),
			StoreID:     storeID,
			HostOnly:    !strings.HasPrefix(c.Domain, "."),
			Partitioned: c.Partitioned,
		})
	}
	return out, nil
}

// Set writes one cookie.
func (b *Browser) Set(ctx context.Context, req cookies.SetRequest) error {
	param := cookieParam{
		Name:     req.Name,
		Value:    req.Value,
		URL:      req.URL,
		Domain:   req.Domain,
		Path:     req.Path,
		Secure:   req.Secure,
		HTTPOnly: req.HTTPOnly,
		SameSite: sameSiteToWire(req.SameSite),
		Expires:  req.Expires,
	}
	return b.setCookies(ctx, req.StoreID, []cookieParam{param})
}

// Remove deletes one cookie. The protocol has no browser-level single-cookie
// delete, so the cookie is overwritten with an already-expired twin, which
// the browser drops immediately.
func (b *Browser) Remove(ctx context.Context, req cookies.RemoveRequest) error {
	param := cookieParam{
		Name:    req.Name,
		URL:     req.URL,
		Expires: 1,
	}
	return b.setCookies(ctx, req.StoreID, []cookieParam{param})
}

func (b *Browser) setCookies(ctx context.Context, storeID string, params []cookieParam) error {
	call := map[string]interface{}{"cookies": params}
	if storeID != DefaultStoreID {
		call["browserContextId"] = storeID
	}
	return b.client.Call(ctx, "", "Storage.setCookies", call, nil)
}

// sameSiteFromWire maps protocol SameSite values onto the snapshot
// vocabulary ("strict", "lax", "no_restriction", "unspecified").
func sameSiteFromWire(s string) string {
	switch s {
	case "Strict":
		return "strict"
	case "Lax":
		return "lax"
	case "None":
		return "no_restriction"
	default:
		return "unspecified"
	}
}

func sameSiteToWire(s string) string {
	switch s {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "no_restriction":
		return "None"
	default:
		return ""
	}
}

// expiresFromWire keeps the snapshot convention: 0 for session cookies.
func expiresFromWire(c wireCookie) float64 {
	if c.Session || c.Expires < 0 {
		return 0
	}
	return c.Expires
}

// --- script runner ---

type evaluateReply struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// Eval runs an expression in a tab's page context and returns its value as
// raw JSON. The target is attached lazily and the session cached; a stale
// cached session (tab navigated away and back, browser restarted the
// target) gets one re-attach retry.
func (b *Browser) Eval(ctx context.Context, tabID string, expr string) (json.RawMessage, error) {
	sessionID, err := b.attach(ctx, tabID, false)
	if err != nil {
		return nil, err
	}

	reply, err := b.evaluate(ctx, sessionID, expr)
	if err != nil {
		sessionID, aerr := b.attach(ctx, tabID, true)
		if aerr != nil {
			return nil, err
		}
		reply, err = b.evaluate(ctx, sessionID, expr)
		if err != nil {
			return nil, err
		}
	}

	if reply.ExceptionDetails != nil {
		detail := reply.ExceptionDetails.Text
		if reply.ExceptionDetails.Exception != nil {
			detail = reply.ExceptionDetails.Exception.Description
		}
		return nil, fmt.Errorf("cdp: script threw: %s", detail)
	}
	return reply.Result.Value, nil
}

func (b *Browser) evaluate(ctx context.Context, sessionID, expr string) (*evaluateReply, error) {
	params := map[string]interface{}{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
	}
	var reply evaluateReply
	if err := b.client.Call(ctx, sessionID, "Runtime.evaluate", params, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// attach returns the cached session for a target, attaching when absent or
// when force is set.
func (b *Browser) attach(ctx context.Context, targetID string, force bool) (string, error) {
	b.mu.Lock()
	if !force {
		if sessionID, ok := b.sessions[targetID]; ok {
			b.mu.Unlock()
			return sessionID, nil
		}
	}
	b.mu.Unlock()

	params := map[string]interface{}{
		"targetId": targetID,
		"flatten":  true,
	}
	var reply struct {
		SessionID string `json:"sessionId"`
	}
	if err := b.client.Call(ctx, "", "Target.attachToTarget", params, &reply); err != nil {
		return "", fmt.Errorf("cdp: attach to tab %s: %w", targetID, err)
	}

	b.mu.Lock()
	b.sessions[targetID] = reply.SessionID
	b.mu.Unlock()
	return reply.SessionID, nil
}

// --- tab controller ---

// Reload reloads a tab.
func (b *Browser) Reload(ctx context.Context, tabID string) error {
	sessionID, err := b.attach(ctx, tabID, false)
	if err != nil {
		return err
	}
	if err := b.client.Call(ctx, sessionID, "Page.reload", map[string]interface{}{}, nil); err != nil {
		sessionID, aerr := b.attach(ctx, tabID, true)
		if aerr != nil {
			return err
		}
		return b.client.Call(ctx, sessionID, "Page.reload", map[string]interface{}{}, nil)
	}
	return nil
}

// DomainForTab resolves the normalized domain a tab is currently on.
func (b *Browser) DomainForTab(ctx context.Context, tabID string) (string, error) {
	params := map[string]interface{}{"targetId": tabID}
	var reply struct {
		TargetInfo struct {
			URL string `json:"url"`
		} `json:"targetInfo"`
	}
	if err := b.client.Call(ctx, "", "Target.getTargetInfo", params, &reply); err != nil {
		return "", err
	}

	domain := domains.FromURL(reply.TargetInfo.URL)
	if domain == "" {
		return "", fmt.Errorf("cdp: tab %s has no resolvable domain (%s)", tabID, reply.TargetInfo.URL)
	}
	return domain, nil
}

// FindForDomain returns the id of an open page tab whose URL resolves to
// the given domain, or "" when no tab is on it.
func (b *Browser) FindForDomain(ctx context.Context, domain string) (string, error) {
	pages, err := b.Pages(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range pages {
		if domains.FromURL(p.URL) == domain {
			return p.ID, nil
		}
	}
	return "", nil
}

// Pages lists the page-type targets currently open.
func (b *Browser) Pages(ctx context.Context) ([]TargetInfo, error) {
	var reply struct {
		TargetInfos []struct {
			TargetID string `json:"targetId"`
			Type     string `json:"type"`
			Title    string `json:"title"`
			URL      string `json:"url"`
		} `json:"targetInfos"`
	}
	if err := b.client.Call(ctx, "", "Target.getTargets", nil, &reply); err != nil {
		return nil, err
	}

	pages := []TargetInfo{}
	for _, t := range reply.TargetInfos {
		if t.Type != "page" {
			continue
		}
		pages = append(pages, TargetInfo{
			ID:    t.TargetID,
			Type:  t.Type,
			Title: t.Title,
			URL:   t.URL,
		})
	}
	return pages, nil
}

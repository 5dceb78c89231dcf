// Package cookies snapshots, clears, and restores cookies for a domain
// across every cookie store the browser exposes.
//
// All per-cookie failures here are best-effort: logged and skipped, never
// surfaced. A corrupt or partial snapshot must not block switching sessions
// for the cookies that are valid.
package cookies

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/shared/domains"
	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// ErrInvalidDomain is returned when a cookie has no usable domain and no
// fallback was supplied.
var ErrInvalidDomain = errors.New("cookies: invalid domain")

// SetRequest rebuilds one cookie in the browser.
type SetRequest struct {
	URL      string
	Name     string
	Value    string
	Domain   string // set only for dot-prefixed (non host-only) cookies
	Path     string
	Secure   bool
	HTTPOnly bool
	SameSite string  // empty means unspecified, not written
	Expires  float64 // 0 means session cookie
	StoreID  string
}

// RemoveRequest deletes one cookie from the browser.
type RemoveRequest struct {
	URL     string
	Name    string
	StoreID string
}

// Store is the browser's cookie facility, scoped by cookie-store id.
type Store interface {
	// StoreIDs enumerates every cookie store.
	StoreIDs(ctx context.Context) ([]string, error)
	// GetAll returns every cookie in one store.
	GetAll(ctx context.Context, storeID string) ([]types.Cookie, error)
	// Set writes one cookie.
	Set(ctx context.Context, req SetRequest) error
	// Remove deletes one cookie.
	Remove(ctx context.Context, req RemoveRequest) error
}

// Handler implements domain-scoped cookie snapshot and restore.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates a cookie handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{store: store, logger: logger.Component("cookies")}
}

// ListForDomain enumerates every cookie store and returns the cookies whose
// domain covers the target. Per-store enumeration failures are logged and
// skipped; the call returns whatever was collected.
func (h *Handler) ListForDomain(ctx context.Context, domain string) []types.Cookie {
	collected := []types.Cookie{}

	storeIDs, err := h.store.StoreIDs(ctx)
	if err != nil {
		h.logger.Warn("failed to enumerate cookie stores",
			zap.String("domain", domain), zap.Error(err))
		return collected
	}

	for _, storeID := range storeIDs {
		all, err := h.store.GetAll(ctx, storeID)
		if err != nil {
			h.logger.Warn("failed to list cookies in store",
				zap.String("store_id", storeID), zap.Error(err))
			continue
		}
		for _, c := range all {
			if domains.Matches(c.Domain, domain) {
				if c.StoreID == "" {
					c.StoreID = storeID
				}
				collected = append(collected, c)
			}
		}
	}

	return collected
}

// ClearForDomain removes every cookie covering the domain. Individual
// removal failures are logged and skipped; the operation never aborts on
// partial failure.
func (h *Handler) ClearForDomain(ctx context.Context, domain string) error {
	for _, c := range h.ListForDomain(ctx, domain) {
		url, err := buildCookieURL(c, domain)
		if err != nil {
			h.logger.Warn("skipping cookie with no usable domain",
				zap.String("cookie", c.Name), zap.Error(err))
			continue
		}

		req := RemoveRequest{URL: url, Name: c.Name, StoreID: c.StoreID}
		if err := h.store.Remove(ctx, req); err != nil {
			h.logger.Warn("failed to remove cookie",
				zap.String("cookie", c.Name), zap.Error(err))
		}
	}
	return nil
}

// Restore writes every cookie from a snapshot back into the browser.
// Per-cookie failures are logged and skipped.
func (h *Handler) Restore(ctx context.Context, cookies []types.Cookie, fallbackDomain string) error {
	for _, c := range cookies {
		req, err := prepareForRestore(c, fallbackDomain)
		if err != nil {
			h.logger.Warn("skipping unrestorable cookie",
				zap.String("cookie", c.Name), zap.Error(err))
			continue
		}

		if err := h.store.Set(ctx, req); err != nil {
			h.logger.Warn("failed to restore cookie",
				zap.String("cookie", c.Name), zap.Error(err))
		}
	}
	return nil
}

// buildCookieURL reconstructs the canonical URL a cookie was set under:
// scheme from the secure flag, host from the cookie's own domain (leading
// dot stripped) or the fallback, path or "/".
func buildCookieURL(c types.Cookie, fallbackDomain string) (string, error) {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}

	domain := strings.TrimPrefix(c.Domain, ".")
	if domain == "" {
		domain = fallbackDomain
	}
	if domain == "" {
		return "", fmt.Errorf("%w: cookie %q has no domain and no fallback", ErrInvalidDomain, c.Name)
	}

	path := c.Path
	if path == "" {
		path = "/"
	}
	return scheme + "://" + domain + path, nil
}

// prepareForRestore builds the set-request for one snapshot cookie. A
// dot-prefixed domain attribute is preserved; host-only cookies get no
// domain attribute so the browser infers it from the URL. Expiration is
// carried only for non-session cookies that have one, sameSite only when
// not "unspecified".
func prepareForRestore(c types.Cookie, fallbackDomain string) (SetRequest, error) {
	url, err := buildCookieURL(c, fallbackDomain)
	if err != nil {
		return SetRequest{}, err
	}

	req := SetRequest{
		URL:      url,
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		StoreID:  c.StoreID,
	}

	if strings.HasPrefix(c.Domain, ".") {
		req.Domain = c.Domain
	}
	if !c.Session && c.Expires != 0 {
		req.Expires = c.Expires
	}
	if c.SameSite != "" && c.SameSite != types.SameSiteUnspecified {
		req.SameSite = c.SameSite
	}
	return req, nil
}

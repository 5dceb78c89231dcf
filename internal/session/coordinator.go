// Package session orchestrates snapshot, switch, and clear as atomic-ish
// operations over the cookie and page-storage collaborators.
//
// Ordering matters in Switch: existing cookies are cleared before any
// restore starts (a late removal would race restored cookies), and the tab
// reloads only after both restores settle.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sessionvault/sessionvault/internal/logging"
	"github.com/sessionvault/sessionvault/internal/pagestore"
	"github.com/sessionvault/sessionvault/internal/shared/types"
)

// CookieHandler is the cookie snapshot/restore collaborator.
type CookieHandler interface {
	ListForDomain(ctx context.Context, domain string) []types.Cookie
	ClearForDomain(ctx context.Context, domain string) error
	Restore(ctx context.Context, cookies []types.Cookie, fallbackDomain string) error
}

// StorageHandler is the page storage collaborator.
type StorageHandler interface {
	Extract(ctx context.Context, tabID string) pagestore.Data
	Inject(ctx context.Context, tabID string, data pagestore.Data) error
	Clear(ctx context.Context, tabID string) error
}

// TabController reloads target tabs after live state changes and resolves
// an open tab for a domain when the caller has no handle of its own.
type TabController interface {
	Reload(ctx context.Context, tabID string) error
	FindForDomain(ctx context.Context, domain string) (string, error)
}

// Coordinator combines the collaborators into the three live-state
// operations the router exposes.
type Coordinator struct {
	cookies CookieHandler
	storage StorageHandler
	tabs    TabController
	logger  *logging.Logger
}

// NewCoordinator creates a session coordinator.
func NewCoordinator(cookies CookieHandler, storage StorageHandler, tabs TabController, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cookies: cookies,
		storage: storage,
		tabs:    tabs,
		logger:  logger.Component("session"),
	}
}

// Current captures the live state for a domain/tab: cookie listing and
// storage extraction run concurrently and combine into one snapshot. The
// collaborators absorb their own partial failures, so an error here means
// something unexpected (no such tab, detached browser).
func (c *Coordinator) Current(ctx context.Context, domain, tabID string) (types.StoredSession, error) {
	snapshot := types.EmptyStoredSession()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snapshot.Cookies = c.cookies.ListForDomain(gctx, domain)
		return nil
	})
	g.Go(func() error {
		data := c.storage.Extract(gctx, tabID)
		snapshot.LocalStorage = data.Local
		snapshot.SessionStorage = data.Session
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.EmptyStoredSession(), fmt.Errorf("failed to get current session: %w", err)
	}

	return snapshot, nil
}

// Switch applies a stored session to the browser: clear the domain's
// cookies, then restore cookies and inject storage concurrently, then
// reload the tab once both settle.
func (c *Coordinator) Switch(ctx context.Context, session *types.Session, tabID string) error {
	if session == nil {
		return fmt.Errorf("failed to switch session: no session data")
	}

	if err := c.cookies.ClearForDomain(ctx, session.Domain); err != nil {
		return fmt.Errorf("failed to switch session: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.cookies.Restore(gctx, session.Cookies, session.Domain)
	})
	g.Go(func() error {
		return c.storage.Inject(gctx, tabID, pagestore.Data{
			Local:   session.LocalStorage,
			Session: session.SessionStorage,
		})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to switch session: %w", err)
	}

	if err := c.tabs.Reload(ctx, tabID); err != nil {
		return fmt.Errorf("failed to switch session: %w", err)
	}
	return nil
}

// Clear wipes the live state for a domain/tab: cookies and storage cleared
// concurrently, then the tab reloads.
func (c *Coordinator) Clear(ctx context.Context, domain, tabID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.cookies.ClearForDomain(gctx, domain)
	})
	g.Go(func() error {
		return c.storage.Clear(gctx, tabID)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	if err := c.tabs.Reload(ctx, tabID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ClearDomain wipes the live state for a domain when the caller has no tab
// handle. Bulk clears arrive without one, so the coordinator resolves a tab
// itself: when one is open on the domain the full clear runs against it,
// otherwise only the cookies are reachable. Tab resolution is best-effort;
// the clear itself is not.
func (c *Coordinator) ClearDomain(ctx context.Context, domain string) error {
	tabID, err := c.tabs.FindForDomain(ctx, domain)
	if err != nil {
		c.logger.Debug("no tab resolved for clear",
			zap.String("domain", domain),
			zap.Error(err),
		)
		tabID = ""
	}
	if tabID != "" {
		return c.Clear(ctx, domain, tabID)
	}
	if err := c.cookies.ClearForDomain(ctx, domain); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

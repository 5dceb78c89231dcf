package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sessionvault/sessionvault/internal/infrastructure/monitoring"
	"github.com/sessionvault/sessionvault/internal/logging"
)

// VersionInfo is the /json/version discovery document.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// TargetInfo is one entry of the /json/list discovery document.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Discoverer resolves WebSocket endpoints and page targets from a browser's
// HTTP debugging interface.
type Discoverer struct {
	client *resty.Client
}

// NewDiscoverer creates a discoverer against a DevTools base URL, e.g.
// http://127.0.0.1:9222.
func NewDiscoverer(baseURL string) *Discoverer {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &Discoverer{client: client}
}

// Version fetches the browser-level discovery document.
func (d *Discoverer) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&info).
		Get("/json/version")
	if err != nil {
		return nil, fmt.Errorf("cdp: discover version: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cdp: discover version: status %d", resp.StatusCode())
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("cdp: browser exposes no debugger endpoint")
	}
	return &info, nil
}

// Targets lists the browser's open debuggable targets.
func (d *Discoverer) Targets(ctx context.Context) ([]TargetInfo, error) {
	var targets []TargetInfo
	resp, err := d.client.R().
		SetContext(ctx).
		SetResult(&targets).
		Get("/json/list")
	if err != nil {
		return nil, fmt.Errorf("cdp: list targets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cdp: list targets: status %d", resp.StatusCode())
	}
	return targets, nil
}

// Connect discovers the browser endpoint and dials it in one step.
func Connect(ctx context.Context, baseURL string, metrics *monitoring.Metrics, logger *logging.Logger) (*Client, error) {
	info, err := NewDiscoverer(baseURL).Version(ctx)
	if err != nil {
		return nil, err
	}
	return Dial(ctx, info.WebSocketDebuggerURL, metrics, logger)
}

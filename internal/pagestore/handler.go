// Package pagestore snapshots and restores a page's localStorage and
// sessionStorage by evaluating small script payloads inside the target
// page's own JavaScript context.
package pagestore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/logging"
)

// ScriptRunner evaluates a JavaScript expression inside a target page and
// returns its JSON-marshaled result. Implementations must treat the call as
// one asynchronous round trip with no partial results.
type ScriptRunner interface {
	Eval(ctx context.Context, tabID string, expression string) (json.RawMessage, error)
}

// Data is the storage half of a snapshot.
type Data struct {
	Local   map[string]string `json:"local"`
	Session map[string]string `json:"session"`
}

// Handler executes the storage payloads against a page.
type Handler struct {
	runner ScriptRunner
	logger *logging.Logger
}

// NewHandler creates a storage handler.
func NewHandler(runner ScriptRunner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{runner: runner, logger: logger.Component("pagestore")}
}

// Extract captures both storage areas from the page. Every failure path
// (transport, in-page exception, undecodable result) is absorbed into empty
// maps; extraction never fails the caller.
func (h *Handler) Extract(ctx context.Context, tabID string) Data {
	empty := Data{Local: map[string]string{}, Session: map[string]string{}}

	raw, err := h.runner.Eval(ctx, tabID, extractScript)
	if err != nil {
		h.logger.Warn("failed to extract page storage",
			zap.String("tab_id", tabID), zap.Error(err))
		return empty
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		h.logger.Warn("undecodable storage extraction result",
			zap.String("tab_id", tabID), zap.Error(err))
		return empty
	}
	if data.Local == nil {
		data.Local = map[string]string{}
	}
	if data.Session == nil {
		data.Session = map[string]string{}
	}
	return data
}

// Inject clears both areas in the page and writes every pair from data.
// A transport failure is returned wrapped; an in-page failure (the payload
// reporting false) is logged and absorbed.
func (h *Handler) Inject(ctx context.Context, tabID string, data Data) error {
	script, err := injectScript(data.Local, data.Session)
	if err != nil {
		return fmt.Errorf("failed to restore storage data: %w", err)
	}

	raw, err := h.runner.Eval(ctx, tabID, script)
	if err != nil {
		return fmt.Errorf("failed to restore storage data: %w", err)
	}
	if !decodeSuccessFlag(raw) {
		h.logger.Warn("page reported storage injection failure",
			zap.String("tab_id", tabID))
	}
	return nil
}

// Clear empties both storage areas in the page.
func (h *Handler) Clear(ctx context.Context, tabID string) error {
	raw, err := h.runner.Eval(ctx, tabID, clearScript)
	if err != nil {
		return fmt.Errorf("failed to clear storage data: %w", err)
	}
	if !decodeSuccessFlag(raw) {
		h.logger.Warn("page reported storage clear failure",
			zap.String("tab_id", tabID))
	}
	return nil
}

func decodeSuccessFlag(raw json.RawMessage) bool {
	var ok bool
	if err := json.Unmarshal(raw, &ok); err != nil {
		return false
	}
	return ok
}

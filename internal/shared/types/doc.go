// Package types provides shared data structures for sessionvault.
//
// This package defines core types used across all controller components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Session: Named, ordered, domain-scoped snapshot of browser auth state
//   - Cookie: Single cookie record inside a snapshot
//   - StoredSession: Live-state snapshot (cookies + page storage)
//   - ActiveSessions: Domain -> active session id map
//   - Result: Standard operation result envelope
//
// Message Contract:
//   - Message: Tagged request from the UI layer, discriminated by Action
//   - ExportDocument: Versioned export/import file format
package types

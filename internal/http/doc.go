// Package http provides HTTP handlers and routing for the daemon's REST API.
//
// Two surfaces coexist. POST /v1/message mirrors the extension's tagged
// message contract and runs through the permission-gated router; every
// reply is the {success, data?, error?} envelope. The /v1/sessions family
// is the UI's REST convenience surface and talks to the store and the
// browser coordinator directly, with conventional status codes.
//
// Endpoints:
//   - Health: / and /health
//   - Message: /v1/message
//   - Sessions: /v1/sessions, /v1/sessions/:id, :id/switch, :id/replace
//   - Transfer: /v1/export, /v1/import
//   - Settings: /v1/viewmode, /v1/grants
//   - Browser: /v1/tabs
package http

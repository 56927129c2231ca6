// Package mcpgateway exposes the MCP tool servers managed by mcpmgr as a small
// JSON HTTP API. Each tool route validates its body, looks up the channel of
// a fixed server key, invokes one tool, and wraps the result in a
// {"result": ...} envelope. The gateway also serves a health summary of every
// configured server and Prometheus metrics.
package mcpgateway

// Package mcpmgr owns the gateway's connections to its MCP tool servers. It
// launches each server declared in the registry, performs the MCP handshake,
// checks that the server advertises the tools it was declared with, and then
// hands out per-server Channels for tool invocation.
//
// # Core entry points
//
//   - Manager is the long-lived connection registry. Construct it with
//     NewManager and call Initialize once with the declaration-ordered server
//     descriptors. Initialization is all-or-nothing: if any server fails to
//     resolve, launch, connect, or verify, the channels opened so far are
//     closed and an *InitError is returned.
//   - Lookup returns the Channel for a server key once initialization has
//     completed. Before that, and after a server's session ends, it reports
//     the key as absent.
//   - ManagerOptions carry the path resolver, the launcher that turns a
//     resolved executable into an mcp.Transport, the connect timeout, and
//     optional JSON-RPC traffic logging.
//
// Sessions are watched in the background. When one ends the entry is marked
// StatusDisconnected and ManagerOptions.OnError is invoked. The manager does
// not reconnect.
package mcpmgr

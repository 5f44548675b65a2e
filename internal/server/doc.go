// Package server implements the Nexus relay core: the connection registry,
// user directory, private room manager, and message router behind a
// WebSocket endpoint.
//
// All shared routing state is owned by a single hub goroutine; connection
// handlers communicate with it over channels. The implementation is split
// into focused files for configuration, the hub, clients, directory, rooms,
// routing, and the HTTP surface to keep the codebase maintainable as the
// project grows.
package server

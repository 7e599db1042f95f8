// Package server implements the relay: the connection registry, broadcast
// fan-out, the per-connection receive loop, and the HTTP handlers for
// WebSocket upgrades, uploads, and image retrieval.
//
// The implementation is organized into specialized files for the registry,
// hub, clients, routing, and HTTP handlers to keep each concern testable.
package server

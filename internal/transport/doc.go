// Package transport provides the in-process message bus the subscription
// catalog runs on: connections identified by service name, request/reply
// routing with per-connection serial tokens, and liveness watches that
// signal watchers when a named service disconnects.
//
// # Messages
//
// Every request carries a per-connection serial. The pair (sender, serial)
// forms the unique token "sender.serial" that the subscription catalog keys
// on for the lifetime of the connection.
//
// # Liveness watches
//
// A connection may watch a service name with WatchService. When the watched
// connection closes, each watcher's handler receives a status signal:
//
//	{"connected": false, "serviceName": "com.example.app"}
//
// Watches are cancelled through CancelCall with the token returned at
// registration, the same way an ordinary pending call is cancelled.
//
// # Delivery model
//
// The loopback broker dispatches handlers synchronously on the caller's
// goroutine. Handlers must not block indefinitely; anything slow belongs in
// the handler's own goroutine.
package transport

// Package timeouts defines shared timeout constants used by the HTTP servers.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Read limits how long an HTTP server waits for a full request body,
// uploads included.
const Read = 2 * time.Minute

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreOperation caps a single CRUD statement issued by a request handler.
const StoreOperation = 10 * time.Second

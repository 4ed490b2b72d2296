// Package server runs the HTTP and gRPC transports under one lifecycle.
package server

import "context"

// Runnable is a transport the Manager can run.
type Runnable interface {
	// Name returns the server name for identification.
	Name() string
	// Start binds and serves, blocking until the server stops. A graceful
	// stop returns nil.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
}

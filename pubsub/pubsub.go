// Package pubsub is the subscription layer consumed by template instances.
//
// A Connection starts named subscriptions and hands back a Handle that reports
// readiness. Server is an in-process Connection: publications are Go functions
// that run on their own goroutine and report documents and readiness back to
// the render loop through a queue drained by Pump.
package pubsub

import (
	"context"
	"errors"
)

// ErrNotFound is reported through OnStop when no publication has the
// requested name.
var ErrNotFound = errors.New("pubsub: subscription not found")

// Callbacks observe the life of one subscription. Every callback runs on the
// goroutine that calls Pump (or Subscribe, for a synchronous failure).
type Callbacks struct {
	OnReady func()
	// OnError receives the error a subscription stopped with. Kept for
	// callers that predate OnStop's error argument.
	OnError func(error)
	// OnStop runs once when the subscription ends; err is nil for a
	// requested stop.
	OnStop func(err error)
}

// Handle is one started subscription.
type Handle interface {
	SubscriptionID() string
	// Ready reports whether the publication has sent its initial data.
	// It is reactive.
	Ready() bool
	// Stop ends the subscription. Stopping twice is a no-op.
	Stop()
}

// Connection starts subscriptions.
type Connection interface {
	Subscribe(name string, args []any, cb Callbacks) (Handle, error)
}

// Sink receives the documents publications send.
type Sink interface {
	Added(collection, id string, fields map[string]any)
	Changed(collection, id string, fields map[string]any)
	Removed(collection, id string)
}

// PublishFunc feeds one subscription. It runs on its own goroutine; ctx is
// canceled when the subscription stops. Returning an error stops the
// subscription with that error; returning nil leaves it running.
type PublishFunc func(ctx context.Context, pub *Publication) error

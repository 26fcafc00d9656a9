package blaze

import (
	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/pubsub"
	"github.com/livefir/blaze/tracker"
)

// SubscribeOptions are the optional trailing argument of Instance.Subscribe.
type SubscribeOptions struct {
	OnReady func()
	// OnError runs before OnStop when the subscription stops with an error.
	OnError func(err error)
	OnStop  func(err error)
	// Connection overrides the document's default connection.
	Connection pubsub.Connection
}

// subscriptionTracker holds the subscriptions an instance started and the
// last computed aggregate readiness.
//
// readyDep is a coarse signal: it fires when a handle is added while every
// subscription was ready, and when any handle stops while they were not.
// subscriptionsReady recomputes the aggregate on every read, since handles
// become ready without notifying the tracker.
type subscriptionTracker struct {
	handles  map[string]pubsub.Handle
	allReady bool
	readyDep *tracker.Dependency
}

func newSubscriptionTracker() *subscriptionTracker {
	return &subscriptionTracker{
		handles:  make(map[string]pubsub.Handle),
		readyDep: tracker.NewDependency(),
	}
}

// startFunc starts one subscription with the given callbacks.
type startFunc func(cb pubsub.Callbacks) (pubsub.Handle, error)

func (s *subscriptionTracker) subscribe(start startFunc, opts SubscribeOptions) (pubsub.Handle, error) {
	if s.handles == nil {
		return nil, errs.InvalidState("Instance.Subscribe", "instance was destroyed")
	}

	var handle pubsub.Handle
	stopped := false
	userStop := opts.OnStop

	cb := pubsub.Callbacks{
		OnReady: opts.OnReady,
		OnError: opts.OnError,
		OnStop: func(err error) {
			stopped = true
			if handle != nil {
				delete(s.handles, handle.SubscriptionID())
			}
			// A stopped handle can only help reach all-ready.
			if !s.allReady {
				s.readyDep.Changed()
			}
			if userStop != nil {
				userStop(err)
			}
		},
	}

	h, err := start(cb)
	if err != nil {
		return nil, err
	}
	handle = h

	// A subscription that failed before start returned is never tracked.
	if stopped || s.handles == nil {
		return h, nil
	}
	if _, tracked := s.handles[h.SubscriptionID()]; !tracked {
		s.handles[h.SubscriptionID()] = h
		// An unready handle can only move all-ready to not-all-ready.
		if s.allReady {
			s.readyDep.Changed()
		}
	}
	return h, nil
}

func (s *subscriptionTracker) ready() bool {
	s.readyDep.Depend()

	all := true
	for _, h := range s.handles {
		if !h.Ready() {
			all = false
		}
	}
	s.allReady = all
	return all
}

func (s *subscriptionTracker) count() int { return len(s.handles) }

// release drops the bookkeeping once the instance is destroyed.
func (s *subscriptionTracker) release() {
	s.handles = nil
}

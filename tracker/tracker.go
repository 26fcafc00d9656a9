// Package tracker provides the reactive dependency primitive used by the view
// and template layers: dependencies that computations register on, and a flush
// loop that reruns invalidated computations.
//
// A reader calls Dependency.Depend inside a computation; a writer calls
// Dependency.Changed, which invalidates every computation that depended on it.
// Invalidated computations rerun on the next Flush.
//
// The package keeps process-wide state (the current computation and the
// pending queue). It is NOT thread-safe: all calls must come from the single
// render-loop goroutine. Work finishing on other goroutines has to be handed
// back to that loop first (see pubsub.Server.Pump).
package tracker

import (
	"errors"
	"log"
	"sort"

	"github.com/livefir/blaze/errs"
)

var (
	current    *Computation
	pending    []*Computation
	afterFlush []func() error
	inFlush    bool
	nextID     int
)

// Computation is a function that reruns when any dependency it read changes.
type Computation struct {
	id           int
	f            func(*Computation) error
	invalidated  bool
	stopped      bool
	firstRun     bool
	recomputing  bool
	onInvalidate []func(*Computation)
	onStop       []func(*Computation)
}

// Autorun runs f now, and again each time a dependency read by f changes.
// An error from the first run stops the computation and is returned. Errors
// from later runs are logged.
func Autorun(f func(c *Computation) error) (*Computation, error) {
	if f == nil {
		return nil, errs.InvalidArgument("tracker.Autorun", "function required")
	}

	nextID++
	c := &Computation{id: nextID, f: f, firstRun: true}
	err := c.compute()
	c.firstRun = false
	if err != nil {
		c.Stop()
		return c, err
	}
	return c, nil
}

// ID returns the computation's process-unique id.
func (c *Computation) ID() int { return c.id }

// FirstRun reports whether the computation is in its initial run.
func (c *Computation) FirstRun() bool { return c.firstRun }

// Invalidated reports whether the computation is waiting to rerun.
func (c *Computation) Invalidated() bool { return c.invalidated }

// Stopped reports whether the computation was stopped.
func (c *Computation) Stopped() bool { return c.stopped }

// OnInvalidate registers fn to run the next time c is invalidated. If c is
// already invalidated fn runs immediately.
func (c *Computation) OnInvalidate(fn func(*Computation)) {
	if fn == nil {
		return
	}
	if c.invalidated {
		Nonreactive(func() { fn(c) })
		return
	}
	c.onInvalidate = append(c.onInvalidate, fn)
}

// OnStop registers fn to run when c is stopped. If c is already stopped fn
// runs immediately.
func (c *Computation) OnStop(fn func(*Computation)) {
	if fn == nil {
		return
	}
	if c.stopped {
		Nonreactive(func() { fn(c) })
		return
	}
	c.onStop = append(c.onStop, fn)
}

// Invalidate schedules c to rerun on the next Flush.
func (c *Computation) Invalidate() {
	if c.invalidated {
		return
	}
	c.invalidated = true
	if !c.recomputing && !c.stopped {
		pending = append(pending, c)
	}

	callbacks := c.onInvalidate
	c.onInvalidate = nil
	for _, fn := range callbacks {
		Nonreactive(func() { fn(c) })
	}
}

// Stop prevents c from rerunning. Stopping twice is a no-op.
func (c *Computation) Stop() {
	if c.stopped {
		return
	}
	c.stopped = true
	c.Invalidate()

	callbacks := c.onStop
	c.onStop = nil
	for _, fn := range callbacks {
		Nonreactive(func() { fn(c) })
	}
}

func (c *Computation) compute() error {
	c.invalidated = false
	prev := current
	current = c
	defer func() { current = prev }()
	return c.f(c)
}

func (c *Computation) needsRecompute() bool {
	return c.invalidated && !c.stopped
}

func (c *Computation) recompute() {
	c.recomputing = true
	defer func() { c.recomputing = false }()

	if !c.needsRecompute() {
		return
	}
	if err := c.compute(); err != nil {
		log.Printf("tracker: exception from recompute function of computation %d: %v", c.id, err)
	}
}

// Current returns the computation currently running, or nil.
func Current() *Computation { return current }

// Active reports whether a computation is currently running.
func Active() bool { return current != nil }

// InFlush reports whether a Flush is running.
func InFlush() bool { return inFlush }

// Nonreactive runs f with no current computation, so reads inside f do not
// register dependencies.
func Nonreactive(f func()) {
	prev := current
	current = nil
	defer func() { current = prev }()
	f()
}

// AfterFlush queues fn to run once the pending computations have rerun.
func AfterFlush(fn func() error) {
	if fn == nil {
		return
	}
	afterFlush = append(afterFlush, fn)
}

// Flush reruns invalidated computations, then after-flush callbacks, until
// both queues are empty. Errors returned by after-flush callbacks are joined
// and returned; every callback still runs.
func Flush() error {
	if inFlush {
		return errs.InvalidState("tracker.Flush", "can't flush while already flushing")
	}
	if current != nil {
		return errs.InvalidState("tracker.Flush", "can't flush inside a computation")
	}

	inFlush = true
	defer func() { inFlush = false }()

	var failures []error
	for len(pending) > 0 || len(afterFlush) > 0 {
		for len(pending) > 0 {
			c := pending[0]
			pending = pending[1:]
			c.recompute()
			if c.needsRecompute() {
				pending = append([]*Computation{c}, pending...)
			}
		}

		if len(afterFlush) > 0 {
			fn := afterFlush[0]
			afterFlush = afterFlush[1:]
			if err := fn(); err != nil {
				failures = append(failures, err)
			}
		}
	}
	return errors.Join(failures...)
}

// Dependency is an invalidation signal computations can register on.
type Dependency struct {
	dependents map[int]*Computation
}

// NewDependency creates a dependency with no dependents.
func NewDependency() *Dependency {
	return &Dependency{dependents: make(map[int]*Computation)}
}

// Depend registers the current computation, if any. It returns true if the
// computation was not already a dependent.
func (d *Dependency) Depend() bool {
	return d.DependOn(current)
}

// DependOn registers c as a dependent.
func (d *Dependency) DependOn(c *Computation) bool {
	if c == nil {
		return false
	}
	if _, ok := d.dependents[c.id]; ok {
		return false
	}
	d.dependents[c.id] = c
	id := c.id
	c.OnInvalidate(func(*Computation) {
		delete(d.dependents, id)
	})
	return true
}

// Changed invalidates all dependents, oldest first.
func (d *Dependency) Changed() {
	if len(d.dependents) == 0 {
		return
	}
	ids := make([]int, 0, len(d.dependents))
	for id := range d.dependents {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if c, ok := d.dependents[id]; ok {
			c.Invalidate()
		}
	}
}

// HasDependents reports whether any computation depends on d.
func (d *Dependency) HasDependents() bool {
	return len(d.dependents) > 0
}

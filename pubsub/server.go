package pubsub

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/internal/metrics"
	"github.com/livefir/blaze/tracker"
)

// Server is an in-process Connection backed by registered publications.
type Server struct {
	mu           sync.Mutex
	publications map[string]PublishFunc
	queue        []func()
	closed       bool

	subs    *registry
	wg      sync.WaitGroup
	sink    Sink
	metrics *metrics.Collector
}

// Option configures a Server
type Option func(*Server)

// WithSink sets the receiver of published documents.
func WithSink(sink Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithMetrics records subscription activity in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = collector
	}
}

// NewServer creates a server with no publications.
func NewServer(opts ...Option) *Server {
	s := &Server{
		publications: make(map[string]PublishFunc),
		subs:         newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type publishRequest struct {
	Name string `validate:"required,printascii,max=128"`
}

// Publish registers fn under name.
func (s *Server) Publish(name string, fn PublishFunc) error {
	if err := errs.Validate("pubsub.Publish", publishRequest{Name: name}); err != nil {
		return err
	}
	if fn == nil {
		return errs.InvalidArgument("pubsub.Publish", "publish function for %q is nil", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.publications[name]; exists {
		return errs.InvalidArgument("pubsub.Publish", "publication %q already registered", name)
	}
	s.publications[name] = fn
	return nil
}

// Subscribe starts a subscription to the publication called name. When no
// such publication exists the returned handle is already stopped: cb.OnStop
// has run with ErrNotFound before Subscribe returns.
func (s *Server) Subscribe(name string, args []any, cb Callbacks) (Handle, error) {
	if err := errs.Validate("pubsub.Subscribe", publishRequest{Name: name}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errs.InvalidState("pubsub.Subscribe", "server closed")
	}
	fn, ok := s.publications[name]
	s.mu.Unlock()

	sub := &subscription{
		id:     uuid.NewString(),
		name:   name,
		args:   args,
		cb:     cb,
		dep:    tracker.NewDependency(),
		server: s,
	}
	s.metrics.IncrementSubscriptionStarted()

	if !ok {
		sub.stopWith(fmt.Errorf("%w: %q", ErrNotFound, name))
		return sub, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub.cancel = cancel
	s.subs.register(sub)

	pub := &Publication{sub: sub, server: s}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(ctx, pub); err != nil && ctx.Err() == nil {
			log.Printf("pubsub: publication %q (%s) failed: %v", name, sub.id, err)
			s.enqueue(func() { sub.stopWith(err) })
		}
	}()

	return sub, nil
}

func (s *Server) enqueue(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, fn)
}

// Pump runs queued publication results on the calling goroutine and returns
// how many ran. Call it from the render loop.
func (s *Server) Pump() int {
	n := 0
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Wait blocks until every running publish function has returned, or ctx is
// done, then pumps the queue. Publications that keep running until stopped
// make Wait return ctx's error.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Pump()
		return nil
	case <-ctx.Done():
		s.Pump()
		return ctx.Err()
	}
}

// Lookup returns the live subscription with id.
func (s *Server) Lookup(id string) (Handle, bool) {
	sub, ok := s.subs.get(id)
	if !ok {
		return nil, false
	}
	return sub, true
}

// Stats describes the server's publications and live subscriptions.
type Stats struct {
	Publications int
	Active       int
	ByName       map[string]int
}

// Stats returns a snapshot of registered publications and live subscriptions.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	pubs := len(s.publications)
	s.mu.Unlock()

	byName := s.subs.counts()
	active := 0
	for _, n := range byName {
		active += n
	}
	return Stats{Publications: pubs, Active: active, ByName: byName}
}

// StopAll stops every live subscription to the publication name.
func (s *Server) StopAll(name string) int {
	subs := s.subs.byPublication(name)
	for _, sub := range subs {
		sub.Stop()
	}
	return len(subs)
}

// Close cancels every running publication and waits for them to return.
// Queued results are dropped and no callbacks fire.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	for _, sub := range s.subs.all() {
		if sub.cancel != nil {
			sub.cancel()
		}
		s.subs.unregister(sub)
	}
	s.wg.Wait()
}

// Publication is the publish function's side of one subscription.
type Publication struct {
	sub    *subscription
	server *Server
}

// ID returns the subscription id.
func (p *Publication) ID() string { return p.sub.id }

// Name returns the publication name.
func (p *Publication) Name() string { return p.sub.name }

// Args returns the subscription arguments.
func (p *Publication) Args() []any { return p.sub.args }

// Ready marks the subscription ready once its queued documents are delivered.
func (p *Publication) Ready() {
	p.server.enqueue(p.sub.markReady)
}

// Added sends a new document to the server's sink.
func (p *Publication) Added(collection, id string, fields map[string]any) {
	p.server.enqueue(func() {
		if p.sub.stopped || p.server.sink == nil {
			return
		}
		p.server.sink.Added(collection, id, fields)
	})
}

// Changed sends updated fields of a document to the server's sink.
func (p *Publication) Changed(collection, id string, fields map[string]any) {
	p.server.enqueue(func() {
		if p.sub.stopped || p.server.sink == nil {
			return
		}
		p.server.sink.Changed(collection, id, fields)
	})
}

// Removed tells the server's sink a document is gone.
func (p *Publication) Removed(collection, id string) {
	p.server.enqueue(func() {
		if p.sub.stopped || p.server.sink == nil {
			return
		}
		p.server.sink.Removed(collection, id)
	})
}

// subscription is the Handle returned by Server. Its fields are only touched
// on the render loop; the publish goroutine talks to it through the queue.
type subscription struct {
	id      string
	name    string
	args    []any
	cb      Callbacks
	dep     *tracker.Dependency
	ready   bool
	stopped bool
	cancel  context.CancelFunc
	server  *Server
}

func (s *subscription) SubscriptionID() string { return s.id }

func (s *subscription) Ready() bool {
	s.dep.Depend()
	return s.ready
}

func (s *subscription) Stop() {
	s.stopWith(nil)
}

func (s *subscription) markReady() {
	if s.stopped || s.ready {
		return
	}
	s.ready = true
	s.server.metrics.IncrementSubscriptionReady()
	s.dep.Changed()
	if s.cb.OnReady != nil {
		s.cb.OnReady()
	}
}

func (s *subscription) stopWith(err error) {
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	s.server.subs.unregister(s)
	s.server.metrics.IncrementSubscriptionStopped(err)

	if s.ready {
		s.ready = false
		s.dep.Changed()
	}
	if err != nil && s.cb.OnError != nil {
		s.cb.OnError(err)
	}
	if s.cb.OnStop != nil {
		s.cb.OnStop(err)
	}
}

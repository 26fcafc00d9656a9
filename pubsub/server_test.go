package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/livefir/blaze/internal/metrics"
	"github.com/livefir/blaze/tracker"
)

type recordingSink struct {
	added   []string
	changed []string
	removed []string
}

func (r *recordingSink) Added(collection, id string, fields map[string]any) {
	r.added = append(r.added, collection+"/"+id)
}

func (r *recordingSink) Changed(collection, id string, fields map[string]any) {
	r.changed = append(r.changed, collection+"/"+id)
}

func (r *recordingSink) Removed(collection, id string) {
	r.removed = append(r.removed, collection+"/"+id)
}

func waitFor(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestSubscribeReady(t *testing.T) {
	sink := &recordingSink{}
	s := NewServer(WithSink(sink))
	defer s.Close()

	err := s.Publish("feed", func(ctx context.Context, pub *Publication) error {
		pub.Added("posts", "a", map[string]any{"title": "first"})
		pub.Added("posts", "b", map[string]any{"title": "second"})
		pub.Ready()
		return nil
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	readyCalls := 0
	h, err := s.Subscribe("feed", nil, Callbacks{OnReady: func() { readyCalls++ }})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if h.SubscriptionID() == "" {
		t.Fatal("handle should have an id")
	}
	if h.Ready() {
		t.Error("handle should not be ready before the queue is pumped")
	}

	waitFor(t, s)

	if !h.Ready() {
		t.Error("handle should be ready after Wait")
	}
	if readyCalls != 1 {
		t.Errorf("OnReady fired %d times, want 1", readyCalls)
	}
	if len(sink.added) != 2 || sink.added[0] != "posts/a" || sink.added[1] != "posts/b" {
		t.Errorf("sink.added = %v, want [posts/a posts/b]", sink.added)
	}
}

func TestSubscribeUnknownPublicationStopsSynchronously(t *testing.T) {
	s := NewServer()
	defer s.Close()

	var stopErr error
	stops := 0
	var errorCalls int
	h, err := s.Subscribe("missing", nil, Callbacks{
		OnError: func(error) { errorCalls++ },
		OnStop: func(err error) {
			stops++
			stopErr = err
		},
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if h.SubscriptionID() == "" {
		t.Error("a failed subscription still gets an id")
	}
	if stops != 1 || !errors.Is(stopErr, ErrNotFound) {
		t.Errorf("OnStop fired %d times with %v, want once with ErrNotFound", stops, stopErr)
	}
	if errorCalls != 1 {
		t.Errorf("OnError fired %d times, want 1", errorCalls)
	}

	h.Stop()
	if stops != 1 {
		t.Errorf("Stop() on a stopped handle fired OnStop again")
	}
}

func TestPublishErrorStopsSubscription(t *testing.T) {
	s := NewServer()
	defer s.Close()

	boom := errors.New("query failed")
	_ = s.Publish("broken", func(ctx context.Context, pub *Publication) error {
		return boom
	})

	var stopErr error
	_, err := s.Subscribe("broken", nil, Callbacks{OnStop: func(err error) { stopErr = err }})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	waitFor(t, s)

	if !errors.Is(stopErr, boom) {
		t.Errorf("OnStop error = %v, want %v", stopErr, boom)
	}
	if got := s.Stats().Active; got != 0 {
		t.Errorf("Active subscriptions = %d, want 0", got)
	}
}

func TestStopCancelsPublication(t *testing.T) {
	s := NewServer()
	defer s.Close()

	canceled := make(chan struct{})
	_ = s.Publish("live", func(ctx context.Context, pub *Publication) error {
		pub.Ready()
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})

	stops := 0
	h, _ := s.Subscribe("live", []any{"room-1"}, Callbacks{OnStop: func(error) { stops++ }})

	if got := s.Stats().ByName["live"]; got != 1 {
		t.Errorf("ByName[live] = %d, want 1", got)
	}

	h.Stop()
	h.Stop()

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("publication context was not canceled")
	}
	if stops != 1 {
		t.Errorf("OnStop fired %d times, want 1", stops)
	}
	if h.Ready() {
		t.Error("stopped handle should not report ready")
	}
	if _, ok := s.Lookup(h.SubscriptionID()); ok {
		t.Error("stopped subscription should be unregistered")
	}
}

func TestReadyIsReactive(t *testing.T) {
	s := NewServer()
	defer s.Close()

	_ = s.Publish("feed", func(ctx context.Context, pub *Publication) error {
		pub.Ready()
		return nil
	})
	h, _ := s.Subscribe("feed", nil, Callbacks{})

	var seen []bool
	c, err := tracker.Autorun(func(c *tracker.Computation) error {
		seen = append(seen, h.Ready())
		return nil
	})
	if err != nil {
		t.Fatalf("Autorun() error = %v", err)
	}
	defer c.Stop()

	waitFor(t, s)
	if err := tracker.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(seen) != 2 || seen[0] || !seen[1] {
		t.Errorf("readiness sequence = %v, want [false true]", seen)
	}
}

func TestPublishValidation(t *testing.T) {
	s := NewServer()
	defer s.Close()

	fn := func(ctx context.Context, pub *Publication) error { return nil }

	tests := []struct {
		name    string
		pubName string
		fn      PublishFunc
	}{
		{"empty name", "", fn},
		{"nil function", "feed", nil},
		{"non-ascii name", "féed", fn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Publish(tt.pubName, tt.fn); err == nil {
				t.Errorf("Publish(%q) should fail", tt.pubName)
			}
		})
	}

	if err := s.Publish("feed", fn); err != nil {
		t.Fatalf("Publish(feed) error = %v", err)
	}
	if err := s.Publish("feed", fn); err == nil {
		t.Error("duplicate Publish should fail")
	}
}

func TestStopAllAndMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	s := NewServer(WithMetrics(collector))
	defer s.Close()

	_ = s.Publish("feed", func(ctx context.Context, pub *Publication) error {
		pub.Ready()
		return nil
	})
	for i := 0; i < 3; i++ {
		if _, err := s.Subscribe("feed", []any{i}, Callbacks{}); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}
	waitFor(t, s)

	if n := s.StopAll("feed"); n != 3 {
		t.Errorf("StopAll() = %d, want 3", n)
	}

	m := collector.GetMetrics()
	if m.SubscriptionsStarted != 3 || m.SubscriptionsReady != 3 || m.SubscriptionsStopped != 3 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	s := NewServer()
	s.Close()

	if _, err := s.Subscribe("feed", nil, Callbacks{}); err == nil {
		t.Error("Subscribe() after Close should fail")
	}
}

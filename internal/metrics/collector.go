package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides simple built-in runtime counters with no external dependencies
type Collector struct {
	runtimeMetrics    *RuntimeMetrics
	operationCounters map[string]*int64
	mu                sync.RWMutex
	startTime         time.Time
}

// RuntimeMetrics tracks view and subscription activity
type RuntimeMetrics struct {
	// View lifecycle
	ViewsCreated       int64 `json:"views_created"`
	ViewsDestroyed     int64 `json:"views_destroyed"`
	ActiveViews        int64 `json:"active_views"`
	MaxConcurrentViews int64 `json:"max_concurrent_views"`
	Renders            int64 `json:"renders"`
	RenderErrors       int64 `json:"render_errors"`

	// Events
	EventsDispatched int64 `json:"events_dispatched"`
	HandlersFired    int64 `json:"handlers_fired"`

	// Subscriptions
	SubscriptionsStarted int64 `json:"subscriptions_started"`
	SubscriptionsReady   int64 `json:"subscriptions_ready"`
	SubscriptionsStopped int64 `json:"subscriptions_stopped"`
	SubscriptionErrors   int64 `json:"subscription_errors"`

	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		runtimeMetrics: &RuntimeMetrics{
			StartTime: time.Now(),
		},
		operationCounters: make(map[string]*int64),
		startTime:         time.Now(),
	}
}

// IncrementViewCreated records a view reaching the created state
func (c *Collector) IncrementViewCreated() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.ViewsCreated, 1)
	currentActive := atomic.AddInt64(&c.runtimeMetrics.ActiveViews, 1)

	for {
		max := atomic.LoadInt64(&c.runtimeMetrics.MaxConcurrentViews)
		if currentActive <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.runtimeMetrics.MaxConcurrentViews, max, currentActive) {
			break
		}
	}
}

// IncrementViewDestroyed records a view destruction
func (c *Collector) IncrementViewDestroyed() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.ViewsDestroyed, 1)
	atomic.AddInt64(&c.runtimeMetrics.ActiveViews, -1)
}

// IncrementRender records a completed render, or a failed one
func (c *Collector) IncrementRender(err error) {
	if c == nil {
		return
	}
	if err != nil {
		atomic.AddInt64(&c.runtimeMetrics.RenderErrors, 1)
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.Renders, 1)
}

// IncrementEventDispatched records one dispatched event and the handlers it fired
func (c *Collector) IncrementEventDispatched(handlers int) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.EventsDispatched, 1)
	atomic.AddInt64(&c.runtimeMetrics.HandlersFired, int64(handlers))
}

// IncrementSubscriptionStarted records a subscription start
func (c *Collector) IncrementSubscriptionStarted() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.SubscriptionsStarted, 1)
}

// IncrementSubscriptionReady records a subscription becoming ready
func (c *Collector) IncrementSubscriptionReady() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.SubscriptionsReady, 1)
}

// IncrementSubscriptionStopped records a stop, counting it as an error when err is set
func (c *Collector) IncrementSubscriptionStopped(err error) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.runtimeMetrics.SubscriptionsStopped, 1)
	if err != nil {
		atomic.AddInt64(&c.runtimeMetrics.SubscriptionErrors, 1)
	}
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.operationCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.operationCounters[name] = &newCounter
	}
}

// GetMetrics returns a snapshot of the current counters
func (c *Collector) GetMetrics() RuntimeMetrics {
	m := c.runtimeMetrics
	return RuntimeMetrics{
		ViewsCreated:         atomic.LoadInt64(&m.ViewsCreated),
		ViewsDestroyed:       atomic.LoadInt64(&m.ViewsDestroyed),
		ActiveViews:          atomic.LoadInt64(&m.ActiveViews),
		MaxConcurrentViews:   atomic.LoadInt64(&m.MaxConcurrentViews),
		Renders:              atomic.LoadInt64(&m.Renders),
		RenderErrors:         atomic.LoadInt64(&m.RenderErrors),
		EventsDispatched:     atomic.LoadInt64(&m.EventsDispatched),
		HandlersFired:        atomic.LoadInt64(&m.HandlersFired),
		SubscriptionsStarted: atomic.LoadInt64(&m.SubscriptionsStarted),
		SubscriptionsReady:   atomic.LoadInt64(&m.SubscriptionsReady),
		SubscriptionsStopped: atomic.LoadInt64(&m.SubscriptionsStopped),
		SubscriptionErrors:   atomic.LoadInt64(&m.SubscriptionErrors),
		StartTime:            m.StartTime,
		Uptime:               time.Since(c.startTime),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.operationCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// GetSubscriptionErrorRate returns the percentage of stopped subscriptions that failed
func (c *Collector) GetSubscriptionErrorRate() float64 {
	stopped := atomic.LoadInt64(&c.runtimeMetrics.SubscriptionsStopped)
	failed := atomic.LoadInt64(&c.runtimeMetrics.SubscriptionErrors)

	if stopped == 0 {
		return 0.0
	}
	return float64(failed) / float64(stopped) * 100.0
}

package view

import (
	"log"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/internal/metrics"
	"github.com/livefir/blaze/pubsub"
	"github.com/livefir/blaze/tracker"
)

// Document is the tree views render into.
type Document struct {
	root    *html.Node
	conn    pubsub.Connection
	minify  bool
	debug   bool
	metrics *metrics.Collector
	views   []*View
}

// Option configures a Document
type Option func(*Document)

// WithMinify minifies rendered markup before it is parsed.
func WithMinify(enabled bool) Option {
	return func(d *Document) {
		d.minify = enabled
	}
}

// WithDebug logs view lifecycle transitions.
func WithDebug(enabled bool) Option {
	return func(d *Document) {
		d.debug = enabled
	}
}

// WithConnection sets the connection views subscribe through by default.
func WithConnection(conn pubsub.Connection) Option {
	return func(d *Document) {
		d.conn = conn
	}
}

// WithMetrics records view and event activity in collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(d *Document) {
		d.metrics = collector
	}
}

// NewDocument creates an empty document.
func NewDocument(opts ...Option) *Document {
	d := &Document{
		root: &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the element top-level views are attached under.
func (d *Document) Root() *html.Node { return d.root }

// Connection returns the default connection, or nil.
func (d *Document) Connection() pubsub.Connection { return d.conn }

// Render materializes v, appends its content to the root and flushes, so
// ready hooks have run when Render returns. If v fails to render it is
// destroyed.
func (d *Document) Render(v *View) error {
	if v == nil {
		return errs.InvalidArgument("Document.Render", "view required")
	}
	if err := v.materialize(nil, d); err != nil {
		if derr := v.Destroy(); derr != nil {
			log.Printf("view: destroying %q after failed render: %v", v.name, derr)
		}
		return err
	}
	v.domrange.insertInto(d.root, nil)
	d.views = append(d.views, v)
	return d.Flush()
}

// Remove destroys v and takes its content out of the document.
func (d *Document) Remove(v *View) error {
	if v == nil {
		return errs.InvalidArgument("Document.Remove", "view required")
	}
	for i, top := range d.views {
		if top == v {
			d.views = append(d.views[:i], d.views[i+1:]...)
			break
		}
	}
	rng := v.domrange
	err := v.Destroy()
	if rng != nil {
		rng.detach()
	}
	return err
}

// Views returns the views rendered at the top level.
func (d *Document) Views() []*View {
	out := make([]*View, len(d.views))
	copy(out, d.views)
	return out
}

// Flush pumps the default connection's queued results, if it has any, and
// then reruns invalidated views and fires pending ready hooks. Called from
// inside a computation or a running flush it only pumps; the outer flush
// picks up the work.
func (d *Document) Flush() error {
	if p, ok := d.conn.(interface{ Pump() int }); ok {
		p.Pump()
	}
	if tracker.InFlush() || tracker.Active() {
		return nil
	}
	return tracker.Flush()
}

// Dispatch delivers evt from evt.Target outward to the bound event maps.
// The first handler error stops dispatch and is returned.
func (d *Document) Dispatch(evt *Event, args ...any) error {
	if evt == nil || evt.Target == nil {
		return errs.InvalidArgument("Document.Dispatch", "event with a target required")
	}
	if evt.Type == "" {
		return errs.InvalidArgument("Document.Dispatch", "event type required")
	}
	fired, err := dispatch(d.root, evt, args)
	d.metrics.IncrementEventDispatched(fired)
	d.tracef("event %q fired %d handlers", evt.Type, fired)
	return err
}

// Query returns the elements in the document matching selector.
func (d *Document) Query(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, errs.InvalidArgument("Document.Query", "bad selector %q: %v", selector, err)
	}
	var found []*html.Node
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		found = append(found, sel.MatchAll(c)...)
	}
	return found, nil
}

// HTML serializes the document's content.
func (d *Document) HTML() string {
	var b strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			log.Printf("view: render html: %v", err)
		}
	}
	return b.String()
}

func (d *Document) collector() *metrics.Collector {
	if d == nil {
		return nil
	}
	return d.metrics
}

func (d *Document) minifyEnabled() bool {
	return d != nil && d.minify
}

func (d *Document) tracef(format string, args ...any) {
	if d != nil && d.debug {
		log.Printf("view: "+format, args...)
	}
}

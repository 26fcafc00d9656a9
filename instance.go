package blaze

import (
	"golang.org/x/net/html"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/pubsub"
	"github.com/livefir/blaze/tracker"
	"github.com/livefir/blaze/view"
)

// Instance is the live binding of a template to one view. It is what
// callbacks receive, what event handlers get as inst, and what
// CurrentInstance returns inside them.
type Instance struct {
	view *view.View

	// Data is the data context as of the latest access through the view.
	Data any
	// FirstNode and LastNode bound the instance's content. Both are nil
	// before the first render and after destruction.
	FirstNode *html.Node
	LastNode  *html.Node

	subs *subscriptionTracker
}

// NewInstance binds a new instance to v, which must have been constructed
// by a Template.
func NewInstance(v *view.View) (*Instance, error) {
	if v == nil {
		return nil, errs.InvalidState("blaze.NewInstance", "instance has to be constructed with a view")
	}
	if !IsTemplate(v.Template) {
		return nil, errs.InvalidState("blaze.NewInstance", "view %q was not constructed by a template", v.Name())
	}

	inst := &Instance{view: v, subs: newSubscriptionTracker()}
	v.TemplateInstance = func() any { return inst.refresh() }
	return inst, nil
}

// refresh rereads the data context and the DOM anchors.
func (inst *Instance) refresh() *Instance {
	inst.Data = inst.view.Data()
	if rng := inst.view.DomRange(); rng != nil && !inst.view.IsDestroyed() {
		inst.FirstNode = rng.FirstNode()
		inst.LastNode = rng.LastNode()
	} else {
		inst.FirstNode = nil
		inst.LastNode = nil
	}
	return inst
}

// accessorOf returns a function that refreshes and returns the instance
// bound to v, or nil when v has none.
func accessorOf(v *view.View) func() *Instance {
	return func() *Instance {
		if v == nil || v.TemplateInstance == nil {
			return nil
		}
		inst, _ := v.TemplateInstance().(*Instance)
		return inst
	}
}

// View returns the view the instance is bound to.
func (inst *Instance) View() *view.View { return inst.view }

// Template returns the template the instance was constructed from.
func (inst *Instance) Template() *Template {
	t, _ := inst.view.Template.(*Template)
	return t
}

// Select returns the elements matching selector inside the instance's
// content.
func (inst *Instance) Select(selector string) ([]*html.Node, error) {
	rng := inst.view.DomRange()
	if rng == nil {
		return nil, errs.InvalidState("Instance.Select", "can't use Select on template instance with no DOM")
	}
	return rng.Select(selector)
}

// FindAll is Select.
func (inst *Instance) FindAll(selector string) ([]*html.Node, error) {
	return inst.Select(selector)
}

// Find returns the first element matching selector, or nil.
func (inst *Instance) Find(selector string) (*html.Node, error) {
	nodes, err := inst.Select(selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Autorun runs f in a computation that stops when the instance's view is
// destroyed. f runs with the instance as the current instance.
func (inst *Instance) Autorun(f func(c *tracker.Computation) error) (*tracker.Computation, error) {
	if f == nil {
		return nil, errs.InvalidArgument("Instance.Autorun", "function required")
	}
	accessor := accessorOf(inst.view)
	return inst.view.Autorun(func(c *tracker.Computation) error {
		return WithInstance(accessor, func() error { return f(c) })
	})
}

// Subscribe starts a subscription that stops when the instance's view is
// destroyed and counts toward SubscriptionsReady. A trailing
// SubscribeOptions (or *SubscribeOptions) argument is taken as options and
// a trailing func() as the ready callback; every other argument goes to the
// publication.
func (inst *Instance) Subscribe(name string, args ...any) (pubsub.Handle, error) {
	var opts SubscribeOptions
	if n := len(args); n > 0 {
		switch last := args[n-1].(type) {
		case SubscribeOptions:
			opts = last
			args = args[:n-1]
		case *SubscribeOptions:
			if last != nil {
				opts = *last
			}
			args = args[:n-1]
		case func():
			opts.OnReady = last
			args = args[:n-1]
		}
	}

	start := func(cb pubsub.Callbacks) (pubsub.Handle, error) {
		return inst.view.Subscribe(opts.Connection, name, args, cb)
	}
	return inst.subs.subscribe(start, opts)
}

// SubscriptionsReady reports whether every subscription started through
// Subscribe is ready. It is reactive.
func (inst *Instance) SubscriptionsReady() bool {
	return inst.subs.ready()
}

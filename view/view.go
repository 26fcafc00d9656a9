// Package view provides the view tree the template layer binds to.
//
// A View is one renderable, lifecycle-tracked unit. Its render function
// returns HTML, which is parsed into golang.org/x/net/html nodes and tracked
// as a DomRange. Views fire created, rendered, ready and destroyed hooks,
// rerender when a reactive dependency read during render changes, and
// receive events dispatched through their Document.
//
// Like package tracker, views are NOT thread-safe. Render, dispatch and
// lifecycle calls must all come from the render-loop goroutine.
package view

import (
	"errors"
	"fmt"
	"log"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/tracker"
)

// RenderFunc produces the HTML content of a view.
type RenderFunc func(v *View) (string, error)

var (
	nextViewID  int
	currentView *View
)

// View is one node of the view tree.
type View struct {
	id     int
	name   string
	render RenderFunc
	parent *View
	doc    *Document

	// Template, ContentBlock and ElseBlock are slots owned by the template
	// layer; the view never reads them.
	Template     any
	ContentBlock any
	ElseBlock    any
	// TemplateInstance returns the template instance bound to this view,
	// refreshed on each call.
	TemplateInstance func() any

	data *tracker.Var[any]

	renderCount int
	isCreated   bool
	isRendered  bool
	isDestroyed bool
	inRender    bool

	domrange    *DomRange
	children    []*View
	pending     map[string]*View
	computation *tracker.Computation
	eventMaps   []boundEventMap

	createdHooks   []func() error
	renderedHooks  []func() error
	readyHooks     []func() error
	destroyedHooks []func() error
	// cleanups run on every destroy, created or not.
	cleanups []func()
}

// New creates a view. A nil render function renders nothing.
func New(name string, render RenderFunc) *View {
	nextViewID++
	return &View{id: nextViewID, name: name, render: render}
}

// ID returns the process-unique view id.
func (v *View) ID() int { return v.id }

// Name returns the view name.
func (v *View) Name() string { return v.name }

// Parent returns the view that included v, or nil for a root view.
func (v *View) Parent() *View { return v.parent }

// Document returns the document v was rendered into, or nil.
func (v *View) Document() *Document { return v.doc }

// RenderCount returns how many times v has rendered.
func (v *View) RenderCount() int { return v.renderCount }

// IsCreated reports whether the created hooks have fired.
func (v *View) IsCreated() bool { return v.isCreated }

// IsRendered reports whether v has rendered at least once.
func (v *View) IsRendered() bool { return v.isRendered }

// IsDestroyed reports whether v was destroyed.
func (v *View) IsDestroyed() bool { return v.isDestroyed }

// InRender reports whether v's render function is running.
func (v *View) InRender() bool { return v.inRender }

// DomRange returns v's content, or nil before the first render.
func (v *View) DomRange() *DomRange { return v.domrange }

// OnViewCreated registers cb to run when v is created, before it renders.
func (v *View) OnViewCreated(cb func() error) {
	if cb != nil {
		v.createdHooks = append(v.createdHooks, cb)
	}
}

// OnViewRendered registers cb to run after every render of v.
func (v *View) OnViewRendered(cb func() error) {
	if cb != nil {
		v.renderedHooks = append(v.renderedHooks, cb)
	}
}

// OnViewReady registers cb to run once, after v's first render has been
// placed and the pending flush has finished. It does not run if v is
// destroyed first.
func (v *View) OnViewReady(cb func() error) {
	if cb != nil {
		v.readyHooks = append(v.readyHooks, cb)
	}
}

// OnViewDestroyed registers cb to run when v is destroyed.
func (v *View) OnViewDestroyed(cb func() error) {
	if cb != nil {
		v.destroyedHooks = append(v.destroyedHooks, cb)
	}
}

// Defer registers fn to run when v is destroyed, after the destroyed hooks.
// Unlike destroyed hooks it also runs for a view that was never created.
func (v *View) Defer(fn func()) {
	if fn != nil {
		v.cleanups = append(v.cleanups, fn)
	}
}

// Current returns the view whose code is running, or nil.
func Current() *View { return currentView }

// WithCurrentView runs f with v as the current view.
func WithCurrentView(v *View, f func() error) error {
	prev := currentView
	currentView = v
	defer func() { currentView = prev }()
	return f()
}

// fireHooks runs hooks non-reactively with v as the current view, stopping
// at the first error.
func (v *View) fireHooks(hooks []func() error) error {
	var err error
	tracker.Nonreactive(func() {
		err = WithCurrentView(v, func() error {
			for _, hook := range hooks {
				if err := hook(); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return err
}

// Autorun runs f in a computation bound to v: f runs with v as the current
// view, and the computation stops when v is destroyed.
func (v *View) Autorun(f func(c *tracker.Computation) error) (*tracker.Computation, error) {
	if f == nil {
		return nil, errs.InvalidArgument("view.Autorun", "function required")
	}
	if v.inRender {
		return nil, errs.InvalidState("view.Autorun", "can't call Autorun from inside render of %q", v.name)
	}
	if v.isDestroyed {
		return nil, errs.InvalidState("view.Autorun", "view %q is destroyed", v.name)
	}

	c, err := tracker.Autorun(func(c *tracker.Computation) error {
		return WithCurrentView(v, func() error { return f(c) })
	})
	if err != nil {
		return c, err
	}
	v.Defer(c.Stop)
	return c, nil
}

// Include materializes child as part of v's current render and returns the
// markup that marks where child's content goes. It may only be called from
// v's render function.
func (v *View) Include(child *View) (string, error) {
	if child == nil {
		return "", errs.InvalidArgument("view.Include", "child view required")
	}
	if !v.inRender {
		return "", errs.InvalidState("view.Include", "Include called outside the render of %q", v.name)
	}
	if err := child.materialize(v, v.doc); err != nil {
		return "", err
	}
	v.children = append(v.children, child)

	key := fmt.Sprintf("%d", child.id)
	v.pending[key] = child
	return placeholderMarkup(key), nil
}

// materialize creates v under parent and renders it inside a computation so
// later changes to what it read rerender it in place.
func (v *View) materialize(parent *View, doc *Document) error {
	if v.isCreated {
		return errs.InvalidState("view.materialize", "view %q was already materialized", v.name)
	}
	if v.isDestroyed {
		return errs.InvalidState("view.materialize", "view %q is destroyed", v.name)
	}
	v.parent = parent
	v.doc = doc
	v.isCreated = true
	doc.collector().IncrementViewCreated()
	doc.tracef("view %q (%d) created", v.name, v.id)

	if err := v.fireHooks(v.createdHooks); err != nil {
		return err
	}

	c, err := tracker.Autorun(func(c *tracker.Computation) error {
		if v.isDestroyed {
			return nil
		}
		if c.FirstRun() {
			return v.renderFirst()
		}
		return v.rerender()
	})
	if err != nil {
		return err
	}
	v.computation = c
	return nil
}

func (v *View) renderFirst() error {
	members, err := v.build()
	v.doc.collector().IncrementRender(err)
	if err != nil {
		return err
	}
	v.domrange = &DomRange{view: v}
	v.domrange.setMembers(members)
	return v.afterRender()
}

func (v *View) rerender() error {
	oldChildren := v.children
	v.children = nil

	members, err := v.build()
	v.doc.collector().IncrementRender(err)
	if err != nil {
		for _, child := range v.children {
			if derr := child.Destroy(); derr != nil {
				log.Printf("view: destroying child %q of %q after failed rerender: %v", child.name, v.name, derr)
			}
		}
		v.children = oldChildren
		return err
	}

	for _, child := range oldChildren {
		if err := child.Destroy(); err != nil {
			log.Printf("view: destroying child %q of %q: %v", child.name, v.name, err)
		}
	}
	v.domrange.replaceMembers(members)
	return v.afterRender()
}

func (v *View) afterRender() error {
	v.renderCount++
	v.isRendered = true
	v.doc.tracef("view %q (%d) rendered, count=%d", v.name, v.id, v.renderCount)

	if err := v.fireHooks(v.renderedHooks); err != nil {
		return err
	}
	if v.renderCount == 1 && len(v.readyHooks) > 0 {
		tracker.AfterFlush(func() error {
			if v.isDestroyed {
				return nil
			}
			return v.fireHooks(v.readyHooks)
		})
	}
	return nil
}

// build runs the render function and assembles its output, splicing in
// the content of views included during the render.
func (v *View) build() ([]rangeMember, error) {
	v.pending = make(map[string]*View)
	defer func() { v.pending = nil }()

	markup := ""
	v.inRender = true
	err := WithCurrentView(v, func() error {
		if v.render == nil {
			return nil
		}
		var err error
		markup, err = v.render(v)
		return err
	})
	v.inRender = false
	if err != nil {
		return nil, err
	}

	if v.doc.minifyEnabled() {
		markup = minifyHTML(markup)
	}
	nodes, err := parseFragment(markup)
	if err != nil {
		return nil, fmt.Errorf("view %q: %w", v.name, err)
	}
	return v.assemble(nodes)
}

// Destroy fires v's destroyed hooks, stops its computations and destroys the
// views it included. Every hook runs even if one fails; the errors are
// joined. Destroying twice is a no-op.
func (v *View) Destroy() error {
	if v.isDestroyed {
		return nil
	}
	v.isDestroyed = true

	var failures []error
	if v.isCreated {
		for _, hook := range v.destroyedHooks {
			if err := v.fireHooks([]func() error{hook}); err != nil {
				failures = append(failures, err)
			}
		}
		v.doc.collector().IncrementViewDestroyed()
		v.doc.tracef("view %q (%d) destroyed", v.name, v.id)
	}

	cleanups := v.cleanups
	v.cleanups = nil
	for _, fn := range cleanups {
		fn()
	}

	if v.computation != nil {
		v.computation.Stop()
	}

	children := v.children
	v.children = nil
	for _, child := range children {
		if err := child.Destroy(); err != nil {
			failures = append(failures, err)
		}
	}

	if v.domrange != nil {
		v.domrange.release()
	}
	return errors.Join(failures...)
}

// Package blaze binds named render functions ("templates") to live views.
//
// A Template pairs a name with a view.RenderFunc and carries helper
// tables, event maps and created/rendered/destroyed callbacks. Each view
// constructed from a template gets exactly one Instance, which is what
// callbacks, helpers and event handlers see as the current instance. An
// Instance tracks the subscriptions it started and exposes their aggregate
// readiness reactively.
//
// Everything here runs on the single render-loop goroutine that drives the
// view package.
package blaze

import (
	"unicode/utf8"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/view"
)

// Callback is a created, rendered or destroyed callback. It receives the
// instance it fires for.
type Callback func(inst *Instance) error

type callbackKind int

const (
	createdCallbacks callbackKind = iota
	renderedCallbacks
	destroyedCallbacks
)

// Template is a reusable definition: a name, a render function, and the
// tables every view built from it shares.
type Template struct {
	name   string
	render view.RenderFunc
	parent *Template

	helpers   *HelperMap
	eventMaps []view.EventMap
	callbacks [3][]Callback

	// Created, Rendered and Destroyed are single legacy callbacks. When set
	// they fire before the callbacks registered with OnCreated, OnRendered
	// and OnDestroyed.
	Created   Callback
	Rendered  Callback
	Destroyed Callback
	// LegacyEvents is bound through Events on a view's first render, but
	// only if no event maps were registered with Events.
	LegacyEvents EventMap
}

// New defines a template. An empty name is allowed.
func New(name string, render view.RenderFunc) (*Template, error) {
	return newTemplate("blaze.New", name, render, nil)
}

// Derive defines a template whose helper lookups fall through to t. Event
// maps and callbacks are not inherited.
func (t *Template) Derive(name string, render view.RenderFunc) (*Template, error) {
	return newTemplate("Template.Derive", name, render, t)
}

func newTemplate(op, name string, render view.RenderFunc, parent *Template) (*Template, error) {
	if !utf8.ValidString(name) {
		return nil, errs.InvalidArgument(op, "view name must be text")
	}
	if render == nil {
		return nil, errs.InvalidArgument(op, "render function required")
	}
	t := &Template{name: name, render: render, parent: parent}
	t.helpers = newHelperMap(t)
	return t, nil
}

// IsTemplate reports whether x is a *Template.
func IsTemplate(x any) bool {
	t, ok := x.(*Template)
	return ok && t != nil
}

// ViewName returns the name views built from t get.
func (t *Template) ViewName() string { return t.name }

// RenderFunction returns t's render function.
func (t *Template) RenderFunction() view.RenderFunc { return t.render }

// Parent returns the template t was derived from, or nil.
func (t *Template) Parent() *Template { return t.parent }

// HelperTable returns t's own helpers.
func (t *Template) HelperTable() *HelperMap { return t.helpers }

// EventMaps returns the event maps registered on t, in registration order.
func (t *Template) EventMaps() []view.EventMap {
	out := make([]view.EventMap, len(t.eventMaps))
	copy(out, t.eventMaps)
	return out
}

// OnCreated registers cb to run when an instance of t is created.
func (t *Template) OnCreated(cb Callback) { t.addCallback(createdCallbacks, cb) }

// OnRendered registers cb to run when an instance of t is first rendered.
func (t *Template) OnRendered(cb Callback) { t.addCallback(renderedCallbacks, cb) }

// OnDestroyed registers cb to run when an instance of t is destroyed.
func (t *Template) OnDestroyed(cb Callback) { t.addCallback(destroyedCallbacks, cb) }

func (t *Template) addCallback(kind callbackKind, cb Callback) {
	if cb != nil {
		t.callbacks[kind] = append(t.callbacks[kind], cb)
	}
}

// callbacksFor returns the legacy callback, if any, followed by the
// registered ones. The result is a copy, so later registrations do not
// reach views that already took it.
func (t *Template) callbacksFor(kind callbackKind) []Callback {
	var legacy Callback
	switch kind {
	case createdCallbacks:
		legacy = t.Created
	case renderedCallbacks:
		legacy = t.Rendered
	case destroyedCallbacks:
		legacy = t.Destroyed
	}

	var out []Callback
	if legacy != nil {
		out = append(out, legacy)
	}
	return append(out, t.callbacks[kind]...)
}

// Helpers adds helpers to t. Values are HelperFuncs or constants. Nothing
// is added if any entry is invalid.
func (t *Template) Helpers(dict map[string]any) error {
	if dict == nil {
		return errs.InvalidArgument("Template.Helpers", "helpers dictionary has to be a map")
	}
	normalized := make(map[string]any, len(dict))
	for name, value := range dict {
		v, err := normalizeHelper("Template.Helpers", name, value)
		if err != nil {
			return err
		}
		normalized[name] = v
	}
	for name, value := range normalized {
		t.helpers.entries[name] = HelperEntry{Kind: TemplateHelper, Name: name, Value: value, Owner: t}
	}
	return nil
}

// Lookup finds name on t's helper table, then on its ancestors'. A helper
// defined on t shadows one of the same name on a parent.
func (t *Template) Lookup(name string) (HelperEntry, bool) {
	for tmpl := t; tmpl != nil; tmpl = tmpl.parent {
		if e, ok := tmpl.helpers.Get(name); ok {
			return e, true
		}
	}
	return HelperEntry{}, false
}

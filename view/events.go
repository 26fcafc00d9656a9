package view

import (
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/livefir/blaze/errs"
)

// Event is a DOM-style event dispatched through a Document.
type Event struct {
	Type string
	// Target is the element the event happened on.
	Target *html.Node
	// CurrentTarget is the element whose handler is running.
	CurrentTarget *html.Node
	// Detail carries event payload such as a key or input value.
	Detail map[string]any

	stopped          bool
	stoppedImmediate bool
	defaultPrevented bool
}

// StopPropagation keeps the event from reaching outer elements.
func (e *Event) StopPropagation() { e.stopped = true }

// StopImmediatePropagation also skips the remaining handlers on the current
// element.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.stoppedImmediate = true
}

// PreventDefault marks the event's default action as canceled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.stopped }

// EventHandler handles an event bound on v. args are the extra arguments
// passed to Dispatch.
type EventHandler func(v *View, evt *Event, args ...any) error

// EventMap maps "type[ selector][, type[ selector]...]" keys to handlers.
// A key without a selector matches the view's top-level elements.
type EventMap map[string]EventHandler

type eventSpec struct {
	eventType string
	selector  string
	match     cascadia.Selector
}

type boundHandler struct {
	key     string
	specs   []eventSpec
	handler EventHandler
}

type boundEventMap []boundHandler

// CheckEventKey reports whether key is a valid event map key, returning
// InvalidArgument for an empty event or a bad selector.
func CheckEventKey(key string) error {
	_, err := parseEventKey(key)
	return err
}

// parseEventKey splits "click .add, keyup input" into its parts
func parseEventKey(key string) ([]eventSpec, error) {
	var specs []eventSpec
	for _, part := range strings.Split(key, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errs.InvalidArgument("view.parseEventKey", "empty event in %q", key)
		}

		fields := strings.SplitN(part, " ", 2)
		spec := eventSpec{eventType: fields[0]}
		if len(fields) == 2 {
			spec.selector = strings.TrimSpace(fields[1])
		}
		if spec.selector != "" {
			sel, err := cascadia.Compile(spec.selector)
			if err != nil {
				return nil, errs.InvalidArgument("view.parseEventKey", "bad selector %q in %q: %v", spec.selector, key, err)
			}
			spec.match = sel
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// AddEventMap binds m's handlers to v. Maps bound earlier run first; within
// a map handlers run in key order.
func (v *View) AddEventMap(m EventMap) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bound := make(boundEventMap, 0, len(keys))
	for _, key := range keys {
		if m[key] == nil {
			return errs.InvalidArgument("view.AddEventMap", "handler for %q is nil", key)
		}
		specs, err := parseEventKey(key)
		if err != nil {
			return err
		}
		bound = append(bound, boundHandler{key: key, specs: specs, handler: m[key]})
	}
	v.eventMaps = append(v.eventMaps, bound)
	return nil
}

// matches reports whether spec applies to el for handlers bound on v.
func (v *View) matches(spec eventSpec, eventType string, el *html.Node) bool {
	if spec.eventType != eventType || v.domrange == nil {
		return false
	}
	if spec.match == nil {
		return v.domrange.isTopLevel(el)
	}
	return el.Type == html.ElementNode && spec.match.Match(el)
}

// dispatch delivers evt like a bubbling DOM event: from the target outward,
// and at each element to the views containing it from innermost outward.
func dispatch(root *html.Node, evt *Event, args []any) (int, error) {
	fired := 0
	for el := evt.Target; el != nil && el != root; el = el.Parent {
		for w := ViewOf(el); w != nil; w = w.parent {
			if w.isDestroyed {
				continue
			}
			for _, m := range w.eventMaps {
				for _, h := range m {
					if !h.appliesTo(w, evt.Type, el) {
						continue
					}
					evt.CurrentTarget = el
					fired++
					view := w
					if err := WithCurrentView(view, func() error { return h.handler(view, evt, args...) }); err != nil {
						return fired, err
					}
					if evt.stoppedImmediate {
						return fired, nil
					}
				}
			}
		}
		if evt.stopped {
			break
		}
	}
	return fired, nil
}

func (h boundHandler) appliesTo(v *View, eventType string, el *html.Node) bool {
	for _, spec := range h.specs {
		if v.matches(spec, eventType, el) {
			return true
		}
	}
	return false
}

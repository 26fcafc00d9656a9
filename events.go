package blaze

import (
	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/tracker"
	"github.com/livefir/blaze/view"
)

// EventHandler handles an event bound through Template.Events. data is the
// data context of evt.CurrentTarget, or an empty map when it has none; inst
// is the instance of the template the map was registered on; args are the
// extra arguments given to Document.Dispatch.
type EventHandler func(data any, evt *view.Event, inst *Instance, args ...any) error

// EventMap maps "type[ selector][, ...]" keys to handlers.
type EventMap map[string]EventHandler

// Events registers an event map on t. Each call adds a separate map; all
// of them are bound, in call order, when a view of t first renders.
// Keys are parsed here, so a bad key fails this call and no map is added.
func (t *Template) Events(m EventMap) error {
	if m == nil {
		return errs.InvalidArgument("Template.Events", "event map has to be a map")
	}
	wrapped := make(view.EventMap, len(m))
	for key, handler := range m {
		if handler == nil {
			return errs.InvalidArgument("Template.Events", "handler for %q is nil", key)
		}
		if err := view.CheckEventKey(key); err != nil {
			return err
		}
		wrapped[key] = wrapHandler(handler)
	}
	t.eventMaps = append(t.eventMaps, wrapped)
	return nil
}

// wrapHandler adapts h to the view layer: it resolves the target's data,
// passes the bound view's instance and installs that instance's scope.
func wrapHandler(h EventHandler) view.EventHandler {
	return func(v *view.View, evt *view.Event, args ...any) error {
		var err error
		tracker.Nonreactive(func() {
			data := view.GetData(evt.CurrentTarget)
			if data == nil {
				data = map[string]any{}
			}
			accessor := accessorOf(v)
			inst := accessor()
			err = WithInstance(accessor, func() error {
				return h(data, evt, inst, args...)
			})
		})
		return err
	}
}

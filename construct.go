package blaze

import (
	"github.com/livefir/blaze/view"
)

const (
	contentBlockName = "(contentBlock)"
	elseBlockName    = "(elseBlock)"
)

// ConstructView builds a view of t with its Instance already bound. content
// and elseFunc, when non-nil, become templates derived from t that the
// view exposes as its content and else blocks.
//
// The created, rendered and destroyed callbacks that fire for the view are
// the ones registered when ConstructView is called.
func (t *Template) ConstructView(content, elseFunc view.RenderFunc) (*view.View, error) {
	v := view.New(t.name, t.render)
	v.Template = t

	if content != nil {
		block, err := t.Derive(contentBlockName, content)
		if err != nil {
			return nil, err
		}
		v.ContentBlock = block
	}
	if elseFunc != nil {
		block, err := t.Derive(elseBlockName, elseFunc)
		if err != nil {
			return nil, err
		}
		v.ElseBlock = block
	}

	v.OnViewRendered(func() error {
		if v.RenderCount() != 1 {
			return nil
		}
		if len(t.eventMaps) == 0 && t.LegacyEvents != nil {
			if err := t.Events(t.LegacyEvents); err != nil {
				return err
			}
		}
		for _, m := range t.eventMaps {
			if err := v.AddEventMap(m); err != nil {
				return err
			}
		}
		return nil
	})

	inst, err := NewInstance(v)
	if err != nil {
		return nil, err
	}

	created := t.callbacksFor(createdCallbacks)
	v.OnViewCreated(func() error {
		return fireCallbacks(created, inst.refresh())
	})

	rendered := t.callbacksFor(renderedCallbacks)
	v.OnViewReady(func() error {
		return fireCallbacks(rendered, inst.refresh())
	})

	destroyed := t.callbacksFor(destroyedCallbacks)
	v.OnViewDestroyed(func() error {
		return fireCallbacks(destroyed, inst.refresh())
	})
	v.Defer(inst.subs.release)

	return v, nil
}

// fireCallbacks runs callbacks in order with inst as the current instance,
// stopping at the first error.
func fireCallbacks(callbacks []Callback, inst *Instance) error {
	return WithInstance(func() *Instance { return inst }, func() error {
		for _, cb := range callbacks {
			if err := cb(inst); err != nil {
				return err
			}
		}
		return nil
	})
}

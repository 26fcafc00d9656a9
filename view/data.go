package view

import (
	"golang.org/x/net/html"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/tracker"
)

// SetData sets v's data context. Views without their own data see the data
// of the nearest ancestor that has some. Reading data is reactive, so a
// render that read it reruns after SetData.
func (v *View) SetData(data any) {
	if v.data == nil {
		v.data = tracker.NewVar[any](data, nil)
		return
	}
	v.data.Set(data)
}

// HasData reports whether v has its own data context.
func (v *View) HasData() bool { return v.data != nil }

// dataView returns the nearest view at or above v with a data context.
func dataView(v *View) *View {
	for w := v; w != nil; w = w.parent {
		if w.data != nil {
			return w
		}
	}
	return nil
}

// Data returns the data context visible from v.
func (v *View) Data() any {
	if w := dataView(v); w != nil {
		return w.data.Get()
	}
	return nil
}

// GetData returns the data context for x, which may be a *View or an
// *html.Node rendered by a view. A nil x uses the current view. Anything
// else, or a node outside every view, has no data.
func GetData(x any) any {
	switch t := x.(type) {
	case nil:
		if currentView == nil {
			return nil
		}
		return currentView.Data()
	case *View:
		if t == nil {
			return nil
		}
		return t.Data()
	case *html.Node:
		if t == nil {
			return nil
		}
		if v := ViewOf(t); v != nil {
			return v.Data()
		}
	}
	return nil
}

// ParentData returns the data context levels data contexts above the one
// visible from v. Zero levels is v's own data.
func ParentData(v *View, levels int) (any, error) {
	if levels < 0 {
		return nil, errs.InvalidArgument("view.ParentData", "levels must be >= 0, got %d", levels)
	}
	w := dataView(v)
	for i := 0; i < levels && w != nil; i++ {
		w = dataView(w.parent)
	}
	if w == nil {
		return nil, nil
	}
	return w.data.Get(), nil
}

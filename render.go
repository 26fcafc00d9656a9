package blaze

import (
	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/view"
)

// Render constructs a view of t and renders it into doc.
func Render(doc *view.Document, t *Template) (*view.View, error) {
	return render(doc, t, nil, false)
}

// RenderWithData constructs a view of t with data as its data context and
// renders it into doc.
func RenderWithData(doc *view.Document, t *Template, data any) (*view.View, error) {
	return render(doc, t, data, true)
}

func render(doc *view.Document, t *Template, data any, withData bool) (*view.View, error) {
	if doc == nil {
		return nil, errs.InvalidArgument("blaze.Render", "document required")
	}
	if t == nil {
		return nil, errs.InvalidArgument("blaze.Render", "template required")
	}
	v, err := t.ConstructView(nil, nil)
	if err != nil {
		return nil, err
	}
	if withData {
		v.SetData(data)
	}
	if err := doc.Render(v); err != nil {
		return v, err
	}
	return v, nil
}

// Include renders t inside parent's render function and returns the markup
// to place in parent's output.
func Include(parent *view.View, t *Template) (string, error) {
	return include(parent, t, nil, false)
}

// IncludeWithData is Include with data as the included view's data context.
func IncludeWithData(parent *view.View, t *Template, data any) (string, error) {
	return include(parent, t, data, true)
}

func include(parent *view.View, t *Template, data any, withData bool) (string, error) {
	if parent == nil {
		return "", errs.InvalidArgument("blaze.Include", "parent view required")
	}
	if t == nil {
		return "", errs.InvalidArgument("blaze.Include", "template required")
	}
	v, err := t.ConstructView(nil, nil)
	if err != nil {
		return "", err
	}
	if withData {
		v.SetData(data)
	}
	return parent.Include(v)
}

// templateView returns the nearest view at or above v built from a
// Template.
func templateView(v *view.View) *view.View {
	for w := v; w != nil; w = w.Parent() {
		if IsTemplate(w.Template) {
			return w
		}
	}
	return nil
}

// TemplateOf returns the template of the nearest template view at or above
// v, or nil.
func TemplateOf(v *view.View) *Template {
	if tv := templateView(v); tv != nil {
		return tv.Template.(*Template)
	}
	return nil
}

// InstanceOf returns the instance of the nearest template view at or above
// v, or nil.
func InstanceOf(v *view.View) *Instance {
	if tv := templateView(v); tv != nil {
		return accessorOf(tv)()
	}
	return nil
}

// ContentBlock returns the content block of the template view enclosing v.
func ContentBlock(v *view.View) *Template {
	if tv := templateView(v); tv != nil {
		if block, ok := tv.ContentBlock.(*Template); ok {
			return block
		}
	}
	return nil
}

// ElseBlock returns the else block of the template view enclosing v.
func ElseBlock(v *view.View) *Template {
	if tv := templateView(v); tv != nil {
		if block, ok := tv.ElseBlock.(*Template); ok {
			return block
		}
	}
	return nil
}

// CurrentData returns the data context of the current view. It is
// reactive.
func CurrentData() any {
	return view.GetData(nil)
}

// ParentData returns the data context levels above the current one;
// levels defaults to 1.
func ParentData(levels ...int) (any, error) {
	n := 1
	if len(levels) > 0 {
		n = levels[0]
	}
	return view.ParentData(view.Current(), n)
}

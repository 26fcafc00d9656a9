package blaze

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livefir/blaze/view"
)

func TestLifecycleCallbackOrder(t *testing.T) {
	var events []string
	record := func(name string) Callback {
		return func(inst *Instance) error {
			events = append(events, name)
			if CurrentInstance() != inst {
				t.Errorf("%s: CurrentInstance() is not the callback's instance", name)
			}
			return nil
		}
	}

	tmpl := mustTemplate(t, "widget", func(v *view.View) (string, error) {
		return "<div>" + v.Data().(string) + "</div>", nil
	})
	tmpl.Created = record("legacy created")
	tmpl.OnCreated(record("created 1"))
	tmpl.OnCreated(record("created 2"))
	tmpl.Rendered = record("legacy rendered")
	tmpl.OnRendered(record("rendered"))
	tmpl.Destroyed = record("legacy destroyed")
	tmpl.OnDestroyed(record("destroyed"))

	doc := view.NewDocument()
	v, err := RenderWithData(doc, tmpl, "a")
	if err != nil {
		t.Fatalf("RenderWithData() error = %v", err)
	}

	v.SetData("b")
	if err := doc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if v.RenderCount() != 2 {
		t.Fatalf("RenderCount() = %d, want 2", v.RenderCount())
	}

	if err := doc.Remove(v); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	want := []string{
		"legacy created", "created 1", "created 2",
		"legacy rendered", "rendered",
		"legacy destroyed", "destroyed",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("callback order mismatch (-want +got):\n%s", diff)
	}
}

func TestCallbacksFrozenAtConstruction(t *testing.T) {
	tmpl := mustTemplate(t, "late", staticRender("<p></p>"))
	early, late := 0, 0
	tmpl.OnCreated(func(*Instance) error { early++; return nil })

	v, err := tmpl.ConstructView(nil, nil)
	if err != nil {
		t.Fatalf("ConstructView() error = %v", err)
	}
	tmpl.OnCreated(func(*Instance) error { late++; return nil })

	doc := view.NewDocument()
	if err := doc.Render(v); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if early != 1 || late != 0 {
		t.Errorf("early = %d, late = %d; want 1 and 0", early, late)
	}

	if _, err := Render(doc, tmpl); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if early != 2 || late != 1 {
		t.Errorf("second view: early = %d, late = %d; want 2 and 1", early, late)
	}
}

func TestInstanceNodesFollowLifecycle(t *testing.T) {
	type snapshot struct {
		First, Last string
		Data        any
	}
	name := func(inst *Instance) snapshot {
		s := snapshot{Data: inst.Data}
		if inst.FirstNode != nil {
			s.First = inst.FirstNode.Data
		}
		if inst.LastNode != nil {
			s.Last = inst.LastNode.Data
		}
		return s
	}

	var seen []snapshot
	tmpl := mustTemplate(t, "nodes", staticRender("<h1>t</h1><p>body</p>"))
	tmpl.OnCreated(func(inst *Instance) error { seen = append(seen, name(inst)); return nil })
	tmpl.OnRendered(func(inst *Instance) error { seen = append(seen, name(inst)); return nil })
	tmpl.OnDestroyed(func(inst *Instance) error { seen = append(seen, name(inst)); return nil })

	doc := view.NewDocument()
	v, err := RenderWithData(doc, tmpl, "ctx")
	if err != nil {
		t.Fatalf("RenderWithData() error = %v", err)
	}
	_ = doc.Remove(v)

	want := []snapshot{
		{Data: "ctx"},
		{First: "h1", Last: "p", Data: "ctx"},
		{Data: "ctx"},
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
}

func TestCallbackErrorPropagates(t *testing.T) {
	boom := errors.New("created failed")
	tmpl := mustTemplate(t, "failing", staticRender("<p></p>"))
	second := false
	tmpl.OnCreated(func(*Instance) error { return boom })
	tmpl.OnCreated(func(*Instance) error { second = true; return nil })

	doc := view.NewDocument()
	if _, err := Render(doc, tmpl); !errors.Is(err, boom) {
		t.Errorf("Render() error = %v, want %v", err, boom)
	}
	if second {
		t.Error("callbacks after a failing one should not run")
	}
	if CurrentInstance() != nil {
		t.Error("instance scope leaked after a callback error")
	}
}

func TestDestroyedNotFiredForUnrenderedView(t *testing.T) {
	tmpl := mustTemplate(t, "never", staticRender(""))
	fired := false
	tmpl.OnDestroyed(func(*Instance) error { fired = true; return nil })

	v, _ := tmpl.ConstructView(nil, nil)
	if err := v.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if fired {
		t.Error("destroyed fired for a view that was never created")
	}
}

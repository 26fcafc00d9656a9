package blaze

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/livefir/blaze/tracker"
	"github.com/livefir/blaze/view"
)

func TestNewInstanceRequiresTemplateView(t *testing.T) {
	if _, err := NewInstance(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewInstance(nil) error = %v, want ErrInvalidState", err)
	}
	plain := view.New("plain", staticRender(""))
	if _, err := NewInstance(plain); !errors.Is(err, ErrInvalidState) {
		t.Errorf("NewInstance(plain view) error = %v, want ErrInvalidState", err)
	}
	if InstanceOf(plain) != nil || TemplateOf(plain) != nil {
		t.Error("a plain view has no instance or template")
	}
}

func TestInstanceSelectWithoutDOM(t *testing.T) {
	tmpl := mustTemplate(t, "t", staticRender("<p></p>"))
	v, err := tmpl.ConstructView(nil, nil)
	if err != nil {
		t.Fatalf("ConstructView() error = %v", err)
	}
	inst := InstanceOf(v)
	if _, err := inst.Select("p"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Select() before render error = %v, want ErrInvalidState", err)
	}
	if _, err := inst.Find("p"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Find() before render error = %v, want ErrInvalidState", err)
	}
}

func TestInstanceFind(t *testing.T) {
	item := mustTemplate(t, "item", staticRender(`<li class="row">inner</li>`))
	list := mustTemplate(t, "list", func(v *view.View) (string, error) {
		s, err := Include(v, item)
		return `<ul><li class="row">outer</li>` + s + `</ul>`, err
	})

	doc := view.NewDocument()
	v, err := Render(doc, list)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	inst := InstanceOf(v)

	rows, err := inst.FindAll("li.row")
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	var texts []string
	for _, n := range rows {
		texts = append(texts, n.FirstChild.Data)
	}
	if diff := cmp.Diff([]string{"outer", "inner"}, texts); diff != "" {
		t.Errorf("FindAll() mismatch (-want +got):\n%s", diff)
	}

	first, err := inst.Find("li")
	if err != nil || first == nil || first.FirstChild.Data != "outer" {
		t.Errorf("Find(li) = %v, %v; want the outer row", first, err)
	}
	missing, err := inst.Find("table")
	if err != nil || missing != nil {
		t.Errorf("Find(table) = %v, %v; want nil, nil", missing, err)
	}
	if _, err := inst.Select("[["); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Select(bad selector) error = %v, want ErrInvalidArgument", err)
	}

	if inst.Template() != list || inst.View() != v {
		t.Error("instance should point back at its template and view")
	}
	if inst.FirstNode == nil || inst.FirstNode.Data != "ul" || inst.LastNode != inst.FirstNode {
		t.Errorf("FirstNode/LastNode = %v/%v, want the ul", inst.FirstNode, inst.LastNode)
	}
}

func TestInstanceAutorun(t *testing.T) {
	tmpl := mustTemplate(t, "t", staticRender("<p></p>"))
	doc := view.NewDocument()
	v, _ := Render(doc, tmpl)
	inst := InstanceOf(v)

	counter := tracker.NewVar(0, nil)
	var seen []int
	var scoped []*Instance
	c, err := inst.Autorun(func(*tracker.Computation) error {
		seen = append(seen, counter.Get())
		scoped = append(scoped, CurrentInstance())
		return nil
	})
	if err != nil {
		t.Fatalf("Autorun() error = %v", err)
	}

	counter.Set(1)
	_ = doc.Flush()
	_ = doc.Remove(v)
	counter.Set(2)
	_ = doc.Flush()

	if diff := cmp.Diff([]int{0, 1}, seen); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}
	if !c.Stopped() {
		t.Error("computation should stop with the view")
	}
	for i, s := range scoped {
		if s != inst {
			t.Errorf("run %d: CurrentInstance() is not the instance", i)
		}
	}

	if _, err := inst.Autorun(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Autorun(nil) error = %v, want ErrInvalidArgument", err)
	}
}

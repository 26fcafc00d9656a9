package blaze

import (
	"reflect"
	"sort"

	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/view"
)

// HelperFunc computes a value for rendered content. data is the data
// context of the view the helper was called from.
type HelperFunc func(data any, args ...any) (any, error)

// HelperKind tells template helpers from global ones.
type HelperKind int

const (
	TemplateHelper HelperKind = iota
	GlobalHelper
)

func (k HelperKind) String() string {
	if k == GlobalHelper {
		return "global"
	}
	return "template"
}

// HelperEntry is one registered helper. Value is a HelperFunc or a plain
// constant.
type HelperEntry struct {
	Kind  HelperKind
	Name  string
	Value any
	// Owner is the defining template; nil for global helpers.
	Owner *Template
}

// HelperMap is a template's own helper table. It does not consult parent
// templates; Template.Lookup does.
type HelperMap struct {
	owner   *Template
	entries map[string]HelperEntry
}

func newHelperMap(owner *Template) *HelperMap {
	return &HelperMap{owner: owner, entries: make(map[string]HelperEntry)}
}

// Get returns the helper registered as name on this table.
func (m *HelperMap) Get(name string) (HelperEntry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Has reports whether name is registered on this table.
func (m *HelperMap) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// Set registers value as name, replacing any previous helper of that name.
func (m *HelperMap) Set(name string, value any) error {
	v, err := normalizeHelper("HelperMap.Set", name, value)
	if err != nil {
		return err
	}
	m.entries[name] = HelperEntry{Kind: TemplateHelper, Name: name, Value: v, Owner: m.owner}
	return nil
}

// Names returns the helper names on this table, sorted.
func (m *HelperMap) Names() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeHelper accepts a HelperFunc, a function literal of the same
// signature, or any non-function value.
func normalizeHelper(op, name string, value any) (any, error) {
	if name == "" {
		return nil, errs.InvalidArgument(op, "helper name required")
	}
	switch fn := value.(type) {
	case HelperFunc:
		if fn == nil {
			return nil, errs.InvalidArgument(op, "helper %q is a nil function", name)
		}
		return fn, nil
	case func(data any, args ...any) (any, error):
		if fn == nil {
			return nil, errs.InvalidArgument(op, "helper %q is a nil function", name)
		}
		return HelperFunc(fn), nil
	}
	if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
		return nil, errs.InvalidArgument(op, "helper %q has unsupported signature %T", name, value)
	}
	return value, nil
}

// helperRegistry holds the global helpers.
type helperRegistry struct {
	entries map[string]HelperEntry
}

var globalHelpers = &helperRegistry{entries: make(map[string]HelperEntry)}

// RegisterHelper defines a helper available to every template. Registering
// a name again replaces it.
func RegisterHelper(name string, value any) error {
	v, err := normalizeHelper("blaze.RegisterHelper", name, value)
	if err != nil {
		return err
	}
	globalHelpers.entries[name] = HelperEntry{Kind: GlobalHelper, Name: name, Value: v}
	return nil
}

// DeregisterHelper removes a global helper. Removing an unknown name is a
// no-op.
func DeregisterHelper(name string) {
	delete(globalHelpers.entries, name)
}

// ResetHelpers removes every global helper.
func ResetHelpers() {
	globalHelpers.entries = make(map[string]HelperEntry)
}

// LookupGlobalHelper returns the global helper registered as name.
func LookupGlobalHelper(name string) (HelperEntry, bool) {
	e, ok := globalHelpers.entries[name]
	return e, ok
}

// CallHelper resolves name from v: first along the helper chain of the
// template v belongs to, then among the global helpers. Functions are
// called with v's data context and the template instance in scope;
// constants are returned as they are.
func CallHelper(v *view.View, name string, args ...any) (any, error) {
	if v == nil {
		return nil, errs.InvalidArgument("blaze.CallHelper", "view required")
	}

	tv := templateView(v)
	entry, found := HelperEntry{}, false
	if tv != nil {
		entry, found = tv.Template.(*Template).Lookup(name)
	}
	if !found {
		entry, found = LookupGlobalHelper(name)
	}
	if !found {
		return nil, errs.InvalidArgument("blaze.CallHelper", "no helper named %q", name)
	}

	fn, ok := entry.Value.(HelperFunc)
	if !ok {
		return entry.Value, nil
	}

	var accessor func() *Instance
	if tv != nil {
		accessor = accessorOf(tv)
	}
	data := v.Data()

	var result any
	err := view.WithCurrentView(v, func() error {
		return WithInstance(accessor, func() error {
			var err error
			result, err = fn(data, args...)
			return err
		})
	})
	return result, err
}

package result

import (
	"sort"

	"github.com/duke-git/lancet/v2/slice"
)

// Augment returns value enriched with the capabilities of receiver.
//
// Element collections become views per element, plain maps become a *View,
// anything else is returned as is. Names in excluded are never exposed as
// chain methods.
func Augment(value any, receiver Receiver, excluded []string) any {
	switch v := value.(type) {
	case *View:
		return v
	case map[string]any:
		if entries, selector, ok := elementCollection(v); ok {
			view := newView(v, receiver, excluded)
			view.selector = selector
			view.data[valueField] = elementViews(entries, selector, receiver, excluded)
			return view
		}
		return newView(v, receiver, excluded)
	case []any:
		if isElementList(v) {
			return elementViews(v, "", receiver, excluded)
		}
		return v
	default:
		return value
	}
}

// IsElementCollection reports whether value is an element collection in
// either shape.
func IsElementCollection(value any) bool {
	switch v := value.(type) {
	case map[string]any:
		_, _, ok := elementCollection(v)
		return ok
	case []any:
		return isElementList(v)
	default:
		return false
	}
}

func elementCollection(m map[string]any) ([]any, string, bool) {
	selector, ok := m[selectorField].(string)
	if !ok {
		return nil, "", false
	}
	entries, ok := m[valueField].([]any)
	if !ok || !isElementList(entries) {
		return nil, "", false
	}
	return entries, selector, true
}

func isElementList(entries []any) bool {
	if len(entries) == 0 {
		return false
	}
	first, ok := entries[0].(map[string]any)
	if !ok {
		return false
	}
	_, ok = first[ElementKey]
	return ok
}

func elementViews(entries []any, selector string, receiver Receiver, excluded []string) []*View {
	views := make([]*View, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			m = map[string]any{valueField: entry}
		}
		view := newView(m, receiver, excluded)
		view.selector = selector
		view.index = i
		view.element = true
		views = append(views, view)
	}
	return views
}

func newView(m map[string]any, receiver Receiver, excluded []string) *View {
	data := make(map[string]any, len(m))
	for k, val := range m {
		if k != statusField {
			data[k] = val
		}
	}

	status, hasStatus := m[statusField]
	var displaced string
	if hasStatus {
		if orig, taken := m[StatusAlias]; taken {
			displaced = "_" + StatusAlias
			for _, exists := m[displaced]; exists; _, exists = m[displaced] {
				displaced = "_" + displaced
			}
			data[displaced] = orig
		}
		data[StatusAlias] = status
	}

	var methods []string
	if receiver != nil {
		methods = slice.Filter(receiver.Capabilities(), func(_ int, name string) bool {
			if _, shadowed := data[name]; shadowed {
				return false
			}
			return !slice.Contain(excluded, name)
		})
		methods = slice.Unique(methods)
		sort.Strings(methods)
	}

	return &View{
		data:      data,
		methods:   methods,
		receiver:  receiver,
		hasStatus: hasStatus,
		displaced: displaced,
	}
}

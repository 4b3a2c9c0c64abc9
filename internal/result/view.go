package result

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/ohler55/ojg/jp"
)

const (
	// ElementKey is the field carrying an element handle id.
	ElementKey = "ELEMENT"
	// StatusAlias is the name the status field is stored under.
	StatusAlias = "_status"

	statusField   = "status"
	selectorField = "selector"
	valueField    = "value"
)

// ErrNotChainable is returned when a view is asked to call a method it does
// not expose.
var ErrNotChainable = errors.New("method is not chainable on this result")

// Receiver is the instance whose capabilities a view re-exposes.
type Receiver interface {
	// Capabilities lists the callable names of the receiver.
	Capabilities() []string
	// Call invokes the named capability.
	Call(ctx context.Context, name string, args ...any) (any, error)
}

type subjectKey struct{}

// WithSubject returns a context carrying v as the chain subject.
func WithSubject(ctx context.Context, v *View) context.Context {
	return context.WithValue(ctx, subjectKey{}, v)
}

// SubjectFrom returns the view a chained call was made on, if any.
func SubjectFrom(ctx context.Context) (*View, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(subjectKey{}).(*View)
	return v, ok && v != nil
}

// View is a map result augmented with the capabilities of its receiver.
type View struct {
	data     map[string]any
	methods  []string
	receiver Receiver
	selector string
	index    int
	element  bool

	hasStatus bool
	// displaced is where an original _status field is kept when the status
	// field took over its name.
	displaced string
}

// Get returns the data field key by its original name.
func (v *View) Get(key string) (any, bool) {
	switch {
	case key == statusField:
		if !v.hasStatus {
			return nil, false
		}
		key = StatusAlias
	case key == StatusAlias && v.displaced != "":
		key = v.displaced
	}
	val, ok := v.data[key]
	return val, ok
}

// Status returns the original status field, if present.
func (v *View) Status() (any, bool) {
	if !v.hasStatus {
		return nil, false
	}
	val, ok := v.data[StatusAlias]
	return val, ok
}

// Data returns a copy of the data fields as stored, status under its alias.
func (v *View) Data() map[string]any {
	return maputil.Merge(map[string]any{}, v.data)
}

// Fields returns the sorted names of the data fields.
func (v *View) Fields() []string {
	keys := maputil.Keys(v.data)
	sort.Strings(keys)
	return keys
}

// Methods returns the sorted names of the chainable methods.
func (v *View) Methods() []string {
	return append([]string(nil), v.methods...)
}

// HasMethod reports whether name can be chained on v.
func (v *View) HasMethod(name string) bool {
	return slice.Contain(v.methods, name)
}

// Selector returns the selector of the collection v was produced from.
func (v *View) Selector() string {
	return v.selector
}

// Index returns the position of v in its element collection.
func (v *View) Index() int {
	return v.index
}

// IsElement reports whether v is an entry of an element collection.
func (v *View) IsElement() bool {
	return v.element
}

// Elements returns the element views of an object-form collection.
func (v *View) Elements() []*View {
	els, _ := v.data[valueField].([]*View)
	return els
}

// Call invokes the chainable method name on the receiver with v attached as
// the chain subject.
func (v *View) Call(ctx context.Context, name string, args ...any) (any, error) {
	if !v.HasMethod(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotChainable, name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return v.receiver.Call(WithSubject(ctx, v), name, args...)
}

// Query evaluates the JSONPath expression path over the data fields of v,
// with the status field under its original name.
func (v *View) Query(path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	return x.Get(v.plain()), nil
}

// MarshalJSON serializes the data fields of v with the status field restored
// to its original name.
func (v *View) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(v.plain())
}

// plain converts v back into plain maps and slices.
func (v *View) plain() map[string]any {
	out := make(map[string]any, len(v.data))
	for k, val := range v.data {
		switch {
		case k == StatusAlias && v.hasStatus:
			k = statusField
		case k == v.displaced && v.displaced != "":
			k = StatusAlias
		}
		out[k] = plainValue(val)
	}
	return out
}

func plainValue(val any) any {
	switch t := val.(type) {
	case *View:
		return t.plain()
	case []*View:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = el.plain()
		}
		return out
	default:
		return val
	}
}

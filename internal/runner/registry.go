package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
)

// Done settles a registered body. A nil error marks success.
type Done func(err error)

// Callback is the body handed to a framework registration function.
type Callback func(done Done)

// RegisterFunc is a framework registration function. An empty title is used
// by hook registrations, a nil body marks a pending spec.
type RegisterFunc func(title string, body Callback)

// Interface holds the registration primitives the framework offers under one
// name. Skip, Only and Fail are optional.
type Interface struct {
	Register RegisterFunc
	Skip     RegisterFunc
	Only     RegisterFunc
	Fail     func(err error)
}

// Registry holds the framework registration functions and their adapted
// variants.
type Registry struct {
	originals map[string]Interface
	adapted   map[string]*Adapted
	mu        sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		originals: make(map[string]Interface),
		adapted:   make(map[string]*Adapted),
	}
}

// Register records the registration functions the framework offers under
// name. Registering a name twice is an error.
func (r *Registry) Register(name string, iface Interface) error {
	if name == "" {
		return fmt.Errorf("registration name is empty")
	}
	if iface.Register == nil {
		return fmt.Errorf("registration function is nil: %s", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.originals[name]; exists {
		return fmt.Errorf("registration function already registered: %s", name)
	}
	r.originals[name] = iface
	return nil
}

// MustRegister is Register but panics on error.
func (r *Registry) MustRegister(name string, iface Interface) {
	if err := r.Register(name, iface); err != nil {
		panic(err)
	}
}

// Interface returns the original registration functions of name.
func (r *Registry) Interface(name string) (Interface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	iface, ok := r.originals[name]
	return iface, ok
}

// Adapted returns the adapted registration function installed for name.
func (r *Registry) Adapted(name string) (*Adapted, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapted[name]
	return a, ok
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maputil.Keys(r.originals)
	sort.Strings(names)
	return names
}

// Call registers a spec or hook through the adapted function of name, or
// through the original one when name was never adapted.
func (r *Registry) Call(name string, args ...any) error {
	if a, ok := r.Adapted(name); ok {
		return a.Call(args...)
	}

	iface, ok := r.Interface(name)
	if !ok {
		return fmt.Errorf("unknown registration function: %s", name)
	}
	title, body, _, err := parseArgs(args)
	if err != nil {
		return err
	}
	if body == nil {
		iface.Register(title, nil)
		return nil
	}
	iface.Register(title, func(done Done) {
		done(callOnce(context.Background(), body))
	})
	return nil
}

func (r *Registry) install(name string, a *Adapted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapted[name] = a
}

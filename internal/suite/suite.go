// Package suite provides a minimal sequential test framework. Specs and
// hooks registered through its Interface are recorded and executed in
// order by Run.
package suite

import (
	"fmt"
	"sync"
	"time"

	"yqhp/syncbridge/internal/runner"
)

// Registration is one spec or hook registered with the Framework.
type Registration struct {
	Kind  string
	Title string
	Body  runner.Callback
	Skip  bool
	Only  bool
}

// Pending reports whether the registration has no body.
func (r *Registration) Pending() bool {
	return r.Body == nil
}

// Outcome is the settled result of one registration.
type Outcome struct {
	Kind    string
	Title   string
	Err     error
	Failed  bool
	Pending bool
}

// Framework is a minimal test framework. Registrations are recorded and
// executed one by one by Run.
type Framework struct {
	mu            sync.Mutex
	registrations []*Registration
	failures      []error
	current       chan error
}

// NewFramework creates an empty Framework.
func NewFramework() *Framework {
	return &Framework{}
}

// Interface returns the registration primitives for kind, e.g. "it" or
// "beforeEach".
func (f *Framework) Interface(kind string) runner.Interface {
	return runner.Interface{
		Register: f.register(kind, false, false),
		Skip:     f.register(kind, true, false),
		Only:     f.register(kind, false, true),
		Fail:     f.fail,
	}
}

// InterfaceWithoutFail is Interface without a dedicated failure path.
func (f *Framework) InterfaceWithoutFail(kind string) runner.Interface {
	iface := f.Interface(kind)
	iface.Fail = nil
	return iface
}

func (f *Framework) register(kind string, skip, only bool) runner.RegisterFunc {
	return func(title string, body runner.Callback) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.registrations = append(f.registrations, &Registration{
			Kind:  kind,
			Title: title,
			Body:  body,
			Skip:  skip,
			Only:  only,
		})
	}
}

func (f *Framework) fail(err error) {
	f.mu.Lock()
	f.failures = append(f.failures, err)
	ch := f.current
	f.mu.Unlock()

	if ch != nil {
		select {
		case ch <- err:
		default:
		}
	}
}

// Registrations returns a copy of everything registered so far.
func (f *Framework) Registrations() []*Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Registration(nil), f.registrations...)
}

// Failures returns the errors reported through the failure path.
func (f *Framework) Failures() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.failures...)
}

// Run executes every registration that has a body and is not skipped, in
// registration order, waiting at most timeout for each.
//
// Once a kind has an Only registration, the other registrations of that kind
// are left out. Other kinds, such as hooks, still run.
func (f *Framework) Run(timeout time.Duration) []Outcome {
	focused := map[string]bool{}
	for _, reg := range f.Registrations() {
		if reg.Only {
			focused[reg.Kind] = true
		}
	}

	var outcomes []Outcome
	for _, reg := range f.Registrations() {
		if focused[reg.Kind] && !reg.Only {
			continue
		}
		out := Outcome{Kind: reg.Kind, Title: reg.Title}
		if reg.Pending() || reg.Skip {
			out.Pending = true
			outcomes = append(outcomes, out)
			continue
		}

		ch := make(chan error, 1)
		f.mu.Lock()
		f.current = ch
		f.mu.Unlock()

		reg.Body(func(err error) {
			select {
			case ch <- err:
			default:
			}
		})

		select {
		case err := <-ch:
			out.Err = err
		case <-time.After(timeout):
			out.Err = fmt.Errorf("%s %q timed out after %s", reg.Kind, reg.Title, timeout)
		}
		out.Failed = out.Err != nil
		outcomes = append(outcomes, out)

		f.mu.Lock()
		f.current = nil
		f.mu.Unlock()
	}
	return outcomes
}

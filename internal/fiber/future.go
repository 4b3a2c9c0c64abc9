package fiber

import (
	"context"
	"errors"
	"sync"
)

// errNilRejection replaces a nil error passed to Reject.
var errNilRejection = errors.New("future rejected without an error")

// Future is a single-assignment container for an asynchronous outcome.
// It starts pending and settles exactly once, either fulfilled with a value
// or rejected with an error.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewFuture creates a pending Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future already fulfilled with v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// Rejected returns a Future already rejected with err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}

// Resolve fulfills the Future. It reports false if the Future was already settled.
func (f *Future) Resolve(v any) bool {
	return f.settle(v, nil)
}

// Reject rejects the Future. It reports false if the Future was already settled.
func (f *Future) Reject(err error) bool {
	if err == nil {
		err = errNilRejection
	}
	return f.settle(nil, err)
}

func (f *Future) settle(v any, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future is no longer pending.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the settled outcome without blocking. Both values are zero
// while the Future is pending.
func (f *Future) Result() (any, error) {
	if !f.Settled() {
		return nil, nil
	}
	return f.value, f.err
}

// Await blocks the calling goroutine until the Future settles.
func (f *Future) Await() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait suspends the fiber active in ctx until the Future settles and returns
// the settled value or error. Without an active fiber it returns
// ErrCoroutineUnavailable immediately.
func (f *Future) Wait(ctx context.Context) (any, error) {
	if !Active(ctx) {
		return nil, ErrCoroutineUnavailable
	}
	return f.Await()
}

// Then calls fn with the outcome once the Future settles. fn runs on its own
// goroutine.
func (f *Future) Then(fn func(any, error)) {
	go func() {
		v, err := f.Await()
		fn(v, err)
	}()
}

// Map returns a Future settled with fn applied to this Future's value.
// Rejections pass through unchanged.
func (f *Future) Map(fn func(any) (any, error)) *Future {
	out := NewFuture()
	f.Then(func(v any, err error) {
		if err != nil {
			out.Reject(err)
			return
		}
		mapped, err := fn(v)
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(mapped)
	})
	return out
}

// From reports whether v is a Future.
func From(v any) (*Future, bool) {
	f, ok := v.(*Future)
	return f, ok && f != nil
}

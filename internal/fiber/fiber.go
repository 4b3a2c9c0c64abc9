package fiber

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

// ErrCoroutineUnavailable is returned by Wait when the calling context has no
// active fiber.
var ErrCoroutineUnavailable = errors.New("can't wait without a fiber")

// Func is a body run on a fiber.
type Func func(ctx context.Context) (any, error)

// Fiber identifies one suspendable unit of execution.
type Fiber struct {
	id     string
	parent *Fiber
}

// ID returns the unique fiber identifier.
func (f *Fiber) ID() string {
	return f.id
}

// Parent returns the fiber that started this one, or nil for a root fiber.
func (f *Fiber) Parent() *Fiber {
	return f.parent
}

// Depth returns the number of ancestors of the fiber.
func (f *Fiber) Depth() int {
	depth := 0
	for p := f.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

type fiberKey struct{}

// Current returns the fiber active in ctx.
func Current(ctx context.Context) (*Fiber, bool) {
	if ctx == nil {
		return nil, false
	}
	f, ok := ctx.Value(fiberKey{}).(*Fiber)
	return f, ok && f != nil
}

// Active reports whether ctx carries an active fiber.
func Active(ctx context.Context) bool {
	_, ok := Current(ctx)
	return ok
}

// PanicError is the rejection produced when a fiber body panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Go starts fn on a new fiber and returns the Future of its outcome.
// The fiber inherits ctx and records the calling fiber, if any, as its parent.
func Go(ctx context.Context, fn Func) *Future {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := Current(ctx)
	f := &Fiber{id: uuid.NewString(), parent: parent}
	fctx := context.WithValue(ctx, fiberKey{}, f)

	fut := NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fut.Reject(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(fctx)
		if err != nil {
			fut.Reject(err)
			return
		}
		fut.Resolve(v)
	}()
	return fut
}

// Run runs fn on a new fiber and blocks the calling goroutine until it
// finishes. The caller does not need to be on a fiber itself.
func Run(ctx context.Context, fn Func) (any, error) {
	return Go(ctx, fn).Await()
}

// Sync wraps fn so that every invocation of the returned function runs it on
// its own fiber. done, when non-nil, receives the outcome once fn returns.
func Sync(fn Func, done func(any, error)) func(ctx context.Context) {
	return func(ctx context.Context) {
		fut := Go(ctx, fn)
		if done != nil {
			fut.Then(done)
		}
	}
}

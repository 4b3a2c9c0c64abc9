package hook

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"yqhp/syncbridge/internal/execctx"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/pkg/logger"
)

// Executor runs hook sets and joins their outcomes.
type Executor struct {
	logger    *zap.Logger
	coroutine bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger hook failures are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithCoroutine toggles running each hook on its own fiber.
func WithCoroutine(enabled bool) Option {
	return func(e *Executor) {
		e.coroutine = enabled
	}
}

// NewExecutor creates an Executor. Coroutine mode is on by default.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{coroutine: true}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrDefault(e.logger, "hook")
	return e
}

// Coroutine reports whether hooks run on their own fibers.
func (e *Executor) Coroutine() bool {
	return e.coroutine
}

// Execute runs hooks with args and returns once every hook has settled.
// hooks may be a single Func or any form accepted by Normalize; args is
// normalized with NormalizeArgs. The i-th result is the value returned by the
// i-th hook, or its error if it failed.
func (e *Executor) Execute(ctx context.Context, hooks any, args any) []any {
	set, err := Normalize(hooks)
	if err != nil {
		e.logger.Error("invalid hooks", zap.Error(err))
		return nil
	}
	return e.run(ctx, "", set, NormalizeArgs(args))
}

// Run runs the set registered for phase in sets with args.
func (e *Executor) Run(ctx context.Context, sets Sets, phase Phase, args ...any) []any {
	return e.run(ctx, phase, sets.Get(phase), args)
}

func (e *Executor) run(ctx context.Context, phase Phase, set Set, args []any) []any {
	results := make([]any, len(set))
	if len(set) == 0 {
		return results
	}

	// commands issued from inside a hook must not trigger hooks again
	hctx := execctx.WithCommandRunning(ctx, true)

	if !e.coroutine {
		for i, h := range set {
			v, err := e.callDirect(hctx, h, args)
			results[i] = e.settle(phase, i, v, err)
		}
		return results
	}

	// hooks run one at a time, each on its own fiber
	for i, h := range set {
		if h == nil {
			continue
		}
		h := h
		v, err := fiber.Go(hctx, func(fctx context.Context) (any, error) {
			v, err := h(fctx, args...)
			if err != nil {
				return nil, err
			}
			if fut, ok := fiber.From(v); ok {
				return fut.Wait(fctx)
			}
			return v, nil
		}).Await()
		results[i] = e.settle(phase, i, v, err)
	}
	return results
}

func (e *Executor) callDirect(ctx context.Context, h Func, args []any) (v any, err error) {
	if h == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &fiber.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	v, err = h(ctx, args...)
	if err != nil {
		return nil, err
	}
	if fut, ok := fiber.From(v); ok {
		return fut.Await()
	}
	return v, nil
}

func (e *Executor) settle(phase Phase, index int, v any, err error) any {
	if err == nil {
		return v
	}
	hookErr := NewHookError(phase, index, "hook execution failed", err)
	e.logger.Error(hookErr.Error(),
		zap.String("phase", string(phase)),
		zap.Int("index", index),
		zap.String("stack", fiber.StackOf(err)),
	)
	return err
}

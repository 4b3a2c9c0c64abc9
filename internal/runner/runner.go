package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/config"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/pkg/logger"
)

// Body is a spec or hook body. It runs on a fiber and may block on commands.
type Body func(ctx context.Context) error

// AsyncBody marks a body that handles asynchrony itself. It never runs on a
// fiber; its future is awaited.
type AsyncBody func(ctx context.Context) *fiber.Future

// Adapted is a registration function whose bodies run on fibers.
type Adapted struct {
	name     string
	spec     bool
	original Interface
	hooks    hook.Sets
	executor *hook.Executor
	logger   *zap.Logger
	ctx      context.Context
	sync     bool
	retries  int
	policy   RetryPolicy
	sleep    func(time.Duration)

	// Skip and Only are the framework's own variants, exposed unchanged on
	// spec interfaces.
	Skip RegisterFunc
	Only RegisterFunc
}

// Option configures an Adapted registration function.
type Option func(*Adapted)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapted) {
		a.logger = l
	}
}

// WithExecutor sets the executor running beforeHook and afterHook sets.
func WithExecutor(e *hook.Executor) Option {
	return func(a *Adapted) {
		a.executor = e
	}
}

// WithContext sets the context bodies are started with.
func WithContext(ctx context.Context) Option {
	return func(a *Adapted) {
		a.ctx = ctx
	}
}

// WithSync toggles running bodies on fibers.
func WithSync(enabled bool) Option {
	return func(a *Adapted) {
		a.sync = enabled
	}
}

// WithRetries sets the retry budget used when a call does not name one.
func WithRetries(n int) Option {
	return func(a *Adapted) {
		a.retries = n
	}
}

// WithRetryPolicy sets the delay between attempts.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Adapted) {
		a.policy = p
	}
}

// WithConfig applies sync mode, default retries and retry policy.
func WithConfig(cfg *config.Config) Option {
	return func(a *Adapted) {
		a.sync = cfg.Sync
		a.retries = cfg.Retries
		a.policy = PolicyFromConfig(cfg.Retry)
	}
}

// RunInFiberContext installs an adapted version of the registration function
// fnName in registry. fnName is treated as a spec registration when it is
// one of specInterfaceNames, otherwise as a hook registration surrounded by
// before and after.
func RunInFiberContext(registry *Registry, specInterfaceNames []string, before, after hook.Set, fnName string, opts ...Option) (*Adapted, error) {
	original, ok := registry.Interface(fnName)
	if !ok {
		return nil, fmt.Errorf("unknown registration function: %s", fnName)
	}

	a := &Adapted{
		name:     fnName,
		spec:     slice.Contain(specInterfaceNames, fnName),
		original: original,
		hooks: hook.NewSets().
			Add(hook.PhaseBeforeHook, before...).
			Add(hook.PhaseAfterHook, after...),
		ctx:   context.Background(),
		sync:  true,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.OrDefault(a.logger, "runner").With(zap.String("interface", fnName))
	if a.executor == nil {
		a.executor = hook.NewExecutor(hook.WithLogger(a.logger), hook.WithCoroutine(a.sync))
	}
	if a.spec {
		a.Skip = original.Skip
		a.Only = original.Only
	}

	registry.install(fnName, a)
	return a, nil
}

// Name returns the name the function is installed under.
func (a *Adapted) Name() string {
	return a.name
}

// IsSpec reports whether a registers specs rather than hooks.
func (a *Adapted) IsSpec() bool {
	return a.spec
}

// Call registers a spec or hook. Accepted shapes are (title, body),
// (title) and (body), each optionally followed by an int retry budget.
// A body is a Body or an AsyncBody.
func (a *Adapted) Call(args ...any) error {
	title, body, retries, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("%s: %w", a.name, err)
	}
	if retries < 0 {
		retries = a.retries
	}

	if body == nil {
		a.original.Register(title, nil)
		return nil
	}

	site := fiber.Capture(1)
	if a.spec {
		a.original.Register(title, func(done Done) {
			a.runSpec(title, body, retries, site, done)
		})
		return nil
	}
	a.original.Register(title, func(done Done) {
		a.runHook(title, body, retries, site, done)
	})
	return nil
}

func (a *Adapted) runSpec(title string, body any, retries int, site fiber.Site, done Done) {
	var fut *fiber.Future
	if _, async := body.(AsyncBody); async || !a.sync {
		fut = a.retryAsync(a.ctx, title, body, retries, site)
	} else {
		fut = fiber.Go(a.ctx, func(ctx context.Context) (any, error) {
			return nil, a.retrySync(ctx, title, body.(Body), retries, site)
		})
	}
	fut.Then(func(_ any, err error) {
		done(err)
	})
}

func (a *Adapted) runHook(title string, body any, retries int, site fiber.Site, done Done) {
	run := func(ctx context.Context) (any, error) {
		a.executor.Run(ctx, a.hooks, hook.PhaseBeforeHook)

		var err error
		if _, async := body.(AsyncBody); async || !a.sync {
			_, err = a.retryAsync(ctx, title, body, retries, site).Await()
		} else {
			err = a.retrySync(ctx, title, body.(Body), retries, site)
		}

		a.executor.Run(ctx, a.hooks, hook.PhaseAfterHook)
		return nil, err
	}

	var fut *fiber.Future
	if a.sync {
		fut = fiber.Go(a.ctx, run)
	} else {
		fut = goPlain(a.ctx, run)
	}
	fut.Then(func(_ any, err error) {
		if err != nil && a.original.Fail != nil {
			a.original.Fail(err)
			return
		}
		done(err)
	})
}

// retrySync runs body on the current fiber until it succeeds or the budget
// is spent.
func (a *Adapted) retrySync(ctx context.Context, title string, body Body, retries int, site fiber.Site) error {
	for attempt := 1; ; attempt++ {
		err := callBody(ctx, body)
		if err == nil {
			return nil
		}
		if retries <= 0 {
			return fiber.Trace(err, site)
		}
		retries--
		a.backoff(title, attempt, retries, err)
	}
}

// retryAsync runs body off fiber until it succeeds or the budget is spent.
func (a *Adapted) retryAsync(ctx context.Context, title string, body any, retries int, site fiber.Site) *fiber.Future {
	return goPlain(ctx, func(_ context.Context) (any, error) {
		for attempt := 1; ; attempt++ {
			_, err := callAsync(ctx, body).Await()
			if err == nil {
				return nil, nil
			}
			if retries <= 0 {
				return nil, fiber.Trace(err, site)
			}
			retries--
			a.backoff(title, attempt, retries, err)
		}
	})
}

func (a *Adapted) backoff(title string, attempt, remaining int, err error) {
	delay := a.policy.delayFor(attempt)
	a.logger.Warn("body failed, retrying",
		zap.String("title", title),
		zap.Int("attempt", attempt),
		zap.Int("remaining", remaining),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	if delay > 0 {
		a.sleep(delay)
	}
}

func callBody(ctx context.Context, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &fiber.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return body(ctx)
}

// callAsync runs one attempt of body and returns its outcome as a future.
func callAsync(ctx context.Context, body any) (fut *fiber.Future) {
	defer func() {
		if r := recover(); r != nil {
			fut = fiber.Rejected(&fiber.PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	switch b := body.(type) {
	case AsyncBody:
		if f := b(ctx); f != nil {
			return f
		}
		return fiber.Resolved(nil)
	case Body:
		if err := b(ctx); err != nil {
			return fiber.Rejected(err)
		}
		return fiber.Resolved(nil)
	default:
		return fiber.Rejected(fmt.Errorf("unsupported body type %T", body))
	}
}

// callOnce runs body a single time, on a fiber when it is a Body.
func callOnce(ctx context.Context, body any) error {
	if b, ok := body.(Body); ok {
		_, err := fiber.Run(ctx, func(fctx context.Context) (any, error) {
			return nil, callBody(fctx, b)
		})
		return err
	}
	_, err := callAsync(ctx, body).Await()
	return err
}

// goPlain runs fn on a goroutine that is not a fiber.
func goPlain(ctx context.Context, fn fiber.Func) *fiber.Future {
	fut := fiber.NewFuture()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fut.Reject(&fiber.PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			fut.Reject(err)
			return
		}
		fut.Resolve(v)
	}()
	return fut
}

// parseArgs splits a registration call into title, body and retry budget.
// retries is -1 when the call does not name one.
func parseArgs(args []any) (title string, body any, retries int, err error) {
	retries = -1
	i := 0

	if i < len(args) {
		if s, ok := args[i].(string); ok {
			title = s
			i++
		}
	}
	if i < len(args) {
		if b, ok := normalizeBody(args[i]); ok {
			body = b
			i++
		}
	}
	if i < len(args) {
		if n, ok := args[i].(int); ok {
			retries = n
			i++
		}
	}
	if i != len(args) {
		return "", nil, 0, fmt.Errorf("unexpected argument %d of type %T", i, args[i])
	}
	return title, body, retries, nil
}

// normalizeBody reports whether v is a body. Nil bodies are accepted and
// returned as nil.
func normalizeBody(v any) (any, bool) {
	switch b := v.(type) {
	case nil:
		return nil, true
	case Body:
		if b == nil {
			return nil, true
		}
		return b, true
	case AsyncBody:
		if b == nil {
			return nil, true
		}
		return b, true
	case func(context.Context) error:
		if b == nil {
			return nil, true
		}
		return Body(b), true
	case func(context.Context) *fiber.Future:
		if b == nil {
			return nil, true
		}
		return AsyncBody(b), true
	default:
		return nil, false
	}
}

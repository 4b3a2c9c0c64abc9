package command

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/execctx"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/internal/result"
)

// wrap returns the adapter installed in place of fn.
func (i *Instance) wrap(name string, fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		if ctx == nil {
			ctx = context.Background()
		}
		if execctx.ForceAsync(ctx) {
			return fn(ctx, args...)
		}
		if execctx.CommandRunning(ctx) {
			return reenter(ctx, fn, args)
		}
		return i.orchestrate(ctx, name, fn, args)
	}
}

// reenter calls fn from inside a running command without hooks. Without a
// fiber to block on, a pending result is handed back as is.
func reenter(ctx context.Context, fn Func, args []any) (any, error) {
	res, err := fn(ctx, args...)
	if err != nil {
		return nil, err
	}
	fut, ok := fiber.From(res)
	if !ok {
		return res, nil
	}
	v, err := fut.Wait(ctx)
	if errors.Is(err, fiber.ErrCoroutineUnavailable) {
		return fut, nil
	}
	return v, err
}

// orchestrate runs a top-level command with its hooks on a dedicated fiber.
// A caller on a fiber blocks until it finishes; any other caller receives the
// pending future.
func (i *Instance) orchestrate(ctx context.Context, name string, fn Func, args []any) (any, error) {
	site := fiber.Capture(1)
	prev := i.LastResult()
	waiting := i.isWaitCommand(name)

	fut := fiber.Go(execctx.WithCommandRunning(ctx, true), func(fctx context.Context) (any, error) {
		i.executor.Run(fctx, i.hooks, hook.PhaseBeforeCommand, name, args)

		start := time.Now()
		res, err := invoke(fctx, fn, args)
		elapsed := time.Since(start)
		i.metrics.Record(name, elapsed, err == nil)

		if err != nil {
			i.executor.Run(fctx, i.hooks, hook.PhaseAfterCommand, name, args, nil, err)
			i.executor.Run(fctx, i.hooks, hook.PhaseOnCommandException, name, args, err)
			if waiting {
				i.setLastResult(prev)
			}
			// a trace from a nested instance is replaced by this call site
			traced := fiber.Reanchor(NewCommandFailureError(name, err), site)
			i.logger.Debug("command failed", append(fiberFields(fctx),
				zap.String("command", name),
				zap.Duration("elapsed", elapsed),
				zap.String("trace", fiber.StackOf(traced)),
			)...)
			return nil, traced
		}

		i.executor.Run(fctx, i.hooks, hook.PhaseAfterCommand, name, args, res)
		i.logger.Debug("command finished", append(fiberFields(fctx),
			zap.String("command", name),
			zap.Duration("elapsed", elapsed),
		)...)
		return i.finish(name, res, prev, waiting), nil
	})

	if !fiber.Active(ctx) {
		return fut, nil
	}
	return fut.Wait(ctx)
}

func fiberFields(ctx context.Context) []zap.Field {
	f, ok := fiber.Current(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{zap.String("fiber", f.ID()), zap.Int("depth", f.Depth())}
}

func invoke(ctx context.Context, fn Func, args []any) (any, error) {
	res, err := fn(ctx, args...)
	if err != nil {
		return nil, err
	}
	if fut, ok := fiber.From(res); ok {
		return fut.Wait(ctx)
	}
	return res, nil
}

// finish augments res and updates the chain state.
func (i *Instance) finish(name string, res any, prev any, waiting bool) any {
	if slice.Contain(i.rawResult, name) {
		return res
	}
	view := result.Augment(res, i, i.excluded)
	if waiting {
		i.setLastResult(prev)
	} else {
		i.setLastResult(view)
	}
	return view
}

// isWaitCommand reports whether name is the wait prefix itself or the prefix
// followed by an upper case letter, e.g. waitForExist.
func (i *Instance) isWaitCommand(name string) bool {
	p := i.waitPrefix
	if p == "" || !strings.HasPrefix(name, p) {
		return false
	}
	if len(name) == len(p) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name[len(p):])
	return unicode.IsUpper(r)
}

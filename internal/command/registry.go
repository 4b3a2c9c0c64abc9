package command

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"yqhp/syncbridge/internal/execctx"
	"yqhp/syncbridge/internal/fiber"
)

// AddCommand registers a custom top-level command.
//
// fn is an AsyncFunc, a Func or a function literal of the same shape. An
// existing command is only replaced when overwrite is set.
func (i *Instance) AddCommand(name string, fn any, overwrite bool) error {
	adapted, err := adaptCustom(fn)
	if err != nil {
		return fmt.Errorf("add command %q: %w", name, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.namespaces[name]; ok {
		return NewNamingCollisionError(name, "name is used as a namespace")
	}
	if _, ok := i.commands[name]; ok && !overwrite {
		return NewNamingCollisionError(name, "command is already defined")
	}

	i.commands[name] = i.wrap(name, adapted)
	i.logger.Debug("custom command added", zap.String("command", name), zap.Bool("overwrite", overwrite))
	return nil
}

// AddNamespacedCommand registers a custom command under namespace, creating
// the namespace on first use. The command is addressed as "namespace.name".
func (i *Instance) AddNamespacedCommand(namespace, name string, fn any, overwrite bool) error {
	adapted, err := adaptCustom(fn)
	if err != nil {
		return fmt.Errorf("add command %q: %w", namespace+"."+name, err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.commands[namespace]; ok {
		return NewNamingCollisionError(namespace, "namespace is used internally and can't be overwritten")
	}
	ns, ok := i.namespaces[namespace]
	if ok {
		if _, exists := ns[name]; exists && !overwrite {
			return NewNamingCollisionError(namespace+"."+name, "command is already defined")
		}
	} else {
		ns = make(map[string]Func)
		i.namespaces[namespace] = ns
	}

	full := namespace + "." + name
	ns[name] = i.wrap(full, adapted)
	i.logger.Debug("custom command added", zap.String("command", full), zap.Bool("overwrite", overwrite))
	return nil
}

// adaptCustom turns a custom command into a plain Func ready to be wrapped.
func adaptCustom(fn any) (Func, error) {
	switch f := fn.(type) {
	case AsyncFunc:
		if f == nil {
			return nil, fmt.Errorf("nil command")
		}
		return func(ctx context.Context, args ...any) (any, error) {
			return f(execctx.WithForceAsync(ctx, true), args...)
		}, nil
	case Func:
		if f == nil {
			return nil, fmt.Errorf("nil command")
		}
		return onFiber(f), nil
	case func(context.Context, ...any) (any, error):
		if f == nil {
			return nil, fmt.Errorf("nil command")
		}
		return onFiber(f), nil
	default:
		return nil, fmt.Errorf("unsupported command type %T", fn)
	}
}

// onFiber runs fn on a fresh fiber so it can block on the commands it calls.
// The returned future is resolved by the wrapper.
func onFiber(fn Func) Func {
	return func(ctx context.Context, args ...any) (any, error) {
		return fiber.Go(execctx.WithForceAsync(ctx, false), func(fctx context.Context) (any, error) {
			return fn(fctx, args...)
		}), nil
	}
}

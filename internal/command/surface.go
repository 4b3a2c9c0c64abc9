package command

import (
	"context"
	"reflect"

	"github.com/duke-git/lancet/v2/strutil"
)

// Func is a command. It may return a *fiber.Future instead of a settled
// value.
type Func func(ctx context.Context, args ...any) (any, error)

// AsyncFunc marks a custom command that handles asynchronous results itself.
// Commands it calls return their raw futures instead of blocking.
type AsyncFunc func(ctx context.Context, args ...any) (any, error)

// Surface is the set of operations exposed by an API client.
type Surface interface {
	Commands() map[string]Func
}

// Map is a Surface backed by an explicit name to command map.
type Map map[string]Func

// Commands implements Surface.
func (m Map) Commands() map[string]Func {
	return m
}

var funcType = reflect.TypeOf(func(context.Context, ...any) (any, error) { return nil, nil })

// Reflect builds a Surface from the exported methods of v that have the
// shape of a Func. Method names are exposed in lower camel case, so
// GetValue becomes getValue.
func Reflect(v any) Map {
	cmds := make(Map)
	if v == nil {
		return cmds
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		m := rv.Method(i)
		if m.Type() != funcType {
			continue
		}
		fn := m.Interface().(func(context.Context, ...any) (any, error))
		cmds[strutil.LowerFirst(rt.Method(i).Name)] = fn
	}
	return cmds
}

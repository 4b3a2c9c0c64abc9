package script

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/command"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/runner"
)

// Bind 把命令实例以 name 暴露给 JS。
// 每个命令都是阻塞函数，addCommand 用于注册 JS 编写的自定义命令。
func (r *Runtime) Bind(name string, inst *command.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.vm.NewObject()
	for _, cmd := range inst.Capabilities() {
		_ = obj.Set(cmd, r.commandFunc(inst, cmd))
	}
	for _, ns := range inst.Namespaces() {
		nsObj := r.vm.NewObject()
		for _, cmd := range inst.NamespaceCommands(ns) {
			_ = nsObj.Set(cmd, r.commandFunc(inst, ns+"."+cmd))
		}
		_ = obj.Set(ns, nsObj)
	}

	// addCommand(name, fn[, overwrite]) 或 addCommand(namespace, name, fn[, overwrite])
	_ = obj.Set("addCommand", func(call goja.FunctionCall) goja.Value {
		if err := r.addCommand(obj, inst, call.Arguments); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})

	return r.vm.Set(name, obj)
}

func (r *Runtime) commandFunc(inst *command.Instance, name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := exportArgs(call.Arguments)
		res, err := r.release(func(ctx context.Context) (any, error) {
			return inst.Call(ctx, name, args...)
		})
		if err != nil {
			r.throw(err)
		}
		return r.toJS(res)
	}
}

func (r *Runtime) addCommand(obj *goja.Object, inst *command.Instance, args []goja.Value) error {
	if len(args) < 2 {
		return fmt.Errorf("addCommand 需要命令名称和函数")
	}

	var namespace string
	if len(args) >= 3 {
		if _, isFn := goja.AssertFunction(args[1]); !isFn {
			namespace = args[0].String()
			args = args[1:]
		}
	}

	name := args[0].String()
	fn, ok := goja.AssertFunction(args[1])
	if !ok {
		return fmt.Errorf("命令 %s 的实现不是函数", name)
	}
	overwrite := len(args) > 2 && args[2].ToBoolean()

	// 命名为 async 的函数不在协程上运行，命令结果以 future 返回
	var custom any = command.Func(func(ctx context.Context, cmdArgs ...any) (any, error) {
		return r.Call(ctx, fn, cmdArgs...)
	})
	if isAsyncFunc(args[1]) {
		custom = command.AsyncFunc(func(ctx context.Context, cmdArgs ...any) (any, error) {
			return r.Call(ctx, fn, cmdArgs...)
		})
	}

	if namespace == "" {
		if err := inst.AddCommand(name, custom, overwrite); err != nil {
			return err
		}
		_ = obj.Set(name, r.commandFunc(inst, name))
		r.logger.Debug("js command added", zap.String("command", name))
		return nil
	}

	if err := inst.AddNamespacedCommand(namespace, name, custom, overwrite); err != nil {
		return err
	}
	nsObj, ok := obj.Get(namespace).(*goja.Object)
	if !ok {
		nsObj = r.vm.NewObject()
		_ = obj.Set(namespace, nsObj)
	}
	_ = nsObj.Set(name, r.commandFunc(inst, namespace+"."+name))
	r.logger.Debug("js command added", zap.String("command", namespace+"."+name))
	return nil
}

// Install 把 registry 中已适配的注册函数暴露为同名 JS 全局函数，
// 例如 it("title", function () {...}, 2)。
func (r *Runtime) Install(registry *runner.Registry, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		adapted, ok := registry.Adapted(name)
		if !ok {
			return fmt.Errorf("注册函数未适配: %s", name)
		}

		fnObj := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if err := adapted.Call(r.registrationArgs(call.Arguments)...); err != nil {
				r.throw(err)
			}
			return goja.Undefined()
		}).(*goja.Object)

		if adapted.Skip != nil {
			skip := adapted.Skip
			_ = fnObj.Set("skip", func(call goja.FunctionCall) goja.Value {
				skip(call.Argument(0).String(), nil)
				return goja.Undefined()
			})
		}
		if adapted.Only != nil {
			only := adapted.Only
			_ = fnObj.Set("only", func(call goja.FunctionCall) goja.Value {
				var body runner.Callback
				if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
					body = func(done runner.Done) {
						fiber.Go(context.Background(), func(ctx context.Context) (any, error) {
							return r.Call(ctx, fn)
						}).Then(func(_ any, err error) { done(err) })
					}
				}
				only(call.Argument(0).String(), body)
				return goja.Undefined()
			})
		}

		if err := r.vm.Set(name, fnObj); err != nil {
			return err
		}
	}
	return nil
}

// registrationArgs 把 JS 注册参数转换为 runner 参数
func (r *Runtime) registrationArgs(values []goja.Value) []any {
	args := make([]any, 0, len(values))
	for _, v := range values {
		if fn, ok := goja.AssertFunction(v); ok {
			if isAsyncFunc(v) {
				args = append(args, r.asyncBody(fn))
				continue
			}
			args = append(args, runner.Body(func(ctx context.Context) error {
				_, err := r.Call(ctx, fn)
				return err
			}))
			continue
		}
		switch exported := export(v).(type) {
		case int64:
			args = append(args, int(exported))
		case float64:
			args = append(args, int(exported))
		default:
			args = append(args, exported)
		}
	}
	return args
}

// asyncBody 不在协程上运行 fn，其中的命令返回 future 对象，
// 返回值决定本次尝试的结果
func (r *Runtime) asyncBody(fn goja.Callable) runner.AsyncBody {
	return func(ctx context.Context) *fiber.Future {
		v, err := r.Call(withAsync(ctx), fn)
		if err != nil {
			return fiber.Rejected(err)
		}
		if fut, ok := fiber.From(v); ok {
			return fut
		}
		return fiber.Resolved(v)
	}
}

// Package script 提供基于 goja 的 JavaScript 编写入口：
// 绑定命令实例、安装 spec/hook 注册函数，并在命令阻塞时释放解释器锁。
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/execctx"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/internal/result"
	"yqhp/syncbridge/pkg/logger"
)

// Config 运行时配置
type Config struct {
	Logger  *zap.Logger   // 日志，默认 logger.Named("script")
	Timeout time.Duration // Run 的超时时间，0 表示不限制
}

// Runtime JavaScript 运行时封装。
//
// 同一时刻只有一个 goroutine 执行 JS。Go 命令阻塞期间锁会被释放，
// 因此 JS 编写的 hook 和自定义命令可以在 JS 主体等待时运行。
// 这些嵌套进入必须严格按栈顺序返回。
type Runtime struct {
	vm      *goja.Runtime
	mu      sync.Mutex
	ctx     context.Context
	logger  *zap.Logger
	timeout time.Duration
}

// New 创建新的 JS 运行时
func New(cfg *Config) *Runtime {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runtime{
		vm:      goja.New(),
		ctx:     context.Background(),
		logger:  logger.OrDefault(cfg.Logger, "script"),
		timeout: cfg.Timeout,
	}
	r.setupConsole()
	return r
}

// Run 执行脚本并返回导出的结果
func (r *Runtime) Run(ctx context.Context, src string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	if r.timeout > 0 {
		timer := time.AfterFunc(r.timeout, func() {
			r.vm.Interrupt("脚本执行超时")
		})
		defer func() {
			timer.Stop()
			r.vm.ClearInterrupt()
		}()
	}

	val, err := r.vm.RunString(src)
	if err != nil {
		return nil, jsError(err)
	}
	return export(val), nil
}

// Call 调用 JS 函数 fn，ctx 作为其中命令调用的上下文
func (r *Runtime) Call(ctx context.Context, fn goja.Callable, args ...any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = r.toJS(a)
	}

	val, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		return nil, jsError(err)
	}
	return r.exportResult(val), nil
}

// Function 在锁内求值 src 并断言结果是函数
func (r *Runtime) Function(src string) (goja.Callable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	val, err := r.vm.RunString(src)
	if err != nil {
		return nil, jsError(err)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("不是函数: %s", val.String())
	}
	return fn, nil
}

// Hook 把 JS 函数包装为 hook.Func，hook 的参数按原样传入
func (r *Runtime) Hook(fn goja.Callable) hook.Func {
	return func(ctx context.Context, args ...any) (any, error) {
		return r.Call(ctx, fn, args...)
	}
}

const queryMethod = "query"

// futureKey 是 JS future 对象上保存 *fiber.Future 的属性
const futureKey = "__future"

type asyncKey struct{}

// withAsync 标记 ctx 属于以 async 命名的 JS 函数，命令结果以 future 返回
func withAsync(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncKey{}, true)
}

// keepsFutures 报告 ctx 中的命令结果是否保持为 future
func keepsFutures(ctx context.Context) bool {
	if execctx.ForceAsync(ctx) {
		return true
	}
	async, _ := ctx.Value(asyncKey{}).(bool)
	return async
}

// isAsyncFunc 判断 JS 函数是否命名为 async，例如 function async() {...}
func isAsyncFunc(val goja.Value) bool {
	obj, ok := val.(*goja.Object)
	if !ok {
		return false
	}
	name := obj.Get("name")
	return name != nil && name.String() == "async"
}

// release 在释放解释器锁的情况下执行 fn，调用方必须持有锁。
// 异步上下文中返回的 future 原样交给 JS，其余情况等待其结果。
func (r *Runtime) release(fn func(ctx context.Context) (any, error)) (any, error) {
	ctx := r.ctx
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.ctx = ctx
	}()

	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if fut, ok := fiber.From(v); ok {
		if keepsFutures(ctx) {
			return fut, nil
		}
		return fut.Await()
	}
	return v, nil
}

// futureObject 把 future 暴露为带 await/settled 方法的 JS 对象
func (r *Runtime) futureObject(fut *fiber.Future) *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set(futureKey, fut)
	_ = obj.Set("settled", func(goja.FunctionCall) goja.Value {
		return r.vm.ToValue(fut.Settled())
	})
	_ = obj.Set("await", func(goja.FunctionCall) goja.Value {
		res, err := r.release(func(context.Context) (any, error) {
			return fut.Await()
		})
		if err != nil {
			r.throw(err)
		}
		return r.toJS(res)
	})
	return obj
}

// exportResult 导出 JS 返回值，future 对象还原为 *fiber.Future
func (r *Runtime) exportResult(val goja.Value) any {
	if obj, ok := val.(*goja.Object); ok {
		if fut, ok := export(obj.Get(futureKey)).(*fiber.Future); ok {
			return fut
		}
	}
	return export(val)
}

// throw 把 Go 错误作为 JS 异常抛出
func (r *Runtime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

// toJS 转换 Go 值为 JS 值，视图会带上链式方法
func (r *Runtime) toJS(v any) goja.Value {
	switch t := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return t
	case *fiber.Future:
		return r.futureObject(t)
	case *result.View:
		return r.viewObject(t)
	case []*result.View:
		items := make([]any, len(t))
		for i, el := range t {
			items[i] = r.viewObject(el)
		}
		return r.vm.NewArray(items...)
	default:
		return r.vm.ToValue(v)
	}
}

func (r *Runtime) viewObject(view *result.View) *goja.Object {
	obj := r.vm.NewObject()
	for key, val := range view.Data() {
		_ = obj.Set(key, r.toJS(val))
	}
	for _, method := range view.Methods() {
		method := method
		_ = obj.Set(method, func(call goja.FunctionCall) goja.Value {
			args := exportArgs(call.Arguments)
			res, err := r.release(func(ctx context.Context) (any, error) {
				return view.Call(ctx, method, args...)
			})
			if err != nil {
				r.throw(err)
			}
			return r.toJS(res)
		})
	}
	// query(path) 以 JSONPath 查询结果，字段或方法已占用该名称时不暴露
	if _, taken := view.Get(queryMethod); !taken && !view.HasMethod(queryMethod) {
		_ = obj.Set(queryMethod, func(call goja.FunctionCall) goja.Value {
			matches, err := view.Query(call.Argument(0).String())
			if err != nil {
				r.throw(err)
			}
			return r.toJS(matches)
		})
	}
	return obj
}

func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()
	levels := map[string]func(string, ...zap.Field){
		"log":   r.logger.Info,
		"info":  r.logger.Info,
		"warn":  r.logger.Warn,
		"error": r.logger.Error,
		"debug": r.logger.Debug,
	}
	for name, logFn := range levels {
		logFn := logFn
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = formatValue(arg)
			}
			logFn(strings.Join(parts, " "), zap.String("source", "console"))
			return goja.Undefined()
		})
	}
	_ = r.vm.Set("console", console)
}

func formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}
	return val.String()
}

func export(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func exportArgs(values []goja.Value) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = export(v)
	}
	return args
}

// jsError 还原经由 JS 抛出的 Go 错误
func jsError(err error) error {
	var exc *goja.Exception
	if !errors.As(err, &exc) {
		return err
	}
	obj, ok := exc.Value().(*goja.Object)
	if !ok {
		return err
	}
	if inner, ok := export(obj.Get("value")).(error); ok {
		return inner
	}
	return err
}

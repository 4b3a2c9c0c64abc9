package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"yqhp/syncbridge/internal/config"
	"yqhp/syncbridge/internal/execctx"
	"yqhp/syncbridge/internal/fiber"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/internal/result"
)

var errBoom = errors.New("boom")

// hookRecorder records hook invocations per phase.
type hookRecorder struct {
	mu    sync.Mutex
	calls map[hook.Phase][][]any
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{calls: make(map[hook.Phase][][]any)}
}

func (r *hookRecorder) hook(phase hook.Phase) hook.Func {
	return func(ctx context.Context, args ...any) (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls[phase] = append(r.calls[phase], args)
		return nil, nil
	}
}

func (r *hookRecorder) sets() hook.Sets {
	return hook.NewSets().
		Add(hook.PhaseBeforeCommand, r.hook(hook.PhaseBeforeCommand)).
		Add(hook.PhaseAfterCommand, r.hook(hook.PhaseAfterCommand)).
		Add(hook.PhaseOnCommandException, r.hook(hook.PhaseOnCommandException))
}

func (r *hookRecorder) get(phase hook.Phase) [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]any(nil), r.calls[phase]...)
}

func delayed(v any, d time.Duration) *fiber.Future {
	fut := fiber.NewFuture()
	time.AfterFunc(d, func() { fut.Resolve(v) })
	return fut
}

// testSurface is a small asynchronous API.
func testSurface() Map {
	return Map{
		"getValue": func(ctx context.Context, args ...any) (any, error) {
			ms := args[0].(int)
			return delayed(ms, time.Duration(ms)*time.Millisecond), nil
		},
		"getStatus": func(ctx context.Context, args ...any) (any, error) {
			return map[string]any{"status": 0, "value": "ready"}, nil
		},
		"getText": func(ctx context.Context, args ...any) (any, error) {
			if subject, ok := result.SubjectFrom(ctx); ok {
				v, _ := subject.Get("value")
				return v, nil
			}
			return "no subject", nil
		},
		"fail": func(ctx context.Context, args ...any) (any, error) {
			return fiber.Rejected(errBoom), nil
		},
		"emit": func(ctx context.Context, args ...any) (any, error) {
			return execctx.CommandRunning(ctx), nil
		},
		"reload": func(ctx context.Context, args ...any) (any, error) {
			return map[string]any{"value": nil}, nil
		},
		"waitForExist": func(ctx context.Context, args ...any) (any, error) {
			return map[string]any{"value": true}, nil
		},
	}
}

func newTestInstance(hooks hook.Sets, opts ...Option) *Instance {
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return WrapCommands(testSurface(), hooks, opts...)
}

// onFiberT runs fn on a fiber and waits for it.
func onFiberT(t *testing.T, fn fiber.Func) (any, error) {
	t.Helper()
	return fiber.Run(context.Background(), fn)
}

func TestGetValueBlocksOnFiber(t *testing.T) {
	inst := newTestInstance(nil)

	start := time.Now()
	v, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getValue", 50)
	})
	require.NoError(t, err)
	assert.Equal(t, 50, v)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTopLevelWithoutFiberReturnsFuture(t *testing.T) {
	rec := newHookRecorder()
	inst := newTestInstance(rec.sets())

	res, err := inst.Call(context.Background(), "getValue", 10)
	require.NoError(t, err)

	fut, ok := fiber.From(res)
	require.True(t, ok)
	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	assert.Len(t, rec.get(hook.PhaseBeforeCommand), 1)
	assert.Len(t, rec.get(hook.PhaseAfterCommand), 1)
}

func TestHooksReceiveCommandArgs(t *testing.T) {
	rec := newHookRecorder()
	inst := newTestInstance(rec.sets())

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getValue", 5)
	})
	require.NoError(t, err)

	before := rec.get(hook.PhaseBeforeCommand)
	require.Len(t, before, 1)
	assert.Equal(t, []any{"getValue", []any{5}}, before[0])

	after := rec.get(hook.PhaseAfterCommand)
	require.Len(t, after, 1)
	assert.Equal(t, []any{"getValue", []any{5}, 5}, after[0])

	assert.Empty(t, rec.get(hook.PhaseOnCommandException))
}

func TestReentrantCallsSkipHooks(t *testing.T) {
	rec := newHookRecorder()
	surface := testSurface()

	var inst *Instance
	surface["sum"] = func(ctx context.Context, args ...any) (any, error) {
		a, err := inst.Call(ctx, "getValue", 3)
		if err != nil {
			return nil, err
		}
		b, err := inst.Call(ctx, "getValue", 4)
		if err != nil {
			return nil, err
		}
		return a.(int) + b.(int), nil
	}
	inst = WrapCommands(surface, rec.sets(), WithLogger(zap.NewNop()))

	v, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "sum")
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	before := rec.get(hook.PhaseBeforeCommand)
	require.Len(t, before, 1)
	assert.Equal(t, "sum", before[0][0])
}

func TestCommandsFromHooksSkipHooks(t *testing.T) {
	var inst *Instance
	var mu sync.Mutex
	var fromHook []any
	beforeCalls := 0

	hooks := hook.NewSets().Add(hook.PhaseBeforeCommand, func(ctx context.Context, args ...any) (any, error) {
		mu.Lock()
		beforeCalls++
		mu.Unlock()
		v, err := inst.Call(ctx, "getValue", 2)
		mu.Lock()
		fromHook = append(fromHook, v)
		mu.Unlock()
		return v, err
	})
	inst = newTestInstance(hooks)

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getStatus")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, beforeCalls)
	assert.Equal(t, []any{2}, fromHook)
}

func TestReentrantWithoutFiberReturnsFuture(t *testing.T) {
	inst := newTestInstance(nil)

	ctx := execctx.WithCommandRunning(context.Background(), true)
	res, err := inst.Call(ctx, "getValue", 1)
	require.NoError(t, err)

	fut, ok := fiber.From(res)
	require.True(t, ok)
	v, err := fut.Await()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestNestedInstanceFailureIsReanchored(t *testing.T) {
	inner := newTestInstance(nil)
	outer := WrapCommands(Map{
		"delegate": func(ctx context.Context, args ...any) (any, error) {
			return fiber.Run(context.Background(), func(fctx context.Context) (any, error) {
				return inner.Call(fctx, "fail")
			})
		},
	}, nil, WithLogger(zap.NewNop()))

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return outer.Call(ctx, "delegate")
	})
	require.Error(t, err)

	traced, ok := err.(*fiber.TracedError)
	require.True(t, ok, "%T", err)
	var cmdErr *CommandError
	require.ErrorAs(t, traced.Err, &cmdErr)
	assert.Equal(t, "delegate", cmdErr.Command)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, traced.Stack(), "TestNestedInstanceFailureIsReanchored")
}

func TestCommandLogsCarryFiber(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inst := WrapCommands(testSurface(), nil, WithLogger(zap.New(core)))

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getStatus")
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("command finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 1, fields["depth"])
	assert.NotEmpty(t, fields["fiber"])
}

func TestCommandFailure(t *testing.T) {
	rec := newHookRecorder()
	inst := newTestInstance(rec.sets())

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "fail", "x")
	})
	require.Error(t, err)
	assert.True(t, IsCommandFailure(err))
	assert.ErrorIs(t, err, errBoom)

	var traced *fiber.TracedError
	require.ErrorAs(t, err, &traced)
	assert.Contains(t, traced.Stack(), "command_test.go")
	assert.NotContains(t, traced.Stack(), "command/wrap.go")

	after := rec.get(hook.PhaseAfterCommand)
	require.Len(t, after, 1)
	assert.Equal(t, []any{"fail", []any{"x"}, nil, errBoom}, after[0])

	exc := rec.get(hook.PhaseOnCommandException)
	require.Len(t, exc, 1)
	assert.Equal(t, []any{"fail", []any{"x"}, errBoom}, exc[0])

	stats, ok := inst.Metrics().Get("fail")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.FailureCount)
}

func TestForceAsyncReturnsRawFuture(t *testing.T) {
	rec := newHookRecorder()
	inst := newTestInstance(rec.sets())

	res, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(execctx.WithForceAsync(ctx, true), "getValue", 1)
	})
	require.NoError(t, err)
	_, ok := fiber.From(res)
	assert.True(t, ok)
	assert.Empty(t, rec.get(hook.PhaseBeforeCommand))
}

func TestExcludedCommandsAreNotWrapped(t *testing.T) {
	rec := newHookRecorder()
	inst := newTestInstance(rec.sets())

	v, err := inst.Call(context.Background(), "emit")
	require.NoError(t, err)
	assert.Equal(t, false, v)
	assert.Empty(t, rec.get(hook.PhaseBeforeCommand))
	assert.Contains(t, inst.Capabilities(), "emit")
}

func TestResultIsAugmented(t *testing.T) {
	inst := newTestInstance(nil)

	v, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getStatus")
	})
	require.NoError(t, err)

	view, ok := v.(*result.View)
	require.True(t, ok)
	status, ok := view.Status()
	require.True(t, ok)
	assert.Equal(t, 0, status)
	assert.True(t, view.HasMethod("getText"))
	assert.False(t, view.HasMethod("emit"))
	assert.False(t, view.HasMethod("value"))
	assert.Same(t, view, inst.LastResult())

	text, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return view.Call(ctx, "getText")
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", text)
}

func TestRawResultCategory(t *testing.T) {
	inst := newTestInstance(nil)

	v, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "reload")
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"value": nil}, v)
	assert.Nil(t, inst.LastResult())
}

func TestWaitPrefixKeepsChainState(t *testing.T) {
	inst := newTestInstance(nil)

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		first, err := inst.Call(ctx, "getStatus")
		if err != nil {
			return nil, err
		}
		if _, err := inst.Call(ctx, "waitForExist"); err != nil {
			return nil, err
		}
		assert.Same(t, first, inst.LastResult())
		return nil, nil
	})
	require.NoError(t, err)
}

func TestIsWaitCommand(t *testing.T) {
	inst := newTestInstance(nil)
	assert.True(t, inst.isWaitCommand("wait"))
	assert.True(t, inst.isWaitCommand("waitForVisible"))
	assert.False(t, inst.isWaitCommand("waitress"))
	assert.False(t, inst.isWaitCommand("getValue"))

	off := newTestInstance(nil, WithWaitPrefix(""))
	assert.False(t, off.isWaitCommand("waitForVisible"))
}

func TestWithConfig(t *testing.T) {
	cfg := config.DefaultConfig().Commands
	cfg.RawResult = []string{"getStatus"}
	cfg.Metrics = false

	inst := newTestInstance(nil, WithConfig(cfg))
	assert.Nil(t, inst.Metrics())

	v, err := onFiberT(t, func(ctx context.Context) (any, error) {
		return inst.Call(ctx, "getStatus")
	})
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, v)
}

func TestCallUnknownCommand(t *testing.T) {
	inst := newTestInstance(nil)

	_, err := inst.Call(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
	assert.False(t, inst.Has("nope"))
}

func TestMetricsSnapshot(t *testing.T) {
	inst := newTestInstance(nil)

	_, err := onFiberT(t, func(ctx context.Context) (any, error) {
		for i := 0; i < 3; i++ {
			if _, err := inst.Call(ctx, "getValue", 2); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	stats, ok := inst.Metrics().Get("getValue")
	require.True(t, ok)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, int64(3), stats.SuccessCount)
	assert.GreaterOrEqual(t, stats.Duration.P50, time.Millisecond)
	assert.LessOrEqual(t, stats.Duration.P50, stats.Duration.Max)

	inst.Metrics().Reset()
	assert.Empty(t, inst.Metrics().Snapshot())
}

type reflected struct{}

func (reflected) GetValue(ctx context.Context, args ...any) (any, error) {
	return "v", nil
}

func (reflected) Helper() string {
	return "not a command"
}

func TestReflectSurface(t *testing.T) {
	cmds := Reflect(reflected{})
	assert.Len(t, cmds, 1)
	require.Contains(t, cmds, "getValue")

	v, err := cmds["getValue"](context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	assert.Empty(t, Reflect(nil))
}

func TestCommandError(t *testing.T) {
	err := NewCommandFailureError("click", errBoom)
	assert.Equal(t, `[COMMAND_FAILURE] command failed "click": boom`, err.Error())
	assert.ErrorIs(t, err, ErrCommandFailure)
	assert.NotErrorIs(t, err, ErrNamingCollision)

	assert.Equal(t, `[NOT_FOUND] command not found "x"`, NewNotFoundError("x").Error())
}

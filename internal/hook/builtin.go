package hook

import (
	"context"

	"go.uber.org/zap"

	"yqhp/syncbridge/internal/fiber"
)

// Logging returns command hooks that log every top-level command.
func Logging(l *zap.Logger) Sets {
	sets := NewSets()

	sets.Add(PhaseBeforeCommand, func(ctx context.Context, args ...any) (any, error) {
		name, cmdArgs := commandArgs(args)
		l.Debug("command started", zap.String("command", name), zap.Any("args", cmdArgs))
		return nil, nil
	})

	sets.Add(PhaseAfterCommand, func(ctx context.Context, args ...any) (any, error) {
		name, cmdArgs := commandArgs(args)
		if len(args) >= 4 {
			if err, ok := args[3].(error); ok && err != nil {
				l.Warn("command failed", zap.String("command", name), zap.Any("args", cmdArgs), zap.Error(err))
				return nil, nil
			}
		}
		var res any
		if len(args) >= 3 {
			res = args[2]
		}
		l.Debug("command finished", zap.String("command", name), zap.Any("result", res))
		return nil, nil
	})

	sets.Add(PhaseOnCommandException, func(ctx context.Context, args ...any) (any, error) {
		name, _ := commandArgs(args)
		var err error
		if len(args) >= 3 {
			err, _ = args[2].(error)
		}
		l.Error("command exception", zap.String("command", name), zap.String("trace", fiber.StackOf(err)))
		return nil, nil
	})

	return sets
}

func commandArgs(args []any) (string, []any) {
	var name string
	var cmdArgs []any
	if len(args) > 0 {
		name, _ = args[0].(string)
	}
	if len(args) > 1 {
		cmdArgs, _ = args[1].([]any)
	}
	return name, cmdArgs
}

// Package execctx carries the command execution flags through context.Context.
//
// Two flags govern how wrapped commands behave:
//   - CommandRunning: a command is already being orchestrated in this call
//     chain, so nested commands must not trigger before/after-command hooks.
//   - ForceAsync: commands hand back their raw Future instead of blocking.
//
// The flags are immutable context values. Deriving a context sets a flag for
// the derived scope only, so returning from that scope restores the previous
// value for the caller without any explicit reset.
package execctx

import "context"

// State is the pair of execution flags visible in a context.
type State struct {
	CommandRunning bool
	ForceAsync     bool
}

type stateKey struct{}

// From returns the execution flags carried by ctx. A nil or bare context
// yields the zero State.
func From(ctx context.Context) State {
	if ctx == nil {
		return State{}
	}
	if s, ok := ctx.Value(stateKey{}).(State); ok {
		return s
	}
	return State{}
}

// With returns a context carrying s.
func With(ctx context.Context, s State) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stateKey{}, s)
}

// WithCommandRunning returns a context whose CommandRunning flag is running.
func WithCommandRunning(ctx context.Context, running bool) context.Context {
	s := From(ctx)
	s.CommandRunning = running
	return With(ctx, s)
}

// WithForceAsync returns a context whose ForceAsync flag is force.
func WithForceAsync(ctx context.Context, force bool) context.Context {
	s := From(ctx)
	s.ForceAsync = force
	return With(ctx, s)
}

// CommandRunning reports whether a command is being orchestrated in ctx.
func CommandRunning(ctx context.Context) bool {
	return From(ctx).CommandRunning
}

// ForceAsync reports whether commands in ctx must return raw Futures.
func ForceAsync(ctx context.Context) bool {
	return From(ctx).ForceAsync
}

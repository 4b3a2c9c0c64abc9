package hook

import (
	"context"
	"errors"
	"fmt"
)

// Phase identifies the lifecycle point a hook set is attached to.
type Phase string

const (
	// PhaseBeforeCommand runs before every top-level command.
	PhaseBeforeCommand Phase = "beforeCommand"
	// PhaseAfterCommand runs after every top-level command.
	PhaseAfterCommand Phase = "afterCommand"
	// PhaseOnCommandException runs after a top-level command failed.
	PhaseOnCommandException Phase = "onCommandException"
	// PhaseBeforeHook runs before every spec hook body.
	PhaseBeforeHook Phase = "beforeHook"
	// PhaseAfterHook runs after every spec hook body.
	PhaseAfterHook Phase = "afterHook"
)

// Phases lists every known phase.
var Phases = []Phase{
	PhaseBeforeCommand,
	PhaseAfterCommand,
	PhaseOnCommandException,
	PhaseBeforeHook,
	PhaseAfterHook,
}

// Func is a single hook. It may return a *fiber.Future, which is awaited.
type Func func(ctx context.Context, args ...any) (any, error)

// Set is an ordered collection of hooks run with shared arguments.
type Set []Func

// Of builds a Set from hooks.
func Of(hooks ...Func) Set {
	return Set(hooks)
}

// Sets maps phases to their hook sets.
type Sets map[Phase]Set

// NewSets creates an empty Sets.
func NewSets() Sets {
	return make(Sets)
}

// Get returns the set registered for phase.
func (s Sets) Get(phase Phase) Set {
	if s == nil {
		return nil
	}
	return s[phase]
}

// Add appends hooks to the set of phase and returns s.
func (s Sets) Add(phase Phase, hooks ...Func) Sets {
	s[phase] = append(s[phase], hooks...)
	return s
}

// Merge concatenates the sets of every argument, phase by phase, in order.
func Merge(sets ...Sets) Sets {
	out := NewSets()
	for _, set := range sets {
		for phase, hooks := range set {
			out.Add(phase, hooks...)
		}
	}
	return out
}

// Normalize turns a single hook, a slice of hooks or a Set into a Set.
// A nil value yields an empty Set.
func Normalize(hooks any) (Set, error) {
	switch h := hooks.(type) {
	case nil:
		return nil, nil
	case Set:
		return h, nil
	case Func:
		return Set{h}, nil
	case func(context.Context, ...any) (any, error):
		return Set{h}, nil
	case []Func:
		return Set(h), nil
	case []func(context.Context, ...any) (any, error):
		set := make(Set, len(h))
		for i, fn := range h {
			set[i] = fn
		}
		return set, nil
	default:
		return nil, fmt.Errorf("unsupported hook type %T", hooks)
	}
}

// NormalizeArgs turns a non-slice argument into a one-element argument list.
// A nil value yields no arguments.
func NormalizeArgs(args any) []any {
	switch a := args.(type) {
	case nil:
		return nil
	case []any:
		return a
	default:
		return []any{a}
	}
}

// HookError represents a failure of one hook in a set.
type HookError struct {
	Phase   Phase
	Index   int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	phase := string(e.Phase)
	if phase == "" {
		phase = "anonymous"
	}
	return fmt.Sprintf("[%s hook #%d] %s: %v", phase, e.Index, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *HookError) Unwrap() error {
	return e.Cause
}

// NewHookError creates a new HookError.
func NewHookError(phase Phase, index int, message string, cause error) *HookError {
	return &HookError{
		Phase:   phase,
		Index:   index,
		Message: message,
		Cause:   cause,
	}
}

// IsHookError checks if the error is a HookError.
func IsHookError(err error) bool {
	var hookErr *HookError
	return errors.As(err, &hookErr)
}

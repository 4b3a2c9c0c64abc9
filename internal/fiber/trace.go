package fiber

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxTraceDepth = 64

// internalPrefixes lists the packages whose frames are dropped from traces.
// Frames from _test.go files in these packages are kept.
var internalPrefixes = []string{
	"yqhp/syncbridge/internal/fiber.",
	"yqhp/syncbridge/internal/execctx.",
	"yqhp/syncbridge/internal/hook.",
	"yqhp/syncbridge/internal/command.",
	"yqhp/syncbridge/internal/runner.",
	"yqhp/syncbridge/internal/script.",
	"runtime.",
}

// Site is a captured call stack.
type Site struct {
	pcs []uintptr
}

// Capture records the stack of its caller. skip=0 anchors the site at the
// function calling Capture.
func Capture(skip int) Site {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(skip+2, pcs)
	return Site{pcs: pcs[:n]}
}

// Frames returns the site's frames with internal adapter frames removed.
func (s Site) Frames() []runtime.Frame {
	if len(s.pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(s.pcs)
	var out []runtime.Frame
	for {
		frame, more := frames.Next()
		if !isInternalFrame(frame) {
			out = append(out, frame)
		}
		if !more {
			break
		}
	}
	return out
}

func isInternalFrame(frame runtime.Frame) bool {
	if strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(frame.Function, prefix) {
			return true
		}
	}
	return false
}

// TracedError carries an error together with the user call site it surfaced at.
type TracedError struct {
	Err    error
	frames []runtime.Frame
}

// Error returns the message of the underlying error.
func (e *TracedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *TracedError) Unwrap() error {
	return e.Err
}

// Frames returns the filtered call-site frames.
func (e *TracedError) Frames() []runtime.Frame {
	return e.frames
}

// Stack formats the filtered frames one per line pair, like a goroutine dump.
func (e *TracedError) Stack() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	for _, f := range e.frames {
		fmt.Fprintf(&sb, "\n%s\n\t%s:%d", f.Function, f.File, f.Line)
	}
	return sb.String()
}

// Trace attaches site to err. An error that already carries a trace keeps it.
func Trace(err error, site Site) error {
	if err == nil {
		return nil
	}
	var traced *TracedError
	if errors.As(err, &traced) {
		return err
	}
	return &TracedError{Err: err, frames: site.Frames()}
}

// Reanchor attaches site to err, replacing any trace it already carries.
func Reanchor(err error, site Site) error {
	if err == nil {
		return nil
	}
	var traced *TracedError
	if errors.As(err, &traced) && traced == err {
		err = traced.Err
	}
	return &TracedError{Err: err, frames: site.Frames()}
}

// StackOf returns the filtered trace of err, or its message when it carries none.
func StackOf(err error) string {
	var traced *TracedError
	if errors.As(err, &traced) {
		return traced.Stack()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

package command

import (
	"errors"
	"fmt"
)

// Error codes for command errors.
const (
	ErrCodeCommandFailure  = "COMMAND_FAILURE"
	ErrCodeNamingCollision = "NAMING_COLLISION"
	ErrCodeNotFound        = "NOT_FOUND"
)

// Sentinels matched by errors.Is against any CommandError of the same code.
var (
	ErrCommandFailure  = &CommandError{Code: ErrCodeCommandFailure, Message: "command failed"}
	ErrNamingCollision = &CommandError{Code: ErrCodeNamingCollision, Message: "naming collision"}
	ErrNotFound        = &CommandError{Code: ErrCodeNotFound, Message: "command not found"}
)

// CommandError represents an error raised by a wrapped command or by the
// command registrar.
type CommandError struct {
	Code    string
	Command string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := e.Message
	if e.Command != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Command)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a CommandError with the same code.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewCommandFailureError wraps the failure of a top-level command.
func NewCommandFailureError(command string, cause error) *CommandError {
	return &CommandError{
		Code:    ErrCodeCommandFailure,
		Command: command,
		Message: "command failed",
		Cause:   cause,
	}
}

// NewNamingCollisionError creates an error for a name that is already taken.
func NewNamingCollisionError(command, message string) *CommandError {
	return &CommandError{
		Code:    ErrCodeNamingCollision,
		Command: command,
		Message: message,
	}
}

// NewNotFoundError creates an error for an unknown command.
func NewNotFoundError(command string) *CommandError {
	return &CommandError{
		Code:    ErrCodeNotFound,
		Command: command,
		Message: "command not found",
	}
}

// IsCommandFailure checks if the error is a command failure.
func IsCommandFailure(err error) bool {
	return errors.Is(err, ErrCommandFailure)
}

// IsNamingCollision checks if the error is a naming collision.
func IsNamingCollision(err error) bool {
	return errors.Is(err, ErrNamingCollision)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

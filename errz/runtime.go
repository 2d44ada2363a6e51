package errz

import (
	"fmt"
	"strings"
)

// Frame is one entry of a runtime backtrace.
type Frame struct {
	Function string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("[line %d] in %s()", f.Line, f.Function)
}

// RuntimeError is raised when executing bytecode fails. The backtrace lists
// the active frames innermost first.
type RuntimeError struct {
	Message   string
	Backtrace []Frame
	Cause     error
}

// NewRuntimeError creates a RuntimeError with a formatted message.
func NewRuntimeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error.
func (e *RuntimeError) WithCause(cause error) *RuntimeError {
	e.Cause = cause
	return e
}

// Line returns the line of the innermost frame, or 0 without a backtrace.
func (e *RuntimeError) Line() int {
	if len(e.Backtrace) == 0 {
		return 0
	}
	return e.Backtrace[0].Line
}

// Trace returns the message followed by one line per frame.
func (e *RuntimeError) Trace() string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString("\n")
	for _, f := range e.Backtrace {
		b.WriteString(f.String())
		b.WriteString("\n")
	}
	return b.String()
}

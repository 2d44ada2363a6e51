// Package errz defines the errors reported by the compiler and the virtual
// machine, and the formatting used to show them to users.
package errz

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Diagnostic is one problem found while compiling.
type Diagnostic struct {
	Line    int
	Where   string // " at 'x'", " at end" or empty for lexer errors
	Message string
}

// Error formats the diagnostic as "[line N] Error at 'x': message".
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// AtToken returns the location suffix for a diagnostic reported at a token
// with the given lexeme.
func AtToken(lexeme string) string {
	return fmt.Sprintf(" at '%s'", lexeme)
}

// AtEnd is the location suffix for diagnostics reported at end of input.
const AtEnd = " at end"

// CompileError aggregates every diagnostic of a failed compilation.
type CompileError struct {
	Filename string
	errs     *multierror.Error
}

// Add records a diagnostic.
func (e *CompileError) Add(d *Diagnostic) {
	e.errs = multierror.Append(e.errs, d)
	e.errs.ErrorFormat = listFormat
}

// Len returns the number of diagnostics.
func (e *CompileError) Len() int {
	if e.errs == nil {
		return 0
	}
	return e.errs.Len()
}

// Diagnostics returns the recorded diagnostics in report order.
func (e *CompileError) Diagnostics() []*Diagnostic {
	if e.errs == nil {
		return nil
	}
	out := make([]*Diagnostic, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		if d, ok := err.(*Diagnostic); ok {
			out = append(out, d)
		}
	}
	return out
}

// Error lists every diagnostic on its own line.
func (e *CompileError) Error() string {
	if e.errs == nil {
		return "compile error"
	}
	return e.errs.Error()
}

// Unwrap exposes the aggregated diagnostics to errors.As.
func (e *CompileError) Unwrap() error {
	return e.errs.ErrorOrNil()
}

// ErrorOrNil returns e when it holds at least one diagnostic.
func (e *CompileError) ErrorOrNil() error {
	if e.Len() == 0 {
		return nil
	}
	return e
}

func listFormat(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

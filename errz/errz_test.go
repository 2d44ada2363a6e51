package errz

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnosticFormat(t *testing.T) {
	d := &Diagnostic{Line: 3, Where: AtToken("+"), Message: "Expect expression."}
	require.Equal(t, "[line 3] Error at '+': Expect expression.", d.Error())

	d = &Diagnostic{Line: 9, Where: AtEnd, Message: "Expect '}' after block."}
	require.Equal(t, "[line 9] Error at end: Expect '}' after block.", d.Error())

	d = &Diagnostic{Line: 1, Message: "Unexpected character."}
	require.Equal(t, "[line 1] Error: Unexpected character.", d.Error())
}

func TestCompileErrorAggregates(t *testing.T) {
	e := &CompileError{}
	require.Nil(t, e.ErrorOrNil())
	require.Equal(t, 0, e.Len())

	e.Add(&Diagnostic{Line: 1, Where: AtToken("x"), Message: "first"})
	e.Add(&Diagnostic{Line: 2, Where: AtEnd, Message: "second"})
	require.Equal(t, 2, e.Len())
	require.NotNil(t, e.ErrorOrNil())
	require.Equal(t, "[line 1] Error at 'x': first\n[line 2] Error at end: second", e.Error())

	var d *Diagnostic
	require.True(t, errors.As(e, &d))
	require.Equal(t, "first", d.Message)
	require.Len(t, e.Diagnostics(), 2)
}

func TestRuntimeError(t *testing.T) {
	e := NewRuntimeError("Undefined variable '%s'.", "x")
	e.Backtrace = []Frame{{Function: "inner", Line: 4}, {Function: "__main", Line: 9}}
	require.Equal(t, "Undefined variable 'x'.", e.Error())
	require.Equal(t, 4, e.Line())
	require.Equal(t, "Undefined variable 'x'.\n[line 4] in inner()\n[line 9] in __main()\n", e.Trace())

	cause := errors.New("boom")
	wrapped := fmt.Errorf("run: %w", NewRuntimeError("failed").WithCause(cause))
	require.ErrorIs(t, wrapped, cause)
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	ce := &CompileError{}
	ce.Add(&Diagnostic{Line: 2, Where: AtToken(")"), Message: "Expect expression."})
	p.Print(ce)
	require.Equal(t, "[line 2] Error at ')': Expect expression.\n", buf.String())

	buf.Reset()
	re := NewRuntimeError("Operands must be numbers.")
	re.Backtrace = []Frame{{Function: "__main", Line: 1}}
	p.Print(re)
	require.Equal(t, "Operands must be numbers.\n[line 1] in __main()\n", buf.String())

	buf.Reset()
	p.Print(errors.New("plain"))
	require.Equal(t, "plain\n", buf.String())
	require.False(t, IsTerminal(&buf))
}

package errz

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes errors in the format users see on stderr.
type Printer struct {
	w       io.Writer
	message *color.Color
	trace   *color.Color
}

// NewPrinter returns a Printer for w. Colors are used only when useColor is
// set.
func NewPrinter(w io.Writer, useColor bool) *Printer {
	p := &Printer{
		w:       w,
		message: color.New(color.FgRed, color.Bold),
		trace:   color.New(color.FgHiBlack),
	}
	if useColor {
		p.message.EnableColor()
		p.trace.EnableColor()
	} else {
		p.message.DisableColor()
		p.trace.DisableColor()
	}
	return p
}

// Print writes err. Compile errors print one diagnostic per line, runtime
// errors print the message followed by the backtrace.
func (p *Printer) Print(err error) {
	var compileErr *CompileError
	var runtimeErr *RuntimeError
	switch {
	case errors.As(err, &compileErr):
		for _, d := range compileErr.Diagnostics() {
			p.message.Fprintln(p.w, d.Error())
		}
	case errors.As(err, &runtimeErr):
		p.message.Fprintln(p.w, runtimeErr.Message)
		for _, f := range runtimeErr.Backtrace {
			p.trace.Fprintln(p.w, f.String())
		}
	default:
		p.message.Fprintln(p.w, err.Error())
	}
}

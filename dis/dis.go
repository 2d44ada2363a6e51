// Package dis prints human readable listings of compiled bytecode.
package dis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/jmllang/jml/errz"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
)

// maxDepth bounds the recursion into nested function constants.
const maxDepth = 64

type printer struct {
	w      io.Writer
	header *color.Color
	opcode *color.Color
	info   *color.Color
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:      w,
		header: color.New(color.FgGreen, color.Bold),
		opcode: color.New(color.FgCyan),
		info:   color.New(color.FgHiBlack),
	}
	enabled := errz.IsTerminal(w)
	for _, c := range []*color.Color{p.header, p.opcode, p.info} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Function prints the listing of fn and every function nested in it.
func Function(w io.Writer, fn *object.Function) {
	newPrinter(w).chunk(&fn.Chunk, fn.DisplayName(), 0)
}

// Chunk prints every instruction of chunk under a header carrying name,
// followed by the listings of the functions in its constant pool.
func Chunk(w io.Writer, chunk *object.Chunk, name string) {
	newPrinter(w).chunk(chunk, name, 0)
}

// Instruction prints the instruction at offset and returns the offset of
// the next one.
func Instruction(w io.Writer, chunk *object.Chunk, offset int) int {
	return newPrinter(w).instruction(chunk, offset)
}

func (p *printer) chunk(chunk *object.Chunk, name string, depth int) {
	fmt.Fprintln(p.w, p.header.Sprintf("== %s ==", name))
	for offset := 0; offset < chunk.Len(); {
		offset = p.instruction(chunk, offset)
	}
	if depth >= maxDepth {
		return
	}
	for _, c := range chunk.Constants {
		if fn, ok := c.AsObject().(*object.Function); ok {
			fmt.Fprintln(p.w)
			p.chunk(&fn.Chunk, fn.DisplayName(), depth+1)
		}
	}
}

func (p *printer) instruction(chunk *object.Chunk, offset int) int {
	line := "   |"
	if offset == 0 || chunk.Line(offset) != chunk.Line(offset-1) {
		line = fmt.Sprintf("%4d", chunk.Line(offset))
	}
	prefix := fmt.Sprintf("%04d %s ", offset, line)

	code := op.Code(chunk.Code[offset])
	if !op.IsValid(code) {
		fmt.Fprintf(p.w, "%sunknown opcode %d\n", prefix, code)
		return offset + 1
	}
	info := op.GetInfo(code)
	if offset+info.Size() > chunk.Len() {
		fmt.Fprintf(p.w, "%s%s <truncated>\n", prefix, p.opcode.Sprint(info.Name))
		return chunk.Len()
	}

	pos := offset + 1
	var operands, notes []string
	for _, kind := range info.Operands {
		var v int
		if kind.Width() == 1 {
			v = int(chunk.Code[pos])
		} else {
			v = chunk.ReadShort(pos)
		}
		pos += kind.Width()
		operands = append(operands, strconv.Itoa(v))
		switch kind {
		case op.ConstIndex, op.ConstIndexWide:
			if v < len(chunk.Constants) {
				notes = append(notes, object.Repr(chunk.Constants[v]))
			} else {
				notes = append(notes, "<bad constant>")
			}
		case op.JumpOffset:
			notes = append(notes, fmt.Sprintf("-> %d", pos+v))
		case op.LoopOffset:
			notes = append(notes, fmt.Sprintf("-> %d", pos-v))
		}
	}
	text := fmt.Sprintf("%s%s %-7s ", prefix, p.opcode.Sprintf("%-16s", info.Name), strings.Join(operands, " "))
	if len(notes) > 0 {
		text += p.info.Sprint(strings.Join(notes, " "))
	}
	fmt.Fprintln(p.w, strings.TrimRight(text, " "))

	if code == op.Closure || code == op.ClosureExt {
		pos = p.upvalues(chunk, offset, pos)
	}
	return pos
}

// upvalues prints the capture descriptors that follow a CLOSURE.
func (p *printer) upvalues(chunk *object.Chunk, offset, pos int) int {
	var index int
	if op.Code(chunk.Code[offset]) == op.ClosureExt {
		index = chunk.ReadShort(offset + 1)
	} else {
		index = int(chunk.Code[offset+1])
	}
	if index >= len(chunk.Constants) {
		return pos
	}
	fn, ok := chunk.Constants[index].AsObject().(*object.Function)
	if !ok {
		return pos
	}
	for i := 0; i < fn.UpvalueCount && pos+1 < chunk.Len(); i++ {
		kind := "upvalue"
		if chunk.Code[pos] == 1 {
			kind = "local"
		}
		fmt.Fprintf(p.w, "%04d    |   %s %d\n", pos, p.info.Sprint(kind), chunk.Code[pos+1])
		pos += 2
	}
	return pos
}

package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/object"
	"github.com/jmllang/jml/op"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, source string) *object.Function {
	t.Helper()
	fn, err := compiler.Compile(object.NewHeap(), source)
	require.NoError(t, err)
	return fn
}

func requireSameFunction(t *testing.T, want, got *object.Function) {
	t.Helper()
	require.Equal(t, want.Arity, got.Arity)
	require.Equal(t, want.UpvalueCount, got.UpvalueCount)
	if want.Name == nil {
		require.Nil(t, got.Name)
	} else {
		require.Equal(t, want.Name.Chars, got.Name.Chars)
	}
	require.Equal(t, want.Chunk.Code, got.Chunk.Code)
	require.Equal(t, want.Chunk.Lines, got.Chunk.Lines)
	require.Len(t, got.Chunk.Constants, len(want.Chunk.Constants))
	for i, wc := range want.Chunk.Constants {
		gc := got.Chunk.Constants[i]
		require.Equal(t, wc.Type(), gc.Type(), "constant %d", i)
		switch w := wc.AsObject().(type) {
		case *object.Function:
			requireSameFunction(t, w, gc.AsObject().(*object.Function))
		case *object.String:
			s, ok := gc.AsString()
			require.True(t, ok)
			require.Equal(t, w.Chars, s.Chars)
		default:
			require.Equal(t, object.Repr(wc), object.Repr(gc))
		}
	}
}

func TestRoundTrip(t *testing.T) {
	fn := compile(t, `
let greeting = "hello" :: ' world'
let pi = 3.14159
fn counter() {
  let n = 0
  |_| { n += 1 }
}
class Box {
  let empty = none
  fn __init(v) { self.v = v }
}
`)
	data, err := Marshal(fn)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte(Shebang+Magic)))
	require.Equal(t, byte('\n'), data[len(data)-1])

	heap := object.NewHeap(object.WithStress())
	restored, err := Unmarshal(heap, data)
	require.NoError(t, err)
	require.Equal(t, compiler.MainName, restored.Name.Chars)
	requireSameFunction(t, fn, restored)
	require.False(t, object.IsFreed(restored))
}

func TestLayout(t *testing.T) {
	heap := object.NewHeap()
	fn := heap.NewFunction()
	heap.AddConstant(fn, object.Number(1))
	heap.WriteCode(fn, byte(op.Const), 1)
	heap.WriteCode(fn, 0, 258)

	data, err := Marshal(fn)
	require.NoError(t, err)
	body := data[len(Shebang):]
	want := []byte{'j', 'm', 'l', 0, 1, 0,
		0, 0, 0, 1, // constants
		0, 0, 0, 6, // region
		byte(op.Const), 0,
		1, 0, 2, 1, // lines, little-endian
		'N', 0x3f, 0xf0, 0, 0, 0, 0, 0, 0,
		'\n',
	}
	require.Equal(t, want, body)

	restored, err := Unmarshal(object.NewHeap(), body)
	require.NoError(t, err, "the shebang is optional")
	require.Equal(t, 258, restored.Chunk.Line(1))
	require.Equal(t, 1.0, restored.Chunk.Constants[0].AsNumber())
}

func TestPrimitiveConstants(t *testing.T) {
	heap := object.NewHeap()
	fn := heap.NewFunction()
	fn.Name = heap.Intern(compiler.MainName)
	for _, v := range []object.Value{object.None, object.True, object.False, object.Number(-0.5)} {
		heap.AddConstant(fn, v)
	}
	data, err := Marshal(fn)
	require.NoError(t, err)
	restored, err := Unmarshal(heap, data)
	require.NoError(t, err)
	requireSameFunction(t, fn, restored)
}

func TestUnsupportedConstant(t *testing.T) {
	heap := object.NewHeap()
	fn := heap.NewFunction()
	heap.AddConstant(fn, object.Obj(heap.NewArray(nil)))
	_, err := Marshal(fn)
	require.True(t, errors.Is(err, ErrUnsupported))
}

// nested builds the encoding of functions nested depth levels deep.
func nested(depth int) []byte {
	var body []byte
	u32 := func(n int) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		return b
	}
	body = append(u32(0), u32(0)...)
	for i := 0; i < depth; i++ {
		fn := []byte{'O', 'F'}
		fn = append(fn, u32(0)...)
		fn = append(fn, 0, 0, 0)
		fn = append(fn, body...)
		body = append(append(u32(1), u32(0)...), fn...)
	}
	out := []byte(Magic + "\x00\x01\x00")
	out = append(out, body...)
	return append(out, '\n')
}

func TestCorruptInput(t *testing.T) {
	valid, err := Marshal(compile(t, "let a = 'x'\nfn f() { a }"))
	require.NoError(t, err)
	header := len(Shebang) + len(Magic) + 3

	truncate := func(n int) []byte { return append([]byte(nil), valid[:n]...) }
	patch := func(i int, b byte) []byte {
		out := append([]byte(nil), valid...)
		out[i] = b
		return out
	}

	tests := map[string][]byte{
		"empty":            nil,
		"bad magic":        patch(len(Shebang), 'J'),
		"version":          patch(len(Shebang)+4, 9),
		"truncated header": truncate(header + 2),
		"truncated body":   truncate(len(valid) - 3),
		"odd region":       patch(header+7, valid[header+7]+1),
		"region too large": patch(header+4, 0x7f),
		"missing newline":  truncate(len(valid) - 1),
		"trailing data":    append(append([]byte(nil), valid...), 'x'),
		"too deep":         nested(MaxDepth + 1),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			fn, err := Unmarshal(object.NewHeap(), data)
			require.Nil(t, fn)
			require.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
		})
	}

	fn, err := Unmarshal(object.NewHeap(), nested(MaxDepth))
	require.NoError(t, err)
	require.NotNil(t, fn)
}

func TestUnknownTag(t *testing.T) {
	data := []byte(Magic + "\x00\x01\x00")
	data = append(data, 0, 0, 0, 1, 0, 0, 0, 0, '?', '\n')
	_, err := Unmarshal(object.NewHeap(), data)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, err.Error(), "unknown tag")
}

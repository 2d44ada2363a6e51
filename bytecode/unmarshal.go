package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jmllang/jml/compiler"
	"github.com/jmllang/jml/object"
)

// Unmarshal decodes data into functions allocated on heap. The returned
// function runs the top-level code and is named like the one produced by
// the compiler.
func Unmarshal(heap *object.Heap, data []byte) (*object.Function, error) {
	d := &decoder{heap: heap, data: data}
	heap.AddRoots(d)
	defer heap.RemoveRoots(d)

	if bytes.HasPrefix(data, []byte(Shebang)) {
		d.pos = len(Shebang)
	}
	header, err := d.bytes(len(Magic) + 3)
	if err != nil || string(header[:len(Magic)]) != Magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if header[3] != VersionMajor || header[4] != VersionMinor || header[5] != VersionMicro {
		return nil, fmt.Errorf("%w: version %d.%d.%d, want %d.%d.%d", ErrCorrupt,
			header[3], header[4], header[5], VersionMajor, VersionMinor, VersionMicro)
	}

	fn, err := d.function(compiler.MainName, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	if d.pos >= len(data) || data[d.pos] != '\n' {
		return nil, fmt.Errorf("%w: missing trailing newline", ErrCorrupt)
	}
	if d.pos+1 != len(data) {
		return nil, fmt.Errorf("%w: %d bytes after the end", ErrCorrupt, len(data)-d.pos-1)
	}
	return fn, nil
}

// decoder keeps the functions it is filling in reachable while interning
// strings may trigger collections.
type decoder struct {
	heap    *object.Heap
	data    []byte
	pos     int
	pending []*object.Function
}

func (d *decoder) MarkRoots(h *object.Heap) {
	for _, fn := range d.pending {
		h.Mark(fn)
	}
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, fmt.Errorf("%w: unexpected end of input at offset %d", ErrCorrupt, d.pos)
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) string() (string, error) {
	n, err := d.uint32()
	if err != nil {
		return "", err
	}
	if int64(n) > int64(len(d.data)-d.pos) {
		return "", fmt.Errorf("%w: string of %d bytes exceeds input", ErrCorrupt, n)
	}
	b, _ := d.bytes(int(n))
	return string(b), nil
}

func (d *decoder) function(name string, arity, upvalues, depth int) (*object.Function, error) {
	fn := d.heap.NewFunction()
	d.pending = append(d.pending, fn)
	defer func() { d.pending = d.pending[:len(d.pending)-1] }()

	fn.Arity = arity
	fn.UpvalueCount = upvalues
	if name != "" {
		fn.Name = d.heap.Intern(name)
	}
	if err := d.chunk(fn, depth); err != nil {
		return nil, err
	}
	return fn, nil
}

func (d *decoder) chunk(fn *object.Function, depth int) error {
	constants, err := d.uint32()
	if err != nil {
		return err
	}
	region, err := d.uint32()
	if err != nil {
		return err
	}
	if region%3 != 0 {
		return fmt.Errorf("%w: opcode region of %d bytes", ErrCorrupt, region)
	}
	if int64(region) > int64(len(d.data)-d.pos) {
		return fmt.Errorf("%w: opcode region of %d bytes exceeds input", ErrCorrupt, region)
	}
	count := int(region / 3)
	body, _ := d.bytes(int(region))
	for i := 0; i < count; i++ {
		line := binary.LittleEndian.Uint16(body[count+2*i:])
		d.heap.WriteCode(fn, body[i], int(line))
	}

	// every constant takes at least one byte
	if int64(constants) > int64(len(d.data)-d.pos) {
		return fmt.Errorf("%w: %d constants exceed input", ErrCorrupt, constants)
	}
	for i := uint32(0); i < constants; i++ {
		v, err := d.value(depth)
		if err != nil {
			return err
		}
		d.heap.AddConstant(fn, v)
	}
	return nil
}

func (d *decoder) value(depth int) (object.Value, error) {
	tag, err := d.bytes(1)
	if err != nil {
		return object.None, err
	}
	switch tag[0] {
	case tagNone:
		return object.None, nil
	case tagTrue:
		return object.True, nil
	case tagFalse:
		return object.False, nil
	case tagNumber:
		b, err := d.bytes(8)
		if err != nil {
			return object.None, err
		}
		return object.Number(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case tagObject:
		return d.object(depth)
	}
	return object.None, fmt.Errorf("%w: unknown tag %q at offset %d", ErrCorrupt, tag[0], d.pos-1)
}

func (d *decoder) object(depth int) (object.Value, error) {
	tag, err := d.bytes(1)
	if err != nil {
		return object.None, err
	}
	switch tag[0] {
	case tagString:
		s, err := d.string()
		if err != nil {
			return object.None, err
		}
		return d.heap.NewString(s), nil
	case tagFunction:
		if depth+1 > MaxDepth {
			return object.None, fmt.Errorf("%w: functions nested deeper than %d", ErrCorrupt, MaxDepth)
		}
		name, err := d.string()
		if err != nil {
			return object.None, err
		}
		header, err := d.bytes(3)
		if err != nil {
			return object.None, err
		}
		arity := int(header[0])
		upvalues := int(header[1])<<8 | int(header[2])
		fn, err := d.function(name, arity, upvalues, depth+1)
		if err != nil {
			return object.None, err
		}
		return object.Obj(fn), nil
	}
	return object.None, fmt.Errorf("%w: unknown object tag %q at offset %d", ErrCorrupt, tag[0], d.pos-1)
}

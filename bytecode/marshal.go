package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jmllang/jml/object"
)

// Marshal encodes fn, including every function nested in its constants.
func Marshal(fn *object.Function) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Shebang)
	buf.WriteString(Magic)
	buf.Write([]byte{VersionMajor, VersionMinor, VersionMicro})
	if err := writeChunk(&buf, &fn.Chunk, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeChunk(buf *bytes.Buffer, chunk *object.Chunk, depth int) error {
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(chunk.Constants)))
	buf.Write(scratch[:4])
	binary.BigEndian.PutUint32(scratch[:4], uint32(len(chunk.Code)*3))
	buf.Write(scratch[:4])
	buf.Write(chunk.Code)
	for _, line := range chunk.Lines {
		binary.LittleEndian.PutUint16(scratch[:2], line)
		buf.Write(scratch[:2])
	}
	for i, v := range chunk.Constants {
		if err := writeValue(buf, v, depth); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v object.Value, depth int) error {
	switch v.Kind() {
	case object.KindNone:
		buf.WriteByte(tagNone)
	case object.KindBool:
		if v.AsBool() {
			buf.WriteByte(tagTrue)
		} else {
			buf.WriteByte(tagFalse)
		}
	case object.KindNumber:
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v.AsNumber()))
		buf.WriteByte(tagNumber)
		buf.Write(scratch[:])
	default:
		switch obj := v.AsObject().(type) {
		case *object.String:
			buf.WriteByte(tagObject)
			buf.WriteByte(tagString)
			writeString(buf, obj.Chars)
		case *object.Function:
			if depth+1 > MaxDepth {
				return fmt.Errorf("%w: functions nested deeper than %d", ErrUnsupported, MaxDepth)
			}
			if obj.Arity > 0xff || obj.UpvalueCount > 0xffff {
				return fmt.Errorf("%w: function %s is too large", ErrUnsupported, obj.DisplayName())
			}
			buf.WriteByte(tagObject)
			buf.WriteByte(tagFunction)
			name := ""
			if obj.Name != nil {
				name = obj.Name.Chars
			}
			writeString(buf, name)
			buf.WriteByte(byte(obj.Arity))
			buf.WriteByte(byte(obj.UpvalueCount >> 8))
			buf.WriteByte(byte(obj.UpvalueCount))
			return writeChunk(buf, &obj.Chunk, depth+1)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupported, v.Type())
		}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(s)))
	buf.Write(scratch[:])
	buf.WriteString(s)
}

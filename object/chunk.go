package object

// Chunk is the bytecode of one function: a packed opcode stream, a parallel
// table mapping every byte to its source line, and a constant pool.
type Chunk struct {
	Code      []byte
	Lines     []uint16
	Constants []Value
}

// Write appends one byte of code produced by the given source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, uint16(line))
}

// AddConstant appends a value to the constant pool and returns its index.
// Duplicates are allowed.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len returns the number of code bytes.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Line returns the source line for the byte at offset.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return int(c.Lines[offset])
}

// ReadShort decodes the big-endian two byte operand at offset.
func (c *Chunk) ReadShort(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

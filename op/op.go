// Package op defines opcodes used by the jml compiler and virtual machine.
//
// Every opcode occupies one byte in a chunk and is followed by zero or more
// operands. Instructions that reference the constant pool come in pairs: the
// short form carries a one byte index and the extended form (suffix _EXT)
// carries a two byte big-endian index. The compiler picks the extended form
// whenever an index does not fit in a byte.
package op

// Code is a one byte opcode that indicates an operation to execute.
type Code byte

const (
	// Stack
	Nop Code = iota
	Pop
	PopTwo
	Rot
	Dup
	DupTwo
	Save

	// Push constants
	Const
	ConstExt
	None
	True
	False
	Bool

	// Operations
	Add
	Subtract
	Multiply
	Power
	Divide
	Modulo
	Not
	Negate
	Equal
	Greater
	GreaterEqual
	Less
	LessEqual
	NotEqual
	Concat
	Contain
	Size

	// Jump
	Jump
	JumpIfFalse
	Loop

	// Execution
	Call
	Invoke
	InvokeExt
	SuperInvoke
	SuperInvokeExt
	Closure
	ClosureExt
	Return

	// Classes
	Class
	ClassExt
	ClassField
	ClassFieldExt
	Inherit
	Super
	SuperExt

	// Load and store
	GetLocal
	SetLocal
	GetUpvalue
	SetUpvalue
	CloseUpvalue
	GetGlobal
	GetGlobalExt
	SetGlobal
	SetGlobalExt
	DefGlobal
	DefGlobalExt
	GetMember
	GetMemberExt
	SetMember
	SetMemberExt
	GetIndex
	SetIndex

	// Build
	Array
	ArrayExt
	Map
	MapExt

	// Modules
	Import
	ImportExt
	ImportWildcard
	ImportWildcardExt

	End
)

// OperandKind describes how an operand is encoded and how it should be
// interpreted by tools such as the disassembler.
type OperandKind uint8

const (
	// Byte is a one byte slot index or count.
	Byte OperandKind = iota
	// ConstIndex is a one byte index into the constant pool.
	ConstIndex
	// ConstIndexWide is a two byte index into the constant pool.
	ConstIndexWide
	// CountWide is a two byte element count.
	CountWide
	// JumpOffset is a two byte forward distance.
	JumpOffset
	// LoopOffset is a two byte backward distance.
	LoopOffset
)

// Width returns the number of bytes the operand occupies.
func (k OperandKind) Width() int {
	switch k {
	case Byte, ConstIndex:
		return 1
	default:
		return 2
	}
}

// IsConstant reports whether the operand indexes the constant pool.
func (k OperandKind) IsConstant() bool {
	return k == ConstIndex || k == ConstIndexWide
}

// Info contains information about an opcode.
type Info struct {
	Code     Code
	Name     string
	Operands []OperandKind
	// Extended is the wide variant of a short opcode, or the opcode itself.
	Extended Code
}

// Size returns the encoded size of the instruction in bytes, not counting
// the variable-length upvalue descriptors that follow CLOSURE.
func (i Info) Size() int {
	size := 1
	for _, k := range i.Operands {
		size += k.Width()
	}
	return size
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandKind
	}
	c := []OperandKind{ConstIndex}
	cw := []OperandKind{ConstIndexWide}
	b := []OperandKind{Byte}
	ops := []opInfo{
		{Nop, "NOP", nil},
		{Pop, "POP", nil},
		{PopTwo, "POP_TWO", nil},
		{Rot, "ROT", nil},
		{Dup, "DUP", nil},
		{DupTwo, "DUP_TWO", nil},
		{Save, "SAVE", nil},
		{Const, "CONST", c},
		{ConstExt, "CONST_EXT", cw},
		{None, "NONE", nil},
		{True, "TRUE", nil},
		{False, "FALSE", nil},
		{Bool, "BOOL", nil},
		{Add, "ADD", nil},
		{Subtract, "SUB", nil},
		{Multiply, "MUL", nil},
		{Power, "POW", nil},
		{Divide, "DIV", nil},
		{Modulo, "MOD", nil},
		{Not, "NOT", nil},
		{Negate, "NEG", nil},
		{Equal, "EQUAL", nil},
		{Greater, "GREATER", nil},
		{GreaterEqual, "GREATEREQ", nil},
		{Less, "LESS", nil},
		{LessEqual, "LESSEQ", nil},
		{NotEqual, "NOTEQ", nil},
		{Concat, "CONCAT", nil},
		{Contain, "CONTAIN", nil},
		{Size, "SIZE", nil},
		{Jump, "JUMP", []OperandKind{JumpOffset}},
		{JumpIfFalse, "JUMP_IF_FALSE", []OperandKind{JumpOffset}},
		{Loop, "LOOP", []OperandKind{LoopOffset}},
		{Call, "CALL", b},
		{Invoke, "INVOKE", []OperandKind{ConstIndex, Byte}},
		{InvokeExt, "INVOKE_EXT", []OperandKind{ConstIndexWide, Byte}},
		{SuperInvoke, "SUPER_INVOKE", []OperandKind{ConstIndex, Byte}},
		{SuperInvokeExt, "SUPER_INVOKE_EXT", []OperandKind{ConstIndexWide, Byte}},
		{Closure, "CLOSURE", c},
		{ClosureExt, "CLOSURE_EXT", cw},
		{Return, "RETURN", nil},
		{Class, "CLASS", c},
		{ClassExt, "CLASS_EXT", cw},
		{ClassField, "CLASS_FIELD", c},
		{ClassFieldExt, "CLASS_FIELD_EXT", cw},
		{Inherit, "INHERIT", nil},
		{Super, "SUPER", c},
		{SuperExt, "SUPER_EXT", cw},
		{GetLocal, "GET_LOCAL", b},
		{SetLocal, "SET_LOCAL", b},
		{GetUpvalue, "GET_UPVALUE", b},
		{SetUpvalue, "SET_UPVALUE", b},
		{CloseUpvalue, "CLOSE_UPVALUE", nil},
		{GetGlobal, "GET_GLOBAL", c},
		{GetGlobalExt, "GET_GLOBAL_EXT", cw},
		{SetGlobal, "SET_GLOBAL", c},
		{SetGlobalExt, "SET_GLOBAL_EXT", cw},
		{DefGlobal, "DEF_GLOBAL", c},
		{DefGlobalExt, "DEF_GLOBAL_EXT", cw},
		{GetMember, "GET_MEMBER", c},
		{GetMemberExt, "GET_MEMBER_EXT", cw},
		{SetMember, "SET_MEMBER", c},
		{SetMemberExt, "SET_MEMBER_EXT", cw},
		{GetIndex, "GET_INDEX", nil},
		{SetIndex, "SET_INDEX", nil},
		{Array, "ARRAY", b},
		{ArrayExt, "ARRAY_EXT", []OperandKind{CountWide}},
		{Map, "MAP", b},
		{MapExt, "MAP_EXT", []OperandKind{CountWide}},
		{Import, "IMPORT", []OperandKind{ConstIndex, ConstIndex}},
		{ImportExt, "IMPORT_EXT", []OperandKind{ConstIndexWide, ConstIndexWide}},
		{ImportWildcard, "IMPORT_WILDCARD", c},
		{ImportWildcardExt, "IMPORT_WILDCARD_EXT", cw},
		{End, "END", nil},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Name:     o.name,
			Code:     o.op,
			Operands: o.operands,
			Extended: o.op,
		}
	}
	for _, pair := range [][2]Code{
		{Const, ConstExt},
		{Invoke, InvokeExt},
		{SuperInvoke, SuperInvokeExt},
		{Closure, ClosureExt},
		{Class, ClassExt},
		{ClassField, ClassFieldExt},
		{Super, SuperExt},
		{GetGlobal, GetGlobalExt},
		{SetGlobal, SetGlobalExt},
		{DefGlobal, DefGlobalExt},
		{GetMember, GetMemberExt},
		{SetMember, SetMemberExt},
		{Array, ArrayExt},
		{Map, MapExt},
		{Import, ImportExt},
		{ImportWildcard, ImportWildcardExt},
	} {
		infos[pair[0]].Extended = pair[1]
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(op Code) Info {
	return infos[op]
}

// IsValid reports whether the opcode is known.
func IsValid(op Code) bool {
	return op <= End
}

// String returns the mnemonic of the opcode.
func (c Code) String() string {
	if !IsValid(c) {
		return "UNKNOWN"
	}
	return infos[c].Name
}

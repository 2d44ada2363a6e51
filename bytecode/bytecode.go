// Package bytecode serializes compiled functions to a portable binary form
// and back.
//
// # Format
//
// A file starts with an optional shebang line, so that it can be executed
// directly, followed by the magic "jml" and three version bytes. The body
// of the top-level function follows:
//
//	constants count   uint32 big-endian
//	opcode region     uint32 big-endian, three bytes per code byte
//	code              one byte per instruction byte
//	lines             one uint16 little-endian per code byte
//	constants         tagged values
//
// A constant is a tag byte and a payload: 'N' and eight big-endian bytes of
// an IEEE-754 double, '|' for none, '<' for true, '>' for false, "OS" and a
// length-prefixed string, or "OF" and a nested function: its name (empty
// for lambdas), arity, upvalue count and body in the same layout as above.
// The class owning a method is not encoded; the machine fills it in when
// the class body binds the method.
// The file ends with a newline.
//
// Decoding fails closed: every malformed input yields an error wrapping
// ErrCorrupt and no function.
package bytecode

import "errors"

const (
	// Shebang is written in front of every encoded file.
	Shebang = "#!/usr/bin/env -S jml -b\n"

	// Magic identifies encoded files.
	Magic = "jml"

	// MaxDepth limits how deeply function constants may nest.
	MaxDepth = 64
)

// Version of the format. Files are only decoded by the exact same version.
const (
	VersionMajor = 0
	VersionMinor = 1
	VersionMicro = 0
)

const (
	tagNumber   = 'N'
	tagObject   = 'O'
	tagString   = 'S'
	tagFunction = 'F'
	tagNone     = '|'
	tagTrue     = '<'
	tagFalse    = '>'
)

var (
	// ErrCorrupt is returned, wrapped, for input that is not a valid
	// encoding.
	ErrCorrupt = errors.New("bytecode: corrupt input")

	// ErrUnsupported is returned, wrapped, for functions holding constants
	// that have no encoding.
	ErrUnsupported = errors.New("bytecode: unsupported value")
)

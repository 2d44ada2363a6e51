package object

import "hash/fnv"

// String is an immutable, interned byte sequence. Two strings with the same
// content are always the same *String, so comparing pointers compares
// content.
type String struct {
	header
	Chars string
	Hash  uint32
}

func (s *String) Type() Type { return STRING }

// Len returns the length of the string in bytes.
func (s *String) Len() int { return len(s.Chars) }

func (s *String) String() string { return s.Chars }

// HashString computes the FNV-1a hash used for interned strings.
func HashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

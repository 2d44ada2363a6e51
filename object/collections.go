package object

// Array is a growable, ordered sequence of values.
type Array struct {
	header
	Values []Value
}

func (a *Array) Type() Type { return ARRAY }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Values) }

// Map is a string keyed association. It backs the language's map type as
// well as globals, module namespaces, instance fields and class members.
// Keys are interned strings, so lookups hash the pointer.
type Map struct {
	header
	entries map[*String]Value
	order   []*String
}

func (m *Map) Type() Type { return MAP }

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Get returns the value stored under key.
func (m *Map) Get(key *String) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key *String) bool {
	_, ok := m.entries[key]
	return ok
}

// set stores a value and reports whether the key was new. Callers outside
// the package go through Heap.MapSet so growth is accounted.
func (m *Map) set(key *String, value Value) bool {
	if _, ok := m.entries[key]; ok {
		m.entries[key] = value
		return false
	}
	m.entries[key] = value
	m.order = append(m.order, key)
	return true
}

// Delete removes key, reporting whether it was present.
func (m *Map) Delete(key *String) bool {
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []*String {
	keys := make([]*String, len(m.order))
	copy(keys, m.order)
	return keys
}

// Each calls fn for every entry in insertion order until fn returns false.
func (m *Map) Each(fn func(key *String, value Value) bool) {
	for _, k := range m.order {
		if !fn(k, m.entries[k]) {
			return
		}
	}
}

// KeyAt returns the i-th key in insertion order.
func (m *Map) KeyAt(i int) (*String, bool) {
	if i < 0 || i >= len(m.order) {
		return nil, false
	}
	return m.order[i], true
}

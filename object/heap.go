package object

import (
	"github.com/rs/zerolog"
)

const (
	// DefaultGrowFactor multiplies the live heap size after a collection to
	// obtain the next collection threshold.
	DefaultGrowFactor = 2

	// DefaultThreshold is the allocation volume that triggers the first
	// collection, and the floor for every later threshold.
	DefaultThreshold = 1024 * 1024

	// ExemptMax is the capacity of the exempt stack.
	ExemptMax = 32
)

// Special method names the runtime looks up on classes.
const (
	InitName = "__init"
	CallName = "__call"
	FreeName = "__free"
)

// RootMarker is implemented by anything that holds references the collector
// must treat as roots, such as the VM or a compiler in progress.
type RootMarker interface {
	MarkRoots(h *Heap)
}

// Finalizer is invoked for an unreachable instance whose class defines a
// __free method, right before the instance is released.
type Finalizer func(inst *Instance, method Value)

// HeapOption configures a Heap.
type HeapOption func(*Heap)

// WithGrowFactor sets the threshold multiplier applied after a collection.
func WithGrowFactor(factor int) HeapOption {
	return func(h *Heap) {
		if factor > 1 {
			h.growFactor = factor
		}
	}
}

// WithThreshold sets the initial collection threshold in bytes.
func WithThreshold(bytes int) HeapOption {
	return func(h *Heap) {
		if bytes > 0 {
			h.minThreshold = bytes
			h.nextGC = bytes
		}
	}
}

// WithStress makes every growing allocation run a full collection.
func WithStress() HeapOption {
	return func(h *Heap) {
		h.stress = true
	}
}

// WithWeakStrings turns the intern table into a weak set: strings that are
// not otherwise reachable are dropped from it and freed.
func WithWeakStrings() HeapOption {
	return func(h *Heap) {
		h.weakStrings = true
	}
}

// WithLogger sets the logger that receives collection events.
func WithLogger(logger zerolog.Logger) HeapOption {
	return func(h *Heap) {
		h.log = logger
	}
}

// Heap owns every object of a VM. It allocates, interns strings and runs a
// stop-the-world mark-sweep collection when the allocation volume crosses an
// adaptive threshold.
type Heap struct {
	objects      Object
	count        int
	allocated    int
	nextGC       int
	minThreshold int
	growFactor   int
	stress       bool
	weakStrings  bool
	collecting   bool
	collections  int

	gray    []Object
	exempt  []Object
	roots   []RootMarker
	strings map[string]*String

	finalizer Finalizer
	freeName  *String

	log zerolog.Logger
}

// NewHeap returns an empty heap.
func NewHeap(opts ...HeapOption) *Heap {
	h := &Heap{
		nextGC:       DefaultThreshold,
		minThreshold: DefaultThreshold,
		growFactor:   DefaultGrowFactor,
		strings:      map[string]*String{},
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.freeName = h.Intern(FreeName)
	return h
}

// Allocated returns the number of bytes currently accounted to live objects.
func (h *Heap) Allocated() int { return h.allocated }

// NextCollection returns the threshold that triggers the next collection.
func (h *Heap) NextCollection() int { return h.nextGC }

// Collections returns how many collections have run.
func (h *Heap) Collections() int { return h.collections }

// ObjectCount returns the number of live objects.
func (h *Heap) ObjectCount() int { return h.count }

// AddRoots registers a root source.
func (h *Heap) AddRoots(r RootMarker) {
	h.roots = append(h.roots, r)
}

// RemoveRoots unregisters a root source.
func (h *Heap) RemoveRoots(r RootMarker) {
	for i := len(h.roots) - 1; i >= 0; i-- {
		if h.roots[i] == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// SetFinalizer installs the hook that runs __free destructors.
func (h *Heap) SetFinalizer(f Finalizer) {
	h.finalizer = f
}

// track links a new object into the heap. The allocation may run a
// collection first, so everything the new object references must already be
// reachable or exempt.
func (h *Heap) track(o Object, size int) {
	h.maybeCollect(size)
	hdr := o.gcHeader()
	hdr.size = size
	hdr.next = h.objects
	h.objects = o
	h.allocated += size
	h.count++
}

func (h *Heap) maybeCollect(grow int) {
	if h.collecting || grow <= 0 {
		return
	}
	if h.stress || h.allocated+grow > h.nextGC {
		h.Collect()
	}
}

// Grow accounts additional bytes to an existing object, collecting first if
// the threshold would be crossed. The object itself must be reachable or
// exempt.
func (h *Heap) Grow(o Object, bytes int) {
	h.maybeCollect(bytes)
	h.Account(o, bytes)
}

// Account adds bytes to an object without ever triggering a collection.
func (h *Heap) Account(o Object, bytes int) {
	o.gcHeader().size += bytes
	h.allocated += bytes
}

// Exempt pins the object held by v so collections keep it alive even when
// it is unreachable. Calls must be balanced by Unexempt in LIFO order.
func (h *Heap) Exempt(v Value) {
	if len(h.exempt) >= ExemptMax {
		panic("object: exempt stack overflow")
	}
	o := v.obj
	if o != nil {
		o.gcHeader().exempt++
	}
	h.exempt = append(h.exempt, o)
}

// Unexempt releases the most recently pinned value.
func (h *Heap) Unexempt() {
	if len(h.exempt) == 0 {
		panic("object: exempt stack underflow")
	}
	o := h.exempt[len(h.exempt)-1]
	h.exempt = h.exempt[:len(h.exempt)-1]
	if o != nil {
		o.gcHeader().exempt--
	}
}

// ExemptPeek returns the pinned value at the given distance from the top.
func (h *Heap) ExemptPeek(distance int) Value {
	return Obj(h.exempt[len(h.exempt)-1-distance])
}

// ExemptDepth returns the number of pinned values.
func (h *Heap) ExemptDepth() int { return len(h.exempt) }

// Collect runs a full mark-sweep collection.
func (h *Heap) Collect() {
	if h.collecting {
		return
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	before := h.allocated
	h.log.Debug().
		Int("allocated", before).
		Int("objects", h.count).
		Msg("gc_begin")

	h.markRoots()
	h.traceReferences()
	if h.weakStrings {
		h.purgeStrings()
	}
	doomed := h.sweep()

	h.nextGC = h.allocated * h.growFactor
	if h.nextGC < h.minThreshold {
		h.nextGC = h.minThreshold
	}
	h.collections++

	h.log.Debug().
		Int("collected", before-h.allocated).
		Int("allocated", h.allocated).
		Int("next", h.nextGC).
		Msg("gc_end")

	h.finalize(doomed)
}

// Mark flags an object as reachable and queues it for tracing.
func (h *Heap) Mark(o Object) {
	if o == nil {
		return
	}
	hdr := o.gcHeader()
	if hdr.marked || hdr.freed {
		return
	}
	hdr.marked = true
	h.gray = append(h.gray, o)
}

// MarkValue marks the object held by v, if any.
func (h *Heap) MarkValue(v Value) {
	if v.kind == KindObject {
		h.Mark(v.obj)
	}
}

func (h *Heap) markRoots() {
	for _, r := range h.roots {
		r.MarkRoots(h)
	}
	for _, o := range h.exempt {
		h.Mark(o)
	}
	if h.freeName != nil {
		h.Mark(h.freeName)
	}
	if !h.weakStrings {
		for _, s := range h.strings {
			h.Mark(s)
		}
	}
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

func (h *Heap) blacken(o Object) {
	switch obj := o.(type) {
	case *String:
	case *Native:
		h.Mark(obj.Name)
		if obj.Module != nil {
			h.Mark(obj.Module)
		}
	case *Array:
		for _, v := range obj.Values {
			h.MarkValue(v)
		}
	case *Map:
		for k, v := range obj.entries {
			h.Mark(k)
			h.MarkValue(v)
		}
	case *Function:
		if obj.Name != nil {
			h.Mark(obj.Name)
		}
		if obj.ClassName != nil {
			h.Mark(obj.ClassName)
		}
		if obj.Module != nil {
			h.Mark(obj.Module)
		}
		for _, v := range obj.Chunk.Constants {
			h.MarkValue(v)
		}
	case *Closure:
		h.Mark(obj.Function)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				h.Mark(uv)
			}
		}
	case *Upvalue:
		h.MarkValue(obj.Closed)
	case *Class:
		h.Mark(obj.Name)
		if obj.Superclass != nil {
			h.Mark(obj.Superclass)
		}
		h.Mark(obj.Members)
	case *Instance:
		h.Mark(obj.Class)
		h.Mark(obj.Fields)
	case *BoundMethod:
		h.MarkValue(obj.Receiver)
		h.MarkValue(obj.Method)
	case *Exception:
		h.Mark(obj.Name)
		h.Mark(obj.Message)
	case *Module:
		h.Mark(obj.Name)
		h.Mark(obj.Globals)
	}
}

// purgeStrings drops unmarked strings from a weak intern table so the sweep
// can release them.
func (h *Heap) purgeStrings() {
	for k, s := range h.strings {
		if !s.marked && s.exempt == 0 {
			delete(h.strings, k)
		}
	}
}

// sweep releases every unmarked, non-exempt object and clears the mark on
// survivors. Instances that need a destructor are returned.
func (h *Heap) sweep() []*Instance {
	var doomed []*Instance
	var prev Object
	o := h.objects
	for o != nil {
		hdr := o.gcHeader()
		next := hdr.next
		if hdr.marked || hdr.exempt > 0 {
			hdr.marked = false
			prev = o
			o = next
			continue
		}
		if prev == nil {
			h.objects = next
		} else {
			prev.gcHeader().next = next
		}
		if inst, ok := o.(*Instance); ok && h.needsFinalizer(inst) {
			doomed = append(doomed, inst)
		}
		h.release(o)
		o = next
	}
	return doomed
}

func (h *Heap) needsFinalizer(inst *Instance) bool {
	if h.finalizer == nil || inst.finalized || inst.Class == nil {
		return false
	}
	return inst.Class.Members.Has(h.freeName)
}

// finalize runs destructors for instances released by the last sweep. It
// runs while collections are still suppressed.
func (h *Heap) finalize(doomed []*Instance) {
	for _, inst := range doomed {
		inst.finalized = true
		method, _ := inst.Class.Members.Get(h.freeName)
		h.finalizer(inst, method)
	}
}

func (h *Heap) release(o Object) {
	hdr := o.gcHeader()
	h.allocated -= hdr.size
	h.count--
	hdr.freed = true
	hdr.next = nil
	if s, ok := o.(*String); ok {
		if h.strings[s.Chars] == s {
			delete(h.strings, s.Chars)
		}
	}
}

// FreeAll runs outstanding destructors and releases every object. After it
// returns Allocated reports zero.
func (h *Heap) FreeAll() {
	h.collecting = true
	defer func() { h.collecting = false }()

	if h.finalizer != nil {
		var pending []*Instance
		for o := h.objects; o != nil; o = o.gcHeader().next {
			if inst, ok := o.(*Instance); ok && h.needsFinalizer(inst) {
				pending = append(pending, inst)
			}
		}
		h.finalize(pending)
	}

	for o := h.objects; o != nil; {
		next := o.gcHeader().next
		h.release(o)
		o = next
	}
	h.objects = nil
	h.gray = nil
	h.exempt = nil
	h.roots = nil
	h.strings = map[string]*String{}
}

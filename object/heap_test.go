package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// roots is a test root source holding arbitrary values.
type roots struct {
	values []Value
}

func (r *roots) MarkRoots(h *Heap) {
	for _, v := range r.values {
		h.MarkValue(v)
	}
}

func TestInterning(t *testing.T) {
	h := NewHeap()
	a := h.Intern("hello")
	b := h.Intern("hel" + "lo")
	require.Same(t, a, b)
	require.True(t, Equal(Obj(a), Obj(b)))
	require.Equal(t, a.Hash, HashString("hello"))
	require.Equal(t, a.Hash, h.Intern("hello").Hash)
	require.NotSame(t, a, h.Intern("world"))
}

func TestCollectKeepsReachableGraph(t *testing.T) {
	h := NewHeap()
	r := &roots{}
	h.AddRoots(r)

	class := h.NewClass(h.Intern("Point"))
	r.values = append(r.values, Obj(class))
	inst := h.NewInstance(class)
	r.values = append(r.values, Obj(inst))
	arr := h.NewArray([]Value{Number(1), Number(2)})
	h.MapSet(inst.Fields, h.Intern("coords"), Obj(arr))

	garbage := h.NewArray(nil)
	h.Collect()

	require.False(t, IsFreed(class))
	require.False(t, IsFreed(inst))
	require.False(t, IsFreed(inst.Fields))
	require.False(t, IsFreed(arr))
	require.False(t, IsFreed(class.Members))
	require.True(t, IsFreed(garbage))
	require.Equal(t, 1, h.Collections())
}

func TestCollectTracesClosures(t *testing.T) {
	h := NewHeap()
	r := &roots{}
	h.AddRoots(r)

	fn := h.NewFunction()
	r.values = append(r.values, Obj(fn))
	fn.Name = h.Intern("counter")
	fn.UpvalueCount = 1
	fn.Chunk.AddConstant(Obj(h.NewArray(nil)))
	closure := h.NewClosure(fn)
	r.values = []Value{Obj(closure)}
	uv := h.NewUpvalue(0)
	closure.Upvalues[0] = uv
	held := h.NewArray(nil)
	uv.Close(Obj(held))

	h.Collect()
	require.False(t, IsFreed(fn))
	require.False(t, IsFreed(uv))
	require.False(t, IsFreed(held))
	require.False(t, IsFreed(fn.Chunk.Constants[0].AsObject()))
}

func TestExemptSurvivesCollection(t *testing.T) {
	h := NewHeap()
	arr := h.NewArray(nil)
	h.Exempt(Obj(arr))
	inner := h.NewMap()
	h.Append(arr, Obj(inner))

	h.Collect()
	require.False(t, IsFreed(arr))
	require.False(t, IsFreed(inner))
	require.True(t, IsExempt(arr))

	h.Unexempt()
	require.False(t, IsExempt(arr))
	h.Collect()
	require.True(t, IsFreed(arr))
	require.True(t, IsFreed(inner))
}

func TestExemptIsNested(t *testing.T) {
	h := NewHeap()
	a := h.NewArray(nil)
	b := h.NewArray(nil)
	h.Exempt(Obj(a))
	h.Exempt(Obj(b))
	require.Equal(t, 2, h.ExemptDepth())
	require.Same(t, b, h.ExemptPeek(0).AsObject())
	require.Same(t, a, h.ExemptPeek(1).AsObject())
	h.Unexempt()
	require.False(t, IsExempt(b))
	require.True(t, IsExempt(a))
	h.Unexempt()
	require.Panics(t, func() { h.Unexempt() })
}

func TestExemptOverflowPanics(t *testing.T) {
	h := NewHeap()
	for i := 0; i < ExemptMax; i++ {
		h.Exempt(None)
	}
	require.Panics(t, func() { h.Exempt(None) })
}

func TestThresholdAdapts(t *testing.T) {
	h := NewHeap(WithThreshold(4096), WithGrowFactor(3))
	r := &roots{}
	h.AddRoots(r)
	require.Equal(t, 4096, h.NextCollection())

	keep := h.NewArray(nil)
	r.values = append(r.values, Obj(keep))
	for i := 0; i < 200; i++ {
		h.Append(keep, Number(float64(i)))
	}
	require.GreaterOrEqual(t, h.Collections(), 1)
	require.GreaterOrEqual(t, h.NextCollection(), 4096)
	require.False(t, IsFreed(keep))
	require.Len(t, keep.Values, 200)
}

func TestStressCollectsOnEveryAllocation(t *testing.T) {
	h := NewHeap(WithStress())
	before := h.Collections()
	h.NewArray(nil)
	h.NewArray(nil)
	require.Equal(t, before+2, h.Collections())
}

func TestStressHeapConstruction(t *testing.T) {
	for _, opts := range [][]HeapOption{
		{WithStress()},
		{WithThreshold(1)},
		{WithStress(), WithWeakStrings()},
	} {
		var h *Heap
		require.NotPanics(t, func() { h = NewHeap(opts...) })
		h.Collect()
		name, ok := h.Lookup(FreeName)
		require.True(t, ok)
		require.False(t, IsFreed(name))
		h.FreeAll()
	}
}

func TestStringsAreRootsByDefault(t *testing.T) {
	h := NewHeap()
	s := h.Intern("kept")
	h.Collect()
	require.False(t, IsFreed(s))
	require.Same(t, s, h.Intern("kept"))
}

func TestWeakStrings(t *testing.T) {
	h := NewHeap(WithWeakStrings())
	s := h.Intern("dropped")
	h.Collect()
	require.True(t, IsFreed(s))
	_, ok := h.Lookup("dropped")
	require.False(t, ok)
	again := h.Intern("dropped")
	require.NotSame(t, s, again)
}

func TestFinalizerRunsForUnreachableInstances(t *testing.T) {
	h := NewHeap()
	r := &roots{}
	h.AddRoots(r)

	var finalized []*Instance
	h.SetFinalizer(func(inst *Instance, method Value) {
		finalized = append(finalized, inst)
	})

	class := h.NewClass(h.Intern("Resource"))
	r.values = append(r.values, Obj(class))
	h.MapSet(class.Members, h.Intern(FreeName), True)

	h.NewInstance(class)
	kept := h.NewInstance(class)
	r.values = append(r.values, Obj(kept))

	h.Collect()
	require.Len(t, finalized, 1)
	require.NotSame(t, kept, finalized[0])
	require.True(t, IsFreed(finalized[0]))

	h.Collect()
	require.Len(t, finalized, 1)
}

func TestFreeAllReleasesEverything(t *testing.T) {
	h := NewHeap()
	r := &roots{}
	h.AddRoots(r)
	m := h.NewModule("core")
	r.values = append(r.values, Obj(m))
	h.Register(m, []NativeEntry{{Name: "noop", Fn: func(rt Runtime, args []Value) Value { return None }}})
	arr := h.NewArray([]Value{h.NewString("x")})
	r.values = append(r.values, Obj(arr))
	h.Exempt(Obj(h.NewMap()))

	require.Greater(t, h.Allocated(), 0)
	h.FreeAll()
	require.Equal(t, 0, h.Allocated())
	require.Equal(t, 0, h.ObjectCount())
	require.True(t, IsFreed(m))
}

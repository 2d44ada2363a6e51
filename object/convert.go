package object

import (
	"errors"
	"fmt"
)

var errTooDeep = errors.New("object: go value nested too deeply")

// canPinContainer reports whether the exempt stack has room for a container
// under construction plus the key and value being inserted into it.
func (h *Heap) canPinContainer() bool {
	return len(h.exempt)+3 <= ExemptMax
}

// FromGo converts a Go value to a Value allocated on h. Supported inputs
// are nil, bool, the integer and float kinds, string, []any,
// map[string]any, NativeFn and Value itself. Containers nested too deeply
// to keep pinned while they are built are rejected with an error.
func (h *Heap) FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return None, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint8:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case float32:
		return Number(float64(v)), nil
	case float64:
		return Number(v), nil
	case string:
		return h.NewString(v), nil
	case NativeFn:
		return Obj(h.NewNative("native", v, nil)), nil
	case func(Runtime, []Value) Value:
		return Obj(h.NewNative("native", v, nil)), nil
	case []any:
		if !h.canPinContainer() {
			return None, errTooDeep
		}
		arr := h.NewArray(nil)
		h.Exempt(Obj(arr))
		defer h.Unexempt()
		for _, item := range v {
			value, err := h.FromGo(item)
			if err != nil {
				return None, err
			}
			h.Exempt(value)
			h.Append(arr, value)
			h.Unexempt()
		}
		return Obj(arr), nil
	case map[string]any:
		if !h.canPinContainer() {
			return None, errTooDeep
		}
		m := h.NewMap()
		h.Exempt(Obj(m))
		defer h.Unexempt()
		for key, item := range v {
			value, err := h.FromGo(item)
			if err != nil {
				return None, err
			}
			h.Exempt(value)
			k := h.Intern(key)
			h.Exempt(Obj(k))
			h.MapSet(m, k, value)
			h.Unexempt()
			h.Unexempt()
		}
		return Obj(m), nil
	}
	return None, fmt.Errorf("object: unsupported go type %T", v)
}

// ToGo converts a Value to a plain Go value: nil, bool, float64, string,
// []any or map[string]any. Other objects are returned as is.
func ToGo(v Value) any {
	switch v.kind {
	case KindNone:
		return nil
	case KindBool:
		return v.AsBool()
	case KindNumber:
		return v.num
	}
	return objectToGo(v.obj, 0)
}

func objectToGo(o Object, depth int) any {
	if depth > maxReprDepth {
		return nil
	}
	switch obj := o.(type) {
	case *String:
		return obj.Chars
	case *Array:
		items := make([]any, len(obj.Values))
		for i, item := range obj.Values {
			if item.kind == KindObject {
				items[i] = objectToGo(item.obj, depth+1)
			} else {
				items[i] = ToGo(item)
			}
		}
		return items
	case *Map:
		result := make(map[string]any, obj.Len())
		obj.Each(func(key *String, value Value) bool {
			if value.kind == KindObject {
				result[key.Chars] = objectToGo(value.obj, depth+1)
			} else {
				result[key.Chars] = ToGo(value)
			}
			return true
		})
		return result
	}
	return o
}

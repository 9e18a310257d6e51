// Package nodetree defines the uniform parsed-node representation
// (spec.md §4.7's NodeTree) that both the binary and ASCII FBX tokenizers
// produce and every downstream reader (property, element, connection)
// consumes.
package nodetree

import "github.com/oxyfbx/oxyfbx/internal/strpool"

// ValueType tags a single value slot inside a Node.
type ValueType int

const (
	ValInt16 ValueType = iota
	ValBool
	ValInt32
	ValInt64
	ValFloat32
	ValFloat64
	ValString
	ValRaw
	ValArrayInt32
	ValArrayInt64
	ValArrayFloat32
	ValArrayFloat64
	ValArrayBool
)

// Value is one typed value in a Node's value list (FBX node "properties",
// not to be confused with object Properties70 — the naming here follows
// spec.md's "typed values" language to avoid that collision).
type Value struct {
	Type ValueType

	Int64  int64
	Float  float64
	Str    strpool.Handle
	Raw    []byte
	ArrI32 []int32
	ArrI64 []int64
	ArrF32 []float32
	ArrF64 []float64
	ArrB   []bool
}

// AsInt returns the value coerced to int64 for any scalar numeric type.
func (v Value) AsInt() int64 {
	switch v.Type {
	case ValFloat32, ValFloat64:
		return int64(v.Float)
	default:
		return v.Int64
	}
}

// AsFloat returns the value coerced to float64 for any scalar numeric type.
func (v Value) AsFloat() float64 {
	switch v.Type {
	case ValFloat32, ValFloat64:
		return v.Float
	default:
		return float64(v.Int64)
	}
}

// Node is one parsed FBX node: a name, a flat value list, and children.
type Node struct {
	Name     strpool.Handle
	NameStr  string // resolved for convenience; always set
	Values   []Value
	Children []*Node
}

// Find returns the first child named name, or nil.
func (n *Node) Find(name string) *Node {
	for _, c := range n.Children {
		if c.NameStr == name {
			return c
		}
	}
	return nil
}

// FindAll returns every child named name.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.NameStr == name {
			out = append(out, c)
		}
	}
	return out
}

// ValAt returns the value at index i, or a zero Value if out of range.
func (n *Node) ValAt(i int) Value {
	if i < 0 || i >= len(n.Values) {
		return Value{}
	}
	return n.Values[i]
}

// Int64At returns n.Values[i] coerced to int64, or def if absent.
func (n *Node) Int64At(i int, def int64) int64 {
	if i < 0 || i >= len(n.Values) {
		return def
	}
	return n.Values[i].AsInt()
}

// FloatAt returns n.Values[i] coerced to float64, or def if absent.
func (n *Node) FloatAt(i int, def float64) float64 {
	if i < 0 || i >= len(n.Values) {
		return def
	}
	return n.Values[i].AsFloat()
}

// StringAt resolves n.Values[i] as a string using pool, or "" if absent or
// not a string value.
func (n *Node) StringAt(i int, pool *strpool.Pool) string {
	if i < 0 || i >= len(n.Values) {
		return ""
	}
	v := n.Values[i]
	if v.Type != ValString {
		return ""
	}
	return pool.String(v.Str)
}

// FindArrayFloat64 returns the first array-typed value of the named child,
// normalized to float64 (coercing int/float arrays), or nil.
func (n *Node) FindArrayFloat64(name string) []float64 {
	c := n.Find(name)
	if c == nil || len(c.Values) == 0 {
		return nil
	}
	v := c.Values[0]
	switch v.Type {
	case ValArrayFloat64:
		return v.ArrF64
	case ValArrayFloat32:
		out := make([]float64, len(v.ArrF32))
		for i, f := range v.ArrF32 {
			out[i] = float64(f)
		}
		return out
	case ValArrayInt32:
		out := make([]float64, len(v.ArrI32))
		for i, x := range v.ArrI32 {
			out[i] = float64(x)
		}
		return out
	case ValArrayInt64:
		out := make([]float64, len(v.ArrI64))
		for i, x := range v.ArrI64 {
			out[i] = float64(x)
		}
		return out
	}
	return nil
}

// ArrayFloat64Self normalizes n's own first value to float64, or nil if n
// has no values or its first value isn't numeric/array-typed.
func (n *Node) ArrayFloat64Self() []float64 {
	if len(n.Values) == 0 {
		return nil
	}
	v := n.Values[0]
	switch v.Type {
	case ValArrayFloat64:
		return v.ArrF64
	case ValArrayFloat32:
		out := make([]float64, len(v.ArrF32))
		for i, f := range v.ArrF32 {
			out[i] = float64(f)
		}
		return out
	case ValArrayInt32:
		out := make([]float64, len(v.ArrI32))
		for i, x := range v.ArrI32 {
			out[i] = float64(x)
		}
		return out
	case ValArrayInt64:
		out := make([]float64, len(v.ArrI64))
		for i, x := range v.ArrI64 {
			out[i] = float64(x)
		}
		return out
	}
	return nil
}

// ArrayInt32Self normalizes n's own first value to int32, or nil.
func (n *Node) ArrayInt32Self() []int32 {
	if len(n.Values) == 0 {
		return nil
	}
	v := n.Values[0]
	switch v.Type {
	case ValArrayInt32:
		return v.ArrI32
	case ValArrayInt64:
		out := make([]int32, len(v.ArrI64))
		for i, x := range v.ArrI64 {
			out[i] = int32(x)
		}
		return out
	}
	return nil
}

// FindArrayInt32 returns the first array-typed value of the named child,
// normalized to int32, or nil.
func (n *Node) FindArrayInt32(name string) []int32 {
	c := n.Find(name)
	if c == nil || len(c.Values) == 0 {
		return nil
	}
	v := c.Values[0]
	switch v.Type {
	case ValArrayInt32:
		return v.ArrI32
	case ValArrayInt64:
		out := make([]int32, len(v.ArrI64))
		for i, x := range v.ArrI64 {
			out[i] = int32(x)
		}
		return out
	}
	return nil
}

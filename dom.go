package oxyfbx

import (
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// DomValue is one value slot of a retained DOM node, normalized to the
// widest representable form for each FBX value kind.
type DomValue struct {
	IsArray bool
	Int     int64
	Float   float64
	Str     string
	ArrI64  []int64
	ArrF64  []float64
}

// DomNode is a retained parse-tree node, populated only when a load is
// run WithRetainDOM(true).
type DomNode struct {
	Name     string
	Values   []DomValue
	Children []*DomNode
}

func buildDomTree(n *nodetree.Node, pool *strpool.Pool) *DomNode {
	d := &DomNode{Name: n.NameStr}
	for _, v := range n.Values {
		d.Values = append(d.Values, domValueFrom(v, pool))
	}
	for _, c := range n.Children {
		d.Children = append(d.Children, buildDomTree(c, pool))
	}
	return d
}

func domValueFrom(v nodetree.Value, pool *strpool.Pool) DomValue {
	switch v.Type {
	case nodetree.ValArrayFloat64:
		return DomValue{IsArray: true, ArrF64: v.ArrF64}
	case nodetree.ValArrayInt64:
		return DomValue{IsArray: true, ArrI64: v.ArrI64}
	case nodetree.ValArrayInt32:
		out := make([]int64, len(v.ArrI32))
		for i, x := range v.ArrI32 {
			out[i] = int64(x)
		}
		return DomValue{IsArray: true, ArrI64: out}
	case nodetree.ValArrayFloat32:
		out := make([]float64, len(v.ArrF32))
		for i, x := range v.ArrF32 {
			out[i] = float64(x)
		}
		return DomValue{IsArray: true, ArrF64: out}
	case nodetree.ValString:
		return DomValue{Str: pool.String(v.Str)}
	default:
		return DomValue{Int: v.AsInt(), Float: v.AsFloat()}
	}
}

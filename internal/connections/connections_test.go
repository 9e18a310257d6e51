package connections

import (
	"testing"

	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func TestReadAndSort(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	intern := func(s string) strpool.Handle {
		h, _ := pool.Intern([]byte(s), true)
		return h
	}
	mk := func(kind string, src, dst int64) *nodetree.Node {
		return &nodetree.Node{NameStr: "C", Values: []nodetree.Value{
			{Type: nodetree.ValString, Str: intern(kind)},
			{Type: nodetree.ValInt64, Int64: src},
			{Type: nodetree.ValInt64, Int64: dst},
		}}
	}
	root := &nodetree.Node{NameStr: "Connections", Children: []*nodetree.Node{
		mk("OO", 3, 1),
		mk("OO", 2, 1),
		mk("OO", 2, 1), // exact duplicate
	}}

	exists := map[int64]bool{1: true, 2: true, 3: true}
	g, warnings, err := Read(root, pool, func(id int64) bool { return exists[id] }, PolicyDrop)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(g.BySrc) != 2 {
		t.Fatalf("expected dedupe to drop the repeated connection, got %d", len(g.BySrc))
	}
	if g.BySrc[0].SrcID != 2 || g.BySrc[1].SrcID != 3 {
		t.Fatalf("BySrc not sorted: %#v", g.BySrc)
	}
	if g.ByDst[0].DstID != 1 {
		t.Fatalf("ByDst not sorted: %#v", g.ByDst)
	}
}

func TestUnresolvedIDRedirectsToRoot(t *testing.T) {
	pool := strpool.New(strpool.Replace)
	intern := func(s string) strpool.Handle {
		h, _ := pool.Intern([]byte(s), true)
		return h
	}
	root := &nodetree.Node{NameStr: "Connections", Children: []*nodetree.Node{
		{NameStr: "C", Values: []nodetree.Value{
			{Type: nodetree.ValString, Str: intern("OO")},
			{Type: nodetree.ValInt64, Int64: 99},
			{Type: nodetree.ValInt64, Int64: 1},
		}},
	}}
	exists := map[int64]bool{1: true}
	g, warnings, err := Read(root, pool, func(id int64) bool { return exists[id] }, PolicyConnectToRoot)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one BAD_ELEMENT_CONNECTED_TO_ROOT warning, got %v", warnings)
	}
	if g.BySrc[0].SrcID != 0 {
		t.Fatalf("expected unresolved src redirected to root, got %d", g.BySrc[0].SrcID)
	}
}

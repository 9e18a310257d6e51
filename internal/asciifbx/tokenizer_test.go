package asciifbx

import (
	"testing"

	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

func TestParseAllBasicScope(t *testing.T) {
	src := `FBXHeaderExtension:  {
	FBXHeaderVersion: 1003
	Creator: "test &amp; co"
	Child: 1, 2.5, "hi"
}
`
	pool := strpool.New(strpool.Replace)
	tok := New([]byte(src), pool, Options{})
	nodes, err := tok.ParseAll()
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	if len(nodes) != 1 || nodes[0].NameStr != "FBXHeaderExtension" {
		t.Fatalf("unexpected top level: %#v", nodes)
	}
	ver := nodes[0].Find("FBXHeaderVersion")
	if ver == nil || ver.ValAt(0).AsInt() != 1003 {
		t.Fatalf("unexpected FBXHeaderVersion: %#v", ver)
	}
	creator := nodes[0].Find("Creator")
	if creator == nil || pool.String(creator.ValAt(0).Str) != "test & co" {
		t.Fatalf("escape not decoded: %#v", creator)
	}
	child := nodes[0].Find("Child")
	if child == nil || len(child.Values) != 3 {
		t.Fatalf("unexpected Child values: %#v", child)
	}
}

func TestParseArrayLiteral(t *testing.T) {
	src := `Vertices: *6 {
	a: 1,2,3,4,5,6
}
`
	pool := strpool.New(strpool.Replace)
	tok := New([]byte(src), pool, Options{})
	nodes, err := tok.ParseAll()
	if err != nil {
		t.Fatalf("ParseAll: %v", err)
	}
	arr := nodes[0].Values[0]
	if len(arr.ArrI64) != 6 {
		t.Fatalf("unexpected array contents: %#v", arr)
	}
	for i, want := range []int64{1, 2, 3, 4, 5, 6} {
		if arr.ArrI64[i] != want {
			t.Fatalf("index %d: got %d want %d", i, arr.ArrI64[i], want)
		}
	}
}

func TestDeclaredArraySizeMismatch(t *testing.T) {
	src := `Vertices: *3 {
	a: 1,2
}
`
	pool := strpool.New(strpool.Replace)
	tok := New([]byte(src), pool, Options{})
	if _, err := tok.ParseAll(); err == nil {
		t.Fatal("expected a declared-size mismatch error")
	}
}

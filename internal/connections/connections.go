// Package connections resolves the FBX "Connections" block (or synthesizes
// equivalent edges from pre-7000 parent/child nesting) into a deduplicated,
// doubly-sorted edge list (spec.md §4.11).
package connections

import (
	"sort"

	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// Policy controls how an unresolved connection endpoint (an id that does
// not match any parsed element) is handled.
type Policy int

const (
	// PolicyDrop discards connections naming an unresolved id.
	PolicyDrop Policy = iota
	// PolicyConnectToRoot redirects the unresolved endpoint to the root
	// element (id 0) instead of dropping the connection.
	PolicyConnectToRoot
)

// Connection is one directed, optionally property-tagged edge.
type Connection struct {
	SrcID   int64
	DstID   int64
	SrcProp string // "" when unset
	DstProp string // "" when unset
}

// Graph holds the fully resolved, deduplicated, doubly-sorted connection
// set plus per-element adjacency views.
type Graph struct {
	BySrc []Connection // sorted by (SrcID, DstID)
	ByDst []Connection // sorted by (DstID, SrcID)
}

// Read parses a "Connections" node (7000+ form: each child is
// `C: "OO"|"OP", srcID, dstID[, propName]`). idExists reports whether an id
// was actually produced by the element reader, used to detect
// BAD_ELEMENT_CONNECTED_TO_ROOT.
func Read(connectionsNode *nodetree.Node, pool *strpool.Pool, idExists func(int64) bool, policy Policy) (*Graph, []string, *errs.Error) {
	var warnings []string
	var conns []Connection

	for _, c := range connectionsNode.FindAll("C") {
		if len(c.Values) < 3 {
			continue
		}
		srcID := c.ValAt(1).AsInt()
		dstID := c.ValAt(2).AsInt()
		srcProp, dstProp := "", ""
		kind := c.StringAt(0, pool)
		if kind == "OP" || kind == "PO" {
			if len(c.Values) >= 4 {
				dstProp = c.StringAt(3, pool)
			}
		}

		srcOK := idExists(srcID)
		dstOK := idExists(dstID)
		if !srcOK || !dstOK {
			warnings = append(warnings, "BAD_ELEMENT_CONNECTED_TO_ROOT")
			if policy == PolicyDrop {
				continue
			}
			if !srcOK {
				srcID = 0
			}
			if !dstOK {
				dstID = 0
			}
		}

		conns = append(conns, Connection{SrcID: srcID, DstID: dstID, SrcProp: srcProp, DstProp: dstProp})
	}

	return build(conns), warnings, nil
}

// SynthesizeFromNesting builds the implicit connection set a pre-7000 file
// carries via parent/child NodeTree nesting rather than an explicit
// Connections block: each child Model/NodeAttribute under a parent Model
// becomes an "OO" connection (child -> parent), matching 7000+'s direction
// convention (source is the child, destination is the parent it's
// connected to).
func SynthesizeFromNesting(pairs [][2]int64) *Graph {
	conns := make([]Connection, 0, len(pairs))
	for _, p := range pairs {
		conns = append(conns, Connection{SrcID: p[0], DstID: p[1]})
	}
	return build(conns)
}

func build(conns []Connection) *Graph {
	dedup := dedupe(conns)

	bySrc := append([]Connection(nil), dedup...)
	sort.Slice(bySrc, func(i, j int) bool {
		if bySrc[i].SrcID != bySrc[j].SrcID {
			return bySrc[i].SrcID < bySrc[j].SrcID
		}
		return bySrc[i].DstID < bySrc[j].DstID
	})

	byDst := append([]Connection(nil), dedup...)
	sort.Slice(byDst, func(i, j int) bool {
		if byDst[i].DstID != byDst[j].DstID {
			return byDst[i].DstID < byDst[j].DstID
		}
		return byDst[i].SrcID < byDst[j].SrcID
	})

	return &Graph{BySrc: bySrc, ByDst: byDst}
}

func dedupe(conns []Connection) []Connection {
	seen := make(map[Connection]bool, len(conns))
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SrcRange returns the slice of g.BySrc whose SrcID == id (a binary-search
// window over the (SrcID,DstID)-sorted list).
func (g *Graph) SrcRange(id int64) []Connection {
	lo := sort.Search(len(g.BySrc), func(i int) bool { return g.BySrc[i].SrcID >= id })
	hi := sort.Search(len(g.BySrc), func(i int) bool { return g.BySrc[i].SrcID > id })
	return g.BySrc[lo:hi]
}

// DstRange returns the slice of g.ByDst whose DstID == id.
func (g *Graph) DstRange(id int64) []Connection {
	lo := sort.Search(len(g.ByDst), func(i int) bool { return g.ByDst[i].DstID >= id })
	hi := sort.Search(len(g.ByDst), func(i int) bool { return g.ByDst[i].DstID > id })
	return g.ByDst[lo:hi]
}

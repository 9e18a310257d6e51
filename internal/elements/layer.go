package elements

// ExpandedTable is a LayerAttribute resolved against the mesh's polygon
// structure: a per-polygon-vertex-index table ready for the finalizer to
// fold into mesh.num_indices-length arrays.
type ExpandedTable struct {
	Indices []int32 // length == number of polygon-vertex slots
}

// Expand resolves attr for every polygon-vertex slot of polyVertToVertex
// (which maps each slot to its position index), applying policy to any
// out-of-range index and collapsing a 1:1 ByVertex index table to a shared
// reference to the position layer's own indexing (spec.md §4.10's "memory
// saver" optimization — represented here simply as MappingByVertex direct
// pass-through, since this package doesn't own the position index table).
func Expand(attr *LayerAttribute, polyVertToVertex []int32, numPolys int, policy IndexPolicy) ([]int32, []Warning) {
	var warnings []Warning
	n := len(polyVertToVertex)
	out := make([]int32, n)

	valueCount := len(attr.Values) / maxInt(attr.TupleSize, 1)

	resolveDirect := func(i int) int32 {
		switch attr.Mapping {
		case MappingByVertex:
			v := polyVertToVertex[i]
			return clampOrSentinel(v, valueCount, policy, &warnings)
		case MappingByPolygonVertex:
			return clampOrSentinel(int32(i), valueCount, policy, &warnings)
		case MappingAllSame:
			if valueCount == 0 {
				return NoIndex
			}
			return 0
		default:
			return clampOrSentinel(int32(i), valueCount, policy, &warnings)
		}
	}

	if attr.Reference == ReferenceDirect {
		for i := range out {
			out[i] = resolveDirect(i)
		}
		return out, warnings
	}

	// IndexToDirect: attr.Indices is itself indexed the same way Mapping
	// describes, then that index is looked up in attr.Indices to find the
	// real slot in attr.Values.
	for i := range out {
		var slot int32
		switch attr.Mapping {
		case MappingByVertex:
			slot = polyVertToVertex[i]
		case MappingAllSame:
			slot = 0
		default:
			slot = int32(i)
		}
		if slot < 0 || int(slot) >= len(attr.Indices) {
			out[i] = truncatedFill(policy, &warnings)
			if valueCount > 0 {
				out[i] = 0 // zero-fill the missing tail when there is a value to point at
			}
			continue
		}
		raw := attr.Indices[slot]
		out[i] = clampOrSentinel(raw, valueCount, policy, &warnings)
	}
	return out, warnings
}

func clampOrSentinel(idx int32, count int, policy IndexPolicy, warnings *[]Warning) int32 {
	if count == 0 {
		return NoIndex
	}
	if idx >= 0 && int(idx) < count {
		return idx
	}
	switch policy {
	case IndexClamp:
		*warnings = append(*warnings, Warning{Desc: "layer element index clamped"})
		if idx < 0 {
			return 0
		}
		return int32(count - 1)
	case IndexNoIndex:
		return NoIndex
	default:
		*warnings = append(*warnings, Warning{Desc: "layer element index out of range"})
		return NoIndex
	}
}

func truncatedFill(policy IndexPolicy, warnings *[]Warning) int32 {
	*warnings = append(*warnings, Warning{Desc: "truncated layer element array, zero-filled"})
	return NoIndex
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package proptemplate reads FBX Properties60/Properties70 blocks into
// sorted, deduplicated property sets and resolves per-(type,sub_type)
// template defaults (spec.md §4.9).
//
// Grounded on the teacher's sorted/deduplicated-table shape found in
// internal/container's chunk index (a flat slice kept sorted for lookup)
// generalized here to sort-by-name with last-value-wins collapsing, since
// FBX property blocks are small enough that no separate index structure is
// needed beyond a sorted slice and binary search.
package proptemplate

import (
	"sort"

	"github.com/oxyfbx/oxyfbx/internal/errs"
	"github.com/oxyfbx/oxyfbx/internal/nodetree"
	"github.com/oxyfbx/oxyfbx/internal/strpool"
)

// Type is the internal property type set FBX's many historical type
// strings ("KString", "enum", "Color", "ColorRGB", "Vector3D", "Lcl
// Translation", ...) collapse to.
type Type int

const (
	TypeUnknown Type = iota
	TypeBool
	TypeInt
	TypeNumber
	TypeVector3
	TypeColor
	TypeString
	TypeDateTime
	TypeBlob
	TypeCompound
)

// Flags mirrors the per-property flag bits FBX encodes in Properties70's
// flags column.
type Flags uint8

const (
	FlagAnimatable Flags = 1 << iota
	FlagUser
	FlagHidden
	FlagLocked
	FlagMuted
	FlagOverride // value differs from its template default
)

// Property is one resolved (name, type, flags, value) entry.
type Property struct {
	Name    strpool.Handle
	NameStr string
	Type    Type
	TypeStr string // original FBX type string, kept for round-tripping unknown types
	Flags   Flags

	Int     int64
	Real    [4]float64
	Str     string
	Blob    []byte
}

// Set is a property set sorted by NameStr with no duplicate names, optionally
// chaining to a Template's defaults for names not present locally.
type Set struct {
	Props    []Property
	Defaults *Template
}

// Find looks up name, first in the local sorted slice then in Defaults.
func (s *Set) Find(name string) (*Property, bool) {
	i := sort.Search(len(s.Props), func(i int) bool { return s.Props[i].NameStr >= name })
	if i < len(s.Props) && s.Props[i].NameStr == name {
		return &s.Props[i], true
	}
	if s.Defaults != nil {
		return s.Defaults.Props.Find(name)
	}
	return nil, false
}

// Template is the default property set for all elements of a given
// (type, sub_type). Templates never chain to other templates, which makes
// acyclicity structural rather than something that must be checked.
type Template struct {
	Type    string
	SubType string
	Props   Set
}

// mapTypeString maps an FBX type string to the internal Type enum. Unknown
// strings map to TypeCompound, whose values are read numerically (Real/Int);
// a string value under an unknown type string is not kept in Str.
func mapTypeString(s string) Type {
	switch s {
	case "bool", "Bool":
		return TypeBool
	case "int", "Integer", "enum", "Enum":
		return TypeInt
	case "double", "Number", "Float", "Real":
		return TypeNumber
	case "Vector", "Vector3D", "Lcl Translation", "Lcl Rotation", "Lcl Scaling", "Vector3":
		return TypeVector3
	case "Color", "ColorRGB", "ColorAndAlpha":
		return TypeColor
	case "KString", "KString;Texture::Compound", "object", "Object", "URL":
		return TypeString
	case "KTime", "DateTime", "Date", "Time":
		return TypeDateTime
	case "Blob", "Binary":
		return TypeBlob
	case "Compound":
		return TypeCompound
	default:
		return TypeCompound
	}
}

func parseFlags(s string) Flags {
	var f Flags
	for _, c := range s {
		switch c {
		case 'A':
			f |= FlagAnimatable
		case 'U':
			f |= FlagUser
		case 'H':
			f |= FlagHidden
		case 'L':
			f |= FlagLocked
		case 'M':
			f |= FlagMuted
		case 'O':
			f |= FlagOverride
		}
	}
	return f
}

// ReadProperties70 reads a "Properties70" child of propsNode, where each
// entry is `P: name, type, subtype, flags, value...` (spec.md §4.9).
func ReadProperties70(propsNode *nodetree.Node, pool *strpool.Pool) (Set, *errs.Error) {
	var props []Property
	for _, p := range propsNode.FindAll("P") {
		if len(p.Values) < 4 {
			continue // malformed entry, tolerated and skipped
		}
		name := p.StringAt(0, pool)
		typeStr := p.StringAt(1, pool)
		flagsStr := p.StringAt(3, pool)

		prop := Property{
			NameStr: name,
			TypeStr: typeStr,
			Type:    mapTypeString(typeStr),
			Flags:   parseFlags(flagsStr),
		}
		h, ierr := pool.Intern([]byte(name), true)
		if ierr != nil {
			return Set{}, ierr
		}
		prop.Name = h

		values := p.Values[4:]
		switch prop.Type {
		case TypeString:
			prop.Str = stringOrFirst(values, pool)
		case TypeBlob:
			prop.Blob = rawOrNil(values)
		default:
			for i := 0; i < 4 && i < len(values); i++ {
				prop.Real[i] = values[i].AsFloat()
			}
			if len(values) > 0 {
				prop.Int = values[0].AsInt()
			}
		}
		props = append(props, prop)
	}
	return sortAndDedupe(props), nil
}

// ReadProperties60 reads a "Properties60" child, where each entry is
// `Property: name, type, value...` (pre-7000 form, no subtype/flags columns).
func ReadProperties60(propsNode *nodetree.Node, pool *strpool.Pool) (Set, *errs.Error) {
	var props []Property
	for _, p := range propsNode.FindAll("Property") {
		if len(p.Values) < 2 {
			continue
		}
		name := p.StringAt(0, pool)
		typeStr := p.StringAt(1, pool)
		prop := Property{
			NameStr: name,
			TypeStr: typeStr,
			Type:    mapTypeString(typeStr),
		}
		h, ierr := pool.Intern([]byte(name), true)
		if ierr != nil {
			return Set{}, ierr
		}
		prop.Name = h

		values := p.Values[2:]
		switch prop.Type {
		case TypeString:
			prop.Str = stringOrFirst(values, pool)
		case TypeBlob:
			prop.Blob = rawOrNil(values)
		default:
			for i := 0; i < 4 && i < len(values); i++ {
				prop.Real[i] = values[i].AsFloat()
			}
			if len(values) > 0 {
				prop.Int = values[0].AsInt()
			}
		}
		props = append(props, prop)
	}
	return sortAndDedupe(props), nil
}

func stringOrFirst(values []nodetree.Value, pool *strpool.Pool) string {
	if len(values) == 0 {
		return ""
	}
	if values[0].Type == nodetree.ValString {
		return pool.String(values[0].Str)
	}
	return ""
}

func rawOrNil(values []nodetree.Value) []byte {
	if len(values) == 0 {
		return nil
	}
	if values[0].Type == nodetree.ValRaw {
		return values[0].Raw
	}
	return nil
}

// sortAndDedupe sorts props by NameStr and collapses duplicate names,
// last-value-wins, per spec.md §4.9.
func sortAndDedupe(props []Property) Set {
	sort.SliceStable(props, func(i, j int) bool { return props[i].NameStr < props[j].NameStr })
	out := props[:0]
	for i, p := range props {
		if i > 0 && p.NameStr == out[len(out)-1].NameStr {
			out[len(out)-1] = p // last value wins
			continue
		}
		out = append(out, p)
	}
	return Set{Props: out}
}

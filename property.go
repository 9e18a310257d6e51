package oxyfbx

import "github.com/oxyfbx/oxyfbx/internal/proptemplate"

// PropertyType mirrors internal/proptemplate.Type on the public surface.
type PropertyType int

const (
	PropBool PropertyType = iota
	PropInt
	PropNumber
	PropVector3
	PropColor
	PropString
	PropDateTime
	PropBlob
	PropCompound
)

// PropertyFlags mirrors internal/proptemplate.Flags.
type PropertyFlags uint8

const (
	FlagAnimatable PropertyFlags = 1 << iota
	FlagUser
	FlagHidden
	FlagLocked
	FlagMuted
	FlagOverride
)

// Property is one resolved element property.
type Property struct {
	Name  string
	Type  PropertyType
	Flags PropertyFlags
	Int   int64
	Real  [4]float64
	Str   string
	Blob  []byte
}

func fromInternalProperty(p proptemplate.Property) Property {
	return Property{
		Name:  p.NameStr,
		Type:  PropertyType(p.Type),
		Flags: PropertyFlags(p.Flags),
		Int:   p.Int,
		Real:  p.Real,
		Str:   p.Str,
		Blob:  p.Blob,
	}
}

// PropertySet is a sorted, deduplicated collection of an element's
// properties, with O(log n) lookup by name.
type PropertySet struct {
	set proptemplate.Set
}

// Find returns the named property and true, or the zero Property and
// false.
func (s PropertySet) Find(name string) (Property, bool) {
	p, ok := s.set.Find(name)
	if !ok {
		return Property{}, false
	}
	return fromInternalProperty(*p), true
}

// Number returns the named property's Real[0], or def if absent.
func (s PropertySet) Number(name string, def float64) float64 {
	if p, ok := s.Find(name); ok {
		return p.Real[0]
	}
	return def
}

// Vector3 returns the named property's first three Real components, or
// def if absent.
func (s PropertySet) Vector3(name string, def [3]float64) [3]float64 {
	if p, ok := s.Find(name); ok {
		return [3]float64{p.Real[0], p.Real[1], p.Real[2]}
	}
	return def
}

// String returns the named property's string value, or def if absent.
func (s PropertySet) String(name string, def string) string {
	if p, ok := s.Find(name); ok {
		return p.Str
	}
	return def
}

// All returns every property in sorted-by-name order.
func (s PropertySet) All() []Property {
	out := make([]Property, len(s.set.Props))
	for i, p := range s.set.Props {
		out[i] = fromInternalProperty(p)
	}
	return out
}

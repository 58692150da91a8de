package slot

import "strings"

// Attribute names read from an ad slot element.
const (
	AttrType           = "type"
	AttrSlotID         = "slot-id"
	AttrSizes          = "sizes"
	AttrSizeMapping    = "size-mapping"
	AttrMinXResolution = "min-x-resolution"
	AttrMaxXResolution = "max-x-resolution"
	AttrMinYResolution = "min-y-resolution"
	AttrMaxYResolution = "max-y-resolution"
	AttrPlacement      = "placement"
)

// Attr is an optional attribute value. Set distinguishes an empty attribute
// from an absent one.
type Attr struct {
	Value string
	Set   bool
}

// Present reports whether the attribute is set to a non-blank value.
func (a Attr) Present() bool {
	return a.Set && strings.TrimSpace(a.Value) != ""
}

// Declaration holds the raw attributes of one ad slot element.
type Declaration struct {
	Type           string
	SlotID         string
	Sizes          Attr
	SizeMapping    Attr
	MinXResolution Attr
	MaxXResolution Attr
	MinYResolution Attr
	MaxYResolution Attr
	// Placement names a stored preset used to fill absent attributes.
	Placement string
}

// AttrFunc looks up an attribute by name. goquery's Selection.Attr satisfies it.
type AttrFunc func(name string) (string, bool)

// DeclarationFrom reads a Declaration through get.
func DeclarationFrom(get AttrFunc) Declaration {
	opt := func(name string) Attr {
		v, ok := get(name)
		return Attr{Value: v, Set: ok}
	}
	str := func(name string) string {
		v, _ := get(name)
		return v
	}
	return Declaration{
		Type:           str(AttrType),
		SlotID:         str(AttrSlotID),
		Sizes:          opt(AttrSizes),
		SizeMapping:    opt(AttrSizeMapping),
		MinXResolution: opt(AttrMinXResolution),
		MaxXResolution: opt(AttrMaxXResolution),
		MinYResolution: opt(AttrMinYResolution),
		MaxYResolution: opt(AttrMaxYResolution),
		Placement:      str(AttrPlacement),
	}
}

// DeclarationFromMap reads a Declaration from an attribute map.
func DeclarationFromMap(attrs map[string]string) Declaration {
	return DeclarationFrom(func(name string) (string, bool) {
		v, ok := attrs[name]
		return v, ok
	})
}

package slot

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// ErrMalformedLiteral is returned when a sizes or size-mapping attribute is
// not a well-formed nested array literal.
var ErrMalformedLiteral = errors.New("malformed size literal")

// Size is a single [width, height] pair in pixels.
type Size struct {
	Width  int
	Height int
}

// MarshalJSON encodes the size the way GPT expects it: a two element array.
func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(s.literal()), nil
}

func (s Size) literal() string {
	return "[" + strconv.Itoa(s.Width) + "," + strconv.Itoa(s.Height) + "]"
}

// SizeList is an ordered list of ad sizes as passed to googletag.defineSlot.
type SizeList []Size

// String renders the list in its canonical attribute form, e.g.
// [[728,90],[300,250]]. An empty list renders as [].
func (l SizeList) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range l {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s.literal())
	}
	b.WriteByte(']')
	return b.String()
}

// Breakpoint maps a minimum viewport size to the sizes allowed above it.
type Breakpoint struct {
	Viewport Size
	Sizes    SizeList
}

// SizeMapping is a responsive breakpoint table.
type SizeMapping []Breakpoint

// Flatten concatenates the size lists of every breakpoint in mapping order.
// Duplicates are kept.
func (m SizeMapping) Flatten() SizeList {
	out := SizeList{}
	for _, bp := range m {
		out = append(out, bp.Sizes...)
	}
	return out
}

// Kind tags the outcome of parsing a declaration's size configuration.
type Kind int

const (
	KindMalformed Kind = iota
	KindSizeList
	KindSizeMapping
)

func (k Kind) String() string {
	switch k {
	case KindSizeList:
		return "sizes"
	case KindSizeMapping:
		return "size-mapping"
	default:
		return "malformed"
	}
}

// Parsed is the tagged result of ParseSizeConfig. Sizes is set for
// KindSizeList, Mapping for KindSizeMapping, neither for KindMalformed.
type Parsed struct {
	Kind    Kind
	Sizes   SizeList
	Mapping SizeMapping
}

// ParseSizeConfig resolves the sizes / size-mapping pair of a declaration.
// Exactly one of them must be present and well formed.
func ParseSizeConfig(sizes, mapping Attr) Parsed {
	switch {
	case sizes.Set && !mapping.Set:
		l, err := ParseSizes(sizes.Value)
		if err != nil {
			return Parsed{Kind: KindMalformed}
		}
		return Parsed{Kind: KindSizeList, Sizes: l}
	case mapping.Set && !sizes.Set:
		m, err := ParseSizeMapping(mapping.Value)
		if err != nil {
			return Parsed{Kind: KindMalformed}
		}
		return Parsed{Kind: KindSizeMapping, Mapping: m}
	default:
		return Parsed{Kind: KindMalformed}
	}
}

// ParseSizes parses a flat size list literal such as [[300,100],[728,90]].
func ParseSizes(raw string) (SizeList, error) {
	data, err := arrayLiteral(raw)
	if err != nil {
		return nil, err
	}
	return parseSizeList(data)
}

// ParseSizeMapping parses a breakpoint table literal such as
// [[[728,300],[[728,90]]],[[0,0],[[300,100]]]].
func ParseSizeMapping(raw string) (SizeMapping, error) {
	data, err := arrayLiteral(raw)
	if err != nil {
		return nil, err
	}

	m := SizeMapping{}
	err = eachElement(data, func(value []byte, typ jsonparser.ValueType) error {
		if typ != jsonparser.Array {
			return fmt.Errorf("%w: breakpoint is not an array", ErrMalformedLiteral)
		}
		var parts [][]byte
		if err := eachElement(value, func(v []byte, t jsonparser.ValueType) error {
			if t != jsonparser.Array {
				return fmt.Errorf("%w: breakpoint entry is not an array", ErrMalformedLiteral)
			}
			parts = append(parts, v)
			return nil
		}); err != nil {
			return err
		}
		if len(parts) != 2 {
			return fmt.Errorf("%w: breakpoint needs a viewport and a size list", ErrMalformedLiteral)
		}
		viewport, err := parseSize(parts[0], jsonparser.Array)
		if err != nil {
			return err
		}
		sizes, err := parseSizeList(parts[1])
		if err != nil {
			return err
		}
		m = append(m, Breakpoint{Viewport: viewport, Sizes: sizes})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseSizeList(data []byte) (SizeList, error) {
	l := SizeList{}
	err := eachElement(data, func(value []byte, typ jsonparser.ValueType) error {
		s, err := parseSize(value, typ)
		if err != nil {
			return err
		}
		l = append(l, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func parseSize(value []byte, typ jsonparser.ValueType) (Size, error) {
	if typ != jsonparser.Array {
		return Size{}, fmt.Errorf("%w: size is not an array", ErrMalformedLiteral)
	}
	var dims []int
	err := eachElement(value, func(v []byte, t jsonparser.ValueType) error {
		if t != jsonparser.Number {
			return fmt.Errorf("%w: dimension %q is not a number", ErrMalformedLiteral, v)
		}
		n, err := jsonparser.ParseInt(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: dimension %q is not a non-negative integer", ErrMalformedLiteral, v)
		}
		dims = append(dims, int(n))
		return nil
	})
	if err != nil {
		return Size{}, err
	}
	if len(dims) != 2 {
		return Size{}, fmt.Errorf("%w: size needs exactly two dimensions", ErrMalformedLiteral)
	}
	return Size{Width: dims[0], Height: dims[1]}, nil
}

// arrayLiteral checks that raw holds exactly one array value and returns it.
func arrayLiteral(raw string) ([]byte, error) {
	data := []byte(strings.TrimSpace(raw))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedLiteral)
	}
	value, typ, end, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLiteral, err)
	}
	if typ != jsonparser.Array {
		return nil, fmt.Errorf("%w: not an array", ErrMalformedLiteral)
	}
	if len(bytes.TrimSpace(data[end:])) > 0 {
		return nil, fmt.Errorf("%w: trailing characters", ErrMalformedLiteral)
	}
	return value, nil
}

// eachElement walks the elements of an array value, stopping at the first
// error returned by fn or by the parser.
func eachElement(data []byte, fn func([]byte, jsonparser.ValueType) error) error {
	inner := bytes.TrimSpace(data)
	if len(inner) >= 2 && len(bytes.TrimSpace(inner[1:len(inner)-1])) == 0 {
		return nil
	}

	var cbErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, typ jsonparser.ValueType, _ int, err error) {
		if cbErr != nil {
			return
		}
		if err != nil {
			cbErr = fmt.Errorf("%w: %v", ErrMalformedLiteral, err)
			return
		}
		cbErr = fn(value, typ)
	})
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedLiteral, err)
	}
	return nil
}

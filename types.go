package structpack

// Kind enumerates the primitive machine types. A Kind is itself a Type, and
// doubles as the declaration of an inline length prefix when used as a
// pack/unpack length source.
type Kind int

const (
	Int8 Kind = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	// Long and ULong follow the platform C long: 8 bytes with native
	// alignment under the "@" order, 4 bytes otherwise.
	Long
	ULong
	Float32
	Float64
	Bool
)

func (k Kind) isType() {}

func (k Kind) code() byte {
	switch k {
	case Int8:
		return 'b'
	case Uint8:
		return 'B'
	case Int16:
		return 'h'
	case Uint16:
		return 'H'
	case Int32:
		return 'i'
	case Uint32:
		return 'I'
	case Int64:
		return 'q'
	case Uint64:
		return 'Q'
	case Long:
		return 'l'
	case ULong:
		return 'L'
	case Float32:
		return 'f'
	case Float64:
		return 'd'
	case Bool:
		return '?'
	}
	return 0
}

// width is the standard-mode byte size, which is also the default alignment.
func (k Kind) width() int {
	switch k {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32, Long, ULong:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// align is the default alignment requirement. Long and ULong keep their
// native 8-byte alignment so layouts survive a switch to "@" order.
func (k Kind) align() int {
	if k == Long || k == ULong {
		return 8
	}
	return k.width()
}

func (k Kind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Long:
		return "long"
	case ULong:
		return "ulong"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	}
	return "invalid"
}

// Type is a declared field type. Implementations are the Kind constants and
// the composite descriptors below.
type Type interface{ isType() }

// Text declares a NUL-padded character string. Length is an int (fixed
// maximum), a dotted path string naming the field that carries the live
// length, or Inherit.
type Text struct{ Length any }

func (Text) isType() {}

// Binary declares a raw byte string. Length follows the same forms as Text.
type Binary struct{ Length any }

func (Binary) isType() {}

// Array declares a sequence of Elem values. Count is an int (fixed), a
// dotted path string naming the field that carries the live count, or nil
// when the count comes exclusively from pack/unpack length options.
type Array struct {
	Elem  Type
	Count any
}

func (Array) isType() {}

// Struct embeds another schema as a nested record.
type Struct struct{ Schema *Schema }

func (Struct) isType() {}

// Variant is one member of a union, in declaration order.
type Variant struct {
	Name string
	Type Type
}

// Union declares an overlay of the given members. Without a selector option
// the union is C-style: the payload is raw storage sized to the largest
// member. With a selector it is discriminated.
type Union struct{ Variants []Variant }

func (Union) isType() {}

// Enum declares a named integer. Elem is the carrier Kind and Values maps
// symbolic names to wire values.
type Enum struct {
	Elem   Kind
	Values map[string]int64
}

func (Enum) isType() {}

type inheritMarker struct{}

func (inheritMarker) isType() {}

// Inherit marks a length that must be copied from the same-named field of
// the base schema when the schema is built by extension.
var Inherit inheritMarker

// Options carries the per-field configuration knobs.
type Options struct {
	// Length overrides or supplies the declared length/count.
	Length any
	// PackLength names the length source used when packing: a dotted path
	// string, an int literal, or a Kind declaring an inline length prefix.
	PackLength any
	// UnpackLength names the length source used when unpacking, same forms
	// as PackLength. When it is a path, packing writes the actual length
	// back to that path.
	UnpackLength any
	// Align overrides the natural alignment requirement when positive.
	Align int
	// Default is used when packing and the field is absent from the value.
	Default any
	// Selector names the field(s) whose value discriminates a union:
	// a dotted path string, a []string, or a SelectorFunc.
	Selector any
	// SelectorMap maps member names to the selector value (or []any of
	// values, for multi-path selectors) that activates them.
	SelectorMap map[string]any
	// OmitEmpty drops an unresolved union from the format entirely instead
	// of emitting a zero-length placeholder.
	OmitEmpty bool
}

// SelectorFunc computes a selector value from the live Context.
type SelectorFunc func(*Context) (any, error)

// FieldDef pairs a field name with its declared type and options.
type FieldDef struct {
	Name    string
	Type    Type
	Options Options
}

package structpack

import "errors"

// Field is the immutable runtime form of one declared field. Fields never
// hold live data; everything data-dependent flows through the Context, so a
// single Field instance serves any number of concurrent operations.
//
// RegisterPack and RegisterUnpack append the field (and any pads or child
// fields) to the Context's pending pass, computing format fragments eagerly.
// PackValues and UnpackValue run later, when the pass is executed.
type Field interface {
	Name() string
	Align() int
	// StaticFormat is the data-independent fragment, "" when the field
	// contributes nothing until live data is known.
	StaticFormat() string
	RegisterPack(ctx *Context) error
	RegisterUnpack(ctx *Context) error
	PackValues(ctx *Context, value any) ([]any, error)
	UnpackValue(ctx *Context, vals *Values) (any, error)
	// dynamic reports whether the field's layout depends on live data.
	dynamic() bool
}

// defaulter is implemented by fields carrying a declared default value.
type defaulter interface {
	defaultValue() (any, bool)
}

// fieldBase carries what every field kind shares.
type fieldBase struct {
	name   string
	align  int
	def    any
	hasDef bool
}

func (b *fieldBase) Name() string  { return b.name }
func (b *fieldBase) Align() int    { return b.align }
func (b *fieldBase) defaultValue() (any, bool) { return b.def, b.hasDef }

// buildConfig is threaded through field construction.
type buildConfig struct {
	params Params
	packed bool
}

// effectiveAlign applies the option override and the packed-schema rule to a
// field's natural alignment.
func (cfg buildConfig) effectiveAlign(natural int, opts Options) int {
	if opts.Align > 0 {
		return opts.Align
	}
	if cfg.packed {
		return 1
	}
	return natural
}

type fieldCtor func(def FieldDef, cfg buildConfig) (Field, error)

// fieldCtors is the construction chain. Each constructor inspects the
// declared type and reports ErrIncompatibleType until one accepts. The
// composite constructors recurse through buildField, so the chain must be
// assembled in init: a package-level initializer would depend on itself.
var fieldCtors []fieldCtor

func init() {
	fieldCtors = []fieldCtor{
		newEnumField,
		newPrimitiveField,
		newDataField,
		newArrayField,
		newRecordField,
		newUnionField,
	}
}

// NewField builds the runtime field for a declaration. Exhausting the
// construction chain surfaces as an unsupported_type issue.
func NewField(def FieldDef, params Params, packed bool) (Field, error) {
	return buildField(def, buildConfig{params: params, packed: packed})
}

func buildField(def FieldDef, cfg buildConfig) (Field, error) {
	if _, ok := def.Type.(inheritMarker); ok {
		return nil, issueAt("/"+def.Name, CodeInheritMissing, nil, nil)
	}
	for _, ctor := range fieldCtors {
		f, err := ctor(def, cfg)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrIncompatibleType) {
			return nil, err
		}
	}
	return nil, issueAt("/"+def.Name, CodeUnsupportedType, nil, map[string]any{"type": typeName(def.Type)})
}

func typeName(t Type) string {
	switch tt := t.(type) {
	case Kind:
		return tt.String()
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Array:
		return "array"
	case Struct:
		return "struct"
	case Union:
		return "union"
	case Enum:
		return "enum"
	case inheritMarker:
		return "inherit"
	case nil:
		return "nil"
	}
	return "unknown"
}

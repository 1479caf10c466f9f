package structpack

import (
	"bytes"
	"fmt"
)

// dataField serializes a byte run: NUL-padded text or raw binary. The run
// length comes from the declared length, from pack/unpack length sources, or
// from an inline length prefix.
type dataField struct {
	fieldBase
	text         bool
	declaredLit  int    // fixed maximum, -1 when not declared
	declaredPath string // live length carried by another field
	packLen      lengthSpec
	unpackLen    lengthSpec
}

func newDataField(def FieldDef, cfg buildConfig) (Field, error) {
	var declared any
	text := false
	switch t := def.Type.(type) {
	case Text:
		declared = t.Length
		text = true
	case Binary:
		declared = t.Length
	default:
		return nil, ErrIncompatibleType
	}
	if def.Options.Length != nil {
		declared = def.Options.Length
	}
	f := &dataField{
		fieldBase: fieldBase{
			name:   def.Name,
			align:  cfg.effectiveAlign(1, def.Options),
			def:    def.Options.Default,
			hasDef: def.Options.Default != nil,
		},
		text:        text,
		declaredLit: -1,
	}
	switch d := declared.(type) {
	case nil:
	case int:
		f.declaredLit = d
	case string:
		f.declaredPath = d
	case inheritMarker:
		return nil, issueAt("/"+def.Name, CodeInheritMissing, nil, nil)
	default:
		return nil, issueAt("/"+def.Name, CodeMissingOption, fmt.Errorf("unusable length %T", declared), map[string]any{"option": "length"})
	}
	var err error
	if f.packLen, err = lengthSpecOf(def.Name, def.Options.PackLength); err != nil {
		return nil, err
	}
	if f.unpackLen, err = lengthSpecOf(def.Name, def.Options.UnpackLength); err != nil {
		return nil, err
	}
	if f.declaredLit < 0 && f.declaredPath == "" && !f.packLen.isSet() && !f.unpackLen.isSet() {
		return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "length"})
	}
	return f, nil
}

func (f *dataField) dynamic() bool {
	return f.declaredPath != "" || f.packLen.isSet() || f.unpackLen.isSet()
}

// StaticFormat keeps the declared maximum visible in the class-level layout;
// a purely live length contributes nothing until data is known.
func (f *dataField) StaticFormat() string {
	if f.declaredLit < 0 {
		return ""
	}
	if f.packLen.which == lsKind {
		return fmt.Sprintf("%c%ds", f.packLen.kind.code(), f.declaredLit)
	}
	if f.unpackLen.which == lsKind {
		return fmt.Sprintf("%c%ds", f.unpackLen.kind.code(), f.declaredLit)
	}
	return fmt.Sprintf("%ds", f.declaredLit)
}

func (f *dataField) liveValue(ctx *Context) (any, error) {
	v, err := ctx.Get(f.name)
	if err == nil {
		return v, nil
	}
	if f.hasDef {
		return f.def, nil
	}
	return nil, err
}

func (f *dataField) RegisterPack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	value, err := f.liveValue(ctx)
	if err != nil {
		return err
	}
	actual, ok := valueLength(value)
	if !ok {
		return issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"value": fmt.Sprintf("%T", value)})
	}
	n := actual
	switch f.packLen.which {
	case lsPath:
		if n, err = resolveLength(ctx, f.name, f.packLen.path); err != nil {
			return err
		}
	case lsLit:
		n = f.packLen.lit
	case lsKind:
		n = actual
	default:
		if f.unpackLen.which == lsKind {
			// the unpack side reads an inline prefix; carry the live length
			n = actual
		} else if f.declaredLit >= 0 {
			n = f.declaredLit
		} else if f.declaredPath != "" {
			// the declared path carries the live length: derive it from the
			// value and keep the carrier field in step
			n = actual
			if err := ctx.Set(f.declaredPath, n, true); err != nil {
				return err
			}
		}
	}
	if err := checkDeclaredMax(ctx, f.name, f.declaredLit, n); err != nil {
		return err
	}
	if actual > n {
		return issueAt(ctx.path(f.name), CodeLengthOverflow, nil, map[string]any{"max": n, "got": actual})
	}
	if err := writeBackLength(ctx, f.unpackLen, n); err != nil {
		return err
	}
	frag := fmt.Sprintf("%ds", n)
	if k, ok := f.packPrefixKind(); ok {
		frag = fmt.Sprintf("%c%ds", k.code(), n)
	}
	return ctx.Add(f, frag)
}

// packPrefixKind reports the inline length prefix the packed form carries.
// A prefix declared only for unpacking is mirrored when packing, so the
// stream stays readable without out-of-band length information.
func (f *dataField) packPrefixKind() (Kind, bool) {
	if f.packLen.which == lsKind {
		return f.packLen.kind, true
	}
	if !f.packLen.isSet() && f.unpackLen.which == lsKind {
		return f.unpackLen.kind, true
	}
	return 0, false
}

func (f *dataField) RegisterUnpack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	var n int
	var err error
	switch f.unpackLen.which {
	case lsPath:
		if n, err = resolveLengthUnpacking(ctx, f.name, f.unpackLen.path); err != nil {
			return err
		}
	case lsLit:
		n = f.unpackLen.lit
	case lsKind:
		if n, err = readInlineLength(ctx, f.name, f.unpackLen.kind); err != nil {
			return err
		}
	default:
		if f.packLen.which == lsKind {
			// the packed form carries an inline prefix; read it back
			if n, err = readInlineLength(ctx, f.name, f.packLen.kind); err != nil {
				return err
			}
		} else if f.declaredLit >= 0 {
			n = f.declaredLit
		} else if f.declaredPath != "" {
			if n, err = resolveLengthUnpacking(ctx, f.name, f.declaredPath); err != nil {
				return err
			}
		} else {
			return issueAt(ctx.path(f.name), CodeLengthLookup, nil, map[string]any{"option": "unpack_length"})
		}
	}
	if err := checkDeclaredMax(ctx, f.name, f.declaredLit, n); err != nil {
		return err
	}
	return ctx.Add(f, fmt.Sprintf("%ds", n))
}

func (f *dataField) PackValues(ctx *Context, value any) ([]any, error) {
	if value == nil && f.hasDef {
		value = f.def
	}
	if _, ok := f.packPrefixKind(); ok {
		b := toRawBytes(value)
		return []any{len(b), b}, nil
	}
	return []any{value}, nil
}

func (f *dataField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	v, err := vals.Next()
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"value": fmt.Sprintf("%T", v)})
	}
	if f.text {
		return string(bytes.TrimRight(b, "\x00")), nil
	}
	return b, nil
}

func toRawBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	case nil:
		return nil
	}
	return nil
}

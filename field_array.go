package structpack

import (
	"fmt"
	"strings"
)

// arrayField serializes a sequence. Fixed counts fold into the static
// layout; live counts come from a declared count path or from pack/unpack
// length sources. Elements whose own layout depends on live data are
// serialized one after another as an opaque run.
type arrayField struct {
	fieldBase
	elem      Field
	countLit  int    // fixed count, -1 when not declared
	countPath string // live count carried by another field
	packLen   lengthSpec
	unpackLen lengthSpec
}

func newArrayField(def FieldDef, cfg buildConfig) (Field, error) {
	at, ok := def.Type.(Array)
	if !ok {
		return nil, ErrIncompatibleType
	}
	elem, err := buildField(FieldDef{Type: at.Elem}, cfg)
	if err != nil {
		return nil, err
	}
	count := at.Count
	if def.Options.Length != nil {
		count = def.Options.Length
	}
	f := &arrayField{
		fieldBase: fieldBase{
			name:   def.Name,
			align:  cfg.effectiveAlign(elem.Align(), def.Options),
			def:    def.Options.Default,
			hasDef: def.Options.Default != nil,
		},
		elem:     elem,
		countLit: -1,
	}
	switch c := count.(type) {
	case nil:
	case int:
		f.countLit = c
	case string:
		f.countPath = c
	case inheritMarker:
		return nil, issueAt("/"+def.Name, CodeInheritMissing, nil, nil)
	default:
		return nil, issueAt("/"+def.Name, CodeMissingOption, fmt.Errorf("unusable count %T", count), map[string]any{"option": "count"})
	}
	if f.packLen, err = lengthSpecOf(def.Name, def.Options.PackLength); err != nil {
		return nil, err
	}
	if f.unpackLen, err = lengthSpecOf(def.Name, def.Options.UnpackLength); err != nil {
		return nil, err
	}
	if f.countLit < 0 && f.countPath == "" && !f.packLen.isSet() && !f.unpackLen.isSet() {
		return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "count"})
	}
	return f, nil
}

func (f *arrayField) sourced() bool { return f.packLen.isSet() || f.unpackLen.isSet() }

func (f *arrayField) dynamic() bool {
	return f.sourced() || f.countPath != "" || f.elem.dynamic()
}

func (f *arrayField) StaticFormat() string {
	if f.countLit < 0 || f.sourced() || f.elem.dynamic() {
		return ""
	}
	return repeatFragment(f.elem.StaticFormat(), f.countLit)
}

// repeatFragment renders n elements of frag. A single repeatable code keeps
// one counted group; "s" runs and mixed fragments repeat literally.
func repeatFragment(frag string, n int) string {
	if frag == "" || n <= 0 {
		return ""
	}
	if cnt, code, ok := singleCode(frag); ok && code != 'x' {
		return fmt.Sprintf("%d%c", cnt*n, code)
	}
	return strings.Repeat(frag, n)
}

func toItems(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case []any:
		return s, true
	}
	return nil, false
}

func (f *arrayField) RegisterPack(ctx *Context) error {
	v, err := ctx.Get(f.name)
	if err != nil {
		if !f.hasDef {
			return err
		}
		v = f.def
	}
	items, ok := toItems(v)
	if !ok {
		return issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"value": fmt.Sprintf("%T", v)})
	}
	n := len(items)
	switch f.packLen.which {
	case lsPath:
		if n, err = resolveLength(ctx, f.name, f.packLen.path); err != nil {
			return err
		}
	case lsLit:
		n = f.packLen.lit
	case lsKind:
		n = len(items)
	default:
		if f.countPath != "" {
			// the declared path carries the live count
			n = len(items)
			if err := ctx.Set(f.countPath, n, true); err != nil {
				return err
			}
		} else if f.countLit >= 0 {
			n = f.countLit
		}
	}
	if err := checkDeclaredMax(ctx, f.name, f.countLit, n); err != nil {
		return err
	}
	if n != len(items) {
		return issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"count": n, "got": len(items)})
	}
	if err := writeBackLength(ctx, f.unpackLen, n); err != nil {
		return err
	}
	pk, hasPrefix := f.packPrefixKind()
	if n == 0 {
		if !hasPrefix {
			return ctx.Add(f, "")
		}
		if err := ctx.alignTo(f.align); err != nil {
			return err
		}
		return ctx.Add(f, fmt.Sprintf("%c", pk.code()))
	}
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	if f.elem.dynamic() {
		b, err := f.packRun(ctx.params, items)
		if err != nil {
			return err
		}
		frag := fmt.Sprintf("%ds", len(b))
		if hasPrefix {
			frag = fmt.Sprintf("%c%ds", pk.code(), len(b))
		}
		return ctx.Add(f, frag)
	}
	frag := f.elem.StaticFormat()
	if f.sourced() {
		frag = strings.Repeat(frag, n)
	} else {
		frag = repeatFragment(frag, n)
	}
	if hasPrefix {
		frag = fmt.Sprintf("%c", pk.code()) + frag
	}
	return ctx.Add(f, frag)
}

// packPrefixKind reports the inline count prefix the packed form carries.
// A prefix declared only for unpacking is mirrored when packing, so the
// stream stays readable without out-of-band count information.
func (f *arrayField) packPrefixKind() (Kind, bool) {
	if f.packLen.which == lsKind {
		return f.packLen.kind, true
	}
	if !f.packLen.isSet() && f.unpackLen.which == lsKind {
		return f.unpackLen.kind, true
	}
	return 0, false
}

func (f *arrayField) unpackPrefixKind() (Kind, bool) {
	if f.unpackLen.which == lsKind {
		return f.unpackLen.kind, true
	}
	if !f.unpackLen.isSet() && f.packLen.which == lsKind {
		return f.packLen.kind, true
	}
	return 0, false
}

func (f *arrayField) RegisterUnpack(ctx *Context) error {
	var n int
	var err error
	if prefix, ok := f.unpackPrefixKind(); ok {
		// the prefix sits at the front of the aligned run
		if err := ctx.alignTo(f.align); err != nil {
			return err
		}
		if n, err = readInlineLength(ctx, f.name, prefix); err != nil {
			return err
		}
		if err := checkDeclaredMax(ctx, f.name, f.countLit, n); err != nil {
			return err
		}
	} else {
		switch f.unpackLen.which {
		case lsPath:
			if n, err = resolveLengthUnpacking(ctx, f.name, f.unpackLen.path); err != nil {
				return err
			}
		case lsLit:
			n = f.unpackLen.lit
		default:
			if f.countPath != "" {
				if n, err = resolveLengthUnpacking(ctx, f.name, f.countPath); err != nil {
					return err
				}
			} else if f.countLit >= 0 {
				n = f.countLit
			} else {
				return issueAt(ctx.path(f.name), CodeLengthLookup, nil, map[string]any{"option": "unpack_length"})
			}
		}
		if err := checkDeclaredMax(ctx, f.name, f.countLit, n); err != nil {
			return err
		}
		if n > 0 {
			if err := ctx.alignTo(f.align); err != nil {
				return err
			}
		}
	}
	if n == 0 {
		return ctx.Add(&arrayRun{f: f}, "")
	}
	if f.elem.dynamic() {
		if err := ctx.Add(&arrayRun{f: f, n: n, seq: true}, ""); err != nil {
			return err
		}
		// the run advances the cursor itself; flush so fields registered
		// after it decode from beyond the element bytes
		_, err := ctx.Unpack()
		return err
	}
	frag := f.elem.StaticFormat()
	if f.sourced() {
		frag = strings.Repeat(frag, n)
	} else {
		frag = repeatFragment(frag, n)
	}
	return ctx.Add(&arrayRun{f: f, n: n}, frag)
}

func (f *arrayField) packRun(params Params, items []any) ([]byte, error) {
	var b []byte
	for _, it := range items {
		eb, err := subPack(params, f.elem, it)
		if err != nil {
			return nil, err
		}
		b = append(b, eb...)
	}
	return b, nil
}

func (f *arrayField) PackValues(ctx *Context, value any) ([]any, error) {
	if value == nil && f.hasDef {
		value = f.def
	}
	items, ok := toItems(value)
	if !ok {
		return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"value": fmt.Sprintf("%T", value)})
	}
	var out []any
	if _, ok := f.packPrefixKind(); ok {
		out = append(out, len(items))
	}
	if len(items) == 0 {
		return out, nil
	}
	if f.elem.dynamic() {
		b, err := f.packRun(ctx.params, items)
		if err != nil {
			return nil, err
		}
		return append(out, b), nil
	}
	for _, it := range items {
		vals, err := f.elem.PackValues(ctx, it)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

// UnpackValue is served by the arrayRun registered for the operation.
func (f *arrayField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, nil)
}

// arrayRun is the per-operation registration of an array with its resolved
// count. seq marks element-by-element deserialization of runs whose element
// layout depends on live data.
type arrayRun struct {
	f   *arrayField
	n   int
	seq bool
}

func (r *arrayRun) Name() string         { return r.f.name }
func (r *arrayRun) Align() int           { return r.f.align }
func (r *arrayRun) StaticFormat() string { return "" }
func (r *arrayRun) dynamic() bool        { return true }

func (r *arrayRun) RegisterPack(ctx *Context) error   { return nil }
func (r *arrayRun) RegisterUnpack(ctx *Context) error { return nil }

func (r *arrayRun) PackValues(ctx *Context, value any) ([]any, error) {
	return r.f.PackValues(ctx, value)
}

func (r *arrayRun) UnpackValue(ctx *Context, vals *Values) (any, error) {
	out := make([]any, 0, r.n)
	if r.seq {
		for i := 0; i < r.n; i++ {
			v, used, err := subUnpack(ctx.params, r.f.elem, ctx.data[ctx.offset:])
			if err != nil {
				return nil, err
			}
			ctx.offset += used
			out = append(out, v)
		}
		return out, nil
	}
	for i := 0; i < r.n; i++ {
		var v any
		var err error
		if rc, ok := r.f.elem.(*recordField); ok {
			v, err = rc.unpackFlat(ctx, vals)
		} else {
			v, err = r.f.elem.UnpackValue(ctx, vals)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

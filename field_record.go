package structpack

import (
	"fmt"

	"github.com/reoring/structpack/internal/wire"
)

// recordField nests another schema's fields under a named scope. The
// children register themselves flat into the enclosing pass; the record adds
// leading, inter-field and trailing alignment so the nested layout matches
// what a C compiler would emit for an embedded struct.
type recordField struct {
	fieldBase
	fields []Field
	schema *Schema
}

func newRecordField(def FieldDef, cfg buildConfig) (Field, error) {
	st, ok := def.Type.(Struct)
	if !ok {
		return nil, ErrIncompatibleType
	}
	if st.Schema == nil {
		return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "schema"})
	}
	return &recordField{
		fieldBase: fieldBase{
			name:   def.Name,
			align:  cfg.effectiveAlign(st.Schema.align, def.Options),
			def:    def.Options.Default,
			hasDef: def.Options.Default != nil,
		},
		fields: st.Schema.fields,
		schema: st.Schema,
	}, nil
}

func (f *recordField) dynamic() bool {
	for _, ch := range f.fields {
		if ch.dynamic() {
			return true
		}
	}
	return false
}

func (f *recordField) StaticFormat() string {
	return mergeFragments(staticFrags(f.fields, f.align))
}

func (f *recordField) RegisterPack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	restore := ctx.PushScope(f.name)
	for _, ch := range f.fields {
		if err := ch.RegisterPack(ctx); err != nil {
			restore()
			return err
		}
	}
	restore()
	return ctx.alignTo(f.align)
}

func (f *recordField) RegisterUnpack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	// children resolve their length sources against this placeholder
	if v, err := ctx.Get(f.name); err != nil || v == nil {
		if err := ctx.Set(f.name, map[string]any{}, true); err != nil {
			return err
		}
	}
	restore := ctx.PushScope(f.name)
	for _, ch := range f.fields {
		if err := ch.RegisterUnpack(ctx); err != nil {
			restore()
			return err
		}
	}
	restore()
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	return ctx.Add(f, "")
}

// PackValues flattens a record value into its children's scalars, for use
// when the record serves as a fixed array element.
func (f *recordField) PackValues(ctx *Context, value any) ([]any, error) {
	return f.packFlat(ctx, value)
}

func (f *recordField) packFlat(ctx *Context, value any) ([]any, error) {
	var out []any
	for _, ch := range f.fields {
		cv, ok := lookupPath(value, []string{ch.Name()})
		if !ok {
			if d, k := ch.(defaulter); k {
				if dv, has := d.defaultValue(); has {
					cv, ok = dv, true
				}
			}
		}
		if !ok {
			return nil, issueAt(ctx.path(f.name)+"/"+ch.Name(), CodeInvalidValue, nil, map[string]any{"missing": ch.Name()})
		}
		vals, err := ch.PackValues(ctx, cv)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

func (f *recordField) unpackFlat(ctx *Context, vals *Values) (any, error) {
	m := map[string]any{}
	for _, ch := range f.fields {
		var v any
		var err error
		if rc, ok := ch.(*recordField); ok {
			v, err = rc.unpackFlat(ctx, vals)
		} else {
			v, err = ch.UnpackValue(ctx, vals)
		}
		if err != nil {
			return nil, err
		}
		m[ch.Name()] = v
	}
	return f.finish(m)
}

// UnpackValue runs at the end of the pass, after the children have installed
// their values under the record's scope, and collects the assembled value.
func (f *recordField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	restore := ctx.PushScope(f.name)
	defer restore()
	v, err := ctx.Get("")
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return f.finish(m)
	}
	return v, nil
}

func (f *recordField) finish(m map[string]any) (any, error) {
	if f.schema != nil && f.schema.factory != nil {
		return f.schema.factory(m)
	}
	return m, nil
}

// staticFrags walks fields the way registration would, with pads computed
// from the data-independent fragment sizes.
func staticFrags(fields []Field, trailingAlign int) []string {
	size := 0
	var frags []string
	for _, f := range fields {
		frag := f.StaticFormat()
		if frag == "" {
			continue
		}
		n, err := wire.CalcSize("=" + frag)
		if err != nil {
			continue
		}
		if pad := alignPad(size, f.Align()); pad > 0 {
			frags = append(frags, fmt.Sprintf("%dx", pad))
			size += pad
		}
		frags = append(frags, frag)
		size += n
	}
	if trailingAlign > 1 {
		if pad := alignPad(size, trailingAlign); pad > 0 {
			frags = append(frags, fmt.Sprintf("%dx", pad))
		}
	}
	return frags
}

// subPack serializes a standalone value through a field prototype on a fresh
// Context sharing the same Params.
func subPack(params Params, f Field, value any) ([]byte, error) {
	ctx := params.NewPackContext(value)
	if err := f.RegisterPack(ctx); err != nil {
		return nil, err
	}
	return ctx.Pack()
}

// subUnpack deserializes a standalone value from the front of data and
// reports how many bytes it consumed.
func subUnpack(params Params, f Field, data []byte) (any, int, error) {
	ctx := params.NewUnpackContext(data, nil)
	if err := f.RegisterUnpack(ctx); err != nil {
		return nil, 0, err
	}
	v, err := ctx.Unpack()
	if err != nil {
		return nil, 0, err
	}
	return v, ctx.offset, nil
}

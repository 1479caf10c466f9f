package structpack

import (
	"fmt"

	"github.com/reoring/structpack/internal/wire"
)

type unionMember struct {
	name  string
	field Field
}

// unionField overlays its members on shared storage. Without a selector it
// is C-style: the payload is raw storage sized to the largest member, and
// members are reinterpretations of those bytes. With a selector the live
// selector value picks the active member and the payload is that member's
// serialized form.
type unionField struct {
	fieldBase
	params     Params
	members    []unionMember
	selPaths   []string
	selFunc    SelectorFunc
	selMap     map[string][]any
	packLen    lengthSpec
	unpackLen  lengthSpec
	omitEmpty  bool
	staticSize int
}

func newUnionField(def FieldDef, cfg buildConfig) (Field, error) {
	ut, ok := def.Type.(Union)
	if !ok {
		return nil, ErrIncompatibleType
	}
	if len(ut.Variants) == 0 {
		return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "members"})
	}
	f := &unionField{
		params:    cfg.params,
		omitEmpty: def.Options.OmitEmpty,
	}
	align := 1
	for _, v := range ut.Variants {
		mf, err := buildField(FieldDef{Type: v.Type}, cfg)
		if err != nil {
			return nil, err
		}
		f.members = append(f.members, unionMember{name: v.Name, field: mf})
		if mf.Align() > align {
			align = mf.Align()
		}
		if sz, err := wire.CalcSize("=" + mf.StaticFormat()); err == nil && sz > f.staticSize {
			f.staticSize = sz
		}
	}
	f.fieldBase = fieldBase{
		name:   def.Name,
		align:  cfg.effectiveAlign(align, def.Options),
		def:    def.Options.Default,
		hasDef: def.Options.Default != nil,
	}
	switch sel := def.Options.Selector.(type) {
	case nil:
	case string:
		f.selPaths = []string{sel}
	case []string:
		f.selPaths = sel
	case SelectorFunc:
		f.selFunc = sel
	default:
		return nil, issueAt("/"+def.Name, CodeMissingOption, fmt.Errorf("unusable selector %T", sel), map[string]any{"option": "selector"})
	}
	if f.hasSelector() && f.selFunc == nil {
		if len(def.Options.SelectorMap) == 0 {
			return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "selector_map"})
		}
	}
	if len(def.Options.SelectorMap) > 0 {
		f.selMap = make(map[string][]any, len(def.Options.SelectorMap))
		for name, mv := range def.Options.SelectorMap {
			if _, ok := f.member(name); !ok {
				return nil, issueAt("/"+def.Name, CodeSelectorMap, nil, map[string]any{"member": name})
			}
			if tuple, ok := mv.([]any); ok {
				f.selMap[name] = tuple
			} else {
				f.selMap[name] = []any{mv}
			}
		}
	}
	var err error
	if f.packLen, err = lengthSpecOf(def.Name, def.Options.PackLength); err != nil {
		return nil, err
	}
	if f.unpackLen, err = lengthSpecOf(def.Name, def.Options.UnpackLength); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *unionField) hasSelector() bool { return len(f.selPaths) > 0 || f.selFunc != nil }

func (f *unionField) dynamic() bool {
	return f.hasSelector() || f.packLen.isSet() || f.unpackLen.isSet()
}

func (f *unionField) member(name string) (Field, bool) {
	for _, m := range f.members {
		if m.name == name {
			return m.field, true
		}
	}
	return nil, false
}

// StaticFormat reserves the largest member's storage.
func (f *unionField) StaticFormat() string { return fmt.Sprintf("%ds", f.staticSize) }

func (f *unionField) selectorValues(ctx *Context) ([]any, error) {
	if f.selFunc != nil {
		v, err := f.selFunc(ctx)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}
	out := make([]any, 0, len(f.selPaths))
	for _, p := range f.selPaths {
		v, err := ctx.Get(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// matchMember picks the first member, in declaration order, whose mapped
// selector values equal the live ones.
func (f *unionField) matchMember(selVals []any) (string, bool) {
	for _, m := range f.members {
		want, ok := f.selMap[m.name]
		if !ok || len(want) != len(selVals) {
			continue
		}
		hit := true
		for i := range want {
			if !looseEqual(want[i], selVals[i]) {
				hit = false
				break
			}
		}
		if hit {
			return m.name, true
		}
	}
	return "", false
}

// writeBackSelector upserts the selector values that activate member, so a
// value that names its member keeps the discriminator field consistent.
func (f *unionField) writeBackSelector(ctx *Context, member string) error {
	if f.selFunc != nil || len(f.selPaths) == 0 {
		return nil
	}
	want, ok := f.selMap[member]
	if !ok || len(want) != len(f.selPaths) {
		return issueAt(ctx.path(f.name), CodeSelectorMap, nil, map[string]any{"member": member})
	}
	for i, p := range f.selPaths {
		if err := ctx.Set(p, want[i], true); err != nil {
			return err
		}
	}
	return nil
}

// computePayload normalizes the live union value into the active member and
// its serialized payload. With writeBack, a value that names its member
// pushes the matching selector values into the tree.
func (f *unionField) computePayload(ctx *Context, value any, writeBack bool) (string, []byte, error) {
	var member string
	var memberVal any
	var raw []byte
	rawSet := false
	switch v := value.(type) {
	case nil:
	case *UnionValue:
		if v.kind == "" {
			raw, rawSet = v.raw, true
		} else {
			member, memberVal = v.kind, v.val
		}
	case []byte:
		raw, rawSet = v, true
	case string:
		raw, rawSet = []byte(v), true
	case map[string]any:
		if len(v) == 1 {
			for name, mv := range v {
				if _, ok := f.member(name); ok {
					member, memberVal = name, mv
				}
			}
		}
		if member == "" {
			return "", nil, issueAt(ctx.path(f.name), CodeSelectorMap, nil, map[string]any{"value": fmt.Sprintf("%v", v)})
		}
	default:
		memberVal = v
	}
	if f.hasSelector() && !rawSet {
		selVals, selErr := f.selectorValues(ctx)
		matched := ""
		if selErr == nil {
			matched, _ = f.matchMember(selVals)
		}
		switch {
		case matched != "" && member == "":
			member = matched
			if memberVal == nil {
				return "", nil, issueAt(ctx.path(f.name), CodeValueNotActive, nil, map[string]any{"member": member})
			}
		case matched == "" && member != "":
			if writeBack {
				if err := f.writeBackSelector(ctx, member); err != nil {
					return "", nil, err
				}
			}
		case matched != "" && member != "" && matched != member:
			// the value names its member; realign the discriminator
			if writeBack {
				if err := f.writeBackSelector(ctx, member); err != nil {
					return "", nil, err
				}
			}
		case matched == "" && member == "" && memberVal != nil:
			return "", nil, issueAt(ctx.path(f.name), CodeSelectorMap, nil, map[string]any{"selector": fmt.Sprintf("%v", selVals)})
		}
	}
	if rawSet {
		return "", raw, nil
	}
	if member == "" {
		return "", nil, nil
	}
	mf, ok := f.member(member)
	if !ok {
		return "", nil, issueAt(ctx.path(f.name), CodeSelectorMap, nil, map[string]any{"member": member})
	}
	b, err := subPack(ctx.params, mf, memberVal)
	if err != nil {
		return "", nil, err
	}
	return member, b, nil
}

func (f *unionField) RegisterPack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	value, err := ctx.Get(f.name)
	if err != nil {
		// an absent union stays unresolved and packs as empty
		value = nil
		if f.hasDef {
			value = f.def
		}
	}
	member, payload, err := f.computePayload(ctx, value, true)
	if err != nil {
		return err
	}
	n := len(payload)
	switch f.packLen.which {
	case lsPath:
		if v, gerr := ctx.Get(f.packLen.path); gerr == nil {
			// the path usually names the union itself; only an integer
			// overrides the measured payload
			if lit, ok := toCanonInt(v); ok {
				n = int(lit)
			}
		}
	case lsLit:
		n = f.packLen.lit
	}
	if f.omitEmpty && n == 0 && member == "" && payload == nil {
		return nil
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

// packPrefixKind reports the inline length prefix the packed form carries,
// mirroring a prefix declared only for unpacking.
func (f *unionField) packPrefixKind() (Kind, bool) {
	if f.packLen.which == lsKind {
		return f.packLen.kind, true
	}
	if !f.packLen.isSet() && f.unpackLen.which == lsKind {
		return f.unpackLen.kind, true
	}
	return 0, false
}

func (f *unionField) RegisterUnpack(ctx *Context) error {
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
			break
		}
		if !f.hasSelector() {
			n = f.staticSize
			break
		}
		member := ""
		if selVals, serr := f.selectorValuesUnpacking(ctx); serr == nil {
			member, _ = f.matchMember(selVals)
		}
		if member == "" {
			// selector not readable yet; pick the member once the pass ran
			return ctx.Add(&unionDeferred{f: f}, "")
		}
		mf, _ := f.member(member)
		if n, err = wire.CalcSize("=" + mf.StaticFormat()); err != nil {
			return err
		}
	}
	return ctx.Add(f, fmt.Sprintf("%ds", n))
}

// selectorValuesUnpacking resolves the selector while unpacking, flushing
// the pending pass once when the discriminator has not been read yet.
func (f *unionField) selectorValuesUnpacking(ctx *Context) ([]any, error) {
	vals, err := f.selectorValues(ctx)
	if err != nil && ctx.unpacking {
		if _, ferr := ctx.Unpack(); ferr != nil {
			return nil, ferr
		}
		vals, err = f.selectorValues(ctx)
	}
	return vals, err
}

func (f *unionField) PackValues(ctx *Context, value any) ([]any, error) {
	if value == nil && f.hasDef {
		value = f.def
	}
	_, payload, err := f.computePayload(ctx, value, false)
	if err != nil {
		return nil, err
	}
	if _, ok := f.packPrefixKind(); ok {
		return []any{len(payload), payload}, nil
	}
	return []any{payload}, nil
}

func (f *unionField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	v, err := vals.Next()
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"value": fmt.Sprintf("%T", v)})
	}
	if !f.hasSelector() {
		return &UnionValue{u: f, raw: raw}, nil
	}
	member := ""
	if selVals, serr := f.selectorValues(ctx); serr == nil {
		member, _ = f.matchMember(selVals)
	}
	if member == "" {
		if len(raw) == 0 {
			return &UnionValue{u: f}, nil
		}
		return nil, issueAt(ctx.path(f.name), CodeSelectorMap, nil, map[string]any{"payload": len(raw)})
	}
	if len(raw) == 0 {
		return &UnionValue{u: f, kind: member}, nil
	}
	mf, _ := f.member(member)
	mv, _, err := subUnpack(ctx.params, mf, raw)
	if err != nil {
		return nil, err
	}
	return &UnionValue{u: f, kind: member, val: mv}, nil
}

// unionDeferred is registered when the selector could not be resolved during
// registration; it reads the member directly from the cursor after the pass.
type unionDeferred struct {
	f *unionField
}

func (d *unionDeferred) Name() string         { return d.f.name }
func (d *unionDeferred) Align() int           { return d.f.align }
func (d *unionDeferred) StaticFormat() string { return "" }
func (d *unionDeferred) dynamic() bool        { return true }

func (d *unionDeferred) RegisterPack(ctx *Context) error   { return nil }
func (d *unionDeferred) RegisterUnpack(ctx *Context) error { return nil }

func (d *unionDeferred) PackValues(ctx *Context, value any) ([]any, error) {
	return d.f.PackValues(ctx, value)
}

func (d *unionDeferred) UnpackValue(ctx *Context, vals *Values) (any, error) {
	f := d.f
	member := ""
	if selVals, err := f.selectorValues(ctx); err == nil {
		member, _ = f.matchMember(selVals)
	}
	if member == "" {
		return nil, nil
	}
	mf, _ := f.member(member)
	mv, used, err := subUnpack(ctx.params, mf, ctx.data[ctx.offset:])
	if err != nil {
		return nil, err
	}
	ctx.offset += used
	return &UnionValue{u: f, kind: member, val: mv}, nil
}

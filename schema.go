package structpack

import (
	"sync"

	"github.com/reoring/structpack/internal/wire"
)

// Schema is the immutable, compiled form of a record declaration. Building
// is separate from use: a Schema never holds live data, so one instance
// serves any number of concurrent Pack/Unpack calls.
type Schema struct {
	name      string
	defs      []FieldDef
	fields    []Field
	params    Params
	packed    bool
	factory   func(map[string]any) (any, error)
	align     int
	staticFmt string
}

type schemaConfig struct {
	params  Params
	packed  bool
	factory func(map[string]any) (any, error)
}

// SchemaOption configures schema construction.
type SchemaOption func(*schemaConfig)

// WithByteOrder overrides the process default order for this schema.
func WithByteOrder(bo ByteOrder) SchemaOption {
	return func(c *schemaConfig) { c.params = Params{Order: bo} }
}

// WithPacked removes all implicit alignment: every field defaults to
// alignment 1, the way a packed C struct lays out.
func WithPacked() SchemaOption {
	return func(c *schemaConfig) { c.packed = true }
}

// WithFactory post-processes every unpacked record value, typically into an
// application type. Factory-bearing schemas are never shared via the
// structural cache.
func WithFactory(fn func(map[string]any) (any, error)) SchemaOption {
	return func(c *schemaConfig) { c.factory = fn }
}

// schemaCache shares structurally identical schemas, keyed by descriptor.
var schemaCache sync.Map

// New compiles a schema from field declarations. Declaration problems
// surface here, once, as Issues; operations on the returned Schema never
// re-validate the declaration.
func New(name string, defs []FieldDef, opts ...SchemaOption) (*Schema, error) {
	cfg := schemaConfig{params: DefaultParams()}
	for _, o := range opts {
		o(&cfg)
	}
	return newSchema(name, defs, cfg)
}

func newSchema(name string, defs []FieldDef, cfg schemaConfig) (*Schema, error) {
	key, cacheable := descriptorKey(name, defs, cfg)
	if cacheable {
		if v, ok := schemaCache.Load(key); ok {
			return v.(*Schema), nil
		}
	}
	s := &Schema{
		name:    name,
		defs:    append([]FieldDef(nil), defs...),
		params:  cfg.params,
		packed:  cfg.packed,
		factory: cfg.factory,
		align:   1,
	}
	bc := buildConfig{params: cfg.params, packed: cfg.packed}
	var iss Issues
	for _, def := range s.defs {
		f, err := buildField(def, bc)
		if err != nil {
			if more, ok := AsIssues(err); ok {
				iss = AppendIssues(iss, more...)
				continue
			}
			return nil, err
		}
		s.fields = append(s.fields, f)
		if f.Align() > s.align {
			s.align = f.Align()
		}
	}
	if len(iss) > 0 {
		return nil, iss
	}
	s.staticFmt = mergeFragments(staticFrags(s.fields, 0))
	if cacheable {
		if v, loaded := schemaCache.LoadOrStore(key, s); loaded {
			return v.(*Schema), nil
		}
	}
	return s, nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Params returns the configuration operations run under.
func (s *Schema) Params() Params { return s.params }

// Packed reports whether implicit alignment is disabled.
func (s *Schema) Packed() bool { return s.packed }

// Defs returns a copy of the field declarations, for inspection and
// extension.
func (s *Schema) Defs() []FieldDef { return append([]FieldDef(nil), s.defs...) }

// Align returns the layout alignment requirement: the largest field's.
func (s *Schema) Align() int { return s.align }

func (s *Schema) register(ctx *Context, pack bool) error {
	for _, f := range s.fields {
		var err error
		if pack {
			err = f.RegisterPack(ctx)
		} else {
			err = f.RegisterUnpack(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Format renders the format string. With nil it is the data-independent
// layout; with a value, the exact format that value packs to, including live
// lengths and union payloads.
func (s *Schema) Format(v any) (string, error) {
	if v == nil {
		return string([]byte{s.params.Order.Prefix()}) + s.staticFmt, nil
	}
	ctx := s.params.NewPackContext(v)
	if err := s.register(ctx, true); err != nil {
		return "", err
	}
	return ctx.StructFormat(), nil
}

// Size returns the byte size: the static layout size with nil, the exact
// packed size with a value.
func (s *Schema) Size(v any) (int, error) {
	if v == nil {
		return wire.CalcSize(string([]byte{s.params.Order.Prefix()}) + s.staticFmt)
	}
	ctx := s.params.NewPackContext(v)
	if err := s.register(ctx, true); err != nil {
		return 0, err
	}
	return ctx.Size(), nil
}

// Pack serializes v. On error the returned buffer is nil; a partially
// accumulated buffer is never exposed.
func (s *Schema) Pack(v any) ([]byte, error) {
	ctx := s.params.NewPackContext(v)
	if err := s.register(ctx, true); err != nil {
		return nil, err
	}
	return ctx.Pack()
}

// Unpack deserializes data into a fresh value tree. Trailing bytes beyond
// the layout are ignored; missing bytes report truncated.
func (s *Schema) Unpack(data []byte) (any, error) {
	ctx := s.params.NewUnpackContext(data, nil)
	if err := s.register(ctx, false); err != nil {
		return nil, err
	}
	v, err := ctx.Unpack()
	if err != nil {
		return nil, err
	}
	if s.factory != nil {
		if m, ok := v.(map[string]any); ok {
			return s.factory(m)
		}
	}
	return v, nil
}

// Extend derives a new schema: same-named declarations replace the base
// field in place, keeping its position; new names append. Inherit markers in
// the new declarations copy the base field's length. The base's byte order
// and packing carry over unless overridden.
func (s *Schema) Extend(name string, defs []FieldDef, opts ...SchemaOption) (*Schema, error) {
	cfg := schemaConfig{params: s.params, packed: s.packed}
	for _, o := range opts {
		o(&cfg)
	}
	merged := s.Defs()
	for _, nd := range defs {
		idx := -1
		for i, bd := range merged {
			if bd.Name == nd.Name {
				idx = i
				break
			}
		}
		var base *FieldDef
		if idx >= 0 {
			base = &merged[idx]
		}
		resolved, err := resolveInherit(nd, base)
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			merged[idx] = resolved
		} else {
			merged = append(merged, resolved)
		}
	}
	return newSchema(name, merged, cfg)
}

// resolveInherit replaces Inherit markers in a declaration with what the
// base field declares.
func resolveInherit(def FieldDef, base *FieldDef) (FieldDef, error) {
	missing := func() (FieldDef, error) {
		return def, issueAt("/"+def.Name, CodeInheritMissing, nil, nil)
	}
	if _, ok := def.Type.(inheritMarker); ok {
		if base == nil {
			return missing()
		}
		def.Type = base.Type
	}
	if _, ok := def.Options.Length.(inheritMarker); ok {
		if base == nil {
			return missing()
		}
		if l, ok := baseLength(*base); ok {
			def.Options.Length = l
		} else {
			return missing()
		}
	}
	switch t := def.Type.(type) {
	case Text:
		if _, ok := t.Length.(inheritMarker); ok {
			if base == nil {
				return missing()
			}
			l, ok := baseLength(*base)
			if !ok {
				return missing()
			}
			def.Type = Text{Length: l}
		}
	case Binary:
		if _, ok := t.Length.(inheritMarker); ok {
			if base == nil {
				return missing()
			}
			l, ok := baseLength(*base)
			if !ok {
				return missing()
			}
			def.Type = Binary{Length: l}
		}
	case Array:
		if _, ok := t.Count.(inheritMarker); ok {
			if base == nil {
				return missing()
			}
			l, ok := baseLength(*base)
			if !ok {
				return missing()
			}
			def.Type = Array{Elem: t.Elem, Count: l}
		}
	}
	return def, nil
}

// baseLength extracts the declared length/count of a base field.
func baseLength(def FieldDef) (any, bool) {
	if def.Options.Length != nil {
		return def.Options.Length, true
	}
	switch t := def.Type.(type) {
	case Text:
		if t.Length != nil {
			return t.Length, true
		}
	case Binary:
		if t.Length != nil {
			return t.Length, true
		}
	case Array:
		if t.Count != nil {
			return t.Count, true
		}
	}
	return nil, false
}

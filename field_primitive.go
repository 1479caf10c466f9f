package structpack

import "errors"

// primitiveField serializes one machine scalar.
type primitiveField struct {
	fieldBase
	kind Kind
}

func newPrimitiveField(def FieldDef, cfg buildConfig) (Field, error) {
	k, ok := def.Type.(Kind)
	if !ok {
		return nil, ErrIncompatibleType
	}
	if k.code() == 0 {
		return nil, issueAt("/"+def.Name, CodeUnsupportedType, nil, map[string]any{"kind": int(k)})
	}
	return &primitiveField{
		fieldBase: fieldBase{
			name:   def.Name,
			align:  cfg.effectiveAlign(k.align(), def.Options),
			def:    def.Options.Default,
			hasDef: def.Options.Default != nil,
		},
		kind: k,
	}, nil
}

func (f *primitiveField) dynamic() bool { return false }

func (f *primitiveField) StaticFormat() string { return string([]byte{f.kind.code()}) }

func (f *primitiveField) RegisterPack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	return ctx.Add(f, f.StaticFormat())
}

func (f *primitiveField) RegisterUnpack(ctx *Context) error {
	return f.RegisterPack(ctx)
}

func (f *primitiveField) PackValues(ctx *Context, value any) ([]any, error) {
	if value == nil {
		if f.hasDef {
			value = f.def
		} else {
			return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"kind": f.kind.String()})
		}
	}
	return []any{value}, nil
}

func (f *primitiveField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	return vals.Next()
}

// enumField serializes a named integer over a primitive carrier.
type enumField struct {
	fieldBase
	kind  Kind
	names map[string]int64
	rev   map[int64]string
}

func newEnumField(def FieldDef, cfg buildConfig) (Field, error) {
	e, ok := def.Type.(Enum)
	if !ok {
		return nil, ErrIncompatibleType
	}
	if len(e.Values) == 0 {
		return nil, issueAt("/"+def.Name, CodeMissingOption, nil, map[string]any{"option": "values"})
	}
	rev := make(map[int64]string, len(e.Values))
	names := make(map[string]int64, len(e.Values))
	for n, v := range e.Values {
		names[n] = v
		if _, dup := rev[v]; !dup {
			rev[v] = n
		}
	}
	return &enumField{
		fieldBase: fieldBase{
			name:   def.Name,
			align:  cfg.effectiveAlign(e.Elem.align(), def.Options),
			def:    def.Options.Default,
			hasDef: def.Options.Default != nil,
		},
		kind:  e.Elem,
		names: names,
		rev:   rev,
	}, nil
}

func (f *enumField) dynamic() bool { return false }

func (f *enumField) StaticFormat() string { return string([]byte{f.kind.code()}) }

func (f *enumField) RegisterPack(ctx *Context) error {
	if err := ctx.alignTo(f.align); err != nil {
		return err
	}
	return ctx.Add(f, f.StaticFormat())
}

func (f *enumField) RegisterUnpack(ctx *Context) error {
	return f.RegisterPack(ctx)
}

func (f *enumField) PackValues(ctx *Context, value any) ([]any, error) {
	if value == nil && f.hasDef {
		value = f.def
	}
	if s, ok := value.(string); ok {
		n, ok := f.names[s]
		if !ok {
			return nil, issueAt(ctx.path(f.name), CodeInvalidValue, nil, map[string]any{"name": s})
		}
		return []any{n}, nil
	}
	if n, ok := toCanonInt(value); ok {
		return []any{n}, nil
	}
	return nil, issueAt(ctx.path(f.name), CodeInvalidValue, errors.New("enum value is neither a name nor an integer"), nil)
}

func (f *enumField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	v, err := vals.Next()
	if err != nil {
		return nil, err
	}
	if n, ok := toCanonInt(v); ok {
		if name, ok := f.rev[n]; ok {
			return name, nil
		}
		return n, nil
	}
	return v, nil
}

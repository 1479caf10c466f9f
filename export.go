package structpack

import (
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// schemaDescriptor is the JSON shape of a compiled schema. It captures
// everything structural. Nested records are pre-rendered into RawMessage so
// the descriptor type graph stays non-recursive.
type schemaDescriptor struct {
	Name      string            `json:"name,omitempty"`
	ByteOrder string            `json:"byte_order"`
	Packed    bool              `json:"packed,omitempty"`
	Fields    []fieldDescriptor `json:"fields"`
}

type fieldDescriptor struct {
	Name         string         `json:"name"`
	Type         typeDescriptor `json:"type"`
	Length       any            `json:"length,omitempty"`
	PackLength   any            `json:"pack_length,omitempty"`
	UnpackLength any            `json:"unpack_length,omitempty"`
	Align        int            `json:"align,omitempty"`
	Default      any            `json:"default,omitempty"`
	Selector     any            `json:"selector,omitempty"`
	SelectorMap  map[string]any `json:"selector_map,omitempty"`
	OmitEmpty    bool           `json:"omit_empty,omitempty"`
}

type typeDescriptor struct {
	Kind    string             `json:"kind"`
	Length  any                `json:"length,omitempty"`
	Elem    *typeDescriptor    `json:"elem,omitempty"`
	Count   any                `json:"count,omitempty"`
	Members []memberDescriptor `json:"members,omitempty"`
	Schema  json.RawMessage    `json:"schema,omitempty"`
	Carrier string             `json:"carrier,omitempty"`
	Values  map[string]int64   `json:"values,omitempty"`
}

type memberDescriptor struct {
	Name string         `json:"name"`
	Type typeDescriptor `json:"type"`
}

// Descriptor renders the schema as JSON. The output is structural: it
// contains no live data and no Go-side configuration such as factories.
func (s *Schema) Descriptor() ([]byte, error) {
	d, err := describeSchema(s.name, s.defs, s.params, s.packed)
	if err != nil {
		return nil, err
	}
	return json.Marshal(d)
}

func describeSchema(name string, defs []FieldDef, params Params, packed bool) (*schemaDescriptor, error) {
	d := &schemaDescriptor{
		Name:      name,
		ByteOrder: params.Order.String(),
		Packed:    packed,
	}
	for _, def := range defs {
		fd, err := describeField(def)
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, fd)
	}
	return d, nil
}

func describeField(def FieldDef) (fieldDescriptor, error) {
	td, err := describeType(def.Type)
	if err != nil {
		return fieldDescriptor{}, err
	}
	fd := fieldDescriptor{
		Name:         def.Name,
		Type:         td,
		Length:       lengthJSON(def.Options.Length),
		PackLength:   lengthJSON(def.Options.PackLength),
		UnpackLength: lengthJSON(def.Options.UnpackLength),
		Align:        def.Options.Align,
		Default:      def.Options.Default,
		SelectorMap:  def.Options.SelectorMap,
		OmitEmpty:    def.Options.OmitEmpty,
	}
	switch sel := def.Options.Selector.(type) {
	case nil:
	case string:
		fd.Selector = sel
	case []string:
		fd.Selector = sel
	default:
		fd.Selector = "func"
	}
	return fd, nil
}

func describeType(t Type) (typeDescriptor, error) {
	switch tt := t.(type) {
	case Kind:
		return typeDescriptor{Kind: tt.String()}, nil
	case Text:
		return typeDescriptor{Kind: "text", Length: lengthJSON(tt.Length)}, nil
	case Binary:
		return typeDescriptor{Kind: "binary", Length: lengthJSON(tt.Length)}, nil
	case Array:
		elem, err := describeType(tt.Elem)
		if err != nil {
			return typeDescriptor{}, err
		}
		return typeDescriptor{Kind: "array", Elem: &elem, Count: lengthJSON(tt.Count)}, nil
	case Struct:
		if tt.Schema == nil {
			return typeDescriptor{Kind: "struct"}, nil
		}
		sub, err := describeSchema(tt.Schema.name, tt.Schema.defs, tt.Schema.params, tt.Schema.packed)
		if err != nil {
			return typeDescriptor{}, err
		}
		raw, err := json.Marshal(sub)
		if err != nil {
			return typeDescriptor{}, err
		}
		return typeDescriptor{Kind: "struct", Schema: raw}, nil
	case Union:
		td := typeDescriptor{Kind: "union"}
		for _, v := range tt.Variants {
			mt, err := describeType(v.Type)
			if err != nil {
				return typeDescriptor{}, err
			}
			td.Members = append(td.Members, memberDescriptor{Name: v.Name, Type: mt})
		}
		return td, nil
	case Enum:
		return typeDescriptor{Kind: "enum", Carrier: tt.Elem.String(), Values: tt.Values}, nil
	case inheritMarker:
		return typeDescriptor{Kind: "inherit"}, nil
	case nil:
		return typeDescriptor{Kind: "nil"}, nil
	}
	return typeDescriptor{Kind: "unknown"}, nil
}

// descriptorKey renders the structural identity used by the schema cache as
// a flat canonical string. The key is built by walking the declarations
// directly: it must not round-trip through a JSON encoder, since schemas
// nest recursively and options carry any-typed values. Schemas holding Go
// functions (factories, selector funcs) have no structural identity and
// report not cacheable.
func descriptorKey(name string, defs []FieldDef, cfg schemaConfig) (string, bool) {
	if cfg.factory != nil {
		return "", false
	}
	var b strings.Builder
	if !schemaKey(&b, name, defs, cfg.params, cfg.packed) {
		return "", false
	}
	return b.String(), true
}

func schemaKey(b *strings.Builder, name string, defs []FieldDef, params Params, packed bool) bool {
	fmt.Fprintf(b, "schema(%q %s packed=%t", name, params.Order, packed)
	for _, def := range defs {
		fmt.Fprintf(b, " field(%q ", def.Name)
		if !typeKey(b, def.Type) {
			return false
		}
		lengthKey(b, " len=", def.Options.Length)
		lengthKey(b, " plen=", def.Options.PackLength)
		lengthKey(b, " ulen=", def.Options.UnpackLength)
		if def.Options.Align > 0 {
			fmt.Fprintf(b, " align=%d", def.Options.Align)
		}
		if def.Options.Default != nil {
			fmt.Fprintf(b, " def=%T:%v", def.Options.Default, def.Options.Default)
		}
		switch sel := def.Options.Selector.(type) {
		case nil:
		case string:
			fmt.Fprintf(b, " sel=%q", sel)
		case []string:
			fmt.Fprintf(b, " sel=%q", strings.Join(sel, ","))
		default:
			return false
		}
		if len(def.Options.SelectorMap) > 0 {
			names := make([]string, 0, len(def.Options.SelectorMap))
			for n := range def.Options.SelectorMap {
				names = append(names, n)
			}
			sort.Strings(names)
			b.WriteString(" selmap=")
			for _, n := range names {
				fmt.Fprintf(b, "%q:%v;", n, def.Options.SelectorMap[n])
			}
		}
		if def.Options.OmitEmpty {
			b.WriteString(" omitempty")
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return true
}

func typeKey(b *strings.Builder, t Type) bool {
	switch tt := t.(type) {
	case Kind:
		b.WriteString(tt.String())
	case Text:
		b.WriteString("text")
		lengthKey(b, ":", tt.Length)
	case Binary:
		b.WriteString("binary")
		lengthKey(b, ":", tt.Length)
	case Array:
		b.WriteString("array[")
		if !typeKey(b, tt.Elem) {
			return false
		}
		lengthKey(b, ":", tt.Count)
		b.WriteString("]")
	case Struct:
		if tt.Schema == nil || tt.Schema.factory != nil {
			return false
		}
		return schemaKey(b, tt.Schema.name, tt.Schema.defs, tt.Schema.params, tt.Schema.packed)
	case Union:
		b.WriteString("union[")
		for _, v := range tt.Variants {
			fmt.Fprintf(b, "%q:", v.Name)
			if !typeKey(b, v.Type) {
				return false
			}
			b.WriteString(";")
		}
		b.WriteString("]")
	case Enum:
		fmt.Fprintf(b, "enum[%s", tt.Elem)
		names := make([]string, 0, len(tt.Values))
		for n := range tt.Values {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(b, " %q=%d", n, tt.Values[n])
		}
		b.WriteString("]")
	case inheritMarker:
		b.WriteString("inherit")
	default:
		return false
	}
	return true
}

func lengthKey(b *strings.Builder, prefix string, v any) {
	switch lv := v.(type) {
	case int:
		fmt.Fprintf(b, "%s%d", prefix, lv)
	case string:
		fmt.Fprintf(b, "%s%q", prefix, lv)
	case Kind:
		fmt.Fprintf(b, "%sprefix:%s", prefix, lv)
	case inheritMarker:
		b.WriteString(prefix + "inherit")
	}
}

func lengthJSON(v any) any {
	switch lv := v.(type) {
	case nil:
		return nil
	case int:
		return lv
	case string:
		return lv
	case Kind:
		return "prefix:" + lv.String()
	case inheritMarker:
		return "inherit"
	}
	return nil
}

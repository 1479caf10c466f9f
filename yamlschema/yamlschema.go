// Package yamlschema builds schemas from YAML declarations, so layouts can
// live next to the protocol documentation instead of in Go source. A stream
// holds one document per schema; later documents may embed earlier ones by
// name or extend them.
//
//	name: header
//	packed: true
//	fields:
//	  - name: msg_len
//	    type: uint32
//	  - name: msg
//	    type: text
//	    length: 64
//	    pack_length: msg
//	    unpack_length: msg_len
package yamlschema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	sp "github.com/reoring/structpack"
)

type schemaDoc struct {
	Name      string     `yaml:"name"`
	Extends   string     `yaml:"extends"`
	ByteOrder string     `yaml:"byte_order"`
	Packed    bool       `yaml:"packed"`
	Fields    []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name         string         `yaml:"name"`
	Type         string         `yaml:"type"`
	Length       any            `yaml:"length"`
	Elem         *fieldDoc      `yaml:"elem"`
	Count        any            `yaml:"count"`
	Schema       string         `yaml:"schema"`
	Members      []fieldDoc     `yaml:"members"`
	Carrier      string         `yaml:"carrier"`
	Values       map[string]int64 `yaml:"values"`
	PackLength   any            `yaml:"pack_length"`
	UnpackLength any            `yaml:"unpack_length"`
	Align        int            `yaml:"align"`
	Default      any            `yaml:"default"`
	Selector     any            `yaml:"selector"`
	SelectorMap  map[string]any `yaml:"selector_map"`
	OmitEmpty    bool           `yaml:"omit_empty"`
}

// Registry holds the schemas of one stream in declaration order.
type Registry struct {
	order   []string
	schemas map[string]*sp.Schema
}

// Get returns a schema by name.
func (r *Registry) Get(name string) (*sp.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names lists the schemas in declaration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// Last returns the final schema of the stream, conventionally the top-level
// message layout.
func (r *Registry) Last() *sp.Schema {
	if len(r.order) == 0 {
		return nil
	}
	return r.schemas[r.order[len(r.order)-1]]
}

// Load reads a YAML stream of schema documents.
func Load(r io.Reader) (*Registry, error) {
	reg := &Registry{schemas: map[string]*sp.Schema{}}
	dec := yaml.NewDecoder(r)
	for {
		var doc schemaDoc
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("yamlschema: %w", err)
		}
		if doc.Name == "" {
			return nil, fmt.Errorf("yamlschema: schema document without a name")
		}
		s, err := buildSchema(doc, reg)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.schemas[doc.Name]; dup {
			return nil, fmt.Errorf("yamlschema: duplicate schema %q", doc.Name)
		}
		reg.schemas[doc.Name] = s
		reg.order = append(reg.order, doc.Name)
	}
	return reg, nil
}

// LoadBytes reads a YAML stream from memory.
func LoadBytes(b []byte) (*Registry, error) { return Load(bytes.NewReader(b)) }

func buildSchema(doc schemaDoc, reg *Registry) (*sp.Schema, error) {
	var defs []sp.FieldDef
	for _, fd := range doc.Fields {
		def, err := buildFieldDef(doc.Name, fd, reg)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	var opts []sp.SchemaOption
	if doc.ByteOrder != "" {
		bo, err := parseByteOrder(doc.ByteOrder)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sp.WithByteOrder(bo))
	}
	if doc.Packed {
		opts = append(opts, sp.WithPacked())
	}
	if doc.Extends != "" {
		base, ok := reg.Get(doc.Extends)
		if !ok {
			return nil, fmt.Errorf("yamlschema: %s extends unknown schema %q", doc.Name, doc.Extends)
		}
		return base.Extend(doc.Name, defs, opts...)
	}
	return sp.New(doc.Name, defs, opts...)
}

func buildFieldDef(schema string, fd fieldDoc, reg *Registry) (sp.FieldDef, error) {
	t, err := buildType(schema, fd, reg)
	if err != nil {
		return sp.FieldDef{}, err
	}
	def := sp.FieldDef{
		Name: fd.Name,
		Type: t,
		Options: sp.Options{
			Align:       fd.Align,
			Default:     fd.Default,
			SelectorMap: fd.SelectorMap,
			OmitEmpty:   fd.OmitEmpty,
		},
	}
	if def.Options.PackLength, err = parseLength(schema, fd.Name, fd.PackLength); err != nil {
		return sp.FieldDef{}, err
	}
	if def.Options.UnpackLength, err = parseLength(schema, fd.Name, fd.UnpackLength); err != nil {
		return sp.FieldDef{}, err
	}
	switch sel := fd.Selector.(type) {
	case nil:
	case string:
		def.Options.Selector = sel
	case []any:
		paths := make([]string, 0, len(sel))
		for _, p := range sel {
			ps, ok := p.(string)
			if !ok {
				return sp.FieldDef{}, fmt.Errorf("yamlschema: %s.%s: selector entries must be paths", schema, fd.Name)
			}
			paths = append(paths, ps)
		}
		def.Options.Selector = paths
	default:
		return sp.FieldDef{}, fmt.Errorf("yamlschema: %s.%s: unusable selector %T", schema, fd.Name, fd.Selector)
	}
	return def, nil
}

func buildType(schema string, fd fieldDoc, reg *Registry) (sp.Type, error) {
	if k, ok := kindByName(fd.Type); ok {
		return k, nil
	}
	switch fd.Type {
	case "text":
		l, err := parseLength(schema, fd.Name, fd.Length)
		if err != nil {
			return nil, err
		}
		return sp.Text{Length: l}, nil
	case "binary":
		l, err := parseLength(schema, fd.Name, fd.Length)
		if err != nil {
			return nil, err
		}
		return sp.Binary{Length: l}, nil
	case "array":
		if fd.Elem == nil {
			return nil, fmt.Errorf("yamlschema: %s.%s: array without elem", schema, fd.Name)
		}
		elem, err := buildType(schema, *fd.Elem, reg)
		if err != nil {
			return nil, err
		}
		count, err := parseLength(schema, fd.Name, fd.Count)
		if err != nil {
			return nil, err
		}
		return sp.Array{Elem: elem, Count: count}, nil
	case "struct":
		sub, ok := reg.Get(fd.Schema)
		if !ok {
			return nil, fmt.Errorf("yamlschema: %s.%s: unknown schema %q", schema, fd.Name, fd.Schema)
		}
		return sp.Struct{Schema: sub}, nil
	case "union":
		var variants []sp.Variant
		for _, md := range fd.Members {
			mt, err := buildType(schema, md, reg)
			if err != nil {
				return nil, err
			}
			variants = append(variants, sp.Variant{Name: md.Name, Type: mt})
		}
		return sp.Union{Variants: variants}, nil
	case "enum":
		carrier, ok := kindByName(fd.Carrier)
		if !ok {
			carrier = sp.Int32
		}
		return sp.Enum{Elem: carrier, Values: fd.Values}, nil
	case "inherit":
		return sp.Inherit, nil
	}
	return nil, fmt.Errorf("yamlschema: %s.%s: unknown type %q", schema, fd.Name, fd.Type)
}

func kindByName(name string) (sp.Kind, bool) {
	switch name {
	case "int8":
		return sp.Int8, true
	case "uint8":
		return sp.Uint8, true
	case "int16":
		return sp.Int16, true
	case "uint16":
		return sp.Uint16, true
	case "int32":
		return sp.Int32, true
	case "uint32":
		return sp.Uint32, true
	case "int64":
		return sp.Int64, true
	case "uint64":
		return sp.Uint64, true
	case "long":
		return sp.Long, true
	case "ulong":
		return sp.ULong, true
	case "float32":
		return sp.Float32, true
	case "float64":
		return sp.Float64, true
	case "bool":
		return sp.Bool, true
	}
	return 0, false
}

// parseLength maps a YAML length value: integers stay literal, "prefix:KIND"
// declares an inline length prefix, "inherit" marks base inheritance, any
// other string is a dotted path.
func parseLength(schema, field string, v any) (any, error) {
	switch lv := v.(type) {
	case nil:
		return nil, nil
	case int:
		return lv, nil
	case string:
		if lv == "inherit" {
			return sp.Inherit, nil
		}
		if rest, ok := strings.CutPrefix(lv, "prefix:"); ok {
			k, ok := kindByName(rest)
			if !ok {
				return nil, fmt.Errorf("yamlschema: %s.%s: unknown prefix kind %q", schema, field, rest)
			}
			return k, nil
		}
		return lv, nil
	}
	return nil, fmt.Errorf("yamlschema: %s.%s: unusable length %T", schema, field, v)
}

func parseByteOrder(s string) (sp.ByteOrder, error) {
	switch s {
	case "@", "native":
		return sp.Native, nil
	case "=", "standard":
		return sp.NativeStandard, nil
	case "<", "little":
		return sp.LittleEndian, nil
	case ">", "big":
		return sp.BigEndian, nil
	case "!", "network":
		return sp.Network, nil
	}
	return 0, fmt.Errorf("yamlschema: unknown byte order %q", s)
}

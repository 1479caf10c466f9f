// Package dsl provides the fluent, declaration-style front end for building
// schemas:
//
//	hdr := dsl.Record("header").
//		Field("msg_len", dsl.Uint32()).
//		Field("msg", dsl.Text(64)).PackLength("msg").UnpackLength("msg_len").
//		MustBuild()
//
// Field chains collect declarations; Build compiles them once into an
// immutable Schema.
package dsl

import (
	sp "github.com/reoring/structpack"
)

// Builder accumulates field declarations for one schema.
type Builder struct {
	name string
	base *sp.Schema
	defs []sp.FieldDef
	opts []sp.SchemaOption
}

// Record starts a schema declaration.
func Record(name string) *Builder { return &Builder{name: name} }

// Extend starts a declaration deriving from base: same-named fields replace
// the base's in place, new fields append, and Inherit markers copy the base
// field's length.
func Extend(name string, base *sp.Schema) *Builder {
	return &Builder{name: name, base: base}
}

// ByteOrder overrides the process default order.
func (b *Builder) ByteOrder(bo sp.ByteOrder) *Builder {
	b.opts = append(b.opts, sp.WithByteOrder(bo))
	return b
}

// Packed disables implicit alignment for the whole layout.
func (b *Builder) Packed() *Builder {
	b.opts = append(b.opts, sp.WithPacked())
	return b
}

// Factory post-processes unpacked values into an application type.
func (b *Builder) Factory(fn func(map[string]any) (any, error)) *Builder {
	b.opts = append(b.opts, sp.WithFactory(fn))
	return b
}

// Field opens a field declaration; the returned step carries the per-field
// options and commits when the chain moves on.
func (b *Builder) Field(name string, t sp.Type) *FieldStep {
	return &FieldStep{b: b, def: sp.FieldDef{Name: name, Type: t}}
}

// Build compiles the declaration.
func (b *Builder) Build() (*sp.Schema, error) {
	if b.base != nil {
		return b.base.Extend(b.name, b.defs, b.opts...)
	}
	return sp.New(b.name, b.defs, b.opts...)
}

// MustBuild compiles and panics on declaration errors. Meant for schemas
// declared at package level.
func (b *Builder) MustBuild() *sp.Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// FieldStep is one in-flight field declaration.
type FieldStep struct {
	b   *Builder
	def sp.FieldDef
}

func (fs *FieldStep) commit() *Builder {
	fs.b.defs = append(fs.b.defs, fs.def)
	return fs.b
}

// Length overrides or supplies the declared length/count.
func (fs *FieldStep) Length(l any) *FieldStep {
	fs.def.Options.Length = l
	return fs
}

// PackLength sets the length source used when packing: a dotted path, an
// int literal, or a Kind declaring an inline length prefix.
func (fs *FieldStep) PackLength(l any) *FieldStep {
	fs.def.Options.PackLength = l
	return fs
}

// UnpackLength sets the length source used when unpacking. A path source is
// also written back with the actual length while packing.
func (fs *FieldStep) UnpackLength(l any) *FieldStep {
	fs.def.Options.UnpackLength = l
	return fs
}

// Align overrides the field's alignment requirement.
func (fs *FieldStep) Align(n int) *FieldStep {
	fs.def.Options.Align = n
	return fs
}

// Default supplies the value packed when the field is absent.
func (fs *FieldStep) Default(v any) *FieldStep {
	fs.def.Options.Default = v
	return fs
}

// Selector names the discriminator path(s) of a union field.
func (fs *FieldStep) Selector(paths ...string) *FieldStep {
	if len(paths) == 1 {
		fs.def.Options.Selector = paths[0]
	} else {
		fs.def.Options.Selector = paths
	}
	return fs
}

// SelectorFunc installs a computed discriminator.
func (fs *FieldStep) SelectorFunc(fn sp.SelectorFunc) *FieldStep {
	fs.def.Options.Selector = fn
	return fs
}

// SelectorMap maps member names to the selector value (or []any of values)
// activating them.
func (fs *FieldStep) SelectorMap(m map[string]any) *FieldStep {
	fs.def.Options.SelectorMap = m
	return fs
}

// OmitEmpty drops an unresolved union from the layout instead of emitting a
// zero-length placeholder.
func (fs *FieldStep) OmitEmpty() *FieldStep {
	fs.def.Options.OmitEmpty = true
	return fs
}

// Field commits this declaration and opens the next.
func (fs *FieldStep) Field(name string, t sp.Type) *FieldStep {
	return fs.commit().Field(name, t)
}

// ByteOrder commits and sets the schema byte order.
func (fs *FieldStep) ByteOrder(bo sp.ByteOrder) *Builder { return fs.commit().ByteOrder(bo) }

// Packed commits and disables implicit alignment.
func (fs *FieldStep) Packed() *Builder { return fs.commit().Packed() }

// Factory commits and installs the value factory.
func (fs *FieldStep) Factory(fn func(map[string]any) (any, error)) *Builder {
	return fs.commit().Factory(fn)
}

// Build commits this declaration and compiles the schema.
func (fs *FieldStep) Build() (*sp.Schema, error) { return fs.commit().Build() }

// MustBuild commits this declaration and compiles, panicking on errors.
func (fs *FieldStep) MustBuild() *sp.Schema { return fs.commit().MustBuild() }

package dsl

import (
	sp "github.com/reoring/structpack"
)

// Primitive type specs.

func Int8() sp.Type    { return sp.Int8 }
func Uint8() sp.Type   { return sp.Uint8 }
func Int16() sp.Type   { return sp.Int16 }
func Uint16() sp.Type  { return sp.Uint16 }
func Int32() sp.Type   { return sp.Int32 }
func Uint32() sp.Type  { return sp.Uint32 }
func Int64() sp.Type   { return sp.Int64 }
func Uint64() sp.Type  { return sp.Uint64 }
func Long() sp.Type    { return sp.Long }
func ULong() sp.Type   { return sp.ULong }
func Float32() sp.Type { return sp.Float32 }
func Float64() sp.Type { return sp.Float64 }
func Bool() sp.Type    { return sp.Bool }

// Text declares a NUL-padded string. length is an int maximum, a dotted
// path to the field carrying the live length, or Inherit().
func Text(length any) sp.Type { return sp.Text{Length: length} }

// Binary declares a raw byte string; length forms as for Text.
func Binary(length any) sp.Type { return sp.Binary{Length: length} }

// ArrayOf declares a sequence. count is an int, a dotted path, or nil when
// the count comes exclusively from pack/unpack length sources.
func ArrayOf(elem sp.Type, count any) sp.Type { return sp.Array{Elem: elem, Count: count} }

// StructOf embeds a compiled schema as a nested record.
func StructOf(s *sp.Schema) sp.Type { return sp.Struct{Schema: s} }

// UnionOf declares a union over the given members, in declaration order.
func UnionOf(members ...sp.Variant) sp.Type { return sp.Union{Variants: members} }

// Member declares one union member.
func Member(name string, t sp.Type) sp.Variant { return sp.Variant{Name: name, Type: t} }

// EnumOf declares a named integer over the given carrier kind.
func EnumOf(carrier sp.Kind, values map[string]int64) sp.Type {
	return sp.Enum{Elem: carrier, Values: values}
}

// Inherit marks a length to be copied from the base schema's field when
// building by extension.
func Inherit() sp.Type { return sp.Inherit }

// Package structpack converts structured in-memory values to and from
// C-struct-style binary layouts driven by declarative schemas.
//
// A schema is a tree of typed fields (primitives, fixed-length text and
// binary, arrays, nested records, unions). Packing and unpacking run through
// a Context: every field registers itself together with its format fragment
// and the scope it was registered under, the fragments are concatenated into
// a single format string, and the wire codec is invoked once per pass.
// Layout is allowed to depend on live data — dynamic array counts, text
// lengths read from sibling fields, and union member selection are resolved
// against the value tree at registration time, and the length used for
// packing may come from a different field than the one used for unpacking.
//
// Schemas are immutable once built and safe to share between goroutines;
// a Context belongs to a single pack or unpack operation.
//
// The usual entry point is the dsl package:
//
//	person, err := dsl.Record("person").
//		Field("age", dsl.Uint8()).
//		Field("name", dsl.Text(32)).PackLength("name").UnpackLength("age").
//		Build()
//
//	raw, err := person.Pack(map[string]any{"age": 0, "name": "bob"})
package structpack

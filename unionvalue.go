package structpack

import (
	json "github.com/goccy/go-json"
)

// UnionValue is the live value of a union field. For a discriminated union
// it carries the active member's name and value; for a C-style union it
// carries the raw storage bytes and members are reinterpretations of them.
type UnionValue struct {
	u    *unionField
	kind string
	val  any
	raw  []byte
}

// NewUnionValue builds a detached discriminated value carrying member's
// value, for handing to Pack.
func NewUnionValue(member string, v any) *UnionValue {
	return &UnionValue{kind: member, val: v}
}

// RawUnionValue builds a detached C-style value over the given storage.
func RawUnionValue(b []byte) *UnionValue { return &UnionValue{raw: b} }

// Kind returns the active member's name, "" when unresolved or C-style.
func (uv *UnionValue) Kind() string { return uv.kind }

// Value returns the active member's value, nil when unresolved.
func (uv *UnionValue) Value() any { return uv.val }

// Bytes returns the raw storage of a C-style value.
func (uv *UnionValue) Bytes() []byte { return uv.raw }

// Get reads a member. On a C-style value any member can be read, as a
// reinterpretation of the storage bytes. On a discriminated value only the
// active member is readable; asking for an inactive member reports
// value_not_active, and for an unknown name selector_map.
func (uv *UnionValue) Get(member string) (any, error) {
	if uv.u != nil {
		mf, ok := uv.u.member(member)
		if !ok {
			return nil, issueAt("/"+member, CodeSelectorMap, nil, map[string]any{"member": member})
		}
		if !uv.u.hasSelector() {
			v, _, err := subUnpack(uv.u.params, mf, uv.raw)
			return v, err
		}
	}
	if uv.kind != "" && uv.kind == member {
		return uv.val, nil
	}
	return nil, issueAt("/"+member, CodeValueNotActive, nil, map[string]any{"member": member, "active": uv.kind})
}

// Set writes a member. On a C-style value the storage is zeroed and the
// member's serialized form written at the front; on a discriminated value
// the member becomes active.
func (uv *UnionValue) Set(member string, v any) error {
	if uv.u != nil {
		mf, ok := uv.u.member(member)
		if !ok {
			return issueAt("/"+member, CodeSelectorMap, nil, map[string]any{"member": member})
		}
		if !uv.u.hasSelector() {
			b, err := subPack(uv.u.params, mf, v)
			if err != nil {
				return err
			}
			if len(uv.raw) < uv.u.staticSize {
				uv.raw = make([]byte, uv.u.staticSize)
			} else {
				for i := range uv.raw {
					uv.raw[i] = 0
				}
			}
			copy(uv.raw, b)
			uv.kind = ""
			uv.val = nil
			return nil
		}
	}
	uv.kind = member
	uv.val = v
	uv.raw = nil
	return nil
}

// Clear deactivates the value and zeroes any C-style storage.
func (uv *UnionValue) Clear() {
	uv.kind = ""
	uv.val = nil
	for i := range uv.raw {
		uv.raw[i] = 0
	}
}

// MarshalJSON renders a discriminated value as {"member": value}, a C-style
// value as its raw bytes, and an unresolved value as null.
func (uv *UnionValue) MarshalJSON() ([]byte, error) {
	if uv.kind != "" {
		return json.Marshal(map[string]any{uv.kind: uv.val})
	}
	if uv.raw != nil {
		return json.Marshal(uv.raw)
	}
	return []byte("null"), nil
}

// slot and setSlot let dotted paths traverse union members.
func (uv *UnionValue) slot(name string) (any, bool) {
	v, err := uv.Get(name)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (uv *UnionValue) setSlot(name string, v any) bool {
	return uv.Set(name, v) == nil
}

package structpack

import (
	"strconv"
	"strings"
)

// Mapper lets application-defined value types participate in dotted-path
// lookups. Maps and slices are handled natively; anything else the engine
// needs to descend into must implement Mapper.
type Mapper interface {
	GetSlot(name string) (any, bool)
	SetSlot(name string, value any) error
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// lookupPath walks obj along parts. It understands map[string]any, []any
// with numeric segments, *UnionValue members and Mapper implementations.
func lookupPath(obj any, parts []string) (any, bool) {
	cur := obj
	for _, p := range parts {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[p]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		case *UnionValue:
			v, ok := node.slot(p)
			if !ok {
				return nil, false
			}
			cur = v
		case Mapper:
			v, ok := node.GetSlot(p)
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// setPath stores value at parts below obj. With upsert, missing intermediate
// map segments are created on the way down.
func setPath(obj any, parts []string, value any, upsert bool) bool {
	if len(parts) == 0 {
		return false
	}
	cur := obj
	for _, p := range parts[:len(parts)-1] {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[p]
			if !ok {
				if !upsert {
					return false
				}
				v = map[string]any{}
				node[p] = v
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= len(node) {
				return false
			}
			cur = node[idx]
		case *UnionValue:
			v, ok := node.slot(p)
			if !ok {
				return false
			}
			cur = v
		case Mapper:
			v, ok := node.GetSlot(p)
			if !ok {
				return false
			}
			cur = v
		default:
			return false
		}
	}
	last := parts[len(parts)-1]
	switch node := cur.(type) {
	case map[string]any:
		if !upsert {
			if _, ok := node[last]; !ok {
				return false
			}
		}
		node[last] = value
		return true
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(node) {
			return false
		}
		node[idx] = value
		return true
	case *UnionValue:
		return node.setSlot(last, value)
	case Mapper:
		return node.SetSlot(last, value) == nil
	}
	return false
}

// valueLength measures a value for length resolution: byte strings and
// strings by byte count, sequences by element count, integers verbatim.
func valueLength(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case string:
		return len(n), true
	case []byte:
		return len(n), true
	case []any:
		return len(n), true
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// looseEqual compares selector values across the integer and string types
// the codec hands back versus what schema authors write down.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	ai, aok := toCanonInt(a)
	bi, bok := toCanonInt(b)
	if aok && bok {
		return ai == bi
	}
	return a == b
}

func toCanonInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

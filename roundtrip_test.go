package structpack_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	sp "github.com/reoring/structpack"
)

func mustPack(t *testing.T, s *sp.Schema, v any) []byte {
	t.Helper()
	b, err := s.Pack(v)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return b
}

func mustUnpack(t *testing.T, s *sp.Schema, b []byte) any {
	t.Helper()
	v, err := s.Unpack(b)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	return v
}

func TestPackUnpackScalars(t *testing.T) {
	s := mustSchema(t, "scalar_frame", []sp.FieldDef{
		{Name: "a", Type: sp.Uint8},
		{Name: "b", Type: sp.Uint16},
		{Name: "c", Type: sp.Uint32},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"a": 1, "b": 0x0203, "c": 0x04050607})
	want := []byte{0x01, 0x00, 0x03, 0x02, 0x07, 0x06, 0x05, 0x04}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"a": uint64(1), "b": uint64(0x0203), "c": uint64(0x04050607)}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestCountedArrayRoundTrip(t *testing.T) {
	s := mustSchema(t, "int_run", []sp.FieldDef{
		{Name: "count", Type: sp.Uint8},
		{Name: "items", Type: sp.Array{Elem: sp.Int32, Count: "count"}},
	}, sp.WithByteOrder(sp.LittleEndian))

	// packing derives the count from the value and keeps the carrier in step
	b := mustPack(t, s, map[string]any{"items": []any{1, 2, 3}})
	want := []byte{
		0x03, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00,
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{
		"count": uint64(3),
		"items": []any{int64(1), int64(2), int64(3)},
	}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestFixedArrayCountMismatch(t *testing.T) {
	s := mustSchema(t, "fixed_run", []sp.FieldDef{
		{Name: "items", Type: sp.Array{Elem: sp.Int32, Count: 3}},
	}, sp.WithByteOrder(sp.LittleEndian))

	_, err := s.Pack(map[string]any{"items": []any{1, 2, 3, 4}})
	if !sp.IsCode(err, sp.CodeInvalidValue) {
		t.Fatalf("expected invalid_value, got: %v", err)
	}
}

func TestTextLengthOverflow(t *testing.T) {
	s := mustSchema(t, "short_tag", []sp.FieldDef{
		{Name: "tag", Type: sp.Text{Length: 3}},
	}, sp.WithByteOrder(sp.LittleEndian))
	_, err := s.Pack(map[string]any{"tag": "abcd"})
	if !sp.IsCode(err, sp.CodeLengthOverflow) {
		t.Fatalf("expected length_overflow, got: %v", err)
	}

	s = mustSchema(t, "capped_msg", []sp.FieldDef{
		{Name: "msg_len", Type: sp.Uint32},
		{Name: "msg", Type: sp.Text{Length: 8}, Options: sp.Options{
			PackLength:   "msg",
			UnpackLength: "msg_len",
		}},
	}, sp.WithByteOrder(sp.LittleEndian))
	_, err = s.Pack(map[string]any{"msg": "far too long"})
	if !sp.IsCode(err, sp.CodeLengthOverflow) {
		t.Fatalf("expected length_overflow, got: %v", err)
	}
}

func TestHeaderCarriedTextLength(t *testing.T) {
	s := mustSchema(t, "len_msg", []sp.FieldDef{
		{Name: "msg_len", Type: sp.Uint32},
		{Name: "msg", Type: sp.Text{Length: 32}, Options: sp.Options{
			PackLength:   "msg",
			UnpackLength: "msg_len",
		}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"msg": "test message"})
	want := append([]byte{0x0c, 0x00, 0x00, 0x00}, []byte("test message")...)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"msg_len": uint64(12), "msg": "test message"}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestInlinePrefixLength(t *testing.T) {
	s := mustSchema(t, "prefixed_blob", []sp.FieldDef{
		{Name: "data", Type: sp.Binary{}, Options: sp.Options{
			PackLength:   sp.Uint32,
			UnpackLength: sp.Uint32,
		}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"data": []byte("abcdef")})
	want := append([]byte{0x06, 0x00, 0x00, 0x00}, []byte("abcdef")...)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"data": []byte("abcdef")}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclaredPathTextLength(t *testing.T) {
	s := mustSchema(t, "trailer_frame", []sp.FieldDef{
		{Name: "n", Type: sp.Int32},
		{Name: "s", Type: sp.Text{Length: "n"}},
		{Name: "q", Type: sp.Uint64},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"s": "canary", "q": 9})
	want := []byte{0x06, 0x00, 0x00, 0x00}
	want = append(want, []byte("canary")...)
	want = append(want, 0, 0, 0, 0, 0, 0) // q realigns to 8
	want = append(want, 0x09, 0, 0, 0, 0, 0, 0, 0)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"n": int64(6), "s": "canary", "q": uint64(9)}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamicElementArray(t *testing.T) {
	item := mustSchema(t, "list_item", []sp.FieldDef{
		{Name: "nlen", Type: sp.Int32},
		{Name: "name", Type: sp.Text{Length: "nlen"}},
	}, sp.WithByteOrder(sp.LittleEndian), sp.WithPacked())
	s := mustSchema(t, "name_list", []sp.FieldDef{
		{Name: "count", Type: sp.Uint32},
		{Name: "items", Type: sp.Array{Elem: sp.Struct{Schema: item}, Count: "count"}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"items": []any{
		map[string]any{"name": "tests"},
		map[string]any{"name": "testing"},
	}})
	want := []byte{0x02, 0x00, 0x00, 0x00}
	want = append(want, 0x05, 0x00, 0x00, 0x00)
	want = append(want, []byte("tests")...)
	want = append(want, 0x07, 0x00, 0x00, 0x00)
	want = append(want, []byte("testing")...)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{
		"count": uint64(2),
		"items": []any{
			map[string]any{"nlen": int64(5), "name": "tests"},
			map[string]any{"nlen": int64(7), "name": "testing"},
		},
	}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestFixedRecordArrayRoundTrip(t *testing.T) {
	point := mustSchema(t, "point2d", []sp.FieldDef{
		{Name: "x", Type: sp.Int16},
		{Name: "y", Type: sp.Int16},
	}, sp.WithByteOrder(sp.LittleEndian))
	s := mustSchema(t, "triangle2d", []sp.FieldDef{
		{Name: "pts", Type: sp.Array{Elem: sp.Struct{Schema: point}, Count: 3}},
	}, sp.WithByteOrder(sp.LittleEndian))

	in := map[string]any{"pts": []any{
		map[string]any{"x": 1, "y": 2},
		map[string]any{"x": 3, "y": 4},
		map[string]any{"x": 5, "y": 6},
	}}
	b := mustPack(t, s, in)
	want := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"pts": []any{
		map[string]any{"x": int64(1), "y": int64(2)},
		map[string]any{"x": int64(3), "y": int64(4)},
		map[string]any{"x": int64(5), "y": int64(6)},
	}}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedRecordScopes(t *testing.T) {
	inner := mustSchema(t, "inner_hdr", []sp.FieldDef{
		{Name: "a", Type: sp.Uint8},
		{Name: "n", Type: sp.Uint16},
	}, sp.WithByteOrder(sp.LittleEndian))
	s := mustSchema(t, "outer_frame", []sp.FieldDef{
		{Name: "hdr", Type: sp.Struct{Schema: inner}},
		{Name: "crc", Type: sp.Uint16},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{
		"hdr": map[string]any{"a": 7, "n": 0x0102},
		"crc": 0xBEEF,
	})
	want := []byte{0x07, 0x00, 0x02, 0x01, 0xef, 0xbe}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{
		"hdr": map[string]any{"a": uint64(7), "n": uint64(0x0102)},
		"crc": uint64(0xBEEF),
	}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumNames(t *testing.T) {
	s := mustSchema(t, "color_reg", []sp.FieldDef{
		{Name: "color", Type: sp.Enum{Elem: sp.Uint8, Values: map[string]int64{
			"red":   1,
			"green": 2,
		}}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"color": "green"})
	if diff := cmp.Diff([]byte{0x02}, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	if diff := cmp.Diff(map[string]any{"color": "green"}, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}

	// unmapped wire values come back numeric instead of failing
	v = mustUnpack(t, s, []byte{0x09})
	if diff := cmp.Diff(map[string]any{"color": int64(9)}, v); diff != "" {
		t.Fatalf("unknown wire value mismatch (-want +got):\n%s", diff)
	}

	_, err := s.Pack(map[string]any{"color": "blue"})
	if !sp.IsCode(err, sp.CodeInvalidValue) {
		t.Fatalf("expected invalid_value, got: %v", err)
	}
}

func TestDefaultsFillMissingFields(t *testing.T) {
	s := mustSchema(t, "defaulted", []sp.FieldDef{
		{Name: "version", Type: sp.Uint8, Options: sp.Options{Default: 7}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{})
	if diff := cmp.Diff([]byte{0x07}, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingValueFailsPack(t *testing.T) {
	s := mustSchema(t, "strict_pair", []sp.FieldDef{
		{Name: "x", Type: sp.Int16},
		{Name: "y", Type: sp.Int16},
	}, sp.WithByteOrder(sp.LittleEndian))
	_, err := s.Pack(map[string]any{"x": 1})
	if !sp.IsCode(err, sp.CodePathLookup) {
		t.Fatalf("expected path_lookup, got: %v", err)
	}
}

func TestFloatsAndBool(t *testing.T) {
	s := mustSchema(t, "sensor_sample", []sp.FieldDef{
		{Name: "f", Type: sp.Float32},
		{Name: "d", Type: sp.Float64},
		{Name: "ok", Type: sp.Bool},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"f": 1.5, "d": -2.25, "ok": true})
	if len(b) != 17 {
		t.Fatalf("want 17 bytes, got %d", len(b))
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"f": 1.5, "d": -2.25, "ok": true}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

// frameValue participates in path lookups without being a map.
type frameValue struct {
	Len int
	Msg string
}

func (f *frameValue) GetSlot(name string) (any, bool) {
	switch name {
	case "len":
		return f.Len, true
	case "msg":
		return f.Msg, true
	}
	return nil, false
}

func (f *frameValue) SetSlot(name string, v any) error {
	switch name {
	case "len":
		n, _ := v.(int)
		f.Len = n
	case "msg":
		s, _ := v.(string)
		f.Msg = s
	}
	return nil
}

func TestMapperValueTree(t *testing.T) {
	s := mustSchema(t, "mapper_frame", []sp.FieldDef{
		{Name: "len", Type: sp.Uint32},
		{Name: "msg", Type: sp.Text{Length: 16}, Options: sp.Options{
			PackLength:   "msg",
			UnpackLength: "len",
		}},
	}, sp.WithByteOrder(sp.LittleEndian))

	fv := &frameValue{Msg: "abc"}
	b := mustPack(t, s, fv)
	want := append([]byte{0x03, 0x00, 0x00, 0x00}, []byte("abc")...)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}
	if fv.Len != 3 {
		t.Fatalf("want length write-back 3, got %d", fv.Len)
	}
}

func TestTruncatedInput(t *testing.T) {
	s := mustSchema(t, "pair16", []sp.FieldDef{
		{Name: "x", Type: sp.Int16},
		{Name: "y", Type: sp.Int16},
	}, sp.WithByteOrder(sp.LittleEndian))
	_, err := s.Unpack([]byte{0x01})
	if !sp.IsCode(err, sp.CodeTruncated) {
		t.Fatalf("expected truncated, got: %v", err)
	}
}

func TestUnpackPrefixMirroredWhenPacking(t *testing.T) {
	s := mustSchema(t, "mirror_blob", []sp.FieldDef{
		{Name: "data", Type: sp.Binary{Length: 32}, Options: sp.Options{
			UnpackLength: sp.Uint32,
		}},
	}, sp.WithByteOrder(sp.LittleEndian))

	// only the unpack side declares the prefix; packing emits it with the
	// live length instead of padding out to the declared maximum
	b := mustPack(t, s, map[string]any{"data": []byte("abcdef")})
	want := append([]byte{0x06, 0x00, 0x00, 0x00}, []byte("abcdef")...)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"data": []byte("abcdef")}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}

	// the declared maximum still caps the live length
	_, err := s.Pack(map[string]any{"data": make([]byte, 40)})
	if !sp.IsCode(err, sp.CodeLengthOverflow) {
		t.Fatalf("expected length_overflow, got: %v", err)
	}
}

func TestInlineCountArray(t *testing.T) {
	s := mustSchema(t, "counted_inline", []sp.FieldDef{
		{Name: "items", Type: sp.Array{Elem: sp.Int32}, Options: sp.Options{
			PackLength:   sp.Uint8,
			UnpackLength: sp.Uint8,
		}},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{"items": []any{1, 2}})
	want := []byte{
		0x02,
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
	}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v := mustUnpack(t, s, b)
	wantV := map[string]any{"items": []any{int64(1), int64(2)}}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestDynamicElementArrayWithTrailingField(t *testing.T) {
	item := mustSchema(t, "list_item", []sp.FieldDef{
		{Name: "nlen", Type: sp.Int32},
		{Name: "name", Type: sp.Text{Length: "nlen"}},
	}, sp.WithByteOrder(sp.LittleEndian), sp.WithPacked())
	s := mustSchema(t, "name_list_crc", []sp.FieldDef{
		{Name: "count", Type: sp.Uint32},
		{Name: "items", Type: sp.Array{Elem: sp.Struct{Schema: item}, Count: "count"}},
		{Name: "crc", Type: sp.Uint16},
	}, sp.WithByteOrder(sp.LittleEndian))

	b := mustPack(t, s, map[string]any{
		"items": []any{map[string]any{"name": "ab"}},
		"crc":   0xBEEF,
	})
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	want = append(want, []byte("ab")...)
	want = append(want, 0xEF, 0xBE)
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	// the element run consumes its bytes before the trailing field decodes
	v := mustUnpack(t, s, b)
	wantV := map[string]any{
		"count": uint64(1),
		"items": []any{map[string]any{"nlen": int64(2), "name": "ab"}},
		"crc":   uint64(0xBEEF),
	}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

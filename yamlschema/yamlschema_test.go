package yamlschema_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	sp "github.com/reoring/structpack"
	"github.com/reoring/structpack/yamlschema"
)

const frameStream = `
name: point
fields:
  - name: x
    type: int16
  - name: y
    type: int16
---
name: frame
byte_order: little
fields:
  - name: kind
    type: uint8
  - name: origin
    type: struct
    schema: point
  - name: label
    type: text
    length: 8
---
name: frame_v2
extends: frame
fields:
  - name: label
    type: text
    length: 16
`

func TestLoadMultiDocumentStream(t *testing.T) {
	reg, err := yamlschema.LoadBytes([]byte(frameStream))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"point", "frame", "frame_v2"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if reg.Last().Name() != "frame_v2" {
		t.Fatalf("want last frame_v2, got %s", reg.Last().Name())
	}

	frame, ok := reg.Get("frame")
	if !ok {
		t.Fatalf("frame not registered")
	}
	format, err := frame.Format(nil)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if format != "<B1x2h8s" {
		t.Fatalf("want <B1x2h8s, got %q", format)
	}

	v2, _ := reg.Get("frame_v2")
	format, err = v2.Format(nil)
	if err != nil {
		t.Fatalf("v2 format: %v", err)
	}
	if format != "<B1x2h16s" {
		t.Fatalf("want <B1x2h16s, got %q", format)
	}
}

func TestLoadedSchemaRoundTrips(t *testing.T) {
	reg, err := yamlschema.LoadBytes([]byte(frameStream))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	frame, _ := reg.Get("frame")

	b, err := frame.Pack(map[string]any{
		"kind":   1,
		"origin": map[string]any{"x": -1, "y": 2},
		"label":  "hi",
	})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x02, 0x00, 'h', 'i', 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v, err := frame.Unpack(b)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	wantV := map[string]any{
		"kind":   uint64(1),
		"origin": map[string]any{"x": int64(-1), "y": int64(2)},
		"label":  "hi",
	}
	if diff := cmp.Diff(wantV, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestInlinePrefixDeclaration(t *testing.T) {
	reg, err := yamlschema.LoadBytes([]byte(`
name: blob_msg
byte_order: little
fields:
  - name: data
    type: binary
    pack_length: prefix:uint32
    unpack_length: prefix:uint32
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := reg.Last()

	b, err := s.Pack(map[string]any{"data": []byte("ab")})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	want := []byte{0x02, 0x00, 0x00, 0x00, 'a', 'b'}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Fatalf("packed bytes mismatch (-want +got):\n%s", diff)
	}

	v, err := s.Unpack(b)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"data": []byte("ab")}, v); diff != "" {
		t.Fatalf("unpacked value mismatch (-want +got):\n%s", diff)
	}
}

func TestUnionAndEnumDeclarations(t *testing.T) {
	reg, err := yamlschema.LoadBytes([]byte(`
name: tagged
byte_order: little
fields:
  - name: typ
    type: uint8
  - name: state
    type: enum
    carrier: uint8
    values:
      idle: 0
      busy: 1
  - name: body
    type: union
    selector: typ
    selector_map:
      ping: 1
      text: 2
    members:
      - name: ping
        type: uint32
      - name: text
        type: text
        length: 8
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	s := reg.Last()

	b, err := s.Pack(map[string]any{
		"state": "busy",
		"body":  sp.NewUnionValue("text", "ok"),
	})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	v, err := s.Unpack(b)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	m := v.(map[string]any)
	if m["typ"] != uint64(2) {
		t.Fatalf("want typ write-back 2, got %v", m["typ"])
	}
	if m["state"] != "busy" {
		t.Fatalf("want busy, got %v", m["state"])
	}
	uv := m["body"].(*sp.UnionValue)
	if uv.Kind() != "text" || uv.Value() != "ok" {
		t.Fatalf("want text=ok, got %s=%v", uv.Kind(), uv.Value())
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := yamlschema.LoadBytes([]byte("name: broken\nfields:\n  - name: x\n    type: wat\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("expected unknown type error, got: %v", err)
	}

	_, err = yamlschema.LoadBytes([]byte("name: orphan\nextends: nowhere\nfields: []\n"))
	if err == nil || !strings.Contains(err.Error(), "extends unknown schema") {
		t.Fatalf("expected extends error, got: %v", err)
	}

	_, err = yamlschema.LoadBytes([]byte("name: twice\nfields: []\n---\nname: twice\nfields: []\n"))
	if err == nil || !strings.Contains(err.Error(), "duplicate schema") {
		t.Fatalf("expected duplicate error, got: %v", err)
	}
}

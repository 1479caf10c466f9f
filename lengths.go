package structpack

import "fmt"

const (
	lsNone = iota
	lsPath // dotted path into the live value tree
	lsLit  // integer literal
	lsKind // inline length prefix of the given primitive Kind
)

// lengthSpec is one side's length source in normalized form.
type lengthSpec struct {
	which int
	path  string
	lit   int
	kind  Kind
}

func (s lengthSpec) isSet() bool { return s.which != lsNone }

// lengthSpecOf normalizes a PackLength/UnpackLength option value.
func lengthSpecOf(name string, v any) (lengthSpec, error) {
	switch lv := v.(type) {
	case nil:
		return lengthSpec{}, nil
	case string:
		return lengthSpec{which: lsPath, path: lv}, nil
	case int:
		return lengthSpec{which: lsLit, lit: lv}, nil
	case Kind:
		if lv.code() == 0 {
			return lengthSpec{}, issueAt("/"+name, CodeInvalidValue, nil, map[string]any{"kind": int(lv)})
		}
		return lengthSpec{which: lsKind, kind: lv}, nil
	}
	return lengthSpec{}, issueAt("/"+name, CodeMissingOption, fmt.Errorf("unusable length source %T", v), nil)
}

// resolveLength turns a path length source into a number against the live
// tree. A value at the path is measured (byte strings and sequences by their
// length, integers verbatim).
func resolveLength(ctx *Context, name, path string) (int, error) {
	v, err := ctx.Get(path)
	if err != nil {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, err, map[string]any{"source": path})
	}
	n, ok := valueLength(v)
	if !ok {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, nil, map[string]any{"source": path, "value": fmt.Sprintf("%T", v)})
	}
	return n, nil
}

// resolveLengthUnpacking resolves a path length source while unpacking.
// When the source has not been read yet the pending pass is flushed once,
// which makes earlier fields of the record available, and the lookup retried.
func resolveLengthUnpacking(ctx *Context, name, path string) (int, error) {
	v, err := ctx.Get(path)
	if err != nil && ctx.unpacking {
		if _, ferr := ctx.Unpack(); ferr != nil {
			return 0, ferr
		}
		v, err = ctx.Get(path)
	}
	if err != nil {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, err, map[string]any{"source": path})
	}
	n, ok := valueLength(v)
	if !ok {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, nil, map[string]any{"source": path, "value": fmt.Sprintf("%T", v)})
	}
	return n, nil
}

// readInlineLength consumes an inline length prefix directly from the cursor,
// flushing the pending pass first so the prefix bytes line up.
func readInlineLength(ctx *Context, name string, k Kind) (int, error) {
	vals, err := ctx.UnpackNext(string([]byte{k.code()}))
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, nil, map[string]any{"prefix": k.String()})
	}
	n, ok := valueLength(vals[0])
	if !ok {
		return 0, issueAt(ctx.path(name), CodeLengthLookup, nil, map[string]any{"prefix": k.String()})
	}
	return n, nil
}

// writeBackLength upserts the actual length into the unpack-side path so the
// header field that carries it packs the real value.
func writeBackLength(ctx *Context, spec lengthSpec, n int) error {
	if spec.which != lsPath {
		return nil
	}
	return ctx.Set(spec.path, n, true)
}

// checkDeclaredMax enforces a declared maximum against a live length.
func checkDeclaredMax(ctx *Context, name string, max, n int) error {
	if max >= 0 && n > max {
		return issueAt(ctx.path(name), CodeLengthOverflow, nil, map[string]any{"max": max, "got": n})
	}
	return nil
}

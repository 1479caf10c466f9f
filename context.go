package structpack

import (
	"fmt"
	"strings"

	"github.com/reoring/structpack/internal/wire"
)

// fieldContext is one registration entry: a field, its fragment computed
// eagerly at registration time, and the scope it was registered under.
type fieldContext struct {
	field Field
	frag  string
	scope []string
}

// Context carries the state of one pack or unpack traversal: the live value
// tree, the buffer, the registration list of the current pass and the scope
// stack. Registration appends fields with their format fragments; Pack and
// Unpack then run the whole pass through a single codec call.
type Context struct {
	params      Params
	root        any
	data        []byte
	offset      int
	pending     []fieldContext
	pendingSize int
	scope       []string
	unpacking   bool
}

// Params returns the configuration the Context was created with.
func (c *Context) Params() Params { return c.params }

// Root returns the live value tree.
func (c *Context) Root() any { return c.root }

// Bytes returns the buffer accumulated (packing) or being consumed
// (unpacking) so far.
func (c *Context) Bytes() []byte { return c.data }

// Offset returns the read cursor into the buffer while unpacking.
func (c *Context) Offset() int { return c.offset }

// Size is the layout size so far: consumed or produced bytes plus the bytes
// the pending fragments will occupy. Alignment decisions key off this.
func (c *Context) Size() int { return c.layoutSize() }

func (c *Context) layoutSize() int {
	if c.unpacking {
		return c.offset + c.pendingSize
	}
	return len(c.data) + c.pendingSize
}

// PushScope extends the scope stack and returns the restore function.
// Empty parts are skipped so anonymous fields nest transparently.
func (c *Context) PushScope(parts ...string) func() {
	saved := len(c.scope)
	for _, p := range parts {
		if p == "" {
			continue
		}
		// full-slice append so sibling restores never share backing arrays
		c.scope = append(c.scope[:len(c.scope):len(c.scope)], p)
	}
	return func() { c.scope = c.scope[:saved] }
}

// ResetScope clears the scope stack and returns the restore function.
func (c *Context) ResetScope() func() {
	saved := c.scope
	c.scope = nil
	return func() { c.scope = saved }
}

func (c *Context) scopeCopy() []string {
	if len(c.scope) == 0 {
		return nil
	}
	return append([]string(nil), c.scope...)
}

// path renders the current scope plus name as a slash path for Issue entries.
func (c *Context) path(name string) string {
	parts := append(c.scopeCopy(), splitPath(name)...)
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}

// Add registers a field with the given format fragment under the current
// scope. The fragment is validated and sized immediately.
func (c *Context) Add(f Field, frag string) error {
	n := 0
	if frag != "" {
		var err error
		n, err = wire.CalcSize(string([]byte{c.params.Order.Prefix()}) + frag)
		if err != nil {
			return issueAt(c.path(f.Name()), CodeBadFormat, err, map[string]any{"fragment": frag})
		}
	}
	c.pending = append(c.pending, fieldContext{field: f, frag: frag, scope: c.scopeCopy()})
	c.pendingSize += n
	return nil
}

// alignTo registers a pad run bringing the layout size up to a multiple of
// align. A no-op when already aligned or align <= 1.
func (c *Context) alignTo(align int) error {
	pad := alignPad(c.layoutSize(), align)
	if pad == 0 {
		return nil
	}
	return c.Add(&padField{n: pad}, fmt.Sprintf("%dx", pad))
}

func alignPad(offset, align int) int {
	if align <= 1 {
		return 0
	}
	return (align - offset%align) % align
}

// StructFormat renders the aggregate format of the pending pass: the order
// prefix followed by the registered fragments. Adjacent fragments consisting
// of a single repeatable code are merged into one counted group.
func (c *Context) StructFormat() string {
	frags := make([]string, 0, len(c.pending))
	for _, fx := range c.pending {
		frags = append(frags, fx.frag)
	}
	return string([]byte{c.params.Order.Prefix()}) + mergeFragments(frags)
}

// mergeFragments concatenates format fragments, collapsing adjacent single
// repeatable codes into one counted group.
func mergeFragments(frags []string) string {
	var b strings.Builder
	pCount := 0
	var pCode byte
	flush := func() {
		if pCount == 0 {
			return
		}
		if pCount > 1 || pCode == 'x' {
			fmt.Fprintf(&b, "%d", pCount)
		}
		b.WriteByte(pCode)
		pCount = 0
	}
	for _, frag := range frags {
		if frag == "" {
			continue
		}
		if n, code, ok := singleCode(frag); ok {
			if pCount > 0 && code == pCode {
				pCount += n
				continue
			}
			flush()
			pCode, pCount = code, n
			continue
		}
		flush()
		b.WriteString(frag)
	}
	flush()
	return b.String()
}

// singleCode reports whether frag is one optionally counted code that can be
// merged with an identical neighbor. "s" runs never merge: their count is a
// byte length, not a repeat.
func singleCode(frag string) (int, byte, bool) {
	n := 0
	i := 0
	for i < len(frag) && frag[i] >= '0' && frag[i] <= '9' {
		n = n*10 + int(frag[i]-'0')
		i++
	}
	if i != len(frag)-1 {
		return 0, 0, false
	}
	code := frag[i]
	if code == 's' {
		return 0, 0, false
	}
	if i == 0 {
		n = 1
	}
	return n, code, true
}

// Pack runs the pending pass: values are produced in registration order,
// each under its captured scope, and serialized with one codec call. The
// registration list is consumed; the buffer grows by the pass.
func (c *Context) Pack() ([]byte, error) {
	if len(c.pending) == 0 {
		return c.data, nil
	}
	format := c.StructFormat()
	pend := c.pending
	c.pending = nil
	c.pendingSize = 0
	saved := c.scope
	defer func() { c.scope = saved }()
	var values []any
	for _, fx := range pend {
		c.scope = fx.scope
		v, err := c.packSource(fx)
		if err != nil {
			return nil, err
		}
		vals, err := fx.field.PackValues(c, v)
		if err != nil {
			return nil, err
		}
		values = append(values, vals...)
	}
	out, err := wire.AppendPack(c.data, format, values)
	if err != nil {
		return nil, issueAt("/", CodeInvalidValue, err, map[string]any{"format": format})
	}
	c.data = out
	return out, nil
}

// packSource looks up the live value a registered field packs from.
func (c *Context) packSource(fx fieldContext) (any, error) {
	name := fx.field.Name()
	if name == "" && len(fx.scope) == 0 {
		return c.root, nil
	}
	v, err := c.Get(name)
	if err == nil {
		return v, nil
	}
	if d, ok := fx.field.(defaulter); ok {
		if dv, has := d.defaultValue(); has {
			return dv, nil
		}
	}
	// fragments that consume no values (pads) never need a source
	if fx.frag != "" {
		if n, e := wire.NumValues(fx.frag); e == nil && n == 0 {
			return nil, nil
		}
	}
	return nil, err
}

// Unpack runs the pending pass: one codec call consumes the aggregate format
// from the read cursor, then each field installs its value under its captured
// scope. Fields registered during the walk start the next pass.
func (c *Context) Unpack() (any, error) {
	if len(c.pending) == 0 {
		return c.root, nil
	}
	format := c.StructFormat()
	pend := c.pending
	c.pending = nil
	c.pendingSize = 0
	vals, n, err := wire.UnpackFrom(format, c.data, c.offset)
	if err != nil {
		return nil, issueAt("/", CodeTruncated, err, map[string]any{"format": format, "offset": c.offset})
	}
	c.offset += n
	it := &Values{vals: vals}
	saved := c.scope
	defer func() { c.scope = saved }()
	for _, fx := range pend {
		c.scope = fx.scope
		v, err := fx.field.UnpackValue(c, it)
		if err != nil {
			return nil, err
		}
		if _, skip := v.(skipValue); skip {
			continue
		}
		if err := c.Set(fx.field.Name(), v, true); err != nil {
			return nil, err
		}
	}
	return c.root, nil
}

// UnpackNext flushes the pending pass and then reads one fragment directly
// from the cursor, outside any registration. Inline length prefixes use this.
func (c *Context) UnpackNext(frag string) ([]any, error) {
	if len(c.pending) > 0 {
		if _, err := c.Unpack(); err != nil {
			return nil, err
		}
	}
	format := string([]byte{c.params.Order.Prefix()}) + frag
	vals, n, err := wire.UnpackFrom(format, c.data, c.offset)
	if err != nil {
		return nil, issueAt("/", CodeTruncated, err, map[string]any{"format": format, "offset": c.offset})
	}
	c.offset += n
	return vals, nil
}

// Get resolves a dotted path relative to the current scope, falling back to
// the root when the scoped lookup misses.
func (c *Context) Get(key string) (any, error) {
	parts := splitPath(key)
	full := append(c.scopeCopy(), parts...)
	if len(full) == 0 {
		return c.root, nil
	}
	if v, ok := lookupPath(c.root, full); ok {
		return v, nil
	}
	if len(c.scope) > 0 {
		if v, ok := lookupPath(c.root, parts); ok {
			return v, nil
		}
	}
	return nil, issueAt(c.path(key), CodePathLookup, nil, nil)
}

// GetDefault resolves like Get but installs and returns def on a miss.
func (c *Context) GetDefault(key string, def any) any {
	if v, err := c.Get(key); err == nil {
		return v
	}
	if err := c.Set(key, def, true); err != nil {
		return def
	}
	return def
}

// Set stores value at the scoped path. An empty key with an empty scope
// replaces the root. With upsert, missing intermediate maps are created.
func (c *Context) Set(key string, value any, upsert bool) error {
	parts := splitPath(key)
	full := append(c.scopeCopy(), parts...)
	if len(full) == 0 {
		c.root = value
		return nil
	}
	if setPath(c.root, full, value, upsert) {
		return nil
	}
	if len(c.scope) > 0 && len(parts) > 0 && setPath(c.root, parts, value, upsert) {
		return nil
	}
	return issueAt(c.path(key), CodePathLookup, nil, nil)
}

// Values iterates over the scalar results of one codec call while the
// registered fields consume them in order.
type Values struct {
	vals []any
	i    int
}

// Next returns the next scalar.
func (v *Values) Next() (any, error) {
	if v.i >= len(v.vals) {
		return nil, issueAt("/", CodeTruncated, nil, map[string]any{"values": len(v.vals)})
	}
	val := v.vals[v.i]
	v.i++
	return val, nil
}

// Take returns the next n scalars.
func (v *Values) Take(n int) ([]any, error) {
	if v.i+n > len(v.vals) {
		return nil, issueAt("/", CodeTruncated, nil, map[string]any{"values": len(v.vals), "want": n})
	}
	out := v.vals[v.i : v.i+n]
	v.i += n
	return out, nil
}

// Remaining reports how many scalars are left.
func (v *Values) Remaining() int { return len(v.vals) - v.i }

// skipValue is the sentinel a composite returns from UnpackValue when it
// installed (or deferred) its value itself and nothing should be stored at
// the top level.
type skipValue struct{}

// padField occupies alignment bytes. It consumes and produces no values.
type padField struct{ n int }

func (p *padField) Name() string         { return "" }
func (p *padField) Align() int           { return 1 }
func (p *padField) dynamic() bool        { return false }
func (p *padField) StaticFormat() string { return fmt.Sprintf("%dx", p.n) }

func (p *padField) RegisterPack(ctx *Context) error {
	return ctx.Add(p, fmt.Sprintf("%dx", p.n))
}

func (p *padField) RegisterUnpack(ctx *Context) error {
	return ctx.Add(p, fmt.Sprintf("%dx", p.n))
}

func (p *padField) PackValues(ctx *Context, value any) ([]any, error) { return nil, nil }

func (p *padField) UnpackValue(ctx *Context, vals *Values) (any, error) {
	return skipValue{}, nil
}

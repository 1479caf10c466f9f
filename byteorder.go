package structpack

import "sync"

// ByteOrder selects the order prefix of the generated format string.
type ByteOrder int

const (
	// Native uses the platform byte order, native sizes and native
	// alignment, the way a C compiler would lay the struct out.
	Native ByteOrder = iota
	// NativeStandard uses the platform byte order with standard sizes and
	// no implicit padding. This is the process default.
	NativeStandard
	LittleEndian
	BigEndian
	// Network is big-endian; it exists so schemas can state intent.
	Network
)

// Prefix returns the wire-visible prefix character for the order.
func (bo ByteOrder) Prefix() byte {
	switch bo {
	case Native:
		return '@'
	case LittleEndian:
		return '<'
	case BigEndian:
		return '>'
	case Network:
		return '!'
	default:
		return '='
	}
}

func (bo ByteOrder) String() string { return string(bo.Prefix()) }

var (
	defaultMu    sync.Mutex
	defaultOrder = NativeStandard
	defaultSet   bool
)

// DefaultByteOrder returns the process-wide default order used when a
// schema or Context is created without explicit Params.
func DefaultByteOrder() ByteOrder {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultOrder
}

// SetDefaultByteOrder installs the process-wide default. It may be called
// once, at startup, before any schema is built; later calls are rejected.
func SetDefaultByteOrder(bo ByteOrder) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSet {
		return Issues{Issue{Path: "/", Code: CodeInvalidValue, Message: "default byte order already set"}}
	}
	defaultOrder = bo
	defaultSet = true
	return nil
}

// Params carries the immutable per-operation configuration. A Params value
// is threaded into every Context created from it.
type Params struct {
	Order ByteOrder
}

// DefaultParams returns Params carrying the process default byte order.
func DefaultParams() Params { return Params{Order: DefaultByteOrder()} }

// NewPackContext creates a Context for serializing root.
func (p Params) NewPackContext(root any) *Context {
	return &Context{params: p, root: root}
}

// NewUnpackContext creates a Context for deserializing data into root.
// A nil root starts from an empty value tree.
func (p Params) NewUnpackContext(data []byte, root any) *Context {
	if root == nil {
		root = map[string]any{}
	}
	return &Context{params: p, root: root, data: data, unpacking: true}
}

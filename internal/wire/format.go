// Package wire implements the C-struct-style format grammar used by the
// layout engine: an optional byte-order prefix followed by single-character
// type codes with optional decimal counts. The grammar and byte-level output
// are compatible with the widely implemented struct pack/unpack primitive,
// so buffers are portable across implementations.
//
// Codes: b B h H i I q Q l L f d ? s x. A count prefix repeats the code,
// except for "s" (count is the byte length of a single string value) and
// "x" (count pad bytes, no value). Standard modes ("=", "<", ">", "!") use
// fixed sizes with l/L at 4 bytes and no implicit alignment; native mode
// ("@") uses native sizes (l/L at 8 bytes on 64-bit targets) and inserts
// alignment padding the way a C compiler would.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadFormat  = errors.New("wire: malformed format string")
	ErrTruncated  = errors.New("wire: buffer shorter than format requires")
	ErrRange      = errors.New("wire: value out of range for format code")
	ErrValueCount = errors.New("wire: value count does not match format")
)

// mode captures the effect of the order prefix character.
type mode struct {
	order  binary.ByteOrder
	native bool // native sizes and alignment ("@")
}

func modeFor(prefix byte) (mode, bool) {
	switch prefix {
	case '@':
		return mode{order: binary.NativeEndian, native: true}, true
	case '=':
		return mode{order: binary.NativeEndian}, true
	case '<':
		return mode{order: binary.LittleEndian}, true
	case '>', '!':
		return mode{order: binary.BigEndian}, true
	}
	return mode{}, false
}

// token is one code group of a format string.
type token struct {
	code     byte
	count    int
	hasCount bool
}

// parse splits a format string into its mode and tokens.
func parse(format string) (mode, []token, error) {
	m, _ := modeFor('=')
	i := 0
	if len(format) > 0 {
		if pm, ok := modeFor(format[0]); ok {
			m = pm
			i = 1
		}
	}
	var toks []token
	for i < len(format) {
		c := format[i]
		if c == ' ' {
			i++
			continue
		}
		count := 0
		hasCount := false
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			count = count*10 + int(format[i]-'0')
			hasCount = true
			i++
		}
		if i >= len(format) {
			return m, nil, fmt.Errorf("%w: trailing count in %q", ErrBadFormat, format)
		}
		c = format[i]
		i++
		switch c {
		case 'b', 'B', 'h', 'H', 'i', 'I', 'q', 'Q', 'l', 'L', 'f', 'd', '?', 's', 'x':
		default:
			return m, nil, fmt.Errorf("%w: unknown code %q in %q", ErrBadFormat, string(c), format)
		}
		if !hasCount {
			count = 1
		}
		toks = append(toks, token{code: c, count: count, hasCount: hasCount})
	}
	return m, toks, nil
}

// codeSize returns the byte width of a single item of the given code.
func codeSize(c byte, m mode) int {
	switch c {
	case 'b', 'B', '?', 's', 'x':
		return 1
	case 'h', 'H':
		return 2
	case 'i', 'I', 'f':
		return 4
	case 'q', 'Q', 'd':
		return 8
	case 'l', 'L':
		if m.native {
			return 8
		}
		return 4
	}
	return 0
}

// codeAlign returns the native alignment of a code; only consulted in "@" mode.
func codeAlign(c byte, m mode) int {
	if c == 's' || c == 'x' {
		return 1
	}
	return codeSize(c, m)
}

func alignPad(offset, align int) int {
	if align <= 1 {
		return 0
	}
	return (align - offset%align) % align
}

// CalcSize returns the total byte size a format string occupies.
func CalcSize(format string) (int, error) {
	m, toks, err := parse(format)
	if err != nil {
		return 0, err
	}
	size := 0
	for _, tk := range toks {
		w := codeSize(tk.code, m)
		switch tk.code {
		case 's', 'x':
			size += tk.count
		default:
			if m.native {
				size += alignPad(size, codeAlign(tk.code, m))
			}
			size += w * tk.count
		}
	}
	return size, nil
}

// NumValues returns how many values a format string produces or consumes.
func NumValues(format string) (int, error) {
	_, toks, err := parse(format)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, tk := range toks {
		switch tk.code {
		case 'x':
		case 's':
			n++
		default:
			n += tk.count
		}
	}
	return n, nil
}

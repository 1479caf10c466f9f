package wire

import (
	"fmt"
	"math"
)

// Unpack deserializes data according to format. The buffer may be longer
// than the format requires; trailing bytes are ignored.
func Unpack(format string, data []byte) ([]any, error) {
	vals, _, err := UnpackFrom(format, data, 0)
	return vals, err
}

// UnpackFrom deserializes starting at offset and additionally returns the
// number of bytes consumed. Signed integers come back as int64, unsigned as
// uint64, floats as float64, "s" runs as []byte.
func UnpackFrom(format string, data []byte, offset int) ([]any, int, error) {
	m, toks, err := parse(format)
	if err != nil {
		return nil, 0, err
	}
	pos := offset
	take := func(n int) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, pos, len(data)-pos)
		}
		b := data[pos : pos+n]
		pos += n
		return b, nil
	}
	var vals []any
	for _, tk := range toks {
		switch tk.code {
		case 'x':
			if _, err := take(tk.count); err != nil {
				return nil, 0, err
			}
		case 's':
			b, err := take(tk.count)
			if err != nil {
				return nil, 0, err
			}
			out := make([]byte, tk.count)
			copy(out, b)
			vals = append(vals, out)
		default:
			if m.native {
				if _, err := take(alignPad(pos-offset, codeAlign(tk.code, m))); err != nil {
					return nil, 0, err
				}
			}
			w := codeSize(tk.code, m)
			for i := 0; i < tk.count; i++ {
				b, err := take(w)
				if err != nil {
					return nil, 0, err
				}
				vals = append(vals, readScalar(tk.code, m, b))
			}
		}
	}
	return vals, pos - offset, nil
}

func readScalar(code byte, m mode, b []byte) any {
	switch code {
	case '?':
		return b[0] != 0
	case 'b':
		return int64(int8(b[0]))
	case 'B':
		return uint64(b[0])
	case 'h':
		return int64(int16(m.order.Uint16(b)))
	case 'H':
		return uint64(m.order.Uint16(b))
	case 'i':
		return int64(int32(m.order.Uint32(b)))
	case 'I':
		return uint64(m.order.Uint32(b))
	case 'l':
		if m.native {
			return int64(m.order.Uint64(b))
		}
		return int64(int32(m.order.Uint32(b)))
	case 'L':
		if m.native {
			return m.order.Uint64(b)
		}
		return uint64(m.order.Uint32(b))
	case 'q':
		return int64(m.order.Uint64(b))
	case 'Q':
		return m.order.Uint64(b)
	case 'f':
		return float64(math.Float32frombits(m.order.Uint32(b)))
	case 'd':
		return math.Float64frombits(m.order.Uint64(b))
	}
	return nil
}

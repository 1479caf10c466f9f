package wire

import (
	"fmt"
	"math"
)

// Pack serializes values according to format.
func Pack(format string, values []any) ([]byte, error) {
	return AppendPack(nil, format, values)
}

// AppendPack appends the packed bytes to dst and returns the extended slice.
func AppendPack(dst []byte, format string, values []any) ([]byte, error) {
	m, toks, err := parse(format)
	if err != nil {
		return nil, err
	}
	start := len(dst)
	vi := 0
	next := func() (any, error) {
		if vi >= len(values) {
			return nil, fmt.Errorf("%w: format %q wants more than %d values", ErrValueCount, format, len(values))
		}
		v := values[vi]
		vi++
		return v, nil
	}
	for _, tk := range toks {
		switch tk.code {
		case 'x':
			for i := 0; i < tk.count; i++ {
				dst = append(dst, 0)
			}
		case 's':
			v, err := next()
			if err != nil {
				return nil, err
			}
			b, err := toBytes(v)
			if err != nil {
				return nil, err
			}
			if len(b) > tk.count {
				b = b[:tk.count]
			}
			dst = append(dst, b...)
			for i := len(b); i < tk.count; i++ {
				dst = append(dst, 0)
			}
		default:
			if m.native {
				pad := alignPad(len(dst)-start, codeAlign(tk.code, m))
				for i := 0; i < pad; i++ {
					dst = append(dst, 0)
				}
			}
			for i := 0; i < tk.count; i++ {
				v, err := next()
				if err != nil {
					return nil, err
				}
				dst, err = appendScalar(dst, tk.code, m, v)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if vi != len(values) {
		return nil, fmt.Errorf("%w: format %q consumed %d of %d values", ErrValueCount, format, vi, len(values))
	}
	return dst, nil
}

func appendScalar(dst []byte, code byte, m mode, v any) ([]byte, error) {
	switch code {
	case '?':
		b, ok := v.(bool)
		if !ok {
			// accept numeric truthiness the way the layout layer hands it over
			n, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %T for code ?", ErrRange, v)
			}
			b = n != 0
		}
		if b {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case 'b', 'h', 'i', 'q', 'l':
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		w := codeSize(code, m)
		if err := checkSignedRange(n, w); err != nil {
			return nil, fmt.Errorf("%w: %d for code %c", err, n, code)
		}
		return appendUint(dst, uint64(n), w, m), nil
	case 'B', 'H', 'I', 'Q', 'L':
		n, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		w := codeSize(code, m)
		if err := checkUnsignedRange(n, w); err != nil {
			return nil, fmt.Errorf("%w: %d for code %c", err, n, code)
		}
		return appendUint(dst, n, w, m), nil
	case 'f':
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return appendUint(dst, uint64(math.Float32bits(float32(f))), 4, m), nil
	case 'd':
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return appendUint(dst, math.Float64bits(f), 8, m), nil
	}
	return nil, fmt.Errorf("%w: code %c takes no value", ErrBadFormat, code)
}

func appendUint(dst []byte, u uint64, width int, m mode) []byte {
	var scratch [8]byte
	switch width {
	case 1:
		return append(dst, byte(u))
	case 2:
		m.order.PutUint16(scratch[:2], uint16(u))
		return append(dst, scratch[:2]...)
	case 4:
		m.order.PutUint32(scratch[:4], uint32(u))
		return append(dst, scratch[:4]...)
	default:
		m.order.PutUint64(scratch[:8], u)
		return append(dst, scratch[:8]...)
	}
}

func checkSignedRange(n int64, width int) error {
	if width == 8 {
		return nil
	}
	lim := int64(1) << (width*8 - 1)
	if n < -lim || n >= lim {
		return ErrRange
	}
	return nil
}

func checkUnsignedRange(n uint64, width int) error {
	if width == 8 {
		return nil
	}
	if n >= uint64(1)<<(width*8) {
		return ErrRange
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		if n == math.Trunc(n) {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("%w: %T is not an integer", ErrRange, v)
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative value for unsigned code", ErrRange)
	}
	return uint64(n), nil
}

func toFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %T is not a float", ErrRange, v)
	}
	return float64(n), nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %T is not a byte string", ErrRange, v)
}

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackScalarsLittleEndian(t *testing.T) {
	b, err := Pack("<BHI", []any{1, 0x0203, 0x04050607})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x03, 0x02, 0x07, 0x06, 0x05, 0x04}, b)
}

func TestPackScalarsBigEndian(t *testing.T) {
	b, err := Pack(">hI", []any{-2, 0x01020304})
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xfe, 0x01, 0x02, 0x03, 0x04}, b)
}

func TestRoundTripAllCodes(t *testing.T) {
	format := "<bBhHiIqQlLfd?"
	in := []any{-1, 2, -3, 4, -5, 6, -7, 8, -9, 10, 1.5, -2.25, true}
	b, err := Pack(format, in)
	require.NoError(t, err)

	out, err := Unpack(format, b)
	require.NoError(t, err)
	want := []any{
		int64(-1), uint64(2), int64(-3), uint64(4), int64(-5), uint64(6),
		int64(-7), uint64(8), int64(-9), uint64(10), 1.5, -2.25, true,
	}
	require.Equal(t, want, out)
}

func TestStringRunPadsAndTruncates(t *testing.T) {
	b, err := Pack("=5s", []any{"ab"})
	require.NoError(t, err)
	require.Equal(t, []byte{'a', 'b', 0, 0, 0}, b)

	b, err = Pack("=5s", []any{"abcdefgh"})
	require.NoError(t, err)
	require.Equal(t, []byte("abcde"), b)

	out, err := Unpack("=5s", []byte{'a', 'b', 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, []any{[]byte{'a', 'b', 0, 0, 0}}, out)
}

func TestPadBytesCarryNoValues(t *testing.T) {
	b, err := Pack("=2xB", []any{7})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 7}, b)

	n, err := NumValues("=2xB")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCalcSize(t *testing.T) {
	cases := []struct {
		format string
		want   int
	}{
		{"=i3s1xQ", 16},
		{"=2b", 2},
		{"=bq", 9},
		{"@bq", 16}, // native alignment pads q to offset 8
		{"=l", 4},
		{"@l", 8},
		{"<5H", 10},
		{"=12s", 12},
	}
	for _, tc := range cases {
		n, err := CalcSize(tc.format)
		require.NoError(t, err, tc.format)
		require.Equal(t, tc.want, n, tc.format)
	}
}

func TestNumValues(t *testing.T) {
	n, err := NumValues("=2i3s2x?")
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestNativeModeAlignsAndRoundTrips(t *testing.T) {
	b, err := Pack("@Bi", []any{1, 2})
	require.NoError(t, err)
	require.Len(t, b, 8)
	require.Equal(t, []byte{0, 0, 0}, b[1:4])

	out, used, err := UnpackFrom("@Bi", b, 0)
	require.NoError(t, err)
	require.Equal(t, 8, used)
	require.Equal(t, []any{uint64(1), int64(2)}, out)
}

func TestStandardLongIsFourBytes(t *testing.T) {
	b, err := Pack("<l", []any{-1})
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, b)

	out, err := Unpack("<l", b)
	require.NoError(t, err)
	require.Equal(t, []any{int64(-1)}, out)
}

func TestBadFormat(t *testing.T) {
	_, err := CalcSize("=3")
	require.ErrorIs(t, err, ErrBadFormat)

	_, err = CalcSize("=z")
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestTruncatedBuffer(t *testing.T) {
	_, err := Unpack("=i", []byte{1, 2})
	require.ErrorIs(t, err, ErrTruncated)

	_, err = Unpack("=4s", []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestValueRange(t *testing.T) {
	_, err := Pack("=b", []any{300})
	require.ErrorIs(t, err, ErrRange)

	_, err = Pack("=B", []any{-1})
	require.ErrorIs(t, err, ErrRange)

	_, err = Pack("=H", []any{1 << 16})
	require.ErrorIs(t, err, ErrRange)
}

func TestValueCountMismatch(t *testing.T) {
	_, err := Pack("=2i", []any{1})
	require.ErrorIs(t, err, ErrValueCount)

	_, err = Pack("=i", []any{1, 2})
	require.ErrorIs(t, err, ErrValueCount)
}

func TestTrailingBytesIgnored(t *testing.T) {
	out, used, err := UnpackFrom("<H", []byte{0x01, 0x00, 0xde, 0xad}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, used)
	require.Equal(t, []any{uint64(1)}, out)
}

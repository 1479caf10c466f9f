package structpack

import "io"

// Read fills a buffer of the schema's static size from r and unpacks it.
// Layouts whose trailing parts depend on live data should read a larger
// slab themselves and call Unpack, which ignores trailing bytes.
func (s *Schema) Read(r io.Reader) (any, error) {
	n, err := s.Size(nil)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, issueAt("/", CodeTruncated, err, map[string]any{"want": n})
	}
	return s.Unpack(buf)
}

// Write packs v and writes the buffer to w, returning the byte count.
func (s *Schema) Write(w io.Writer, v any) (int, error) {
	b, err := s.Pack(v)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

package source

// readers.go wraps raw object bodies before they reach a decoder.
//
// Content CSVs are exported by spreadsheet tools and regularly arrive with a
// UTF-8 byte order mark or stray Latin-1 bytes. Both are handled on the fly
// without buffering the whole object:
//
//   - bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - countingReader records how many bytes were read, for logging
//
// Use sanitize to apply all three in the correct order.

import (
	"io"
	"unicode/utf8"
)

// utf8Sanitizer replaces invalid UTF-8 sequences with '?' as it reads.
// A multi-byte sequence split across two reads is held back until the
// next read completes it.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.r.Read(p[offset:])
	n += offset
	if n == 0 {
		return 0, err
	}
	if isASCII(p[:n]) {
		return n, err
	}
	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// out. Replacing with a single byte keeps the output no longer than the input.
func (s *utf8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		if !atEOF {
			if k := trailingPartial(data); k > 0 {
				s.pending = append(s.pending, data[len(data)-k:]...)
				return len(data) - k
			}
		}
		return len(data)
	}

	w := 0
	for r := 0; r < len(data); {
		if !atEOF && partialRune(data[r:]) {
			s.pending = append(s.pending, data[r:]...)
			return w
		}
		ch, size := utf8.DecodeRune(data[r:])
		if ch == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// trailingPartial returns how many bytes at the end of data start a
// multi-byte sequence that is not yet complete.
func trailingPartial(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < seqLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// partialRune reports whether data is the valid prefix of a longer sequence.
func partialRune(data []byte) bool {
	if len(data) == 0 || data[0] < 0xC0 {
		return false
	}
	return !utf8.FullRune(data) && seqLen(data[0]) > len(data)
}

func seqLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// bomSkipper drops a leading UTF-8 byte order mark.
type bomSkipper struct {
	r       io.Reader
	checked bool
	head    []byte
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{r: r}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		switch {
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			// short object: whatever was read is the whole body
		case err != nil:
			return 0, err
		}
		if n == len(utf8BOM) && string(buf) == string(utf8BOM) {
			buf = buf[:0]
		} else {
			buf = buf[:n]
		}
		b.head = buf
		if err != nil && len(b.head) == 0 {
			return 0, io.EOF
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// countingReader records the number of bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitize strips the BOM, then repairs UTF-8, then counts.
func sanitize(r io.Reader) *countingReader {
	return &countingReader{r: newUTF8Sanitizer(newBOMSkipper(r))}
}

package protocol

// Framer splits a byte stream into complete top-level JSON objects.
//
// Messages are newline agnostic: a single read may carry several objects,
// part of one, or both. Bytes between objects are skipped. Braces inside
// string literals (including escaped quotes) do not affect framing.
//
// An opening brace that cannot continue the pending object (anywhere other
// than after ':', ',' or '[') abandons that object and starts a new one, so
// a truncated message never swallows the messages behind it.
//
// A Framer is owned by one connection and is not safe for concurrent use.
type Framer struct {
	buf      []byte
	max      int
	scanned  int
	start    int
	depth    int
	inString bool
	escaped  bool

	// last is the previous significant byte of the pending object.
	last byte
}

// NewFramer creates a framer that buffers at most max bytes of one
// incomplete object.
func NewFramer(max int) *Framer {
	return &Framer{max: max}
}

// Feed appends data and returns every object it completes.
//
// Returns:
//   - [][]byte: Complete objects in arrival order (each an independent copy)
//   - error: ErrTruncated if an unfinished object was abandoned for a new
//     one, ErrMessageTooLarge if an incomplete object outgrew the limit
//     (the partial object is discarded and framing restarts). The returned
//     objects are valid in both cases.
func (f *Framer) Feed(data []byte) ([][]byte, error) {
	f.buf = append(f.buf, data...)

	var (
		out [][]byte
		err error
	)
	for i := f.scanned; i < len(f.buf); i++ {
		c := f.buf[i]

		if f.depth == 0 {
			if c == '{' {
				f.open(i)
			}
			continue
		}

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
				f.last = c
			}
			continue
		}

		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '"':
			f.inString = true
		case '{':
			if f.last != ':' && f.last != ',' && f.last != '[' {
				f.open(i)
				err = ErrTruncated
				continue
			}
			f.depth++
		case '}':
			f.depth--
			if f.depth == 0 {
				msg := make([]byte, i+1-f.start)
				copy(msg, f.buf[f.start:i+1])
				out = append(out, msg)
			}
		}
		f.last = c
	}

	if f.depth == 0 {
		f.buf = f.buf[:0]
		f.scanned = 0
		f.start = 0
	} else {
		n := copy(f.buf, f.buf[f.start:])
		f.buf = f.buf[:n]
		f.scanned = n
		f.start = 0
	}

	if len(f.buf) > f.max {
		f.Reset()
		return out, ErrMessageTooLarge
	}

	return out, err
}

// open starts a new top-level object at i.
func (f *Framer) open(i int) {
	f.depth = 1
	f.start = i
	f.inString = false
	f.escaped = false
	f.last = '{'
}

// Pending returns the number of buffered bytes of an incomplete object.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// Reset discards any partial object.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.scanned = 0
	f.start = 0
	f.depth = 0
	f.inString = false
	f.escaped = false
	f.last = 0
}

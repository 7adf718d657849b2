package runner

import (
	"fmt"
	"io"
)

// teeReader mirrors every chunk read from the inner reader to a secondary
// writer before returning it, so the live terminal view and the captured
// analysis buffer see exactly the same bytes in the same order.
type teeReader struct {
	inner  io.Reader
	mirror io.Writer
}

// newTeeReader wraps r so each successful Read is also written to mirror.
// The mirror is flushed after every chunk when it supports flushing, which
// preserves interleaving with the build tool's own progress output.
func newTeeReader(r io.Reader, mirror io.Writer) io.Reader {
	return &teeReader{inner: r, mirror: mirror}
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.inner.Read(p)
	if n > 0 {
		if n > len(p) {
			return 0, fmt.Errorf("reader reported %d bytes read into a %d byte buffer", n, len(p))
		}
		if _, werr := t.mirror.Write(p[:n]); werr != nil {
			return n, werr
		}
		if f, ok := t.mirror.(interface{ Flush() error }); ok {
			if ferr := f.Flush(); ferr != nil {
				return n, ferr
			}
		}
	}
	return n, err
}

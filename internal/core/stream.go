package core

import (
	"errors"
	"fmt"
	"io"
)

// ErrFileTooLarge is returned when an input stream exceeds its size limit.
var ErrFileTooLarge = errors.New("file too large")

// CountingReader tracks bytes read and enforces an optional size limit.
// Close is forwarded to the wrapped reader.
type CountingReader struct {
	reader io.Reader
	limit  int64 // 0 means unlimited
	n      int64
}

// NewCountingReader wraps r. A positive limit makes reads fail with
// ErrFileTooLarge once more than limit bytes have been seen.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, limit: limit}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	if r.limit > 0 {
		if r.n > r.limit {
			return 0, r.tooLarge()
		}
		// Allow one byte past the limit so overflow is detectable.
		if max := r.limit - r.n + 1; int64(len(p)) > max {
			p = p[:max]
		}
	}

	n, err := r.reader.Read(p)
	r.n += int64(n)
	if r.limit > 0 && r.n > r.limit {
		return n, r.tooLarge()
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 {
	return r.n
}

// Close closes the wrapped reader if it is an io.Closer.
func (r *CountingReader) Close() error {
	if c, ok := r.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *CountingReader) tooLarge() error {
	return fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, r.limit)
}

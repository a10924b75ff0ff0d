package wavio

import (
	"io"

	"github.com/tphakala/passby-go/internal/errors"
)

// seekableBuffer is an in-memory io.WriteSeeker. The WAV encoder needs to
// seek back over the header to patch chunk sizes on Close.
type seekableBuffer struct {
	buf []byte
	pos int64
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.Newf("seekableBuffer: invalid whence %d", whence).Build()
	}
	if abs < 0 {
		return 0, errors.Newf("seekableBuffer: negative position %d", abs).Build()
	}
	b.pos = abs
	return abs, nil
}

// Bytes returns the written contents.
func (b *seekableBuffer) Bytes() []byte {
	return b.buf
}

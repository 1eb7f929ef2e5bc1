package xz

import (
	"errors"
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
)

// Writer encodes everything written to it with a raw filter chain.
type Writer struct {
	w   io.Writer
	s   *Stream
	buf []byte
}

// NewWriter returns a Writer that writes the encoded data to w. Close must
// be called to finish the data.
func NewWriter(w io.Writer, filters []chain.Filter, opts ...Option) (*Writer, error) {
	s, err := NewRawEncoder(filters, opts...)
	if err != nil {
		return nil, err
	}

	return &Writer{w: w, s: s, buf: make([]byte, bufSize)}, nil
}

// code runs action until in is consumed or, if untilEnd is set, until the
// encoder reports the end of the flush.
func (w *Writer) code(in []byte, action chain.Action, untilEnd bool) (int, error) {
	if w.s == nil {
		return 0, ErrClosed
	}

	n := 0

	for {
		nIn, nOut, err := w.s.Code(in[n:], w.buf, action)
		n += nIn

		if nOut > 0 {
			if _, werr := w.w.Write(w.buf[:nOut]); werr != nil {
				return n, fmt.Errorf("xz: error writing: %w", werr)
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			return n, nil
		case err != nil:
			return n, err
		}

		if !untilEnd && n == len(in) {
			return n, nil
		}
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.code(p, chain.Run, false)
}

// Flush writes out everything written so far so that it can be decoded
// without the rest of the data. Chains with a BCJ filter cannot be
// flushed.
func (w *Writer) Flush() error {
	_, err := w.code(nil, chain.SyncFlush, true)

	return err
}

// Close finishes the data and ends the encoder. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.s == nil {
		return ErrClosed
	}

	_, err := w.code(nil, chain.Finish, true)

	w.s.End()
	w.s = nil

	return err
}

package xz

import (
	"errors"
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
)

const bufSize = 1 << 15

var ErrClosed = errors.New("xz: already closed")

// Reader decodes a raw filter chain read from an io.Reader.
type Reader struct {
	r io.Reader
	s *Stream

	buf []byte
	pos int
	end int

	// eof is set once r returned io.EOF.
	eof bool
	err error
}

// NewReader returns a Reader that decodes the data of r with filters.
func NewReader(r io.Reader, filters []chain.Filter, opts ...Option) (*Reader, error) {
	s, err := NewRawDecoder(filters, opts...)
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, s: s, buf: make([]byte, bufSize)}, nil
}

func (r *Reader) fill() error {
	n, err := r.r.Read(r.buf)
	r.pos, r.end = 0, n

	if errors.Is(err, io.EOF) {
		r.eof = true

		return nil
	}

	if err != nil {
		return fmt.Errorf("xz: error reading: %w", err)
	}

	return nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.s == nil {
		return 0, ErrClosed
	}

	if r.err != nil {
		return 0, r.err
	}

	n := 0

	for n < len(p) {
		if r.pos == r.end {
			// Return what is decoded before blocking on more input.
			if n > 0 {
				break
			}

			if !r.eof {
				if err := r.fill(); err != nil {
					r.err = err

					return n, err
				}
			}
		}

		action := chain.Run
		if r.eof {
			action = chain.Finish
		}

		nIn, nOut, err := r.s.Code(r.buf[r.pos:r.end], p[n:], action)
		r.pos += nIn
		n += nOut

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.err = io.EOF

			return n, io.EOF
		case errors.Is(err, chain.ErrBuf):
			if r.eof {
				r.err = io.ErrUnexpectedEOF

				return n, r.err
			}
		default:
			r.err = err

			return n, err
		}
	}

	return n, nil
}

// Close ends the decoder. It does not close the underlying reader.
func (r *Reader) Close() error {
	if r.s == nil {
		return ErrClosed
	}

	r.s.End()
	r.s, r.r = nil, nil

	return nil
}

// Package delta implements the byte-wise Delta filter: every byte is stored
// as its difference to the byte Dist positions earlier.
package delta

import (
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
)

const (
	DistMin = 1
	DistMax = 256

	// MemUsage is the history a delta stage keeps, in bytes.
	MemUsage = DistMax
)

type Options struct {
	Dist uint32 `toml:"dist"`
}

func (o *Options) dist() (uint32, error) {
	if o == nil {
		return DistMin, nil
	}

	if o.Dist < DistMin || o.Dist > DistMax {
		return 0, fmt.Errorf("delta: distance %d out of range: %w", o.Dist, chain.ErrOptions)
	}

	return o.Dist, nil
}

type coder struct {
	next chain.Next

	distance uint32
	pos      uint8
	history  [DistMax]byte
}

func newCoder(opts *Options, next chain.Next) (coder, error) {
	dist, err := opts.dist()
	if err != nil {
		return coder{}, err
	}

	return coder{next: next, distance: dist}, nil
}

func (c *coder) End() {
	c.next.End()
}

// Update ignores new delta options; the distance cannot change mid-stream.
func (c *coder) Update(filters []chain.Filter) error {
	return c.next.Update(filters[1:])
}

func (c *coder) MemConfig(newLimit uint64) (uint64, uint64, error) {
	if c.next.Empty() {
		return MemUsage, 0, nil
	}

	memUsage, oldLimit, err := c.next.MemConfig(newLimit)
	if err != nil {
		return 0, 0, err
	}

	return memUsage + MemUsage, oldLimit, nil
}

type Encoder struct {
	coder
}

// NewEncoder returns a Delta stage in front of next. next may be empty, in
// which case the stage reads from the input directly.
func NewEncoder(opts *Options, next chain.Next) (*Encoder, error) {
	c, err := newCoder(opts, next)
	if err != nil {
		return nil, err
	}

	return &Encoder{coder: c}, nil
}

func (e *Encoder) copyAndEncode(in, out []byte) {
	for i, b := range in {
		tmp := e.history[uint8(e.distance+uint32(e.pos))]
		e.history[e.pos] = b
		e.pos--
		out[i] = b - tmp
	}
}

func (e *Encoder) Code(in []byte, inPos *int, out []byte, outPos *int, action chain.Action) error {
	if e.next.Empty() {
		size := len(in) - *inPos
		if avail := len(out) - *outPos; avail < size {
			size = avail
		}

		e.copyAndEncode(in[*inPos:*inPos+size], out[*outPos:*outPos+size])
		*inPos += size
		*outPos += size

		if action != chain.Run && *inPos == len(in) {
			return io.EOF
		}

		return nil
	}

	outStart := *outPos
	err := e.next.Code(in, inPos, out, outPos, action)

	// Encode in place.
	buf := out[outStart:*outPos]
	e.copyAndEncode(buf, buf)

	return err
}

type Decoder struct {
	coder
}

func NewDecoder(opts *Options, next chain.Next) (*Decoder, error) {
	c, err := newCoder(opts, next)
	if err != nil {
		return nil, err
	}

	return &Decoder{coder: c}, nil
}

func (d *Decoder) Code(in []byte, inPos *int, out []byte, outPos *int, action chain.Action) error {
	outStart := *outPos
	err := d.next.Code(in, inPos, out, outPos, action)

	buf := out[outStart:*outPos]
	for i := range buf {
		buf[i] += d.history[uint8(d.distance+uint32(d.pos))]
		d.history[d.pos] = buf[i]
		d.pos--
	}

	return err
}

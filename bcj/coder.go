package bcj

import (
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
)

// Coder is the filter stage that drives a converter. It pulls data from
// the next stage (or copies it from the input when it is the last stage),
// converts it and keeps the unconverted tail until more data arrives.
type Coder struct {
	next chain.Next

	arch      Arch
	state     State
	isEncoder bool

	// endWasReached is set once the next stage returned io.EOF or, for the
	// last encoder stage, once all input was copied with Finish.
	endWasReached bool

	nowPos uint32

	// buffer[pos:filtered] is converted data waiting for output space and
	// buffer[filtered:size] is not converted yet.
	pos      int
	filtered int
	size     int
	buffer   []byte
}

// NewEncoder returns a converting stage in front of next. next may be empty.
func NewEncoder(arch Arch, opts *Options, next chain.Next) (*Coder, error) {
	return newCoder(arch, opts, next, true)
}

func NewDecoder(arch Arch, opts *Options, next chain.Next) (*Coder, error) {
	return newCoder(arch, opts, next, false)
}

func newCoder(arch Arch, opts *Options, next chain.Next, isEncoder bool) (*Coder, error) {
	c := &Coder{
		next:      next,
		arch:      arch,
		isEncoder: isEncoder,
		buffer:    make([]byte, arch.MemUsage()),
	}

	c.state.Reset()

	if opts != nil {
		if opts.StartOffset%arch.Alignment != 0 {
			return nil, fmt.Errorf("%s: start offset %d is not a multiple of %d: %w",
				arch.Name, opts.StartOffset, arch.Alignment, chain.ErrOptions)
		}

		c.nowPos = opts.StartOffset
	}

	return c, nil
}

func (c *Coder) copyOrCode(in []byte, inPos *int, out []byte, outPos *int, action chain.Action) error {
	if c.next.Empty() {
		chain.BufCopy(in, inPos, out, outPos)

		if c.isEncoder && action == chain.Finish && *inPos == len(in) {
			c.endWasReached = true
		}

		return nil
	}

	err := c.next.Code(in, inPos, out, outPos, action)
	if err == io.EOF {
		c.endWasReached = true

		return nil
	}

	return err
}

func (c *Coder) filter(buf []byte) int {
	n := c.arch.Func(&c.state, c.nowPos, c.isEncoder, buf)
	c.nowPos += uint32(n)

	return n
}

func (c *Coder) Code(in []byte, inPos *int, out []byte, outPos *int, action chain.Action) error {
	if action == chain.SyncFlush {
		return fmt.Errorf("%s: sync flush: %w", c.arch.Name, chain.ErrOptions)
	}

	// Flush already converted data.
	if c.pos < c.filtered {
		chain.BufCopy(c.buffer[:c.filtered], &c.pos, out, outPos)

		if c.pos < c.filtered {
			return nil
		}

		if c.endWasReached {
			return io.EOF
		}
	}

	c.filtered = 0

	outAvail := len(out) - *outPos
	bufAvail := c.size - c.pos

	if outAvail > bufAvail || bufAvail == 0 {
		outStart := *outPos

		// c.pos and c.size stay untouched until the next stage succeeded so
		// that the call can be repeated after an error.
		copy(out[*outPos:], c.buffer[c.pos:c.size])
		*outPos += bufAvail

		if err := c.copyOrCode(in, inPos, out, outPos, action); err != nil {
			return err
		}

		size := *outPos - outStart
		filtered := 0
		if size > 0 {
			filtered = c.filter(out[outStart:*outPos])
		}

		unfiltered := size - filtered

		c.pos = 0
		c.size = unfiltered

		if c.endWasReached {
			// The last bytes are left as they are.
			c.size = 0
		} else if unfiltered > 0 {
			*outPos -= unfiltered
			copy(c.buffer, out[*outPos:*outPos+unfiltered])
		}
	} else if c.pos > 0 {
		copy(c.buffer, c.buffer[c.pos:c.size])
		c.size -= c.pos
		c.pos = 0
	}

	// Top up the buffer, convert it and flush what is done.
	if c.size > 0 {
		if err := c.copyOrCode(in, inPos, c.buffer, &c.size, action); err != nil {
			return err
		}

		c.filtered = c.filter(c.buffer[:c.size])

		if c.endWasReached {
			c.filtered = c.size
		}

		chain.BufCopy(c.buffer[:c.filtered], &c.pos, out, outPos)
	}

	if c.endWasReached && c.pos == c.size {
		return io.EOF
	}

	return nil
}

func (c *Coder) End() {
	c.next.End()
}

// Update has no options of its own to change; it passes the rest of the
// filters on.
func (c *Coder) Update(filters []chain.Filter) error {
	return c.next.Update(filters[1:])
}

func (c *Coder) MemConfig(newLimit uint64) (uint64, uint64, error) {
	if c.next.Empty() {
		return uint64(len(c.buffer)), 0, nil
	}

	memUsage, oldLimit, err := c.next.MemConfig(newLimit)
	if err != nil {
		return 0, 0, err
	}

	return memUsage + uint64(len(c.buffer)), oldLimit, nil
}

package lzma

import (
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
	rc "github.com/kulaginds/xz/rangecoder"
)

const (
	// encoderChunkMax is the uncompressed size of the chunks the encoder
	// produces. It keeps every chunk within chunkCompressedMax.
	encoderChunkMax = 1 << 16

	chunkHeaderMax             = 6
	uncompressedChunkHeaderLen = 3

	// priceCheckMin is how many bytes are coded before the price estimate
	// may abandon a chunk.
	priceCheckMin = 4096
)

// Encoder is the LZMA2 encoder stage. It is always the first stage of an
// encoder chain. Every byte is coded as a literal; chunks that would not
// shrink are stored uncompressed.
type Encoder struct {
	next chain.Next

	opts Options
	s    *state
	rc   *rc.Encoder

	needProps      bool
	needStateReset bool
	needDictReset  bool

	// uncomp holds the input of the chunk being collected.
	uncomp        []byte
	endWasReached bool
	finished      bool

	// out[outPos:outSize] is the encoded chunk waiting for output space.
	out     []byte
	outPos  int
	outSize int

	// totalPos and prevByte are the literal context since the dictionary
	// reset.
	totalPos uint64
	prevByte byte

	progressIn  uint64
	progressOut uint64
}

// NewEncoder returns an LZMA2 encoder reading from next, or from the input
// when next is empty.
func NewEncoder(opts *Options, next chain.Next) (*Encoder, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	e := &Encoder{
		next:           next,
		opts:           *opts,
		s:              newState(opts.LC, opts.LP, opts.PB),
		rc:             rc.NewEncoder(),
		needProps:      true,
		needStateReset: true,
		needDictReset:  true,
		uncomp:         make([]byte, 0, encoderChunkMax),
		out:            make([]byte, chunkHeaderMax+chunkCompressedMax),
	}

	return e, nil
}

func (e *Encoder) fill(in []byte, inPos *int, action chain.Action) error {
	if e.next.Empty() {
		n := copy(e.uncomp[len(e.uncomp):cap(e.uncomp)], in[*inPos:])
		e.uncomp = e.uncomp[:len(e.uncomp)+n]
		*inPos += n

		if action != chain.Run && *inPos == len(in) {
			e.endWasReached = true
		}

		return nil
	}

	size := len(e.uncomp)

	err := e.next.Code(in, inPos, e.uncomp[:cap(e.uncomp)], &size, action)
	e.uncomp = e.uncomp[:size]

	if err == io.EOF {
		e.endWasReached = true

		return nil
	}

	return err
}

func (e *Encoder) Code(in []byte, inPos *int, out []byte, outPos *int, action chain.Action) error {
	inStart := *inPos
	defer func() {
		e.progressIn += uint64(*inPos - inStart)
	}()

	for {
		if e.outPos < e.outSize {
			n := copy(out[*outPos:], e.out[e.outPos:e.outSize])
			*outPos += n
			e.outPos += n
			e.progressOut += uint64(n)

			if e.outPos < e.outSize {
				return nil
			}
		}

		if e.finished {
			return io.EOF
		}

		if !e.endWasReached && len(e.uncomp) < cap(e.uncomp) {
			if err := e.fill(in, inPos, action); err != nil {
				return err
			}
		}

		if len(e.uncomp) == cap(e.uncomp) || (e.endWasReached && len(e.uncomp) > 0) {
			e.encodeChunk()

			continue
		}

		if !e.endWasReached {
			return nil
		}

		if action == chain.Finish {
			e.out[0] = 0x00
			e.outPos = 0
			e.outSize = 1
			e.finished = true

			continue
		}

		// A flush is complete; the next call starts collecting again.
		e.endWasReached = false

		return io.EOF
	}
}

// encodeChunk turns e.uncomp into one chunk in e.out.
func (e *Encoder) encodeChunk() {
	if !e.encodeLZMA() {
		e.encodeUncompressed()
	}

	for _, b := range e.uncomp {
		e.prevByte = b
	}

	e.totalPos += uint64(len(e.uncomp))
	e.uncomp = e.uncomp[:0]
}

// encodeLZMA codes the collected input as literals. It returns false if the
// result would not be smaller than storing the input.
func (e *Encoder) encodeLZMA() bool {
	s := e.s

	if e.needStateReset || e.needProps {
		s.Reset()
	}

	e.rc.Reset()

	payload := e.out[chunkHeaderMax:]
	size := 0
	price := uint32(0)

	pos := e.totalPos
	prevByte := e.prevByte

	for i, b := range e.uncomp {
		posState := uint32(pos) & s.posMask
		probs := s.literalProbs(pos, prevByte)

		price += rc.Bit0Price(s.isMatch[posState]) + rc.BitTreePrice(probs, 8, uint32(b))
		if i >= priceCheckMin && price>>(rc.BitPriceShiftBits+3) >= uint32(i) {
			return false
		}

		e.rc.Bit(&s.isMatch[posState], 0)
		e.rc.BitTree(probs, 8, uint32(b))

		if e.rc.Encode(payload, &size) {
			return false
		}

		pos++
		prevByte = b
	}

	e.rc.Flush()

	if e.rc.Encode(payload, &size) {
		return false
	}

	headerLen := chunkHeaderMax - 1
	if e.needProps {
		headerLen = chunkHeaderMax
	}

	if size+headerLen >= len(e.uncomp)+uncompressedChunkHeaderLen {
		return false
	}

	var control byte

	switch {
	case e.needProps && e.needDictReset:
		control = 0xE0
	case e.needProps:
		control = 0xC0
	case e.needStateReset:
		control = 0xA0
	default:
		control = 0x80
	}

	u := len(e.uncomp) - 1
	c := size - 1

	header := e.out[chunkHeaderMax-headerLen : chunkHeaderMax]
	header[0] = control | byte(u>>16)
	header[1] = byte(u >> 8)
	header[2] = byte(u)
	header[3] = byte(c >> 8)
	header[4] = byte(c)

	if e.needProps {
		header[5] = EncodeProps(e.opts.LC, e.opts.LP, e.opts.PB)
	}

	e.outPos = chunkHeaderMax - headerLen
	e.outSize = chunkHeaderMax + size

	e.needProps = false
	e.needStateReset = false
	e.needDictReset = false

	return true
}

func (e *Encoder) encodeUncompressed() {
	control := byte(0x02)
	if e.needDictReset {
		control = 0x01
		e.needProps = true
	}

	u := len(e.uncomp) - 1

	e.out[0] = control
	e.out[1] = byte(u >> 8)
	e.out[2] = byte(u)
	copy(e.out[uncompressedChunkHeaderLen:], e.uncomp)

	e.outPos = 0
	e.outSize = uncompressedChunkHeaderLen + len(e.uncomp)

	e.needStateReset = true
	e.needDictReset = false
}

func (e *Encoder) End() {
	e.next.End()
}

func (e *Encoder) Progress() (uint64, uint64) {
	return e.progressIn, e.progressOut
}

// Update takes new lc, lp and pb from filters[0]; they apply from the next
// chunk on. The dictionary size cannot change.
func (e *Encoder) Update(filters []chain.Filter) error {
	opts, ok := filters[0].Options.(*Options)
	if !ok || opts == nil {
		return fmt.Errorf("lzma2: options %T: %w", filters[0].Options, chain.ErrOptions)
	}

	if err := opts.validate(); err != nil {
		return err
	}

	if err := e.next.Update(filters[1:]); err != nil {
		return err
	}

	if opts.LC != e.opts.LC || opts.LP != e.opts.LP || opts.PB != e.opts.PB {
		e.opts.LC, e.opts.LP, e.opts.PB = opts.LC, opts.LP, opts.PB
		e.s.setProps(opts.LC, opts.LP, opts.PB)
		e.needProps = true
		e.needStateReset = true
	}

	return nil
}

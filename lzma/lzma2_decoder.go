package lzma

import (
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
)

type sequence int

const (
	seqControl sequence = iota
	seqUncompressed1
	seqUncompressed2
	seqCompressed0
	seqCompressed1
	seqProperties
	seqLZMA
	seqCopy
	seqEnd
)

// Decoder is the LZMA2 decoder stage. It is always the last stage of a
// decoder chain and reads the compressed data from the input.
type Decoder struct {
	seq     sequence
	nextSeq sequence

	uncompressedSize uint32
	compressedSize   uint32

	needProps     bool
	needDictReset bool

	outWindow  *dict
	lzmaReader *lzmaDecoder

	// chunk collects the compressed payload of the current LZMA chunk.
	chunk        []byte
	chunkStarted bool

	progressIn  uint64
	progressOut uint64

	outLimit uint64
	memLimit uint64
}

func NewDecoder(opts *Options) (*Decoder, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	w := newDict(opts.dictSize())

	d := &Decoder{
		outWindow:     w,
		lzmaReader:    newLZMADecoder(w),
		chunk:         make([]byte, 0, chunkCompressedMax),
		needProps:     true,
		needDictReset: true,
	}

	return d, nil
}

func (d *Decoder) flush(out []byte, outPos *int) {
	avail := out[*outPos:]
	if d.outLimit > 0 && uint64(len(avail)) > d.outLimit-d.progressOut {
		avail = avail[:d.outLimit-d.progressOut]
	}

	n := d.outWindow.ReadPending(avail)
	*outPos += n
	d.progressOut += uint64(n)
}

func (d *Decoder) Code(in []byte, inPos *int, out []byte, outPos *int, _ chain.Action) error {
	inStart := *inPos
	defer func() {
		d.progressIn += uint64(*inPos - inStart)
	}()

	for {
		if d.outWindow.HasPending() {
			d.flush(out, outPos)
		}

		if d.outLimit > 0 && d.progressOut == d.outLimit {
			d.seq = seqEnd

			return io.EOF
		}

		if d.outWindow.HasPending() {
			return nil
		}

		if d.seq == seqEnd {
			return io.EOF
		}

		if d.seq == seqLZMA && d.chunkStarted {
			done, err := d.lzmaReader.decompress()
			if err != nil {
				return wrapData(err)
			}

			if done {
				if d.lzmaReader.rangeDec.Pos()+5 != len(d.chunk) {
					return fmt.Errorf("%w: %d bytes left: %w", ErrChunkSize,
						len(d.chunk)-5-d.lzmaReader.rangeDec.Pos(), chain.ErrData)
				}

				d.chunkStarted = false
				d.seq = seqControl
			}

			continue
		}

		if d.seq == seqCopy {
			if *inPos == len(in) {
				return nil
			}

			n := len(in) - *inPos
			if uint32(n) > d.compressedSize {
				n = int(d.compressedSize)
			}

			n = d.outWindow.Write(in[*inPos : *inPos+n])
			*inPos += n
			d.compressedSize -= uint32(n)

			if d.compressedSize == 0 {
				d.seq = seqControl
			}

			continue
		}

		if *inPos == len(in) {
			return nil
		}

		if err := d.decodeHeader(in, inPos); err != nil {
			return err
		}
	}
}

// decodeHeader consumes header bytes of a chunk, or collects the payload of
// an LZMA chunk.
func (d *Decoder) decodeHeader(in []byte, inPos *int) error {
	switch d.seq {
	case seqControl:
		control := in[*inPos]
		*inPos++

		if control == 0x00 {
			d.seq = seqEnd

			return nil
		}

		if control >= 0xE0 || control == 1 {
			d.needProps = true
			d.needDictReset = true
		} else if d.needDictReset {
			return fmt.Errorf("lzma2: control 0x%02x without dictionary reset: %w", control, chain.ErrData)
		}

		if control >= 0x80 {
			d.uncompressedSize = uint32(control&0x1F) << 16
			d.seq = seqUncompressed1

			switch control >> 5 {
			case 4: // no reset
				if d.needProps {
					return fmt.Errorf("lzma2: control 0x%02x without properties: %w", control, chain.ErrData)
				}

				d.nextSeq = seqLZMA
			case 5: // state reset
				if d.needProps {
					return fmt.Errorf("lzma2: control 0x%02x without properties: %w", control, chain.ErrData)
				}

				d.nextSeq = seqLZMA
				d.lzmaReader.s.Reset()
			case 6, 7: // state reset, new properties, maybe dictionary reset
				d.needProps = false
				d.nextSeq = seqProperties
			}
		} else {
			if control > 2 {
				return fmt.Errorf("%w: 0x%02x: %w", ErrUnexpectedLZMA2Code, control, chain.ErrData)
			}

			d.seq = seqCompressed0
			d.nextSeq = seqCopy
		}

		if d.needDictReset {
			d.needDictReset = false
			d.outWindow.Reset()
		}

	case seqUncompressed1:
		d.uncompressedSize += uint32(in[*inPos]) << 8
		*inPos++
		d.seq = seqUncompressed2

	case seqUncompressed2:
		d.uncompressedSize += uint32(in[*inPos]) + 1
		*inPos++
		d.seq = seqCompressed0

	case seqCompressed0:
		d.compressedSize = uint32(in[*inPos]) << 8
		*inPos++
		d.seq = seqCompressed1

	case seqCompressed1:
		d.compressedSize += uint32(in[*inPos]) + 1
		*inPos++
		d.seq = d.nextSeq
		d.chunk = d.chunk[:0]

	case seqProperties:
		lc, lp, pb, err := DecodeProps(in[*inPos])
		if err != nil {
			return fmt.Errorf("lzma2: %w: %w", err, chain.ErrData)
		}

		*inPos++
		d.lzmaReader.s.setProps(lc, lp, pb)
		d.seq = seqLZMA

	case seqLZMA:
		n := len(in) - *inPos
		if need := int(d.compressedSize) - len(d.chunk); n > need {
			n = need
		}

		d.chunk = append(d.chunk, in[*inPos:*inPos+n]...)
		*inPos += n

		if len(d.chunk) == int(d.compressedSize) {
			if err := d.lzmaReader.startChunk(d.chunk, d.uncompressedSize); err != nil {
				return err
			}

			d.chunkStarted = true
		}
	}

	return nil
}

func wrapData(err error) error {
	if chain.RetOf(err) == chain.ProgError {
		return fmt.Errorf("lzma2: %w: %w", chain.ErrData, err)
	}

	return err
}

// End releases nothing; the decoder is the last stage of its chain.
func (d *Decoder) End() {}

func (d *Decoder) Progress() (uint64, uint64) {
	return d.progressIn, d.progressOut
}

// DecoderMemUsage is the memory in bytes a decoder created with opts uses.
// It is known before anything is allocated.
func DecoderMemUsage(opts *Options) uint64 {
	if opts == nil {
		opts = DefaultOptions()
	}

	return uint64(opts.dictSize()) + chunkCompressedMax + stateMemUsage(literalCoderSize<<LCLPMax)
}

func (d *Decoder) memUsage() uint64 {
	return uint64(d.outWindow.size) + uint64(cap(d.chunk)) + d.lzmaReader.s.memUsage()
}

func (d *Decoder) MemConfig(newLimit uint64) (uint64, uint64, error) {
	memUsage := d.memUsage()
	oldLimit := d.memLimit

	if newLimit != 0 {
		if newLimit < memUsage {
			return memUsage, oldLimit, fmt.Errorf("lzma2: %d bytes needed: %w", memUsage, chain.ErrMemlimit)
		}

		d.memLimit = newLimit
	}

	return memUsage, oldLimit, nil
}

// SetOutLimit stops the decoder once outLimit bytes were produced. It
// returns how many bytes were produced so far.
func (d *Decoder) SetOutLimit(outLimit uint64) (uint64, error) {
	if outLimit < d.progressOut {
		return d.progressOut, fmt.Errorf("lzma2: out limit %d below %d: %w", outLimit, d.progressOut, chain.ErrBuf)
	}

	d.outLimit = outLimit

	return d.progressOut, nil
}

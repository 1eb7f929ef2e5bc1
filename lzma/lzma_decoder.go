package lzma

import (
	"fmt"

	"github.com/kulaginds/xz/chain"
	rc "github.com/kulaginds/xz/rangecoder"
)

// lzmaDecoder decodes the LZMA payload of LZMA2 chunks into a dict.
type lzmaDecoder struct {
	rangeDec  *rc.Decoder
	outWindow *dict

	s *state

	// bytesLeft is the uncompressed size still to come in this chunk.
	bytesLeft uint32
}

func newLZMADecoder(outWindow *dict) *lzmaDecoder {
	// Room for the literal coders of any lc and lp a stream may set.
	s := newState(LCLPMax, 0, 0)
	s.setProps(0, 0, 0)

	return &lzmaDecoder{
		rangeDec:  rc.NewDecoder(),
		outWindow: outWindow,
		s:         s,
	}
}

// startChunk primes the range decoder with a complete compressed chunk.
func (r *lzmaDecoder) startChunk(compressed []byte, uncompressedSize uint32) error {
	r.rangeDec.Reset()
	r.bytesLeft = uncompressedSize

	inPos := 0

	done, err := r.rangeDec.ReadInit(compressed, &inPos)
	if err != nil {
		return fmt.Errorf("rangeDec.ReadInit: %w: %w", chain.ErrData, err)
	}

	if !done {
		return fmt.Errorf("rangeDec.ReadInit: %w: chunk too short", chain.ErrData)
	}

	r.rangeDec.Load(compressed[inPos:])

	return nil
}

// decompress decodes until the chunk is done or the window has no room for
// another match. It returns true once the chunk is complete.
func (r *lzmaDecoder) decompress() (bool, error) {
	for r.bytesLeft > 0 && r.outWindow.Available() >= matchLenMax {
		if err := r.decodeOperation(); err != nil {
			return false, err
		}
	}

	if r.bytesLeft > 0 {
		return false, nil
	}

	if !r.rangeDec.IsFinishedOK() {
		return false, fmt.Errorf("lzma: range decoder not finished: %w", chain.ErrData)
	}

	return true, nil
}

func (r *lzmaDecoder) decodeOperation() error {
	s := r.s

	s.posState = uint32(r.outWindow.totalPos) & s.posMask
	state2 := (s.state << numPosBitsMax) + s.posState

	bit, err := r.rangeDec.DecodeBit(&s.isMatch[state2])
	if err != nil {
		return fmt.Errorf("decode bit: %w", err)
	}

	if bit == 0 { // literal
		err = r.decodeLiteral(s.state, s.rep0)
		if err != nil {
			return fmt.Errorf("decode literal: %w", err)
		}

		s.state = stateUpdateLiteral(s.state)
		r.bytesLeft--

		return nil
	}

	length := uint32(0)

	bit, err = r.rangeDec.DecodeBit(&s.isRep[s.state])
	if err != nil {
		return fmt.Errorf("decode bit: %w", err)
	}

	if bit == 0 { // simple match
		s.rep3, s.rep2, s.rep1 = s.rep2, s.rep1, s.rep0

		length, err = s.lenDecoder.Decode(r.rangeDec, s.posState)
		if err != nil {
			return fmt.Errorf("length decoder decode: %w", err)
		}

		s.state = stateUpdateMatch(s.state)

		s.rep0, err = r.decodeDistance(length)
		if err != nil {
			return fmt.Errorf("decode distance: %w", err)
		}

		// LZMA2 chunks carry their size; an end marker is corruption.
		if s.rep0 == 0xFFFFFFFF {
			return fmt.Errorf("lzma: end marker in chunk: %w", chain.ErrData)
		}
	} else { // rep match
		if r.outWindow.IsEmpty() {
			return fmt.Errorf("lzma: rep match in empty window: %w", chain.ErrData)
		}

		bit, err = r.rangeDec.DecodeBit(&s.isRepG0[s.state])
		if err != nil {
			return fmt.Errorf("decode bit: %w", err)
		}

		if bit == 0 { // short rep match
			bit, err = r.rangeDec.DecodeBit(&s.isRep0Long[state2])
			if err != nil {
				return fmt.Errorf("decode bit: %w", err)
			}

			if bit == 0 {
				if err = r.checkDistance(); err != nil {
					return err
				}

				s.state = stateUpdateShortRep(s.state)
				r.outWindow.PutByte(r.outWindow.GetByte(s.rep0 + 1))
				r.bytesLeft--

				return nil
			}
		} else {
			dist := uint32(0)

			bit, err = r.rangeDec.DecodeBit(&s.isRepG1[s.state])
			if err != nil {
				return fmt.Errorf("decode bit: %w", err)
			}

			if bit == 0 {
				dist = s.rep1
			} else {
				bit, err = r.rangeDec.DecodeBit(&s.isRepG2[s.state])
				if err != nil {
					return fmt.Errorf("decode bit: %w", err)
				}

				if bit == 0 {
					dist = s.rep2
				} else {
					dist = s.rep3
					s.rep3 = s.rep2
				}

				s.rep2 = s.rep1
			}

			s.rep1 = s.rep0
			s.rep0 = dist
		}

		length, err = s.repLenDecoder.Decode(r.rangeDec, s.posState)
		if err != nil {
			return fmt.Errorf("rep length decoder decode: %w", err)
		}

		s.state = stateUpdateRep(s.state)
	}

	length += matchMinLen
	if r.bytesLeft < length {
		return fmt.Errorf("lzma: match of %d bytes with %d left in chunk: %w", length, r.bytesLeft, chain.ErrData)
	}

	if err = r.checkDistance(); err != nil {
		return err
	}

	r.outWindow.CopyMatch(s.rep0+1, length)
	r.bytesLeft -= length

	return nil
}

func (r *lzmaDecoder) checkDistance() error {
	rep0 := r.s.rep0
	if rep0 >= r.outWindow.size || !r.outWindow.CheckDistance(rep0+1) {
		return fmt.Errorf("%w: %d: %w", ErrDistance, rep0, chain.ErrData)
	}

	return nil
}

func (r *lzmaDecoder) decodeLiteral(state uint32, rep0 uint32) error {
	var prevByte byte
	if !r.outWindow.IsEmpty() {
		prevByte = r.outWindow.GetByte(1)
	}

	probs := r.s.literalProbs(r.outWindow.totalPos, prevByte)
	symbol := uint32(1)

	if state >= literalStates {
		matchByte := r.outWindow.GetByte(rep0 + 1)

		for symbol < 0x100 {
			matchBit := uint32((matchByte >> 7) & 1)
			matchByte <<= 1

			bit, err := r.rangeDec.DecodeBit(&probs[((1+matchBit)<<8)+symbol])
			if err != nil {
				return err
			}

			symbol = (symbol << 1) | bit
			if matchBit != bit {
				break
			}
		}
	}

	for symbol < 0x100 {
		bit, err := r.rangeDec.DecodeBit(&probs[symbol])
		if err != nil {
			return err
		}

		symbol = (symbol << 1) | bit
	}

	r.outWindow.PutByte(byte(symbol - 0x100))

	return nil
}

func (r *lzmaDecoder) decodeDistance(length uint32) (uint32, error) {
	lenState := length
	if lenState > numLenToPosStates-1 {
		lenState = numLenToPosStates - 1
	}

	s := r.s

	posSlot, err := s.posSlotDecoder[lenState].Decode(r.rangeDec)
	if err != nil {
		return 0, fmt.Errorf("pos slot decoder decode: %w", err)
	}

	if posSlot < startPosModelIndex {
		return posSlot, nil
	}

	numDirectBits := uint((posSlot >> 1) - 1)
	dist := (2 | (posSlot & 1)) << numDirectBits

	var bits uint32

	if posSlot < endPosModelIndex {
		bits, err = r.rangeDec.BitTreeReverse(s.posDecoders[dist-posSlot:], numDirectBits)
		if err != nil {
			return 0, fmt.Errorf("bit tree reverse decode: %w", err)
		}

		return dist + bits, nil
	}

	bits, err = r.rangeDec.DecodeDirectBits(numDirectBits - numAlignBits)
	if err != nil {
		return 0, fmt.Errorf("decode direct bits: %w", err)
	}

	dist += bits << numAlignBits

	bits, err = s.alignDecoder.ReverseDecode(r.rangeDec)
	if err != nil {
		return 0, fmt.Errorf("align reverse decode: %w", err)
	}

	return dist + bits, nil
}

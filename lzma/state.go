package lzma

import (
	rc "github.com/kulaginds/xz/rangecoder"
)

// state is the adaptive model of one LZMA stream. It is shared by all
// chunks between two state resets.
type state struct {
	lc, lp, pb uint32

	posMask uint32
	lpMask  uint32

	posSlotDecoder [numLenToPosStates]*bitTree
	alignDecoder   *bitTree
	lenDecoder     *lenDecoder
	repLenDecoder  *lenDecoder
	litProbs       []rc.Prob
	posDecoders    []rc.Prob

	isMatch    []rc.Prob
	isRep      []rc.Prob
	isRepG0    []rc.Prob
	isRepG1    []rc.Prob
	isRepG2    []rc.Prob
	isRep0Long []rc.Prob

	rep0, rep1, rep2, rep3 uint32

	state    uint32
	posState uint32
}

func newState(lc, lp, pb uint32) *state {
	s := &state{
		lenDecoder:    newLenDecoder(),
		repLenDecoder: newLenDecoder(),
		posDecoders:   make([]rc.Prob, 1+numFullDistances-endPosModelIndex),
		alignDecoder:  newBitTree(numAlignBits),

		isMatch:    make([]rc.Prob, numStates<<numPosBitsMax),
		isRep:      make([]rc.Prob, numStates),
		isRepG0:    make([]rc.Prob, numStates),
		isRepG1:    make([]rc.Prob, numStates),
		isRepG2:    make([]rc.Prob, numStates),
		isRep0Long: make([]rc.Prob, numStates<<numPosBitsMax),
	}

	for i := range s.posSlotDecoder {
		s.posSlotDecoder[i] = newBitTree(numPosSlotBits)
	}

	s.setProps(lc, lp, pb)

	return s
}

// setProps changes lc, lp and pb and resets the model.
func (s *state) setProps(lc, lp, pb uint32) {
	s.lc, s.lp, s.pb = lc, lp, pb
	s.posMask = (1 << pb) - 1
	s.lpMask = (1 << lp) - 1

	n := literalCoderSize << (lc + lp)
	if cap(s.litProbs) >= n {
		s.litProbs = s.litProbs[:n]
	} else {
		s.litProbs = make([]rc.Prob, n)
	}

	s.Reset()
}

func (s *state) Reset() {
	s.lenDecoder.Reset()
	s.repLenDecoder.Reset()

	rc.InitProbs(s.litProbs)

	for i := range s.posSlotDecoder {
		s.posSlotDecoder[i].Reset()
	}

	rc.InitProbs(s.posDecoders)
	s.alignDecoder.Reset()

	rc.InitProbs(s.isMatch)
	rc.InitProbs(s.isRep)
	rc.InitProbs(s.isRepG0)
	rc.InitProbs(s.isRepG1)
	rc.InitProbs(s.isRepG2)
	rc.InitProbs(s.isRep0Long)

	s.rep0, s.rep1, s.rep2, s.rep3 = 0, 0, 0, 0
	s.state = 0
	s.posState = 0
}

// literalProbs returns the coder of the literal at pos that follows
// prevByte.
func (s *state) literalProbs(pos uint64, prevByte byte) []rc.Prob {
	litState := ((uint32(pos) & s.lpMask) << s.lc) + (uint32(prevByte) >> (8 - s.lc))

	return s.litProbs[literalCoderSize*litState:][:literalCoderSize]
}

// stateMemUsage is the size in bytes of the probability arrays of a model
// with litProbs literal probabilities.
func stateMemUsage(litProbs int) uint64 {
	const fixed = 2*lenDecoderProbs + numLenToPosStates<<numPosSlotBits +
		1 + numFullDistances - endPosModelIndex + 1<<numAlignBits +
		4*numStates + 2*numStates<<numPosBitsMax

	return 2 * uint64(fixed+litProbs)
}

func (s *state) memUsage() uint64 {
	return stateMemUsage(cap(s.litProbs))
}

func stateUpdateLiteral(state uint32) uint32 {
	if state < 4 {
		return 0
	}

	if state < 10 {
		return state - 3
	}

	return state - 6
}

func stateUpdateMatch(state uint32) uint32 {
	if state < literalStates {
		return 7
	}

	return 10
}

func stateUpdateRep(state uint32) uint32 {
	if state < literalStates {
		return 8
	}

	return 11
}

func stateUpdateShortRep(state uint32) uint32 {
	if state < literalStates {
		return 9
	}

	return 11
}

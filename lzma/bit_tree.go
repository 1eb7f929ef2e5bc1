package lzma

import (
	rc "github.com/kulaginds/xz/rangecoder"
)

type bitTree struct {
	probs   []rc.Prob
	numBits uint
}

func newBitTree(numBits uint) *bitTree {
	t := &bitTree{
		numBits: numBits,
		probs:   make([]rc.Prob, uint32(1)<<numBits),
	}
	t.Reset()

	return t
}

func (t *bitTree) Reset() {
	rc.InitProbs(t.probs)
}

func (t *bitTree) Decode(d *rc.Decoder) (uint32, error) {
	return d.BitTree(t.probs, t.numBits)
}

func (t *bitTree) ReverseDecode(d *rc.Decoder) (uint32, error) {
	return d.BitTreeReverse(t.probs, t.numBits)
}

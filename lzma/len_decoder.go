package lzma

import (
	rc "github.com/kulaginds/xz/rangecoder"
)

const (
	lenLowBits  = 3
	lenMidBits  = 3
	lenHighBits = 8

	lenDecoderProbs = 2 + 2<<numPosBitsMax<<lenLowBits + 1<<lenHighBits
)

type lenDecoder struct {
	choice  rc.Prob
	choice2 rc.Prob

	lowCoder  [1 << numPosBitsMax]*bitTree
	midCoder  [1 << numPosBitsMax]*bitTree
	highCoder *bitTree
}

func newLenDecoder() *lenDecoder {
	d := &lenDecoder{
		highCoder: newBitTree(lenHighBits),
	}

	for i := range d.lowCoder {
		d.lowCoder[i] = newBitTree(lenLowBits)
		d.midCoder[i] = newBitTree(lenMidBits)
	}

	d.Reset()

	return d
}

func (d *lenDecoder) Reset() {
	d.choice = rc.ProbInit
	d.choice2 = rc.ProbInit

	for i := range d.lowCoder {
		d.lowCoder[i].Reset()
		d.midCoder[i].Reset()
	}

	d.highCoder.Reset()
}

// Decode returns the match length minus matchMinLen.
func (d *lenDecoder) Decode(rd *rc.Decoder, posState uint32) (uint32, error) {
	bit, err := rd.DecodeBit(&d.choice)
	if err != nil {
		return 0, err
	}

	if bit == 0 {
		return d.lowCoder[posState].Decode(rd)
	}

	bit, err = rd.DecodeBit(&d.choice2)
	if err != nil {
		return 0, err
	}

	if bit == 0 {
		bit, err = d.midCoder[posState].Decode(rd)

		return 8 + bit, err
	}

	bit, err = d.highCoder.Decode(rd)

	return 16 + bit, err
}

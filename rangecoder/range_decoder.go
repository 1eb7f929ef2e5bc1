package rangecoder

import (
	"errors"
)

const initBytes = 5

var (
	ErrInitByte = errors.New("rangecoder: first byte of the stream is not zero")
	ErrInputEOF = errors.New("rangecoder: unexpected end of input")
)

// Decoder decodes bits from a byte slice. The slice is attached with Load;
// ReadInit primes the decoder from its first five bytes and can be fed
// incrementally.
type Decoder struct {
	Range uint32
	Code  uint32

	initBytesLeft int

	in    []byte
	inPos int
}

func NewDecoder() *Decoder {
	d := &Decoder{}
	d.Reset()

	return d
}

func (d *Decoder) Reset() {
	d.Range = 0xFFFFFFFF
	d.Code = 0
	d.initBytesLeft = initBytes
	d.in = nil
	d.inPos = 0
}

// ReadInit consumes priming bytes from in starting at *inPos. It returns true
// once all five bytes were read.
func (d *Decoder) ReadInit(in []byte, inPos *int) (bool, error) {
	for d.initBytesLeft > 0 {
		if *inPos == len(in) {
			return false, nil
		}

		b := in[*inPos]
		if d.initBytesLeft == initBytes && b != 0x00 {
			return false, ErrInitByte
		}

		d.Code = (d.Code << 8) | uint32(b)
		*inPos++
		d.initBytesLeft--
	}

	return true, nil
}

// Load attaches the data that the following bit decodes read from.
func (d *Decoder) Load(in []byte) {
	d.in = in
	d.inPos = 0
}

// Pos returns the number of bytes consumed from the slice given to Load.
func (d *Decoder) Pos() int {
	return d.inPos
}

func (d *Decoder) IsFinishedOK() bool {
	return d.Code == 0
}

func (d *Decoder) normalize() error {
	if d.Range < TopValue {
		if d.inPos == len(d.in) {
			return ErrInputEOF
		}

		d.Range <<= ShiftBits
		d.Code = (d.Code << ShiftBits) | uint32(d.in[d.inPos])
		d.inPos++
	}

	return nil
}

func (d *Decoder) DecodeBit(p *Prob) (uint32, error) {
	var bit uint32

	bound := p.bound(d.Range)
	if d.Code < bound {
		d.Range = bound
		p.update0()
	} else {
		d.Code -= bound
		d.Range -= bound
		p.update1()
		bit = 1
	}

	return bit, d.normalize()
}

func (d *Decoder) DecodeDirectBits(bitCount uint) (uint32, error) {
	var res uint32

	for ; bitCount > 0; bitCount-- {
		d.Range >>= 1
		d.Code -= d.Range
		t := 0 - (d.Code >> 31)
		d.Code += d.Range & t

		res = (res << 1) + (t + 1)

		if err := d.normalize(); err != nil {
			return 0, err
		}
	}

	return res, nil
}

func (d *Decoder) BitTree(probs []Prob, bitCount uint) (uint32, error) {
	m := uint32(1)

	for i := uint(0); i < bitCount; i++ {
		bit, err := d.DecodeBit(&probs[m])
		if err != nil {
			return 0, err
		}

		m = (m << 1) + bit
	}

	return m - (uint32(1) << bitCount), nil
}

func (d *Decoder) BitTreeReverse(probs []Prob, bitCount uint) (uint32, error) {
	m := uint32(1)
	symbol := uint32(0)

	for i := uint(0); i < bitCount; i++ {
		bit, err := d.DecodeBit(&probs[m])
		if err != nil {
			return 0, err
		}

		m = (m << 1) | bit
		symbol |= bit << i
	}

	return symbol, nil
}

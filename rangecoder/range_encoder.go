package rangecoder

// SymbolsMax is the capacity of the encoder's symbol queue. Callers must
// drain the queue with Encode before it would overflow.
const SymbolsMax = 53

type symbol uint8

const (
	symBit0 symbol = iota
	symBit1
	symDirect0
	symDirect1
	symFlush
)

// Encoder queues bit decisions and turns them into bytes when Encode is
// called. Probabilities referenced by queued bits are owned by the caller's
// model and are updated during Encode, not when the bit is queued.
type Encoder struct {
	low       uint64
	cacheSize uint64
	rng       uint32
	cache     byte

	outTotal uint64

	count int
	pos   int

	symbols [SymbolsMax]symbol
	probs   [SymbolsMax]*Prob
}

func NewEncoder() *Encoder {
	e := &Encoder{}
	e.Reset()

	return e
}

func (e *Encoder) Reset() {
	e.low = 0
	e.cacheSize = 1
	e.rng = 0xFFFFFFFF
	e.cache = 0
	e.outTotal = 0
	e.count = 0
	e.pos = 0
}

// Forget drops the queued symbols. It must not be called while a drain is
// in progress.
func (e *Encoder) Forget() {
	if e.pos != 0 {
		panic("rangecoder: Forget during a partial drain")
	}

	e.count = 0
}

// Count returns the number of queued symbols.
func (e *Encoder) Count() int {
	return e.count
}

// OutTotal returns the number of bytes written by Encode since Reset.
func (e *Encoder) OutTotal() uint64 {
	return e.outTotal
}

// Pending returns the number of bytes that Encode would still write after a
// Flush if the queue is currently empty.
func (e *Encoder) Pending() uint64 {
	return e.cacheSize + 5 - 1
}

func (e *Encoder) push(s symbol, p *Prob) {
	if e.count == SymbolsMax {
		panic("rangecoder: symbol queue overflow")
	}

	e.symbols[e.count] = s
	e.probs[e.count] = p
	e.count++
}

// Bit queues one bit coded with the probability p.
func (e *Encoder) Bit(p *Prob, bit uint32) {
	e.push(symBit0+symbol(bit&1), p)
}

// Direct queues the lowest bitCount bits of value, most significant first,
// with a fixed probability of one half.
func (e *Encoder) Direct(value uint32, bitCount uint) {
	for bitCount > 0 {
		bitCount--
		e.push(symDirect0+symbol((value>>bitCount)&1), nil)
	}
}

// Flush queues the symbols that push the whole state of the encoder out.
func (e *Encoder) Flush() {
	for i := 0; i < 5; i++ {
		e.push(symFlush, nil)
	}
}

// BitTree queues bitCount bits of symbol, most significant first, using the
// bit tree probs (len(probs) >= 1<<bitCount).
func (e *Encoder) BitTree(probs []Prob, bitCount uint, sym uint32) {
	m := uint32(1)

	for bitCount > 0 {
		bitCount--
		bit := (sym >> bitCount) & 1
		e.Bit(&probs[m], bit)
		m = (m << 1) + bit
	}
}

// BitTreeReverse is like BitTree but starts from the least significant bit.
func (e *Encoder) BitTreeReverse(probs []Prob, bitCount uint, sym uint32) {
	m := uint32(1)

	for ; bitCount > 0; bitCount-- {
		bit := sym & 1
		sym >>= 1
		e.Bit(&probs[m], bit)
		m = (m << 1) + bit
	}
}

// shiftLow returns true if out became full before the pending bytes could be
// written. It can be called again with the same state.
func (e *Encoder) shiftLow(out []byte, outPos *int) bool {
	if uint32(e.low) < 0xFF000000 || uint32(e.low>>32) != 0 {
		for {
			if *outPos == len(out) {
				return true
			}

			out[*outPos] = e.cache + byte(e.low>>32)
			*outPos++
			e.outTotal++
			e.cache = 0xFF

			e.cacheSize--
			if e.cacheSize == 0 {
				break
			}
		}

		e.cache = byte(e.low >> 24)
	}

	e.cacheSize++
	e.low = (e.low & 0x00FFFFFF) << ShiftBits

	return false
}

// Encode drains the symbol queue into out starting at *outPos. It returns
// true if out was filled before the queue was empty; Encode must then be
// called again with more output space.
func (e *Encoder) Encode(out []byte, outPos *int) bool {
	for e.pos < e.count {
		// Normalize
		if e.rng < TopValue {
			if e.shiftLow(out, outPos) {
				return true
			}

			e.rng <<= ShiftBits
		}

		switch e.symbols[e.pos] {
		case symBit0:
			p := e.probs[e.pos]
			e.rng = p.bound(e.rng)
			p.update0()

		case symBit1:
			p := e.probs[e.pos]
			bound := p.bound(e.rng)
			e.low += uint64(bound)
			e.rng -= bound
			p.update1()

		case symDirect0:
			e.rng >>= 1

		case symDirect1:
			e.rng >>= 1
			e.low += uint64(e.rng)

		case symFlush:
			// Prevent further normalizations.
			e.rng = 0xFFFFFFFF

			for {
				if e.shiftLow(out, outPos) {
					return true
				}

				e.pos++
				if e.pos >= e.count {
					break
				}
			}

			e.count = 0
			e.pos = 0

			return false
		}

		e.pos++
	}

	e.count = 0
	e.pos = 0

	return false
}

// Package rangecoder implements the adaptive binary range coder used by LZMA.
package rangecoder

const (
	ShiftBits         = 8
	TopBits           = 24
	TopValue          = 1 << TopBits
	BitModelTotalBits = 11
	BitModelTotal     = 1 << BitModelTotalBits
	MoveBits          = 5

	// ProbInit is the uniform prior 0.5.
	ProbInit Prob = BitModelTotal / 2
)

// Prob is an 11-bit probability that the next bit is zero.
type Prob uint16

func (p *Prob) update0() {
	*p += (BitModelTotal - *p) >> MoveBits
}

func (p *Prob) update1() {
	*p -= *p >> MoveBits
}

func (p Prob) bound(rng uint32) uint32 {
	return (rng >> BitModelTotalBits) * uint32(p)
}

// InitProbs resets every probability in probs to ProbInit.
func InitProbs(probs []Prob) {
	for i := range probs {
		probs[i] = ProbInit
	}
}

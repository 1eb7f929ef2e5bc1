package rangecoder

const (
	MoveReducingBits  = 4
	BitPriceShiftBits = 4

	InfinityPrice uint32 = 1 << 30
)

var prices = newPriceTable()

func newPriceTable() [BitModelTotal >> MoveReducingBits]uint8 {
	var t [BitModelTotal >> MoveReducingBits]uint8

	for i := uint32(1<<MoveReducingBits) / 2; i < BitModelTotal; i += 1 << MoveReducingBits {
		w := i
		bitCount := uint32(0)

		for j := 0; j < BitPriceShiftBits; j++ {
			w *= w
			bitCount <<= 1

			for w >= 1<<16 {
				w >>= 1
				bitCount++
			}
		}

		t[i>>MoveReducingBits] = uint8((BitModelTotalBits << BitPriceShiftBits) - 15 - bitCount)
	}

	return t
}

// BitPrice returns the cost of coding bit with the probability p, in
// 1/16 bits.
func BitPrice(p Prob, bit uint32) uint32 {
	return uint32(prices[(uint32(p)^((0-bit)&(BitModelTotal-1)))>>MoveReducingBits])
}

func Bit0Price(p Prob) uint32 {
	return uint32(prices[p>>MoveReducingBits])
}

func Bit1Price(p Prob) uint32 {
	return uint32(prices[(p^(BitModelTotal-1))>>MoveReducingBits])
}

// BitTreePrice is the cost of coding symbol with BitTree over bitCount bits.
func BitTreePrice(probs []Prob, bitCount uint, symbol uint32) uint32 {
	var price uint32

	symbol += 1 << bitCount

	for symbol != 1 {
		bit := symbol & 1
		symbol >>= 1
		price += BitPrice(probs[symbol], bit)
	}

	return price
}

func BitTreeReversePrice(probs []Prob, bitCount uint, symbol uint32) uint32 {
	var price uint32

	m := uint32(1)

	for ; bitCount > 0; bitCount-- {
		bit := symbol & 1
		symbol >>= 1
		price += BitPrice(probs[m], bit)
		m = (m << 1) | bit
	}

	return price
}

func DirectPrice(bitCount uint32) uint32 {
	return bitCount << BitPriceShiftBits
}

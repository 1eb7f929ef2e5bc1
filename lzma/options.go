package lzma

import (
	"fmt"

	"github.com/kulaginds/xz/chain"
)

// Options are the LZMA2 filter options. The decoder only looks at DictSize;
// LC, LP and PB are read from the stream.
type Options struct {
	DictSize uint32 `toml:"dict_size"`

	LC uint32 `toml:"lc"`
	LP uint32 `toml:"lp"`
	PB uint32 `toml:"pb"`
}

// DefaultOptions are the options of preset 6.
func DefaultOptions() *Options {
	return &Options{
		DictSize: 8 << 20,
		LC:       3,
		LP:       0,
		PB:       2,
	}
}

func (o *Options) validate() error {
	if o.LC > LCMax || o.LP > LPMax || o.LC+o.LP > LCLPMax || o.PB > PBMax {
		return fmt.Errorf("lzma: lc=%d lp=%d pb=%d: %w", o.LC, o.LP, o.PB, chain.ErrOptions)
	}

	return nil
}

func (o *Options) dictSize() uint32 {
	if o.DictSize < DictSizeMin {
		return DictSizeMin
	}

	return o.DictSize
}

// EncodeProps packs lc, lp and pb into the properties byte.
func EncodeProps(lc, lp, pb uint32) byte {
	return byte((pb*5+lp)*9 + lc)
}

// DecodeProps unpacks the properties byte of an LZMA2 chunk.
func DecodeProps(d byte) (lc, lp, pb uint32, err error) {
	if d >= 9*5*5 {
		return 0, 0, 0, ErrIncorrectProperties
	}

	lc = uint32(d % 9)
	d /= 9
	pb = uint32(d / 5)
	lp = uint32(d % 5)

	if lc+lp > LCLPMax {
		return 0, 0, 0, ErrIncorrectProperties
	}

	return lc, lp, pb, nil
}

// EncodeDictSize returns the one byte dictionary size field of the LZMA2
// filter properties. Sizes are rounded up to 2^n or 2^n + 2^(n-1).
func EncodeDictSize(dictSize uint32) byte {
	for b := byte(0); b < 40; b++ {
		if size, _ := DecodeDictSize(b); size >= dictSize {
			return b
		}
	}

	return 40
}

// DecodeDictSize is the inverse of EncodeDictSize.
func DecodeDictSize(b byte) (uint32, error) {
	if b > 40 {
		return 0, ErrDictOutOfRange
	}

	if b == 40 {
		return DictSizeMax, nil
	}

	return (2 | uint32(b)&1) << (b/2 + 11), nil
}

package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/vli"
)

const indexIndicator = 0x00

// Encode returns the Index field listing every Block of i, as if all
// Streams were one.
func (i *Index) Encode() ([]byte, error) {
	size := i.Size()
	if size > BackwardSizeMax {
		return nil, fmt.Errorf("index: encode: %d bytes: %w", size, chain.ErrProg)
	}

	out := make([]byte, 0, size)
	out = append(out, indexIndicator)

	out, err := vli.Append(out, i.recordCount)
	if err != nil {
		return nil, fmt.Errorf("index: encode: %w: %w", chain.ErrProg, err)
	}

	it := i.NewIter()
	for it.Next(ModeBlock) {
		if out, err = vli.Append(out, it.Block.UnpaddedSize); err != nil {
			return nil, fmt.Errorf("index: encode: %w: %w", chain.ErrProg, err)
		}

		if out, err = vli.Append(out, it.Block.UncompressedSize); err != nil {
			return nil, fmt.Errorf("index: encode: %w: %w", chain.ErrProg, err)
		}
	}

	for len(out)%4 != 0 {
		out = append(out, 0x00)
	}

	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out)), nil
}

// Decode parses an Index field from the beginning of in. It returns the
// Index and the number of bytes used. Decoding fails with ErrMemlimit if
// the Index would need more than memlimit bytes; zero means no limit.
func Decode(in []byte, memlimit uint64) (*Index, int, error) {
	if len(in) == 0 || in[0] != indexIndicator {
		return nil, 0, fmt.Errorf("index: decode: no index indicator: %w", chain.ErrData)
	}

	pos := 1

	count, err := decodeVLI(in, &pos)
	if err != nil {
		return nil, 0, err
	}

	// Every record takes at least two bytes.
	if count > vli.VLI(len(in)-pos)/2 {
		return nil, 0, fmt.Errorf("index: decode: %d records in %d bytes: %w", count, len(in)-pos, chain.ErrData)
	}

	if usage := MemUsage(1, count); memlimit != 0 && usage > memlimit {
		return nil, 0, fmt.Errorf("index: decode: %d records need %d bytes: %w", count, usage, chain.ErrMemlimit)
	}

	i := New()
	i.Prealloc(count)

	for n := vli.VLI(0); n < count; n++ {
		unpaddedSize, err := decodeVLI(in, &pos)
		if err != nil {
			return nil, 0, err
		}

		if unpaddedSize < unpaddedSizeMin || unpaddedSize > unpaddedSizeMax {
			return nil, 0, fmt.Errorf("index: decode: unpadded size %d: %w", unpaddedSize, chain.ErrData)
		}

		uncompressedSize, err := decodeVLI(in, &pos)
		if err != nil {
			return nil, 0, err
		}

		if err = i.Append(unpaddedSize, uncompressedSize); err != nil {
			return nil, 0, fmt.Errorf("index: decode: %w", err)
		}
	}

	for pos%4 != 0 {
		if pos == len(in) {
			return nil, 0, fmt.Errorf("index: decode: truncated padding: %w", chain.ErrData)
		}

		if in[pos] != 0x00 {
			return nil, 0, fmt.Errorf("index: decode: padding: %w", chain.ErrData)
		}

		pos++
	}

	if len(in)-pos < 4 {
		return nil, 0, fmt.Errorf("index: decode: truncated crc32: %w", chain.ErrData)
	}

	if crc32.ChecksumIEEE(in[:pos]) != binary.LittleEndian.Uint32(in[pos:]) {
		return nil, 0, fmt.Errorf("index: decode: crc32: %w", chain.ErrData)
	}

	return i, pos + 4, nil
}

func decodeVLI(in []byte, pos *int) (vli.VLI, error) {
	v, n, err := vli.Decode(in[*pos:])
	if err != nil {
		if errors.Is(err, vli.ErrTruncated) {
			return 0, fmt.Errorf("index: decode: truncated: %w", chain.ErrData)
		}

		return 0, fmt.Errorf("index: decode: %w: %w", chain.ErrData, err)
	}

	*pos += n

	return v, nil
}

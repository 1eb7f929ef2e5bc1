package index

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/vli"
)

// ReadFile builds the combined Index of a file of concatenated Streams by
// reading the Stream Footers, Indexes and Stream Headers from the end of
// the file backwards. Stream Padding between and after Streams is
// recorded in the Index.
func ReadFile(r io.ReaderAt, size int64, memlimit uint64) (*Index, error) {
	if size < 2*HeaderSize || size%4 != 0 {
		return nil, fmt.Errorf("index: file of %d bytes: %w", size, chain.ErrFormat)
	}

	var (
		combined *Index
		buf      [HeaderSize]byte
	)

	pos := size

	for pos > 0 {
		if pos < 2*HeaderSize {
			return nil, fmt.Errorf("index: %d bytes before stream: %w", pos, chain.ErrData)
		}

		pos -= HeaderSize

		var padding vli.VLI

		// Skip Stream Padding, four bytes at a time.
		for {
			if pos < HeaderSize {
				return nil, fmt.Errorf("index: stream padding at %d: %w", pos, chain.ErrData)
			}

			if err := readAt(r, buf[:], pos); err != nil {
				return nil, fmt.Errorf("index: read footer at %d: %w", pos, err)
			}

			k := 2
			if binary.LittleEndian.Uint32(buf[4*k:]) != 0 {
				break
			}

			for k >= 0 && binary.LittleEndian.Uint32(buf[4*k:]) == 0 {
				padding += 4
				pos -= 4
				k--
			}
		}

		footer, err := DecodeStreamFooter(buf[:])
		if err != nil {
			return nil, err
		}

		if vli.VLI(pos) < footer.BackwardSize+HeaderSize {
			return nil, fmt.Errorf("index: backward size %d: %w", footer.BackwardSize, chain.ErrData)
		}

		pos -= int64(footer.BackwardSize)

		field := make([]byte, footer.BackwardSize)
		if err = readAt(r, field, pos); err != nil {
			return nil, fmt.Errorf("index: read index at %d: %w", pos, err)
		}

		limit := memlimit
		if limit != 0 && combined != nil {
			used := combined.MemUsed()
			if used >= limit {
				return nil, fmt.Errorf("index: %d bytes used: %w", used, chain.ErrMemlimit)
			}

			limit -= used
		}

		streamIndex, n, err := Decode(field, limit)
		if err != nil {
			return nil, err
		}

		if vli.VLI(n) != footer.BackwardSize {
			return nil, fmt.Errorf("index: index is %d bytes, footer says %d: %w", n, footer.BackwardSize, chain.ErrData)
		}

		total := streamIndex.TotalSize()
		if vli.VLI(pos) < total+HeaderSize {
			return nil, fmt.Errorf("index: blocks of %d bytes: %w", total, chain.ErrData)
		}

		pos -= int64(total) + HeaderSize

		if err = readAt(r, buf[:], pos); err != nil {
			return nil, fmt.Errorf("index: read header at %d: %w", pos, err)
		}

		header, err := DecodeStreamHeader(buf[:])
		if err != nil {
			return nil, err
		}

		if err = CompareStreamFlags(header, footer); err != nil {
			return nil, err
		}

		if err = streamIndex.SetStreamFlags(footer); err != nil {
			return nil, err
		}

		if err = streamIndex.SetStreamPadding(padding); err != nil {
			return nil, err
		}

		if combined != nil {
			if err = streamIndex.Cat(combined); err != nil {
				return nil, err
			}
		}

		combined = streamIndex
	}

	return combined, nil
}

func readAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}

	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return err
}

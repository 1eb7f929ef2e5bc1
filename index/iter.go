package index

import (
	"sort"

	"github.com/kulaginds/xz/vli"
)

// Mode selects what Iter.Next stops at.
type Mode int

const (
	// ModeAny stops at every Stream and every Block.
	ModeAny Mode = iota
	// ModeStream stops at the next Stream only.
	ModeStream
	// ModeBlock stops at Blocks and skips Streams without Blocks.
	ModeBlock
	// ModeNonEmptyBlock is ModeBlock without Blocks of zero uncompressed
	// size.
	ModeNonEmptyBlock
)

// StreamInfo describes the Stream an Iter is at. Offsets are relative to
// the beginning of the file.
type StreamInfo struct {
	// Flags is nil if the flags of the Stream were never set.
	Flags *StreamFlags

	Number             vli.VLI
	BlockCount         vli.VLI
	CompressedOffset   vli.VLI
	UncompressedOffset vli.VLI
	CompressedSize     vli.VLI
	UncompressedSize   vli.VLI
	Padding            vli.VLI
}

// BlockInfo describes the Block an Iter is at. It is the zero value while
// the Iter is at a Stream without Blocks.
type BlockInfo struct {
	NumberInFile             vli.VLI
	CompressedFileOffset     vli.VLI
	UncompressedFileOffset   vli.VLI
	NumberInStream           vli.VLI
	CompressedStreamOffset   vli.VLI
	UncompressedStreamOffset vli.VLI
	UncompressedSize         vli.VLI
	UnpaddedSize             vli.VLI
	TotalSize                vli.VLI
}

// Iter walks an Index forward. It must not be used while the Index is
// being appended to. To start over, create a new Iter.
type Iter struct {
	Stream StreamInfo
	Block  BlockInfo

	index  *Index
	stream *node[*stream]
	group  *node[*group]
	record int
}

func (i *Index) NewIter() *Iter {
	return &Iter{index: i}
}

func (it *Iter) setInfo() {
	sn := it.stream
	s := sn.item

	it.Stream = StreamInfo{
		Flags:              s.flags,
		Number:             vli.VLI(s.number),
		BlockCount:         s.recordCount,
		CompressedOffset:   sn.compressedBase,
		UncompressedOffset: sn.uncompressedBase,
		Padding:            s.padding,
	}

	if gn := s.groups.rightmost; gn == nil {
		it.Stream.CompressedSize = indexSize(0, 0) + 2*HeaderSize
	} else {
		last := gn.item.lastRecord()

		// Stream Header, Blocks, Index, Stream Footer
		it.Stream.CompressedSize = 2*HeaderSize + indexSize(s.recordCount, s.indexListSize) +
			vli.Ceil4(last.unpaddedSum)
		it.Stream.UncompressedSize = last.uncompressedSum
	}

	it.Block = BlockInfo{}

	if it.group == nil {
		return
	}

	gn := it.group
	g := gn.item
	rec := it.record

	b := &it.Block
	b.NumberInStream = g.numberBase + vli.VLI(rec)
	b.NumberInFile = b.NumberInStream + s.blockNumberBase

	if rec == 0 {
		b.CompressedStreamOffset = gn.compressedBase
		b.UncompressedStreamOffset = gn.uncompressedBase
	} else {
		b.CompressedStreamOffset = vli.Ceil4(g.records[rec-1].unpaddedSum)
		b.UncompressedStreamOffset = g.records[rec-1].uncompressedSum
	}

	b.UncompressedSize = g.records[rec].uncompressedSum - b.UncompressedStreamOffset
	b.UnpaddedSize = g.records[rec].unpaddedSum - b.CompressedStreamOffset
	b.TotalSize = vli.Ceil4(b.UnpaddedSize)

	b.CompressedStreamOffset += HeaderSize
	b.CompressedFileOffset = b.CompressedStreamOffset + it.Stream.CompressedOffset
	b.UncompressedFileOffset = b.UncompressedStreamOffset + it.Stream.UncompressedOffset
}

// Next moves to the next item selected by mode. It returns false, leaving
// the Iter unchanged, when there is no such item or mode is invalid.
func (it *Iter) Next(mode Mode) bool {
	if mode < ModeAny || mode > ModeNonEmptyBlock {
		return false
	}

	sn := it.stream
	rec := it.record

	// Asking for the next Stream is the same as being at the end of the
	// current one.
	var gn *node[*group]
	if mode != ModeStream {
		gn = it.group
	}

	for {
		switch {
		case sn == nil:
			sn = it.index.streams.leftmost

			if mode >= ModeBlock {
				for sn.item.groups.leftmost == nil {
					if sn = sn.next(); sn == nil {
						return false
					}
				}
			}

			gn = sn.item.groups.leftmost
			rec = 0

		case gn != nil && rec < gn.item.last:
			rec++

		default:
			rec = 0

			if gn != nil {
				gn = gn.next()
			}

			if gn == nil {
				for {
					if sn = sn.next(); sn == nil {
						return false
					}

					if mode < ModeBlock || sn.item.groups.leftmost != nil {
						break
					}
				}

				gn = sn.item.groups.leftmost
			}
		}

		if mode == ModeNonEmptyBlock && isEmptyBlock(gn, rec) {
			continue
		}

		break
	}

	it.stream = sn
	it.group = gn
	it.record = rec
	it.setInfo()

	return true
}

func isEmptyBlock(gn *node[*group], rec int) bool {
	g := gn.item

	if rec == 0 {
		return gn.uncompressedBase == g.records[0].uncompressedSum
	}

	return g.records[rec-1].uncompressedSum == g.records[rec].uncompressedSum
}

// Locate moves to the Block that holds the uncompressed offset target. It
// returns false, leaving the Iter unchanged, if target is past the end.
func (it *Iter) Locate(target vli.VLI) bool {
	i := it.index

	if i.uncompressedSize <= target {
		return false
	}

	sn := i.streams.locate(target)
	target -= sn.uncompressedBase

	gn := sn.item.groups.locate(target)
	g := gn.item

	// The first record that ends after target. Empty Blocks end where the
	// previous one does and are skipped this way.
	rec := sort.Search(g.last+1, func(k int) bool {
		return g.records[k].uncompressedSum > target
	})

	it.stream = sn
	it.group = gn
	it.record = rec
	it.setInfo()

	return true
}

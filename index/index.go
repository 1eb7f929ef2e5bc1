// Package index implements the xz Index: the list of Blocks of one or more
// concatenated Streams.
//
// An Index is a tree of Streams. Each Stream keeps its Blocks as cumulative
// sums in a tree of fixed size groups, so that an uncompressed offset can be
// mapped to its Block with two tree lookups and a binary search.
package index

import (
	"fmt"
	"unsafe"

	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/vli"
)

const (
	// GroupSize is the default number of records per group.
	GroupSize = 512

	unpaddedSizeMin = 5
	unpaddedSizeMax = vli.Max &^ 3

	preallocMax = 1 << 26
)

type record struct {
	uncompressedSum vli.VLI

	// unpaddedSum is the sum of the Unpadded Sizes so far with every
	// previous sum rounded up to a multiple of four before the next size is
	// added. Sizes 39, 57 and 81 are stored as 39, 97 and 181.
	unpaddedSum vli.VLI
}

type group struct {
	// numberBase is the number of the first record of the group within its
	// Stream. Numbers start at one.
	numberBase vli.VLI

	records []record
	last    int
}

func (g *group) lastRecord() record {
	return g.records[g.last]
}

type stream struct {
	number          uint32
	blockNumberBase vli.VLI

	groups tree[*group]

	recordCount   vli.VLI
	indexListSize vli.VLI

	// flags is nil until SetStreamFlags is called.
	flags *StreamFlags

	padding vli.VLI
}

func newStreamNode(compressedBase, uncompressedBase vli.VLI, number uint32, blockNumberBase vli.VLI) *node[*stream] {
	return &node[*stream]{
		uncompressedBase: uncompressedBase,
		compressedBase:   compressedBase,
		item: &stream{
			number:          number,
			blockNumberBase: blockNumberBase,
		},
	}
}

// Index describes one or more Streams. The zero value is not usable; call
// New.
type Index struct {
	streams tree[*stream]

	uncompressedSize vli.VLI
	totalSize        vli.VLI
	recordCount      vli.VLI

	// indexListSize is the size of the List of Records if all Streams were
	// one.
	indexListSize vli.VLI

	prealloc int

	// checks has a bit set for the check of every Stream but the last one.
	checks uint32
}

// New returns an Index with one empty Stream.
func New() *Index {
	i := &Index{prealloc: GroupSize}
	i.streams.append(newStreamNode(0, 0, 1, 0))

	return i
}

// MemUsage estimates the memory an Index with the given number of Streams
// and Blocks needs. It returns the maximum uint64 if the numbers are out of
// range.
func MemUsage(streams, blocks vli.VLI) uint64 {
	const (
		allocOverhead = 4 * unsafe.Sizeof(uintptr(0))
		streamBase    = unsafe.Sizeof(node[*stream]{}) + unsafe.Sizeof(stream{}) +
			unsafe.Sizeof(node[*group]{}) + unsafe.Sizeof(group{}) + 3*allocOverhead
		groupBase = unsafe.Sizeof(node[*group]{}) + unsafe.Sizeof(group{}) +
			GroupSize*unsafe.Sizeof(record{}) + 2*allocOverhead
		indexBase = unsafe.Sizeof(Index{}) + allocOverhead
		limit     = ^uint64(0) - uint64(indexBase)
	)

	groups := (blocks + GroupSize - 1) / GroupSize

	if streams == 0 || streams > 1<<32-1 || blocks > vli.Max ||
		streams > limit/uint64(streamBase) || groups > limit/uint64(groupBase) {
		return ^uint64(0)
	}

	streamsMem := streams * uint64(streamBase)
	groupsMem := groups * uint64(groupBase)

	if limit-streamsMem < groupsMem {
		return ^uint64(0)
	}

	return uint64(indexBase) + streamsMem + groupsMem
}

// MemUsed is MemUsage for the Streams and Blocks in i.
func (i *Index) MemUsed() uint64 {
	return MemUsage(vli.VLI(i.streams.count), i.recordCount)
}

func (i *Index) BlockCount() vli.VLI {
	return i.recordCount
}

func (i *Index) StreamCount() vli.VLI {
	return vli.VLI(i.streams.count)
}

// indexSizeUnpadded is the size of an Index field without its padding.
func indexSizeUnpadded(count, indexListSize vli.VLI) vli.VLI {
	// Indicator, Number of Records, List of Records, CRC32
	return 1 + vli.VLI(vli.Size(count)) + indexListSize + 4
}

func indexSize(count, indexListSize vli.VLI) vli.VLI {
	return vli.Ceil4(indexSizeUnpadded(count, indexListSize))
}

func streamSize(blocksSize, count, indexListSize vli.VLI) vli.VLI {
	return HeaderSize + blocksSize + indexSize(count, indexListSize) + HeaderSize
}

// fileSize returns vli.Unknown if the result would not be a valid VLI.
func fileSize(compressedBase, unpaddedSum, recordCount, indexListSize, padding vli.VLI) vli.VLI {
	size := compressedBase + 2*HeaderSize + padding + vli.Ceil4(unpaddedSum)
	if size > vli.Max {
		return vli.Unknown
	}

	size += indexSize(recordCount, indexListSize)
	if size > vli.Max {
		return vli.Unknown
	}

	return size
}

// Size is the size of the Index field if all Streams were one.
func (i *Index) Size() vli.VLI {
	return indexSize(i.recordCount, i.indexListSize)
}

// TotalSize is the sum of the Total Sizes of all Blocks.
func (i *Index) TotalSize() vli.VLI {
	return i.totalSize
}

// StreamSize is the size of a single Stream holding all the Blocks of i.
func (i *Index) StreamSize() vli.VLI {
	return streamSize(i.totalSize, i.recordCount, i.indexListSize)
}

func lastUnpaddedSum(s *stream) vli.VLI {
	g := s.groups.rightmost
	if g == nil {
		return 0
	}

	return g.item.lastRecord().unpaddedSum
}

// FileSize is the size of the file that holds all the Streams of i,
// including Stream Padding.
func (i *Index) FileSize() vli.VLI {
	n := i.streams.rightmost
	s := n.item

	return fileSize(n.compressedBase, lastUnpaddedSum(s), s.recordCount, s.indexListSize, s.padding)
}

func (i *Index) UncompressedSize() vli.VLI {
	return i.uncompressedSize
}

// Checks returns a bit mask with bit n set if a Stream uses check n. The
// last Stream only counts once its flags are set.
func (i *Index) Checks() uint32 {
	checks := i.checks

	if f := i.streams.rightmost.item.flags; f != nil {
		checks |= 1 << f.Check
	}

	return checks
}

// SetStreamFlags stores the flags of the last Stream.
func (i *Index) SetStreamFlags(flags *StreamFlags) error {
	if err := CompareStreamFlags(flags, flags); err != nil {
		return err
	}

	f := *flags
	i.streams.rightmost.item.flags = &f

	return nil
}

// SetStreamPadding sets the size of the Stream Padding after the last
// Stream.
func (i *Index) SetStreamPadding(padding vli.VLI) error {
	if padding > vli.Max || padding&3 != 0 {
		return fmt.Errorf("index: stream padding %d: %w", padding, chain.ErrProg)
	}

	s := i.streams.rightmost.item

	old := s.padding
	s.padding = 0

	if i.FileSize()+padding > vli.Max {
		s.padding = old

		return fmt.Errorf("index: stream padding %d: file too big: %w", padding, chain.ErrData)
	}

	s.padding = padding

	return nil
}

// Prealloc sets how many records the next group gets. It is a hint for
// callers that know the number of Blocks in advance.
func (i *Index) Prealloc(records vli.VLI) {
	if records > preallocMax {
		records = preallocMax
	}

	if records == 0 {
		records = 1
	}

	i.prealloc = int(records)
}

// Append adds a Block to the last Stream. On error i is unchanged.
func (i *Index) Append(unpaddedSize, uncompressedSize vli.VLI) error {
	if unpaddedSize < unpaddedSizeMin || unpaddedSize > unpaddedSizeMax || uncompressedSize > vli.Max {
		return fmt.Errorf("index: append %d/%d: %w", unpaddedSize, uncompressedSize, chain.ErrProg)
	}

	sn := i.streams.rightmost
	s := sn.item
	gn := s.groups.rightmost

	var compressedBase, uncompressedBase vli.VLI
	if gn != nil {
		last := gn.item.lastRecord()
		compressedBase = vli.Ceil4(last.unpaddedSum)
		uncompressedBase = last.uncompressedSum
	}

	listSizeAdd := vli.VLI(vli.Size(unpaddedSize) + vli.Size(uncompressedSize))

	if uncompressedBase+uncompressedSize > vli.Max {
		return fmt.Errorf("index: uncompressed size overflow: %w", chain.ErrData)
	}

	if compressedBase+unpaddedSize > unpaddedSizeMax {
		return fmt.Errorf("index: unpadded size overflow: %w", chain.ErrData)
	}

	if fileSize(sn.compressedBase, compressedBase+unpaddedSize, s.recordCount+1,
		s.indexListSize+listSizeAdd, s.padding) == vli.Unknown {
		return fmt.Errorf("index: file size overflow: %w", chain.ErrData)
	}

	if indexSize(i.recordCount+1, i.indexListSize+listSizeAdd) > BackwardSizeMax {
		return fmt.Errorf("index: index field too big: %w", chain.ErrData)
	}

	if gn != nil && gn.item.last+1 < len(gn.item.records) {
		gn.item.last++
	} else {
		gn = &node[*group]{
			uncompressedBase: uncompressedBase,
			compressedBase:   compressedBase,
			item: &group{
				numberBase: s.recordCount + 1,
				records:    make([]record, i.prealloc),
			},
		}

		i.prealloc = GroupSize
		s.groups.append(gn)
	}

	g := gn.item
	g.records[g.last] = record{
		uncompressedSum: uncompressedBase + uncompressedSize,
		unpaddedSum:     compressedBase + unpaddedSize,
	}

	s.recordCount++
	s.indexListSize += listSizeAdd

	i.totalSize += vli.Ceil4(unpaddedSize)
	i.uncompressedSize += uncompressedSize
	i.recordCount++
	i.indexListSize += listSizeAdd

	return nil
}

// Cat appends the Streams of src to i. src must not be used afterwards. On
// error neither Index is changed.
func (i *Index) Cat(src *Index) error {
	destFileSize := i.FileSize()

	if destFileSize+src.FileSize() > vli.Max || i.uncompressedSize+src.uncompressedSize > vli.Max {
		return fmt.Errorf("index: cat: file too big: %w", chain.ErrData)
	}

	if vli.Ceil4(indexSizeUnpadded(i.recordCount, i.indexListSize)+
		indexSizeUnpadded(src.recordCount, src.indexListSize)) > BackwardSizeMax {
		return fmt.Errorf("index: cat: index field too big: %w", chain.ErrData)
	}

	// No more records go to the last group of i; drop its unused room.
	if gn := i.streams.rightmost.item.groups.rightmost; gn != nil {
		g := gn.item
		if g.last+1 < len(g.records) {
			g.records = append([]record(nil), g.records[:g.last+1]...)
		}
	}

	i.checks = i.Checks()

	c := catInfo{
		uncompressedSize: i.uncompressedSize,
		fileSize:         destFileSize,
		streamNumberAdd:  i.streams.count,
		blockNumberAdd:   i.recordCount,
		streams:          &i.streams,
	}
	c.add(src.streams.root)

	i.uncompressedSize += src.uncompressedSize
	i.totalSize += src.totalSize
	i.recordCount += src.recordCount
	i.indexListSize += src.indexListSize
	i.checks |= src.checks

	*src = Index{}

	return nil
}

type catInfo struct {
	uncompressedSize vli.VLI
	fileSize         vli.VLI
	streamNumberAdd  uint32
	blockNumberAdd   vli.VLI
	streams          *tree[*stream]
}

// add moves the subtree at n to the end of c.streams in order.
func (c *catInfo) add(n *node[*stream]) {
	left, right := n.left, n.right

	if left != nil {
		c.add(left)
	}

	n.uncompressedBase += c.uncompressedSize
	n.compressedBase += c.fileSize
	n.item.number += c.streamNumberAdd
	n.item.blockNumberBase += c.blockNumberAdd

	c.streams.append(n)

	if right != nil {
		c.add(right)
	}
}

// Dup returns a deep copy of i. The records of each Stream are put into a
// single group.
func (i *Index) Dup() *Index {
	dest := &Index{
		uncompressedSize: i.uncompressedSize,
		totalSize:        i.totalSize,
		recordCount:      i.recordCount,
		indexListSize:    i.indexListSize,
		prealloc:         GroupSize,
		checks:           i.checks,
	}

	for sn := i.streams.leftmost; sn != nil; sn = sn.next() {
		dest.streams.append(dupStream(sn))
	}

	return dest
}

func dupStream(src *node[*stream]) *node[*stream] {
	s := src.item

	dest := newStreamNode(src.compressedBase, src.uncompressedBase, s.number, s.blockNumberBase)
	d := dest.item

	d.recordCount = s.recordCount
	d.indexListSize = s.indexListSize
	d.padding = s.padding

	if s.flags != nil {
		f := *s.flags
		d.flags = &f
	}

	if s.groups.leftmost == nil {
		return dest
	}

	g := &group{
		numberBase: 1,
		records:    make([]record, 0, s.recordCount),
	}

	for gn := s.groups.leftmost; gn != nil; gn = gn.next() {
		g.records = append(g.records, gn.item.records[:gn.item.last+1]...)
	}

	g.last = len(g.records) - 1

	d.groups.append(&node[*group]{item: g})

	return dest
}

package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/vli"
)

const (
	// HeaderSize is the size of both the Stream Header and the Stream Footer.
	HeaderSize = 12

	BackwardSizeMin = 4
	BackwardSizeMax = vli.VLI(1) << 34
)

var (
	headerMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	footerMagic = []byte{'Y', 'Z'}
)

// StreamFlags are the fields shared by the Stream Header and Footer.
// BackwardSize is vli.Unknown when the flags come from a Stream Header.
type StreamFlags struct {
	Version      uint32
	BackwardSize vli.VLI
	Check        chain.Check
}

func backwardSizeIsValid(size vli.VLI) bool {
	return size >= BackwardSizeMin && size <= BackwardSizeMax && size&3 == 0
}

// CompareStreamFlags returns nil if the flags of a Stream Header and its
// Stream Footer agree. Backward sizes are compared only if both are known.
func CompareStreamFlags(a, b *StreamFlags) error {
	if a.Version != 0 || b.Version != 0 {
		return fmt.Errorf("stream flags: version %d/%d: %w", a.Version, b.Version, chain.ErrOptions)
	}

	if a.Check > chain.CheckIDMax || b.Check > chain.CheckIDMax {
		return fmt.Errorf("stream flags: check %d/%d: %w", a.Check, b.Check, chain.ErrProg)
	}

	if a.Check != b.Check {
		return fmt.Errorf("stream flags: check %s != %s: %w", a.Check, b.Check, chain.ErrData)
	}

	if a.BackwardSize != vli.Unknown && b.BackwardSize != vli.Unknown {
		if !backwardSizeIsValid(a.BackwardSize) || !backwardSizeIsValid(b.BackwardSize) {
			return fmt.Errorf("stream flags: backward size %d/%d: %w", a.BackwardSize, b.BackwardSize, chain.ErrProg)
		}

		if a.BackwardSize != b.BackwardSize {
			return fmt.Errorf("stream flags: backward size %d != %d: %w", a.BackwardSize, b.BackwardSize, chain.ErrData)
		}
	}

	return nil
}

func encodeFlags(f *StreamFlags, out []byte) error {
	if f.Check > chain.CheckIDMax {
		return fmt.Errorf("stream flags: check %d: %w", f.Check, chain.ErrProg)
	}

	out[0] = 0x00
	out[1] = byte(f.Check)

	return nil
}

func decodeFlags(f *StreamFlags, in []byte) error {
	if in[0] != 0x00 || in[1]&0xF0 != 0 {
		return fmt.Errorf("stream flags: 0x%02x%02x: %w", in[0], in[1], chain.ErrOptions)
	}

	f.Version = 0
	f.Check = chain.Check(in[1] & 0x0F)

	return nil
}

// EncodeStreamHeader writes the Stream Header for f into out, which must
// hold HeaderSize bytes.
func EncodeStreamHeader(f *StreamFlags, out []byte) error {
	if f.Version != 0 {
		return fmt.Errorf("stream header: version %d: %w", f.Version, chain.ErrOptions)
	}

	copy(out, headerMagic)

	if err := encodeFlags(f, out[len(headerMagic):]); err != nil {
		return err
	}

	crc := crc32.ChecksumIEEE(out[len(headerMagic) : len(headerMagic)+2])
	binary.LittleEndian.PutUint32(out[len(headerMagic)+2:], crc)

	return nil
}

func EncodeStreamFooter(f *StreamFlags, out []byte) error {
	if f.Version != 0 {
		return fmt.Errorf("stream footer: version %d: %w", f.Version, chain.ErrOptions)
	}

	if !backwardSizeIsValid(f.BackwardSize) {
		return fmt.Errorf("stream footer: backward size %d: %w", f.BackwardSize, chain.ErrProg)
	}

	binary.LittleEndian.PutUint32(out[4:], uint32(f.BackwardSize/4-1))

	if err := encodeFlags(f, out[8:]); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(out, crc32.ChecksumIEEE(out[4:10]))
	copy(out[10:], footerMagic)

	return nil
}

// DecodeStreamHeader parses a Stream Header. A wrong magic is ErrFormat so
// that callers can tell "not xz" from corruption.
func DecodeStreamHeader(in []byte) (*StreamFlags, error) {
	if len(in) < HeaderSize {
		return nil, fmt.Errorf("stream header: %d bytes: %w", len(in), chain.ErrData)
	}

	if !bytes.Equal(in[:len(headerMagic)], headerMagic) {
		return nil, fmt.Errorf("stream header: magic: %w", chain.ErrFormat)
	}

	flags := in[len(headerMagic) : len(headerMagic)+2]
	if crc32.ChecksumIEEE(flags) != binary.LittleEndian.Uint32(in[len(headerMagic)+2:]) {
		return nil, fmt.Errorf("stream header: crc32: %w", chain.ErrData)
	}

	f := &StreamFlags{BackwardSize: vli.Unknown}
	if err := decodeFlags(f, flags); err != nil {
		return nil, err
	}

	return f, nil
}

func DecodeStreamFooter(in []byte) (*StreamFlags, error) {
	if len(in) < HeaderSize {
		return nil, fmt.Errorf("stream footer: %d bytes: %w", len(in), chain.ErrData)
	}

	if !bytes.Equal(in[10:12], footerMagic) {
		return nil, fmt.Errorf("stream footer: magic: %w", chain.ErrFormat)
	}

	if crc32.ChecksumIEEE(in[4:10]) != binary.LittleEndian.Uint32(in) {
		return nil, fmt.Errorf("stream footer: crc32: %w", chain.ErrData)
	}

	f := &StreamFlags{
		BackwardSize: (vli.VLI(binary.LittleEndian.Uint32(in[4:])) + 1) * 4,
	}

	if err := decodeFlags(f, in[8:10]); err != nil {
		return nil, err
	}

	return f, nil
}

const (
	BlockHeaderSizeMin = 8
	BlockHeaderSizeMax = 1024
)

// BlockHeaderSizeDecode returns the size of a Block Header from its first
// byte.
func BlockHeaderSizeDecode(b byte) uint32 {
	return (uint32(b) + 1) * 4
}

// BlockUnpaddedSize is the size of a Block without its padding: header,
// compressed data and check.
func BlockUnpaddedSize(headerSize uint32, compressedSize vli.VLI, check chain.Check) (vli.VLI, error) {
	if headerSize < BlockHeaderSizeMin || headerSize > BlockHeaderSizeMax || headerSize&3 != 0 {
		return 0, fmt.Errorf("block header size %d: %w", headerSize, chain.ErrProg)
	}

	checkSize, ok := check.Size()
	if !ok {
		return 0, fmt.Errorf("block check %d: %w", check, chain.ErrProg)
	}

	if compressedSize == 0 || compressedSize > vli.Max {
		return 0, fmt.Errorf("block compressed size %d: %w", compressedSize, chain.ErrProg)
	}

	unpadded := vli.VLI(headerSize) + compressedSize + vli.VLI(checkSize)
	if unpadded > unpaddedSizeMax {
		return 0, fmt.Errorf("block unpadded size %d: %w", unpadded, chain.ErrData)
	}

	return unpadded, nil
}

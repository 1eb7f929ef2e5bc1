// Package vli implements the variable-length integers used by the xz format.
//
// A VLI is stored as one to nine bytes, seven bits per byte, least significant
// bits first. The highest bit of every byte except the last one is set.
package vli

import "errors"

// VLI is a 63-bit unsigned integer with a reserved "unknown" value.
type VLI = uint64

const (
	// Max is the largest value that can be encoded.
	Max VLI = 1<<63 - 1

	// Unknown marks a value that is not known (or the end of a filter chain).
	Unknown VLI = 1<<64 - 1

	// BytesMax is the maximum encoded size of a VLI.
	BytesMax = 9
)

var (
	ErrInvalid   = errors.New("vli: value out of range")
	ErrCorrupted = errors.New("vli: corrupted encoding")
	ErrTruncated = errors.New("vli: truncated encoding")
)

// IsValid reports whether v can be used as a VLI, i.e. v <= Max or v == Unknown.
func IsValid(v VLI) bool {
	return v <= Max || v == Unknown
}

// Size returns the number of bytes needed to encode v, or 0 if v is invalid.
func Size(v VLI) uint32 {
	if v > Max {
		return 0
	}

	var i uint32
	for {
		v >>= 7
		i++

		if v == 0 {
			return i
		}
	}
}

// Ceil4 rounds v up to the next multiple of four.
func Ceil4(v VLI) VLI {
	return (v + 3) &^ 3
}

// Append appends the encoded form of v to dst.
func Append(dst []byte, v VLI) ([]byte, error) {
	if v > Max {
		return dst, ErrInvalid
	}

	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}

	return append(dst, byte(v)), nil
}

// Decode decodes a VLI from the beginning of b and returns it together with
// the number of bytes consumed.
func Decode(b []byte) (VLI, int, error) {
	var v VLI

	for i := 0; i < BytesMax; i++ {
		if i >= len(b) {
			return 0, 0, ErrTruncated
		}

		c := b[i]
		v |= VLI(c&0x7F) << (7 * i)

		if c&0x80 == 0 {
			// Non-minimal encodings are rejected.
			if c == 0x00 && i > 0 {
				return 0, 0, ErrCorrupted
			}

			return v, i + 1, nil
		}
	}

	return 0, 0, ErrCorrupted
}

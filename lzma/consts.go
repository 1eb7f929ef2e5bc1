// Package lzma implements the LZMA2 filter stages. The decoder understands
// every LZMA2 chunk type and runs the full LZMA model; the encoder codes
// literals only and falls back to stored chunks when that does not pay off.
package lzma

import (
	"errors"
)

const (
	numStates          = 12
	numPosBitsMax      = 4
	numLenToPosStates  = 4
	numAlignBits       = 4
	startPosModelIndex = 4
	endPosModelIndex   = 14
	numFullDistances   = 1 << (endPosModelIndex >> 1)
	numPosSlotBits     = 6
	matchMinLen        = 2
	matchLenMax        = 273

	literalCoderSize = 0x300
	literalStates    = 7

	// LCLPMax is the largest allowed sum of LC and LP in LZMA2.
	LCLPMax = 4
	LCMax   = 8
	LPMax   = 4
	PBMax   = 4

	DictSizeMin = 1 << 12
	DictSizeMax = 1<<32 - 1

	chunkCompressedMax   = 1 << 16
	chunkUncompressedMax = 1 << 21
)

var (
	ErrIncorrectProperties = errors.New("lzma: incorrect properties")
	ErrDictOutOfRange      = errors.New("lzma: dictionary size out of range")
	ErrUnexpectedLZMA2Code = errors.New("lzma: unexpected lzma2 control byte")
	ErrDistance            = errors.New("lzma: match distance out of range")
	ErrChunkSize           = errors.New("lzma: chunk size mismatch")
)

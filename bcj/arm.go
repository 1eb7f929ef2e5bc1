package bcj

import (
	"encoding/binary"
)

// ARM converts the targets of BL instructions.
func ARM(_ *State, nowPos uint32, isEncoder bool, buf []byte) int {
	i := 0

	for ; i+4 <= len(buf); i += 4 {
		if buf[i+3] != 0xEB {
			continue
		}

		src := uint32(buf[i+2])<<16 | uint32(buf[i+1])<<8 | uint32(buf[i])
		src <<= 2

		var dest uint32
		if isEncoder {
			dest = nowPos + uint32(i) + 8 + src
		} else {
			dest = src - (nowPos + uint32(i) + 8)
		}

		dest >>= 2
		buf[i+2] = byte(dest >> 16)
		buf[i+1] = byte(dest >> 8)
		buf[i] = byte(dest)
	}

	return i
}

// ARMThumb converts the targets of Thumb BL instruction pairs.
func ARMThumb(_ *State, nowPos uint32, isEncoder bool, buf []byte) int {
	i := 0

	for ; i+4 <= len(buf); i += 2 {
		if buf[i+1]&0xF8 != 0xF0 || buf[i+3]&0xF8 != 0xF8 {
			continue
		}

		src := (uint32(buf[i+1])&7)<<19 | uint32(buf[i])<<11 | (uint32(buf[i+3])&7)<<8 | uint32(buf[i+2])
		src <<= 1

		var dest uint32
		if isEncoder {
			dest = nowPos + uint32(i) + 4 + src
		} else {
			dest = src - (nowPos + uint32(i) + 4)
		}

		dest >>= 1
		buf[i+1] = 0xF0 | byte((dest>>19)&0x7)
		buf[i] = byte(dest >> 11)
		buf[i+3] = 0xF8 | byte((dest>>8)&0x7)
		buf[i+2] = byte(dest)

		i += 2
	}

	return i
}

// ARM64 converts BL instructions over the whole +/-128 MiB range and ADRP
// instructions within +/-512 MiB.
func ARM64(_ *State, nowPos uint32, isEncoder bool, buf []byte) int {
	i := 0

	for ; i+4 <= len(buf); i += 4 {
		pc := nowPos + uint32(i)
		instr := binary.LittleEndian.Uint32(buf[i:])

		switch {
		case instr>>26 == 0x25:
			src := instr
			instr = 0x94000000

			pc >>= 2
			if !isEncoder {
				pc = 0 - pc
			}

			instr |= (src + pc) & 0x03FFFFFF
			binary.LittleEndian.PutUint32(buf[i:], instr)

		case instr&0x9F000000 == 0x90000000:
			src := (instr>>29)&3 | (instr>>3)&0x001FFFFC

			// Out of range.
			if (src+0x00020000)&0x001C0000 != 0 {
				continue
			}

			instr &= 0x9000001F

			pc >>= 12
			if !isEncoder {
				pc = 0 - pc
			}

			dest := src + pc
			instr |= (dest & 3) << 29
			instr |= (dest & 0x0003FFFC) << 3
			instr |= (0 - (dest & 0x00020000)) & 0x00E00000
			binary.LittleEndian.PutUint32(buf[i:], instr)
		}
	}

	return i
}

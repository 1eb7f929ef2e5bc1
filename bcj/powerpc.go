package bcj

// PowerPC converts the targets of big endian "bl" instructions.
func PowerPC(_ *State, nowPos uint32, isEncoder bool, buf []byte) int {
	i := 0

	for ; i+4 <= len(buf); i += 4 {
		if buf[i]>>2 != 0x12 || buf[i+3]&3 != 1 {
			continue
		}

		src := (uint32(buf[i])&3)<<24 | uint32(buf[i+1])<<16 | uint32(buf[i+2])<<8 | uint32(buf[i+3])&^3

		var dest uint32
		if isEncoder {
			dest = nowPos + uint32(i) + src
		} else {
			dest = src - (nowPos + uint32(i))
		}

		buf[i] = 0x48 | byte((dest>>24)&0x03)
		buf[i+1] = byte(dest >> 16)
		buf[i+2] = byte(dest >> 8)
		buf[i+3] &= 0x03
		buf[i+3] |= byte(dest)
	}

	return i
}

// SPARC converts the targets of "call" instructions.
func SPARC(_ *State, nowPos uint32, isEncoder bool, buf []byte) int {
	i := 0

	for ; i+4 <= len(buf); i += 4 {
		if !(buf[i] == 0x40 && buf[i+1]&0xC0 == 0x00) && !(buf[i] == 0x7F && buf[i+1]&0xC0 == 0xC0) {
			continue
		}

		src := uint32(buf[i])<<24 | uint32(buf[i+1])<<16 | uint32(buf[i+2])<<8 | uint32(buf[i+3])
		src <<= 2

		var dest uint32
		if isEncoder {
			dest = nowPos + uint32(i) + src
		} else {
			dest = src - (nowPos + uint32(i))
		}

		dest >>= 2
		dest = ((0-((dest>>22)&1))<<22)&0x3FFFFFFF | dest&0x3FFFFF | 0x40000000

		buf[i] = byte(dest >> 24)
		buf[i+1] = byte(dest >> 16)
		buf[i+2] = byte(dest >> 8)
		buf[i+3] = byte(dest)
	}

	return i
}

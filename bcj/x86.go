package bcj

var (
	maskToAllowedStatus = [8]bool{true, true, true, false, true, false, false, false}
	maskToBitNumber     = [8]uint32{0, 1, 2, 2, 3, 3, 3, 3}
)

func test86MSByte(b byte) bool {
	return (b+1)&0xFE == 0
}

// X86 converts the targets of E8 (call) and E9 (jmp) instructions.
func X86(s *State, nowPos uint32, isEncoder bool, buf []byte) int {
	prevMask := s.prevMask
	prevPos := s.prevPos

	if len(buf) < 5 {
		return 0
	}

	if nowPos-prevPos > 5 {
		prevPos = nowPos - 5
	}

	limit := len(buf) - 5
	p := 0

	for p <= limit {
		b := buf[p]
		if b != 0xE8 && b != 0xE9 {
			p++
			continue
		}

		offset := nowPos + uint32(p) - prevPos
		prevPos = nowPos + uint32(p)

		if offset > 5 {
			prevMask = 0
		} else {
			for i := uint32(0); i < offset; i++ {
				prevMask &= 0x77
				prevMask <<= 1
			}
		}

		b = buf[p+4]

		if test86MSByte(b) && maskToAllowedStatus[(prevMask>>1)&0x7] && (prevMask>>1) < 0x10 {
			src := uint32(b)<<24 | uint32(buf[p+3])<<16 | uint32(buf[p+2])<<8 | uint32(buf[p+1])

			var dest uint32

			for {
				if isEncoder {
					dest = src + (nowPos + uint32(p) + 5)
				} else {
					dest = src - (nowPos + uint32(p) + 5)
				}

				if prevMask == 0 {
					break
				}

				i := maskToBitNumber[(prevMask>>1)&0x7]

				b = byte(dest >> (24 - i*8))
				if !test86MSByte(b) {
					break
				}

				src = dest ^ (1<<(32-i*8) - 1)
			}

			buf[p+4] = ^byte(((dest >> 24) & 1) - 1)
			buf[p+3] = byte(dest >> 16)
			buf[p+2] = byte(dest >> 8)
			buf[p+1] = byte(dest)
			p += 5
			prevMask = 0
		} else {
			p++
			prevMask |= 1

			if test86MSByte(b) {
				prevMask |= 0x10
			}
		}
	}

	s.prevMask = prevMask
	s.prevPos = prevPos

	return p
}

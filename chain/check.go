package chain

import "strconv"

// Check is the type of the integrity check stored in a Stream.
type Check uint8

const (
	CheckNone   Check = 0
	CheckCRC32  Check = 1
	CheckCRC64  Check = 4
	CheckSHA256 Check = 10

	CheckIDMax Check = 15
)

var checkSizes = [CheckIDMax + 1]uint8{0, 4, 4, 4, 8, 8, 8, 16, 16, 16, 32, 32, 32, 64, 64, 64}

// Size returns the size of the check field, or false if c is out of range.
func (c Check) Size() (uint8, bool) {
	if c > CheckIDMax {
		return 0, false
	}

	return checkSizes[c], true
}

func (c Check) String() string {
	switch c {
	case CheckNone:
		return "None"
	case CheckCRC32:
		return "CRC32"
	case CheckCRC64:
		return "CRC64"
	case CheckSHA256:
		return "SHA-256"
	}

	if c <= CheckIDMax {
		return "Unknown-" + strconv.Itoa(int(c))
	}

	return "Invalid"
}

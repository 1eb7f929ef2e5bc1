package lzma

// dict is the sliding window of the decoder. Bytes written to it stay
// pending until they are read out with ReadPending; there are never more
// pending bytes than the window holds.
type dict struct {
	buf    []byte
	pos    uint32
	size   uint32
	isFull bool

	// totalPos counts the bytes written since the last reset.
	totalPos uint64
	pending  uint32
}

func newDict(dictSize uint32) *dict {
	return &dict{
		buf:  make([]byte, dictSize),
		size: dictSize,
	}
}

// Reset forgets the history. Pending bytes must be read out first.
func (w *dict) Reset() {
	w.pos = 0
	w.isFull = false
	w.totalPos = 0
}

func (w *dict) PutByte(b byte) {
	w.totalPos++
	w.buf[w.pos] = b
	w.pos++
	w.pending++

	if w.pos == w.size {
		w.pos = 0
		w.isFull = true
	}
}

// GetByte returns the byte dist positions back; dist 1 is the last byte.
func (w *dict) GetByte(dist uint32) byte {
	i := w.size - dist + w.pos

	if dist <= w.pos {
		i = w.pos - dist
	}

	return w.buf[i]
}

func (w *dict) CopyMatch(dist, length uint32) {
	for ; length > 0; length-- {
		w.PutByte(w.GetByte(dist))
	}
}

// CheckDistance reports whether dist bytes of history are available.
func (w *dict) CheckDistance(dist uint32) bool {
	return dist <= w.pos || w.isFull
}

func (w *dict) IsEmpty() bool {
	return w.pos == 0 && !w.isFull
}

func (w *dict) HasPending() bool {
	return w.pending > 0
}

// Available is the number of bytes that can be written before pending
// output would be overwritten.
func (w *dict) Available() uint32 {
	return w.size - w.pending
}

// Write copies p into the window and returns how much fitted.
func (w *dict) Write(p []byte) int {
	n := 0

	for n < len(p) && w.pending < w.size {
		k := uint32(len(p) - n)
		if room := w.size - w.pending; k > room {
			k = room
		}

		if k > w.size-w.pos {
			k = w.size - w.pos
		}

		copy(w.buf[w.pos:w.pos+k], p[n:])

		w.pos += k
		w.pending += k
		w.totalPos += uint64(k)
		n += int(k)

		if w.pos == w.size {
			w.pos = 0
			w.isFull = true
		}
	}

	return n
}

// ReadPending copies the oldest pending bytes to p.
func (w *dict) ReadPending(p []byte) int {
	n := 0

	for n < len(p) && w.pending > 0 {
		start := w.size - w.pending + w.pos
		if w.pending <= w.pos {
			start = w.pos - w.pending
		}

		end := start + w.pending
		if end > w.size {
			end = w.size
		}

		k := copy(p[n:], w.buf[start:end])
		w.pending -= uint32(k)
		n += k
	}

	return n
}

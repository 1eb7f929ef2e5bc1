package chain

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kulaginds/xz/vli"
)

type stubCoder struct {
	ends    int
	updates [][]Filter
	next    Next
}

func (c *stubCoder) Code(in []byte, inPos *int, out []byte, outPos *int, action Action) error {
	BufCopy(in, inPos, out, outPos)

	if action == Finish && *inPos == len(in) {
		return io.EOF
	}

	return nil
}

func (c *stubCoder) End() {
	c.ends++
	c.next.End()
}

func (c *stubCoder) Update(filters []Filter) error {
	c.updates = append(c.updates, filters)

	return c.next.Update(filters[1:])
}

func (c *stubCoder) Check() Check {
	return CheckCRC64
}

func TestRetOf(t *testing.T) {
	r := require.New(t)

	r.Equal(Ok, RetOf(nil))
	r.Equal(StreamEnd, RetOf(io.EOF))
	r.Equal(DataError, RetOf(fmt.Errorf("lzma2: chunk: %w", ErrData)))
	r.Equal(OptionsError, RetOf(ErrOptions))
	r.Equal(ProgError, RetOf(io.ErrShortWrite))

	for ret := Ok; ret <= SeekNeeded; ret++ {
		r.Equal(ret, RetOf(ret.Err()), ret.String())
	}
}

func TestNextEmpty(t *testing.T) {
	r := require.New(t)

	var n Next

	r.True(n.Empty())
	r.ErrorIs(n.Code(nil, new(int), nil, new(int), Run), ErrProg)
	r.NoError(n.Update(nil))
	r.ErrorIs(n.Update([]Filter{{ID: 0x21}}), ErrOptions)
	r.Equal(CheckNone, n.Check())

	_, _, err := n.MemConfig(0)
	r.ErrorIs(err, ErrProg)

	_, err = n.SetOutLimit(100)
	r.ErrorIs(err, ErrOptions)

	n.End()
	r.Equal(EndOfChain(), n)
	r.Equal(vli.VLI(vli.Unknown), n.ID)
	r.True(n.Empty())
	r.NoError(n.Update(nil))
}

func TestNextEnd(t *testing.T) {
	r := require.New(t)

	tail := &stubCoder{}
	head := &stubCoder{}
	head.next.Set(0x21, tail)

	var n Next
	n.Set(0x03, head)

	n.End()
	n.End()

	r.True(n.Empty())
	r.Equal(vli.VLI(vli.Unknown), n.ID)
	r.Equal(vli.VLI(vli.Unknown), head.next.ID)
	r.Equal(1, head.ends)
	r.Equal(1, tail.ends)

	// A link that was set but whose stage never got a successor.
	partial := &stubCoder{}
	n.Set(0x04, partial)
	n.End()
	r.Equal(1, partial.ends)
}

func TestNextUpdate(t *testing.T) {
	r := require.New(t)

	tail := &stubCoder{}
	head := &stubCoder{}
	head.next.Set(0x21, tail)

	var n Next
	n.Set(0x03, head)

	r.NoError(n.Update([]Filter{{ID: 0x03}, {ID: 0x21}}))
	r.Len(head.updates, 1)
	r.Len(tail.updates, 1)
	r.Equal(CheckCRC64, n.Check())

	r.ErrorIs(n.Update([]Filter{{ID: 0x04}, {ID: 0x21}}), ErrOptions)
	r.ErrorIs(n.Update([]Filter{{ID: 0x03}, {ID: 0x22}}), ErrOptions)
	r.ErrorIs(n.Update([]Filter{{ID: 0x03}}), ErrOptions)
}

func TestNextCode(t *testing.T) {
	r := require.New(t)

	var n Next
	n.Set(0x21, &stubCoder{})

	in := []byte("hello")
	out := make([]byte, 3)
	inPos, outPos := 0, 0

	r.NoError(n.Code(in, &inPos, out, &outPos, Finish))
	r.Equal(3, inPos)

	out = append(out, 0, 0)
	r.ErrorIs(n.Code(in, &inPos, out, &outPos, Finish), io.EOF)
	r.Equal([]byte("hello"), out)
}

func TestCheckSize(t *testing.T) {
	r := require.New(t)

	size, ok := CheckCRC64.Size()
	r.True(ok)
	r.Equal(uint8(8), size)

	size, ok = CheckSHA256.Size()
	r.True(ok)
	r.Equal(uint8(32), size)

	_, ok = Check(16).Size()
	r.False(ok)

	r.Equal("Unknown-7", Check(7).String())
}

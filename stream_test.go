package xz

import (
	"bytes"
	"io"
	"math/rand"
	"runtime"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/xz/bcj"
	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/delta"
	"github.com/kulaginds/xz/lzma"
	"github.com/kulaginds/xz/vli"
)

// testCode looks like machine code: text mixed with call and branch
// opcodes followed by small offsets.
func testCode(seed int64, n int) []byte {
	rnd := rand.New(rand.NewSource(seed))

	const text = "mov eax, ebx; call printf; ret; "

	out := make([]byte, 0, n)
	for len(out) < n {
		switch rnd.Intn(5) {
		case 0:
			out = append(out, 0xE8, byte(rnd.Intn(64)), byte(rnd.Intn(4)), 0x00, 0x00)
		case 1:
			out = append(out, byte(rnd.Intn(256)), 0x10, 0x00, 0xEB)
		case 2:
			out = append(out, 0x25, 0x00, 0x00, 0x94)
		default:
			out = append(out, text[rnd.Intn(len(text)):]...)
		}
	}

	return out[:n]
}

func lzma2Filter() chain.Filter {
	return chain.Filter{ID: FilterLZMA2, Options: &lzma.Options{DictSize: 1 << 20, LC: 3, LP: 0, PB: 2}}
}

// codeAll runs s over data, chunkIn bytes of input and chunkOut bytes of
// output space at a time, finishing with the last piece of input.
func codeAll(t *testing.T, s *Stream, data []byte, chunkIn, chunkOut int) []byte {
	t.Helper()

	out := make([]byte, 0, len(data))
	pos := 0
	buf := make([]byte, chunkOut)

	for {
		end := pos + chunkIn
		if end > len(data) {
			end = len(data)
		}

		action := chain.Run
		if end == len(data) {
			action = chain.Finish
		}

		nIn, nOut, err := s.Code(data[pos:end], buf, action)
		pos += nIn
		out = append(out, buf[:nOut]...)

		if err == io.EOF {
			return out
		}

		require.NoError(t, err)
	}
}

func TestValidateChain(t *testing.T) {
	tests := []struct {
		name    string
		filters []chain.Filter
		want    error
	}{
		{"lzma2", []chain.Filter{{ID: FilterLZMA2}}, nil},
		{"x86 lzma2", []chain.Filter{{ID: FilterX86}, {ID: FilterLZMA2}}, nil},
		{"four", []chain.Filter{{ID: FilterX86}, {ID: FilterDelta}, {ID: FilterARM}, {ID: FilterLZMA2}}, nil},
		{"empty", nil, chain.ErrProg},
		{"five", []chain.Filter{{ID: FilterX86}, {ID: FilterDelta}, {ID: FilterARM}, {ID: FilterDelta}, {ID: FilterLZMA2}}, chain.ErrOptions},
		{"no lzma2", []chain.Filter{{ID: FilterX86}}, chain.ErrOptions},
		{"lzma2 first", []chain.Filter{{ID: FilterLZMA2}, {ID: FilterX86}}, chain.ErrOptions},
		{"two lzma2", []chain.Filter{{ID: FilterLZMA2}, {ID: FilterLZMA2}}, chain.ErrOptions},
		{"ia64", []chain.Filter{{ID: FilterIA64}, {ID: FilterLZMA2}}, chain.ErrOptions},
		{"unknown", []chain.Filter{{ID: 0x4000}, {ID: FilterLZMA2}}, chain.ErrOptions},
		{"unknown vli", []chain.Filter{{ID: vli.Unknown}}, chain.ErrOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChain(tt.filters)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFilterNames(t *testing.T) {
	r := require.New(t)

	for _, id := range []vli.VLI{FilterDelta, FilterX86, FilterPowerPC, FilterARM, FilterARMThumb, FilterSPARC, FilterARM64, FilterLZMA2} {
		name := FilterName(id)
		r.NotEmpty(name)

		got, ok := FilterID(name)
		r.True(ok)
		r.Equal(id, got)
	}

	r.Empty(FilterName(FilterIA64))

	_, ok := FilterID("ia64")
	r.False(ok)
}

func TestNewStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		filters []chain.Filter
		want    error
	}{
		{"lzma2 options type", []chain.Filter{{ID: FilterLZMA2, Options: &delta.Options{}}}, chain.ErrOptions},
		{"lzma2 lc lp", []chain.Filter{{ID: FilterLZMA2, Options: &lzma.Options{LC: 4, LP: 1}}}, chain.ErrOptions},
		{"delta dist", []chain.Filter{{ID: FilterDelta, Options: &delta.Options{Dist: 300}}, lzma2Filter()}, chain.ErrOptions},
		{"arm start offset", []chain.Filter{{ID: FilterARM, Options: &bcj.Options{StartOffset: 2}}, lzma2Filter()}, chain.ErrOptions},
		{"bcj options type", []chain.Filter{{ID: FilterX86, Options: bcj.Options{}}, lzma2Filter()}, chain.ErrOptions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRawEncoder(tt.filters)
			require.ErrorIs(t, err, tt.want)

			// The decoder only checks the options it uses.
			if tt.name != "lzma2 lc lp" {
				_, err = NewRawDecoder(tt.filters)
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestStreamRoundTrip(t *testing.T) {
	chains := []struct {
		name    string
		filters []chain.Filter
	}{
		{"lzma2", []chain.Filter{lzma2Filter()}},
		{"delta", []chain.Filter{{ID: FilterDelta, Options: &delta.Options{Dist: 4}}, lzma2Filter()}},
		{"x86", []chain.Filter{{ID: FilterX86}, lzma2Filter()}},
		{"arm", []chain.Filter{{ID: FilterARM, Options: &bcj.Options{StartOffset: 4096}}, lzma2Filter()}},
		{"armthumb", []chain.Filter{{ID: FilterARMThumb}, lzma2Filter()}},
		{"arm64", []chain.Filter{{ID: FilterARM64}, lzma2Filter()}},
		{"powerpc", []chain.Filter{{ID: FilterPowerPC}, lzma2Filter()}},
		{"sparc", []chain.Filter{{ID: FilterSPARC}, lzma2Filter()}},
		{"x86 delta", []chain.Filter{{ID: FilterX86}, {ID: FilterDelta}, lzma2Filter()}},
		{"three bcj", []chain.Filter{{ID: FilterARM}, {ID: FilterX86}, {ID: FilterARM64}, lzma2Filter()}},
	}

	chunks := []struct {
		in, out int
	}{
		{1, 1},
		{7, 5},
		{4096, 333},
		{1 << 20, 1 << 20},
	}

	for _, c := range chains {
		for _, size := range []int{0, 1, 3000, 100000} {
			data := testCode(int64(size), size)

			for _, ch := range chunks {
				if size > 3000 && ch.in < 4096 {
					continue
				}

				enc, err := NewRawEncoder(c.filters)
				require.NoError(t, err)

				comp := codeAll(t, enc, data, ch.in, ch.out)
				enc.End()

				dec, err := NewRawDecoder(c.filters)
				require.NoError(t, err)

				got := codeAll(t, dec, comp, ch.in, ch.out)
				dec.End()

				require.Equal(t, data, got, "%s: %d bytes in %d/%d chunks", c.name, size, ch.in, ch.out)
			}
		}
	}
}

func TestStreamFilterChangesData(t *testing.T) {
	r := require.New(t)

	data := testCode(1, 20000)

	plain, err := NewRawEncoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	x86, err := NewRawEncoder([]chain.Filter{{ID: FilterX86}, lzma2Filter()})
	r.NoError(err)

	a := codeAll(t, plain, data, len(data), 1<<20)
	b := codeAll(t, x86, data, len(data), 1<<20)
	r.NotEqual(a, b)

	// The x86 stream decodes with a plain decoder to the converted data.
	dec, err := NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	converted := codeAll(t, dec, b, len(b), 1<<20)
	r.Len(converted, len(data))
	r.NotEqual(data, converted)

	bcj.X86(bcj.NewState(), 0, false, converted)
	r.Equal(data, converted)
}

func TestStreamSequence(t *testing.T) {
	r := require.New(t)

	enc, err := NewRawEncoder([]chain.Filter{lzma2Filter()}, WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 1})))
	r.NoError(err)

	_, _, err = enc.Code(nil, nil, chain.FullFlush)
	r.ErrorIs(err, chain.ErrOptions)
	r.Equal(chain.OptionsError, chain.RetOf(err))

	_, _, err = enc.Code(nil, nil, chain.FullBarrier)
	r.Equal(chain.OptionsError, chain.RetOf(err))

	_, _, err = enc.Code(nil, nil, chain.Action(9))
	r.ErrorIs(err, chain.ErrProg)

	data := testCode(2, 1000)
	out := make([]byte, 1)

	nIn, nOut, err := enc.Code(data, out, chain.Finish)
	r.NoError(err)
	r.Equal(len(data), nIn)
	r.Equal(1, nOut)

	// A finish must go on with the same action and the rest of the input.
	_, _, err = enc.Code(nil, out, chain.Run)
	r.ErrorIs(err, chain.ErrProg)

	_, _, err = enc.Code([]byte{1}, out, chain.Finish)
	r.ErrorIs(err, chain.ErrProg)

	comp := []byte{out[0]}
	rest := codeAll(t, enc, nil, 0, 7)
	comp = append(comp, rest...)

	_, _, err = enc.Code(nil, out, chain.Finish)
	r.ErrorIs(err, io.EOF)

	_, _, err = enc.Code(data, out, chain.Run)
	r.ErrorIs(err, io.EOF)

	dec, err := NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	_, _, err = dec.Code(comp, out, chain.SyncFlush)
	r.Equal(chain.OptionsError, chain.RetOf(err))

	r.Equal(data, codeAll(t, dec, comp, 100, 100))

	enc.End()

	_, _, err = enc.Code(nil, out, chain.Run)
	r.ErrorIs(err, chain.ErrProg)

	// The stream can be started again.
	r.NoError(enc.RawEncoder([]chain.Filter{lzma2Filter()}))
	r.Equal(comp, codeAll(t, enc, data, 10, 10))
}

func TestStreamSyncFlush(t *testing.T) {
	r := require.New(t)

	enc, err := NewRawEncoder([]chain.Filter{{ID: FilterDelta}, lzma2Filter()})
	r.NoError(err)

	dec, err := NewRawDecoder([]chain.Filter{{ID: FilterDelta}, lzma2Filter()})
	r.NoError(err)

	data := testCode(3, 30000)
	buf := make([]byte, 1<<20)

	var flushed []byte

	for k, part := range [][]byte{data[:10000], data[10000:10001], data[10001:]} {
		nIn, nOut, err := enc.Code(part, buf, chain.Run)
		r.NoError(err)
		r.Equal(len(part), nIn)
		flushed = append(flushed, buf[:nOut]...)

		for {
			_, nOut, err = enc.Code(nil, buf, chain.SyncFlush)
			flushed = append(flushed, buf[:nOut]...)

			if err == io.EOF {
				break
			}

			r.NoError(err)
		}

		// Everything written so far decodes without the end of the data.
		var got []byte
		for in := flushed; ; {
			nIn, nOut, err := dec.Code(in, buf, chain.Run)
			got = append(got, buf[:nOut]...)
			in = in[nIn:]

			r.NoError(err)

			if len(in) == 0 && nOut == 0 {
				break
			}
		}

		r.Equal(part, got, "part %d", k+1)
		flushed = flushed[:0]
	}

	// Nothing is left to flush.
	_, nOut, err := enc.Code(nil, buf, chain.SyncFlush)
	r.Equal(io.EOF, err)
	r.Zero(nOut)

	end := codeAll(t, enc, nil, 0, 16)
	r.Equal([]byte{0x00}, end)

	_, _, err = dec.Code(end, buf, chain.Finish)
	r.Equal(io.EOF, err)

	bcjEnc, err := NewRawEncoder([]chain.Filter{{ID: FilterX86}, lzma2Filter()})
	r.NoError(err)

	_, _, err = bcjEnc.Code(data, buf, chain.SyncFlush)
	r.ErrorIs(err, chain.ErrOptions)

	_, _, err = bcjEnc.Code(data, buf, chain.SyncFlush)
	r.ErrorIs(err, chain.ErrProg)
}

func TestStreamBufError(t *testing.T) {
	r := require.New(t)

	enc, err := NewRawEncoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	data := testCode(4, 5000)
	comp := codeAll(t, enc, data, len(data), 1<<20)

	dec, err := NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	out := make([]byte, 1<<20)

	_, _, err = dec.Code(nil, out, chain.Run)
	r.NoError(err)

	_, _, err = dec.Code(nil, out, chain.Run)
	r.ErrorIs(err, chain.ErrBuf)

	// ErrBuf is not fatal.
	nIn, nOut, err := dec.Code(comp, out, chain.Run)
	r.ErrorIs(err, io.EOF)
	r.Equal(len(comp), nIn)
	r.Equal(data, out[:nOut])

	_, _, err = dec.Code(nil, out, chain.Finish)
	r.ErrorIs(err, io.EOF)

	// Truncated input cannot be finished.
	dec, err = NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	truncated := comp[:len(comp)-1]

	_, _, err = dec.Code(truncated, out, chain.Finish)
	r.NoError(err)

	_, _, err = dec.Code(nil, out, chain.Finish)
	r.NoError(err)

	_, _, err = dec.Code(nil, out, chain.Finish)
	r.ErrorIs(err, chain.ErrBuf)
}

func TestStreamErrorIsFatal(t *testing.T) {
	r := require.New(t)

	dec, err := NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	out := make([]byte, 16)

	_, _, err = dec.Code([]byte{0x03, 0x00}, out, chain.Run)
	r.ErrorIs(err, chain.ErrData)
	r.Equal(chain.DataError, chain.RetOf(err))

	_, _, err = dec.Code([]byte{0x00}, out, chain.Run)
	r.ErrorIs(err, chain.ErrProg)
}

func TestStreamMemLimit(t *testing.T) {
	r := require.New(t)

	filters := []chain.Filter{{ID: FilterX86}, lzma2Filter()}

	_, err := NewRawDecoder(filters, WithMemLimit(1))
	r.ErrorIs(err, chain.ErrMemlimit)

	dec, err := NewRawDecoder(filters)
	r.NoError(err)
	r.Greater(dec.MemUsage(), uint64(1<<20))

	dec, err = NewRawDecoder([]chain.Filter{lzma2Filter()}, WithMemLimit(64<<20))
	r.NoError(err)

	usage := dec.MemUsage()
	r.Greater(usage, uint64(1<<20))
	r.Equal(uint64(64<<20), dec.MemLimit())

	r.ErrorIs(dec.SetMemLimit(usage-1), chain.ErrMemlimit)
	r.ErrorIs(dec.SetMemLimit(0), chain.ErrMemlimit)
	r.Equal(uint64(64<<20), dec.MemLimit())

	r.NoError(dec.SetMemLimit(usage))
	r.Equal(usage, dec.MemLimit())

	enc, err := NewRawEncoder(filters)
	r.NoError(err)

	r.Zero(enc.MemUsage())
	r.Zero(enc.MemLimit())
	r.ErrorIs(enc.SetMemLimit(1<<30), chain.ErrProg)
	r.Equal(chain.CheckNone, enc.Check())
}

func TestStreamMemLimitBeforeAlloc(t *testing.T) {
	r := require.New(t)

	var before, after runtime.MemStats

	runtime.ReadMemStats(&before)

	_, err := NewRawDecoder([]chain.Filter{{ID: FilterLZMA2, Options: &lzma.Options{DictSize: 1 << 30}}}, WithMemLimit(1<<20))
	r.ErrorIs(err, chain.ErrMemlimit)

	runtime.ReadMemStats(&after)
	r.Less(after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

	// The limit is checked against exactly what the chain allocates.
	chains := [][]chain.Filter{
		{lzma2Filter()},
		{{ID: FilterX86}, lzma2Filter()},
		{{ID: FilterDelta}, {ID: FilterARM}, {ID: FilterSPARC}, lzma2Filter()},
		{{ID: FilterLZMA2}},
	}

	for _, filters := range chains {
		dec, err := NewRawDecoder(filters)
		r.NoError(err)

		usage := dec.MemUsage()
		dec.End()

		_, err = NewRawDecoder(filters, WithMemLimit(usage-1))
		r.ErrorIs(err, chain.ErrMemlimit, FilterName(filters[0].ID))

		dec, err = NewRawDecoder(filters, WithMemLimit(usage))
		r.NoError(err, FilterName(filters[0].ID))
		r.Equal(usage, dec.MemUsage())
		dec.End()
	}
}

func TestStreamFiltersUpdate(t *testing.T) {
	r := require.New(t)

	filters := []chain.Filter{{ID: FilterDelta}, lzma2Filter()}

	enc, err := NewRawEncoder(filters)
	r.NoError(err)

	data := testCode(5, 200000)
	buf := make([]byte, 1<<20)

	var comp []byte

	nIn, nOut, err := enc.Code(data[:100000], buf, chain.Run)
	r.NoError(err)
	r.Equal(100000, nIn)
	comp = append(comp, buf[:nOut]...)

	updated := []chain.Filter{{ID: FilterDelta}, {ID: FilterLZMA2, Options: &lzma.Options{LC: 0, LP: 2, PB: 0}}}
	r.NoError(enc.FiltersUpdate(updated))

	r.ErrorIs(enc.FiltersUpdate([]chain.Filter{lzma2Filter()}), chain.ErrOptions)
	r.ErrorIs(enc.FiltersUpdate([]chain.Filter{{ID: FilterX86}, lzma2Filter()}), chain.ErrOptions)
	r.ErrorIs(enc.FiltersUpdate([]chain.Filter{{ID: FilterDelta}, {ID: FilterLZMA2, Options: &lzma.Options{LC: 4, LP: 4}}}), chain.ErrOptions)

	comp = append(comp, codeAll(t, enc, data[100000:], 1<<20, 1<<20)...)

	dec, err := NewRawDecoder(filters)
	r.NoError(err)
	r.Equal(data, codeAll(t, dec, comp, 1<<20, 1<<20))

	r.ErrorIs(dec.FiltersUpdate(filters), chain.ErrProg)
}

func TestStreamSetOutLimit(t *testing.T) {
	r := require.New(t)

	data := testCode(6, 10000)

	enc, err := NewRawEncoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	comp := codeAll(t, enc, data, len(data), 1<<20)

	dec, err := NewRawDecoder([]chain.Filter{lzma2Filter()})
	r.NoError(err)

	produced, err := dec.SetOutLimit(1234)
	r.NoError(err)
	r.Zero(produced)

	r.Equal(data[:1234], codeAll(t, dec, comp, 100, 100))

	in, out := dec.Progress()
	r.Equal(uint64(1234), out)
	r.LessOrEqual(in, uint64(len(comp)))

	// A chain headed by a BCJ filter has no output limit.
	dec, err = NewRawDecoder([]chain.Filter{{ID: FilterX86}, lzma2Filter()})
	r.NoError(err)

	_, err = dec.SetOutLimit(10)
	r.ErrorIs(err, chain.ErrOptions)
}

func TestStreamProgress(t *testing.T) {
	r := require.New(t)

	data := testCode(7, 50000)

	enc, err := NewRawEncoder([]chain.Filter{{ID: FilterARM}, lzma2Filter()})
	r.NoError(err)

	comp := codeAll(t, enc, data, 999, 777)

	in, out := enc.Progress()
	r.Equal(uint64(len(data)), in)
	r.Equal(uint64(len(comp)), out)

	totalIn, totalOut := enc.Total()
	r.Equal(in, totalIn)
	r.Equal(out, totalOut)

	dec, err := NewRawDecoder([]chain.Filter{{ID: FilterARM}, lzma2Filter()})
	r.NoError(err)

	r.Equal(data, codeAll(t, dec, comp, 999, 777))

	// A BCJ head does not report progress; the totals are used.
	in, out = dec.Progress()
	r.Equal(uint64(len(comp)), in)
	r.Equal(uint64(len(data)), out)
}

func BenchmarkStreamEncoder(b *testing.B) {
	data := bytes.Repeat(testCode(8, 1<<16), 4)
	buf := make([]byte, 2*len(data))

	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		enc, err := NewRawEncoder([]chain.Filter{{ID: FilterX86}, lzma2Filter()})
		if err != nil {
			b.Fatal(err)
		}

		if _, _, err = enc.Code(data, buf, chain.Finish); err != io.EOF {
			b.Fatal(err)
		}
	}
}

// Package bcj implements the branch/call/jump converters. They rewrite the
// relative target addresses of branch instructions into absolute ones so
// that repeated calls to the same function look alike to the compressor.
package bcj

// Func converts buf in place and returns the number of bytes it is done
// with. The remaining bytes are too short to hold an instruction and must
// be given again, prepended to the following data, at nowPos+n.
type Func func(s *State, nowPos uint32, isEncoder bool, buf []byte) int

// State carries what a converter remembers between calls. Only the x86
// converter uses it.
type State struct {
	prevMask uint32
	prevPos  uint32
}

func NewState() *State {
	s := &State{}
	s.Reset()

	return s
}

func (s *State) Reset() {
	s.prevMask = 0
	s.prevPos = ^uint32(4)
}

// Arch describes one converter and the buffering its stage needs.
type Arch struct {
	Name string
	Func Func

	// UnfilteredMax is the longest tail Func may leave unconverted.
	UnfilteredMax int

	// Alignment is the instruction alignment; the start offset must be a
	// multiple of it.
	Alignment uint32
}

var (
	ArchX86      = Arch{Name: "x86", Func: X86, UnfilteredMax: 5, Alignment: 1}
	ArchPowerPC  = Arch{Name: "powerpc", Func: PowerPC, UnfilteredMax: 4, Alignment: 4}
	ArchARM      = Arch{Name: "arm", Func: ARM, UnfilteredMax: 4, Alignment: 4}
	ArchARMThumb = Arch{Name: "armthumb", Func: ARMThumb, UnfilteredMax: 4, Alignment: 2}
	ArchSPARC    = Arch{Name: "sparc", Func: SPARC, UnfilteredMax: 4, Alignment: 4}
	ArchARM64    = Arch{Name: "arm64", Func: ARM64, UnfilteredMax: 4, Alignment: 4}
)

// MemUsage is the size of the buffer of a stage of a.
func (a Arch) MemUsage() uint64 {
	return 2 * uint64(a.UnfilteredMax)
}

// Options are the options of every BCJ filter.
type Options struct {
	// StartOffset is the position the first byte of the data is at.
	StartOffset uint32 `toml:"start_offset"`
}

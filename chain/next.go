package chain

import (
	"github.com/kulaginds/xz/vli"
)

// Filter is a filter ID with its options. Options is a pointer to the
// options struct of the filter package, or nil for defaults.
type Filter struct {
	ID      vli.VLI
	Options interface{}
}

// Coder is a single stage of a filter chain.
//
// Code advances *inPos and *outPos. It returns nil when the caller should
// call again, io.EOF when the stream ended, or an error wrapping one of the
// sentinel errors of this package.
type Coder interface {
	Code(in []byte, inPos *int, out []byte, outPos *int, action Action) error
	End()
}

type ProgressGetter interface {
	Progress() (progressIn, progressOut uint64)
}

type CheckGetter interface {
	Check() Check
}

// MemConfigurer reports the memory usage of a stage and its successors. A
// newLimit of zero only queries the current values.
type MemConfigurer interface {
	MemConfig(newLimit uint64) (memUsage, oldLimit uint64, err error)
}

// Updater swaps the options of a running stage. filters[0] belongs to the
// receiving stage and the rest to the stages after it.
type Updater interface {
	Update(filters []Filter) error
}

// OutLimiter caps the amount of output the stage produces.
type OutLimiter interface {
	SetOutLimit(outLimit uint64) (uncompressedSize uint64, err error)
}

// Next links a stage to the one after it. A link without a Coder is the end
// of the chain; its ID is vli.Unknown once it was ended or made by
// EndOfChain. The zero value is treated as an end too.
type Next struct {
	ID    vli.VLI
	Coder Coder
}

func EndOfChain() Next {
	return Next{ID: vli.Unknown}
}

func (n *Next) Empty() bool {
	return n.Coder == nil
}

// Set replaces the linked stage, ending the previous one if it differs.
func (n *Next) Set(id vli.VLI, c Coder) {
	if n.Coder != nil && n.Coder != c {
		n.Coder.End()
	}

	n.ID = id
	n.Coder = c
}

func (n *Next) Code(in []byte, inPos *int, out []byte, outPos *int, action Action) error {
	if n.Coder == nil {
		return ErrProg
	}

	return n.Coder.Code(in, inPos, out, outPos, action)
}

// End ends the linked stage and everything after it. Calling End more than
// once, or on an empty link, does nothing.
func (n *Next) End() {
	if n.Coder == nil {
		n.ID = vli.Unknown

		return
	}

	c := n.Coder
	*n = EndOfChain()

	c.End()
}

func (n *Next) Progress() (uint64, uint64) {
	if pg, ok := n.Coder.(ProgressGetter); ok {
		return pg.Progress()
	}

	return 0, 0
}

func (n *Next) Check() Check {
	if cg, ok := n.Coder.(CheckGetter); ok {
		return cg.Check()
	}

	return CheckNone
}

func (n *Next) MemConfig(newLimit uint64) (uint64, uint64, error) {
	if mc, ok := n.Coder.(MemConfigurer); ok {
		return mc.MemConfig(newLimit)
	}

	return 0, 0, ErrProg
}

// Update passes filters down the chain. An empty filter list matches only
// the end of the chain; a different filter ID at this position is rejected.
func (n *Next) Update(filters []Filter) error {
	if len(filters) == 0 {
		if n.Coder == nil {
			return nil
		}

		return ErrOptions
	}

	if n.Coder == nil || filters[0].ID != n.ID {
		return ErrOptions
	}

	u, ok := n.Coder.(Updater)
	if !ok {
		return ErrProg
	}

	return u.Update(filters)
}

func (n *Next) SetOutLimit(outLimit uint64) (uint64, error) {
	if ol, ok := n.Coder.(OutLimiter); ok {
		return ol.SetOutLimit(outLimit)
	}

	return 0, ErrOptions
}

// BufCopy copies as much as fits from in[*inPos:] to out[*outPos:] and
// returns the number of bytes copied.
func BufCopy(in []byte, inPos *int, out []byte, outPos *int) int {
	n := copy(out[*outPos:], in[*inPos:])
	*inPos += n
	*outPos += n

	return n
}

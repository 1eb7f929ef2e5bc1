package xz

import (
	"fmt"

	"github.com/kulaginds/xz/bcj"
	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/delta"
	"github.com/kulaginds/xz/lzma"
	"github.com/kulaginds/xz/vli"
)

// Filter IDs of the xz format.
const (
	FilterDelta    vli.VLI = 0x03
	FilterX86      vli.VLI = 0x04
	FilterPowerPC  vli.VLI = 0x05
	FilterIA64     vli.VLI = 0x06
	FilterARM      vli.VLI = 0x07
	FilterARMThumb vli.VLI = 0x08
	FilterSPARC    vli.VLI = 0x09
	FilterARM64    vli.VLI = 0x0A
	FilterLZMA2    vli.VLI = 0x21
)

// FiltersMax is the longest filter chain.
const FiltersMax = 4

// changesSizeMax is how many filters of a chain may change the size of the
// data.
const changesSizeMax = 3

type newCoderFunc func(opts interface{}, next chain.Next) (chain.Coder, error)

type filterFeatures struct {
	name string

	nonLastOK   bool
	lastOK      bool
	changesSize bool

	newEncoder newCoderFunc
	newDecoder newCoderFunc

	// decoderMemUsage is what newDecoder will allocate for opts.
	decoderMemUsage func(opts interface{}) (uint64, error)
}

var filters = map[vli.VLI]filterFeatures{
	FilterLZMA2: {
		name:        "lzma2",
		lastOK:      true,
		changesSize: true,
		newEncoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[lzma.Options]("lzma2", opts)
			if err != nil {
				return nil, err
			}

			return lzma.NewEncoder(o, next)
		},
		newDecoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[lzma.Options]("lzma2", opts)
			if err != nil {
				return nil, err
			}

			// The decoder reads the input itself.
			next.End()

			return lzma.NewDecoder(o)
		},
		decoderMemUsage: func(opts interface{}) (uint64, error) {
			o, err := optionsOf[lzma.Options]("lzma2", opts)
			if err != nil {
				return 0, err
			}

			return lzma.DecoderMemUsage(o), nil
		},
	},
	FilterDelta: {
		name:      "delta",
		nonLastOK: true,
		newEncoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[delta.Options]("delta", opts)
			if err != nil {
				return nil, err
			}

			return delta.NewEncoder(o, next)
		},
		newDecoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[delta.Options]("delta", opts)
			if err != nil {
				return nil, err
			}

			return delta.NewDecoder(o, next)
		},
		decoderMemUsage: func(interface{}) (uint64, error) {
			return delta.MemUsage, nil
		},
	},
	FilterX86:      bcjFeatures(bcj.ArchX86),
	FilterPowerPC:  bcjFeatures(bcj.ArchPowerPC),
	FilterARM:      bcjFeatures(bcj.ArchARM),
	FilterARMThumb: bcjFeatures(bcj.ArchARMThumb),
	FilterSPARC:    bcjFeatures(bcj.ArchSPARC),
	FilterARM64:    bcjFeatures(bcj.ArchARM64),
}

func bcjFeatures(arch bcj.Arch) filterFeatures {
	return filterFeatures{
		name:      arch.Name,
		nonLastOK: true,
		newEncoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[bcj.Options](arch.Name, opts)
			if err != nil {
				return nil, err
			}

			return bcj.NewEncoder(arch, o, next)
		},
		newDecoder: func(opts interface{}, next chain.Next) (chain.Coder, error) {
			o, err := optionsOf[bcj.Options](arch.Name, opts)
			if err != nil {
				return nil, err
			}

			return bcj.NewDecoder(arch, o, next)
		},
		decoderMemUsage: func(interface{}) (uint64, error) {
			return arch.MemUsage(), nil
		},
	}
}

// optionsOf accepts nil or a *T as the options of a filter. nil selects the
// defaults of the filter.
func optionsOf[T any](name string, opts interface{}) (*T, error) {
	switch o := opts.(type) {
	case nil:
		return nil, nil
	case *T:
		return o, nil
	}

	return nil, fmt.Errorf("%s: options of type %T: %w", name, opts, chain.ErrOptions)
}

// FilterName returns the name of a filter ID, or "" if the ID is not
// supported.
func FilterName(id vli.VLI) string {
	return filters[id].name
}

// FilterID is the inverse of FilterName.
func FilterID(name string) (vli.VLI, bool) {
	for id, f := range filters {
		if f.name == name {
			return id, true
		}
	}

	return 0, false
}

// ValidateChain checks that filters form a usable chain: one to four
// supported filters, LZMA2 last and only there, and at most three filters
// that change the size of the data.
func ValidateChain(chainFilters []chain.Filter) error {
	if len(chainFilters) == 0 {
		return fmt.Errorf("xz: empty filter chain: %w", chain.ErrProg)
	}

	if len(chainFilters) > FiltersMax {
		return fmt.Errorf("xz: %d filters: %w", len(chainFilters), chain.ErrOptions)
	}

	var (
		changesSize int
		nonLastOK   = true
		lastOK      bool
	)

	for _, f := range chainFilters {
		features, ok := filters[f.ID]
		if !ok {
			return fmt.Errorf("xz: filter 0x%x: %w", f.ID, chain.ErrOptions)
		}

		if !nonLastOK {
			return fmt.Errorf("xz: filter %s after the last filter: %w", features.name, chain.ErrOptions)
		}

		nonLastOK = features.nonLastOK
		lastOK = features.lastOK

		if features.changesSize {
			changesSize++
		}
	}

	if !lastOK {
		return fmt.Errorf("xz: chain does not end with lzma2: %w", chain.ErrOptions)
	}

	if changesSize > changesSizeMax {
		return fmt.Errorf("xz: %d size changing filters: %w", changesSize, chain.ErrOptions)
	}

	return nil
}

// newEncoderChain builds the encoder stages. The last filter becomes the
// head of the chain and pulls its input through the ones before it.
func newEncoderChain(chainFilters []chain.Filter) (chain.Next, error) {
	next := chain.EndOfChain()

	for _, f := range chainFilters {
		c, err := filters[f.ID].newEncoder(f.Options, next)
		if err != nil {
			next.End()

			return chain.EndOfChain(), err
		}

		next = chain.Next{ID: f.ID, Coder: c}
	}

	return next, nil
}

// newDecoderChain builds the decoder stages. The first filter is the head
// and the LZMA2 decoder reads the input at the tail.
func newDecoderChain(chainFilters []chain.Filter) (chain.Next, error) {
	next := chain.EndOfChain()

	for k := len(chainFilters) - 1; k >= 0; k-- {
		f := chainFilters[k]

		c, err := filters[f.ID].newDecoder(f.Options, next)
		if err != nil {
			next.End()

			return chain.EndOfChain(), err
		}

		next = chain.Next{ID: f.ID, Coder: c}
	}

	return next, nil
}

// decoderMemUsage is the memory the decoder chain of valid filters will
// use, in bytes.
func decoderMemUsage(chainFilters []chain.Filter) (uint64, error) {
	var total uint64

	for _, f := range chainFilters {
		n, err := filters[f.ID].decoderMemUsage(f.Options)
		if err != nil {
			return 0, err
		}

		total += n
	}

	return total, nil
}

func reversed(chainFilters []chain.Filter) []chain.Filter {
	out := make([]chain.Filter, len(chainFilters))
	for k, f := range chainFilters {
		out[len(out)-1-k] = f
	}

	return out
}

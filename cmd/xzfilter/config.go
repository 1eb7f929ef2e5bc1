package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kulaginds/xz"
	"github.com/kulaginds/xz/bcj"
	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/delta"
	"github.com/kulaginds/xz/lzma"
)

// chainConfig is a filter chain in TOML:
//
//	[[filter]]
//	name = "x86"
//
//	[[filter]]
//	name = "lzma2"
//	dict_size = 1048576
//
// The remaining keys of a filter are the options of that filter.
type chainConfig struct {
	Filters []toml.Primitive `toml:"filter"`
}

func defaultChain() []chain.Filter {
	return []chain.Filter{{ID: xz.FilterLZMA2, Options: lzma.DefaultOptions()}}
}

func loadChain(path string) ([]chain.Filter, error) {
	if path == "" {
		return defaultChain(), nil
	}

	var cfg chainConfig

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return parseChain(md, cfg)
}

func parseChain(md toml.MetaData, cfg chainConfig) ([]chain.Filter, error) {
	filters := make([]chain.Filter, 0, len(cfg.Filters))

	for k, p := range cfg.Filters {
		var head struct {
			Name string `toml:"name"`
		}

		if err := md.PrimitiveDecode(p, &head); err != nil {
			return nil, fmt.Errorf("filter %d: %w", k+1, err)
		}

		id, ok := xz.FilterID(head.Name)
		if !ok {
			return nil, fmt.Errorf("filter %d: unknown filter %q", k+1, head.Name)
		}

		var opts interface{}

		switch id {
		case xz.FilterLZMA2:
			opts = lzma.DefaultOptions()
		case xz.FilterDelta:
			opts = &delta.Options{Dist: delta.DistMin}
		default:
			opts = &bcj.Options{}
		}

		if err := md.PrimitiveDecode(p, opts); err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", k+1, head.Name, err)
		}

		filters = append(filters, chain.Filter{ID: id, Options: opts})
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for k, key := range undecoded {
			keys[k] = key.String()
		}

		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	if err := xz.ValidateChain(filters); err != nil {
		return nil, err
	}

	return filters, nil
}

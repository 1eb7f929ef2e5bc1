package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/kulaginds/xz/index"
)

var indexCommand = &cli.Command{
	Name:      "index",
	Usage:     "list the streams and blocks of .xz files",
	ArgsUsage: "<file.xz>...",
	Flags:     []cli.Flag{memlimitFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() == 0 {
			return fmt.Errorf("no files given")
		}

		for _, name := range ctx.Args().Slice() {
			if err := listFile(ctx.App.Writer, name, ctx.Uint64(memlimitFlag.Name)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}

		return nil
	},
}

func listFile(w io.Writer, name string, memlimit uint64) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	i, err := index.ReadFile(f, st.Size(), memlimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d streams, %d blocks, %d bytes, %d bytes uncompressed\n",
		name, i.StreamCount(), i.BlockCount(), i.FileSize(), i.UncompressedSize())

	renderIndex(w, i)

	return nil
}

func renderIndex(w io.Writer, i *index.Index) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Stream", "Block", "CompOffset", "UncompOffset", "TotalSize", "UncompSize", "Check", "Padding"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	u := func(v uint64) string {
		return strconv.FormatUint(v, 10)
	}

	it := i.NewIter()
	for it.Next(index.ModeAny) {
		check := "-"
		if it.Stream.Flags != nil {
			check = it.Stream.Flags.Check.String()
		}

		if it.Block.NumberInFile == 0 {
			table.Append([]string{
				u(it.Stream.Number), "-",
				u(it.Stream.CompressedOffset), u(it.Stream.UncompressedOffset),
				u(it.Stream.CompressedSize), u(it.Stream.UncompressedSize),
				check, u(it.Stream.Padding),
			})

			continue
		}

		table.Append([]string{
			u(it.Stream.Number), u(it.Block.NumberInFile),
			u(it.Block.CompressedFileOffset), u(it.Block.UncompressedFileOffset),
			u(it.Block.TotalSize), u(it.Block.UncompressedSize),
			check, "",
		})
	}

	table.Render()
}

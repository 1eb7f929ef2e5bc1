// Command xzfilter runs raw xz filter chains over files and lists the
// Index of .xz files.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/urfave/cli/v2"

	"github.com/kulaginds/xz"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level; 1 logs every sequence change of the coder",
	}
	chainFlag = &cli.StringFlag{
		Name:    "chain",
		Aliases: []string{"c"},
		Usage:   "TOML file with the filter chain (default: lzma2 preset 6)",
	}
	memlimitFlag = &cli.Uint64Flag{
		Name:  "memlimit",
		Usage: "memory usage limit of the decoder in bytes (0: none)",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "xzfilter",
		Usage: "raw xz filter chains",
		Flags: []cli.Flag{verbosityFlag},
		Commands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "encode a file with a raw filter chain",
				ArgsUsage: "[input] [output]",
				Flags:     []cli.Flag{chainFlag},
				Action:    encodeAction,
			},
			{
				Name:      "decode",
				Usage:     "decode a file encoded with a raw filter chain",
				ArgsUsage: "[input] [output]",
				Flags:     []cli.Flag{chainFlag, memlimitFlag},
				Action:    decodeAction,
			},
			indexCommand,
		},
	}
}

func newLogger(ctx *cli.Context) logr.Logger {
	stdr.SetVerbosity(ctx.Int(verbosityFlag.Name))

	return stdr.New(log.New(ctx.App.ErrWriter, "", log.LstdFlags)).WithName(ctx.App.Name)
}

// openFiles returns the input and output named by the arguments. A missing
// name or "-" means stdin or stdout.
func openFiles(ctx *cli.Context) (io.ReadCloser, io.WriteCloser, error) {
	var (
		in  io.ReadCloser  = io.NopCloser(os.Stdin)
		out io.WriteCloser = nopWriteCloser{ctx.App.Writer}
	)

	if name := ctx.Args().Get(0); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}

		in = f
	}

	if name := ctx.Args().Get(1); name != "" && name != "-" {
		f, err := os.Create(name)
		if err != nil {
			in.Close()

			return nil, nil, err
		}

		out = f
	}

	return in, out, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func encodeAction(ctx *cli.Context) error {
	filters, err := loadChain(ctx.String(chainFlag.Name))
	if err != nil {
		return err
	}

	in, out, err := openFiles(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := xz.NewWriter(out, filters, xz.WithLogger(newLogger(ctx)))
	if err != nil {
		out.Close()

		return err
	}

	if _, err = io.Copy(w, in); err != nil {
		w.Close()
		out.Close()

		return err
	}

	if err = w.Close(); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}

func decodeAction(ctx *cli.Context) error {
	filters, err := loadChain(ctx.String(chainFlag.Name))
	if err != nil {
		return err
	}

	in, out, err := openFiles(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	opts := []xz.Option{xz.WithLogger(newLogger(ctx))}
	if limit := ctx.Uint64(memlimitFlag.Name); limit != 0 {
		opts = append(opts, xz.WithMemLimit(limit))
	}

	r, err := xz.NewReader(in, filters, opts...)
	if err != nil {
		out.Close()

		return err
	}
	defer r.Close()

	if _, err = io.Copy(out, r); err != nil {
		out.Close()

		return err
	}

	return out.Close()
}

func reportError(w io.Writer, progName string, err error) {
	fmt.Fprintf(w, "%s: %v\n", progName, err)
}

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		reportError(app.ErrWriter, app.Name, err)
		os.Exit(1)
	}
}

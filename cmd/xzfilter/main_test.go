package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	ulikunitz "github.com/ulikunitz/xz"

	"github.com/kulaginds/xz"
	"github.com/kulaginds/xz/bcj"
	"github.com/kulaginds/xz/chain"
	"github.com/kulaginds/xz/delta"
	"github.com/kulaginds/xz/lzma"
)

func decodeChain(s string) ([]chain.Filter, error) {
	var cfg chainConfig

	md, err := toml.Decode(s, &cfg)
	if err != nil {
		return nil, err
	}

	return parseChain(md, cfg)
}

func TestParseChain(t *testing.T) {
	r := require.New(t)

	filters, err := decodeChain(`
[[filter]]
name = "arm"
start_offset = 8

[[filter]]
name = "delta"
dist = 2

[[filter]]
name = "lzma2"
dict_size = 65536
lc = 1
`)
	r.NoError(err)

	want := []chain.Filter{
		{ID: xz.FilterARM, Options: &bcj.Options{StartOffset: 8}},
		{ID: xz.FilterDelta, Options: &delta.Options{Dist: 2}},
		{ID: xz.FilterLZMA2, Options: &lzma.Options{DictSize: 65536, LC: 1, LP: 0, PB: 2}},
	}
	r.Equal(want, filters)

	filters, err = loadChain("")
	r.NoError(err)
	r.Equal([]chain.Filter{{ID: xz.FilterLZMA2, Options: lzma.DefaultOptions()}}, filters)
}

func TestParseChainErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{"unknown filter", "[[filter]]\nname = \"ia64\"\n", "unknown filter"},
		{"unknown key", "[[filter]]\nname = \"lzma2\"\nlevel = 9\n", "unknown keys: filter.level"},
		{"wrong type", "[[filter]]\nname = \"delta\"\ndist = \"far\"\n", "filter 1 (delta)"},
		{"no lzma2", "[[filter]]\nname = \"x86\"\n", "does not end with lzma2"},
		{"empty", "", "empty filter chain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeChain(tt.config)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr

	err := app.Run(append([]string{"xzfilter"}, args...))

	return stdout.String(), err
}

func TestEncodeDecodeFiles(t *testing.T) {
	r := require.New(t)

	dir := t.TempDir()

	chainFile := filepath.Join(dir, "chain.toml")
	r.NoError(os.WriteFile(chainFile, []byte("[[filter]]\nname = \"x86\"\n\n[[filter]]\nname = \"lzma2\"\ndict_size = 1048576\n"), 0o600))

	data := bytes.Repeat([]byte("\xE8\x10\x00\x00\x00 call it again; "), 3000)
	plain := filepath.Join(dir, "plain")
	r.NoError(os.WriteFile(plain, data, 0o600))

	packed := filepath.Join(dir, "packed")
	_, err := runApp(t, "--verbosity", "1", "encode", "--chain", chainFile, plain, packed)
	r.NoError(err)

	comp, err := os.ReadFile(packed)
	r.NoError(err)
	r.Less(len(comp), len(data))

	stdout, err := runApp(t, "decode", "--chain", chainFile, "--memlimit", "16777216", packed)
	r.NoError(err)
	r.Equal(string(data), stdout)

	_, err = runApp(t, "decode", "--chain", chainFile, "--memlimit", "1000", packed)
	r.ErrorIs(err, chain.ErrMemlimit)

	// Without the x86 filter the data decodes to something else.
	stdout, err = runApp(t, "decode", packed)
	r.NoError(err)
	r.Len(stdout, len(data))
	r.NotEqual(string(data), stdout)

	_, err = runApp(t, "decode", filepath.Join(dir, "missing"))
	r.True(errors.Is(err, os.ErrNotExist))
}

func TestIndexCommand(t *testing.T) {
	r := require.New(t)

	var file bytes.Buffer

	for k, check := range []byte{ulikunitz.CRC32, ulikunitz.CRC64} {
		w, err := ulikunitz.WriterConfig{BlockSize: 1000, CheckSum: check}.NewWriter(&file)
		r.NoError(err)

		_, err = w.Write(bytes.Repeat([]byte{'a' + byte(k)}, 2500))
		r.NoError(err)
		r.NoError(w.Close())
	}

	name := filepath.Join(t.TempDir(), "two.xz")
	r.NoError(os.WriteFile(name, file.Bytes(), 0o600))

	stdout, err := runApp(t, "index", name)
	r.NoError(err)

	r.Contains(stdout, "2 streams, 6 blocks")
	r.Contains(stdout, "5000 bytes uncompressed")
	r.Contains(stdout, "CRC32")
	r.Contains(stdout, "CRC64")
	r.Equal(3, strings.Count(stdout, "CRC32"))
	r.Equal(3, strings.Count(stdout, "CRC64"))

	_, err = runApp(t, "index")
	r.Error(err)

	_, err = runApp(t, "index", "--memlimit", "1", name)
	r.ErrorIs(err, chain.ErrMemlimit)
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer

	reportError(&buf, "xzfilter", chain.ErrData)
	require.Equal(t, "xzfilter: xz: data is corrupt\n", buf.String())
}

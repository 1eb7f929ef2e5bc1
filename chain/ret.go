// Package chain defines the protocol that links filter stages together.
//
// A stage implements Coder and holds a Next for the stage that follows it.
// The remaining capabilities are optional interfaces; Next answers for a
// stage that does not implement them.
package chain

import (
	"errors"
	"io"
)

type Action int

const (
	Run Action = iota
	SyncFlush
	FullFlush
	Finish
	FullBarrier
)

const ActionMax = FullBarrier

func (a Action) String() string {
	switch a {
	case Run:
		return "run"
	case SyncFlush:
		return "sync-flush"
	case FullFlush:
		return "full-flush"
	case Finish:
		return "finish"
	case FullBarrier:
		return "full-barrier"
	}

	return "unknown"
}

// Ret is the status a single call returns.
type Ret int

const (
	Ok Ret = iota
	StreamEnd
	NoCheck
	UnsupportedCheck
	GetCheck
	MemError
	MemlimitError
	FormatError
	OptionsError
	DataError
	BufError
	ProgError
	SeekNeeded
)

var retNames = [...]string{
	Ok:               "ok",
	StreamEnd:        "stream end",
	NoCheck:          "no check",
	UnsupportedCheck: "unsupported check",
	GetCheck:         "get check",
	MemError:         "mem error",
	MemlimitError:    "memlimit error",
	FormatError:      "format error",
	OptionsError:     "options error",
	DataError:        "data error",
	BufError:         "buf error",
	ProgError:        "prog error",
	SeekNeeded:       "seek needed",
}

func (r Ret) String() string {
	if r < 0 || int(r) >= len(retNames) {
		return "unknown"
	}

	return retNames[r]
}

// Stream end is reported as io.EOF. Every other non-ok status has a
// sentinel error; stages wrap them with context.
var (
	ErrNoCheck          = errors.New("xz: input stream has no integrity check")
	ErrUnsupportedCheck = errors.New("xz: cannot calculate the integrity check")
	ErrGetCheck         = errors.New("xz: integrity check type is now available")
	ErrMem              = errors.New("xz: cannot allocate memory")
	ErrMemlimit         = errors.New("xz: memory usage limit reached")
	ErrFormat           = errors.New("xz: file format not recognized")
	ErrOptions          = errors.New("xz: invalid or unsupported options")
	ErrData             = errors.New("xz: data is corrupt")
	ErrBuf              = errors.New("xz: no progress is possible")
	ErrProg             = errors.New("xz: programming error")
	ErrSeekNeeded       = errors.New("xz: request to change the input file position")
)

var retErrors = []struct {
	err error
	ret Ret
}{
	{io.EOF, StreamEnd},
	{ErrNoCheck, NoCheck},
	{ErrUnsupportedCheck, UnsupportedCheck},
	{ErrGetCheck, GetCheck},
	{ErrMem, MemError},
	{ErrMemlimit, MemlimitError},
	{ErrFormat, FormatError},
	{ErrOptions, OptionsError},
	{ErrData, DataError},
	{ErrBuf, BufError},
	{ErrProg, ProgError},
	{ErrSeekNeeded, SeekNeeded},
}

// RetOf maps err to a status. Errors outside the taxonomy are reported as
// ProgError.
func RetOf(err error) Ret {
	if err == nil {
		return Ok
	}

	for _, re := range retErrors {
		if errors.Is(err, re.err) {
			return re.ret
		}
	}

	return ProgError
}

// Err is the inverse of RetOf.
func (r Ret) Err() error {
	if r == Ok {
		return nil
	}

	for _, re := range retErrors {
		if re.ret == r {
			return re.err
		}
	}

	return ErrProg
}

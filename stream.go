// Package xz runs chains of xz filters over buffers.
//
// A Stream is a session around one filter chain. The caller moves data
// through it with Code. Every call consumes some input and produces some
// output, and an io.EOF result means the stream ended. NewReader and
// NewWriter wrap a Stream for io users.
package xz

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/kulaginds/xz/chain"
)

type sequence int

// The first five sequences match the chain.Action that starts them.
const (
	seqRun         = sequence(chain.Run)
	seqSyncFlush   = sequence(chain.SyncFlush)
	seqFullFlush   = sequence(chain.FullFlush)
	seqFinish      = sequence(chain.Finish)
	seqFullBarrier = sequence(chain.FullBarrier)
	seqEnd         = seqFullBarrier + 1
	seqError       = seqFullBarrier + 2
)

func (s sequence) String() string {
	switch s {
	case seqEnd:
		return "end"
	case seqError:
		return "error"
	}

	return chain.Action(s).String()
}

type config struct {
	log      logr.Logger
	memLimit uint64
}

type Option func(*config)

// WithLogger makes the Stream log sequence changes and failures at V(1).
func WithLogger(log logr.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithMemLimit sets the memory usage limit of a decoder.
func WithMemLimit(limit uint64) Option {
	return func(c *config) {
		c.memLimit = limit
	}
}

// Stream is a coding session. It is not safe for concurrent use.
type Stream struct {
	next chain.Next

	encoder bool
	seq     sequence

	supportedActions [chain.ActionMax + 1]bool

	// allowBufError is set after a call that made no progress. The second
	// such call in a row fails with ErrBuf.
	allowBufError bool

	// availIn is the input left over by the previous call. While flushing
	// or finishing the caller must give exactly that input again.
	availIn int

	totalIn  uint64
	totalOut uint64

	cfg config
}

func newStream(opts []Option) *Stream {
	s := &Stream{
		cfg: config{log: logr.Discard()},
	}

	for _, opt := range opts {
		opt(&s.cfg)
	}

	return s
}

// NewRawEncoder returns an encoder for a raw filter chain. filters are in
// the order the data is decoded in: the last one must be LZMA2.
func NewRawEncoder(filters []chain.Filter, opts ...Option) (*Stream, error) {
	s := newStream(opts)

	if err := s.RawEncoder(filters); err != nil {
		return nil, err
	}

	return s, nil
}

func NewRawDecoder(filters []chain.Filter, opts ...Option) (*Stream, error) {
	s := newStream(opts)

	if err := s.RawDecoder(filters); err != nil {
		return nil, err
	}

	return s, nil
}

// reset ends the current chain and prepares s for next.
func (s *Stream) reset(next chain.Next, encoder bool, actions ...chain.Action) {
	s.next.End()

	s.next = next
	s.encoder = encoder
	s.seq = seqRun
	s.allowBufError = false
	s.availIn = 0
	s.totalIn = 0
	s.totalOut = 0

	s.supportedActions = [chain.ActionMax + 1]bool{}
	for _, a := range actions {
		s.supportedActions[a] = true
	}
}

// RawEncoder replaces the chain of s with a new raw encoder.
func (s *Stream) RawEncoder(filters []chain.Filter) error {
	if err := ValidateChain(filters); err != nil {
		return err
	}

	next, err := newEncoderChain(filters)
	if err != nil {
		return err
	}

	s.reset(next, true, chain.Run, chain.SyncFlush, chain.Finish)
	s.cfg.log.V(1).Info("raw encoder", "filters", filterNames(filters))

	return nil
}

// RawDecoder replaces the chain of s with a new raw decoder.
func (s *Stream) RawDecoder(filters []chain.Filter) error {
	if err := ValidateChain(filters); err != nil {
		return err
	}

	if s.cfg.memLimit != 0 {
		usage, err := decoderMemUsage(filters)
		if err != nil {
			return err
		}

		if usage > s.cfg.memLimit {
			return fmt.Errorf("xz: decoder needs %d bytes of %d: %w", usage, s.cfg.memLimit, chain.ErrMemlimit)
		}
	}

	next, err := newDecoderChain(filters)
	if err != nil {
		return err
	}

	s.reset(next, false, chain.Run, chain.Finish)
	s.cfg.log.V(1).Info("raw decoder", "filters", filterNames(filters))

	if s.cfg.memLimit != 0 {
		if err = s.SetMemLimit(s.cfg.memLimit); err != nil {
			s.End()

			return err
		}
	}

	return nil
}

func filterNames(filters []chain.Filter) []string {
	names := make([]string, len(filters))
	for k, f := range filters {
		names[k] = FilterName(f.ID)
	}

	return names
}

// Code runs the chain over in and out. It returns how much of each it
// used, and io.EOF once the stream ended or a flush completed.
//
// Once Code was called with SyncFlush, FullFlush, Finish or FullBarrier,
// the same action and the input left over by the previous call must be
// passed until Code returns io.EOF. An action the chain does not support
// fails with ErrOptions.
func (s *Stream) Code(in, out []byte, action chain.Action) (nIn, nOut int, err error) {
	if action < chain.Run || action > chain.ActionMax {
		return 0, 0, fmt.Errorf("xz: invalid action %d: %w", action, chain.ErrProg)
	}

	if !s.supportedActions[action] {
		return 0, 0, fmt.Errorf("xz: action %s is not supported: %w", action, chain.ErrOptions)
	}

	switch s.seq {
	case seqRun:
		if action != chain.Run {
			s.setSeq(sequence(action))
		}
	case seqSyncFlush, seqFullFlush, seqFinish, seqFullBarrier:
		if action != chain.Action(s.seq) || len(in) != s.availIn {
			return 0, 0, fmt.Errorf("xz: %s during %s with %d bytes instead of %d: %w",
				action, s.seq, len(in), s.availIn, chain.ErrProg)
		}
	case seqEnd:
		return 0, 0, io.EOF
	default:
		return 0, 0, fmt.Errorf("xz: code after %s: %w", s.seq, chain.ErrProg)
	}

	err = s.next.Code(in, &nIn, out, &nOut, action)

	s.totalIn += uint64(nIn)
	s.totalOut += uint64(nOut)
	s.availIn = len(in) - nIn

	switch chain.RetOf(err) {
	case chain.Ok:
		if nIn == 0 && nOut == 0 {
			if s.allowBufError {
				err = chain.ErrBuf
			}

			s.allowBufError = true
		} else {
			s.allowBufError = false
		}

	case chain.StreamEnd:
		if s.seq == seqSyncFlush || s.seq == seqFullFlush || s.seq == seqFullBarrier {
			s.setSeq(seqRun)
		} else {
			s.setSeq(seqEnd)
		}

		s.allowBufError = false

	case chain.NoCheck, chain.UnsupportedCheck, chain.GetCheck, chain.MemlimitError:
		s.allowBufError = false

	default:
		s.setSeq(seqError)
		s.cfg.log.V(1).Info("coding failed", "err", err, "in", s.totalIn, "out", s.totalOut)
	}

	return nIn, nOut, err
}

func (s *Stream) setSeq(seq sequence) {
	s.cfg.log.V(1).Info("sequence", "from", s.seq, "to", seq)
	s.seq = seq
}

// End releases the chain. s must not be used afterwards except to start a
// new chain with RawEncoder or RawDecoder.
func (s *Stream) End() {
	s.next.End()
	s.seq = seqError
}

// Progress returns how many bytes the chain consumed and produced. For
// decoders this is the same as the totals of the calls to Code.
func (s *Stream) Progress() (progressIn, progressOut uint64) {
	if _, ok := s.next.Coder.(chain.ProgressGetter); ok {
		return s.next.Progress()
	}

	return s.totalIn, s.totalOut
}

// Total returns the sums of what the calls to Code consumed and produced.
func (s *Stream) Total() (in, out uint64) {
	return s.totalIn, s.totalOut
}

// Check is the integrity check of the stream being decoded. Raw chains have
// none.
func (s *Stream) Check() chain.Check {
	return s.next.Check()
}

// MemUsage is the memory the chain uses, or zero if it cannot tell.
func (s *Stream) MemUsage() uint64 {
	memUsage, _, err := s.next.MemConfig(0)
	if err != nil {
		return 0
	}

	return memUsage
}

// MemLimit is the memory usage limit, or zero if the chain has none.
func (s *Stream) MemLimit() uint64 {
	_, oldLimit, err := s.next.MemConfig(0)
	if err != nil {
		return 0
	}

	return oldLimit
}

// SetMemLimit changes the memory usage limit. It fails with ErrMemlimit if
// the chain already uses more, and with ErrProg if the chain has no limit.
// A limit of zero is taken as one byte.
func (s *Stream) SetMemLimit(limit uint64) error {
	if limit == 0 {
		limit = 1
	}

	_, _, err := s.next.MemConfig(limit)

	return err
}

// FiltersUpdate changes the options of a running encoder. filters must name
// the same filters as the chain was built with, in the same order.
func (s *Stream) FiltersUpdate(filters []chain.Filter) error {
	if !s.encoder || s.next.Empty() {
		return fmt.Errorf("xz: filters update on a decoder: %w", chain.ErrProg)
	}

	if err := ValidateChain(filters); err != nil {
		return err
	}

	if err := s.next.Update(reversed(filters)); err != nil {
		return fmt.Errorf("xz: filters update: %w", err)
	}

	s.cfg.log.V(1).Info("filters updated", "filters", filterNames(filters))

	return nil
}

// SetOutLimit stops a decoder after limit bytes of output. It returns how
// much was produced so far.
func (s *Stream) SetOutLimit(limit uint64) (uint64, error) {
	return s.next.SetOutLimit(limit)
}

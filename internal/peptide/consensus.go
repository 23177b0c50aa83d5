package peptide

// Package peptide builds peptide spaces: ambiguous consensus sequences are
// expanded into concrete sequences, which are then sliced into windows.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSequence is returned when a non-empty delimiter is configured
// but does not occur in the consensus sequence.
var ErrMalformedSequence = errors.New("malformed consensus sequence")

// Consensus is an immutable consensus sequence such as
// "RLF I/M/C RTGSWWSFNPET N/C/M L" with delimiter "/".
type Consensus struct {
	seq   string
	delim string

	tokens []string
	slots  []slot
}

// slot is one ambiguous position: the token index and its alternatives.
type slot struct {
	pos  int
	alts []string
}

// NewConsensus validates seq against delim. An empty delimiter means no
// ambiguity and the sequence is used verbatim.
func NewConsensus(seq, delim string) (Consensus, error) {
	c := Consensus{seq: seq, delim: delim}
	if delim == "" {
		return c, nil
	}
	if !strings.Contains(seq, delim) {
		return Consensus{}, fmt.Errorf("%w: delimiter %q not found in %q", ErrMalformedSequence, delim, seq)
	}
	c.tokens = strings.Fields(seq)
	for i, tok := range c.tokens {
		if !strings.Contains(tok, delim) {
			continue
		}
		alts := strings.Split(strings.ReplaceAll(tok, delim, ""), "")
		c.slots = append(c.slots, slot{pos: i, alts: alts})
	}
	return c, nil
}

// MustConsensus is NewConsensus that panics on error. Intended for literals.
func MustConsensus(seq, delim string) Consensus {
	c, err := NewConsensus(seq, delim)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the original notation.
func (c Consensus) String() string { return c.seq }

// Delimiter returns the configured delimiter.
func (c Consensus) Delimiter() string { return c.delim }

// Count is the number of concrete sequences Expand yields.
func (c Consensus) Count() int {
	if c.delim == "" {
		return 1
	}
	n := 1
	for _, s := range c.slots {
		n *= len(s.alts)
	}
	return n
}

// Expand returns a fresh iterator over every concrete sequence.
func (c Consensus) Expand() *Expansion {
	e := &Expansion{c: c, buf: make([]string, len(c.tokens))}
	e.Reset()
	return e
}

// All collects Expand into a slice.
func (c Consensus) All() []string {
	out := make([]string, 0, c.Count())
	e := c.Expand()
	for s, ok := e.Next(); ok; s, ok = e.Next() {
		out = append(out, s)
	}
	return out
}

// Expansion walks the cartesian product of a consensus sequence's ambiguous
// positions with an index odometer; the last position turns fastest.
type Expansion struct {
	c    Consensus
	idx  []int
	buf  []string
	done bool
}

// Reset rewinds the iterator to the first combination.
func (e *Expansion) Reset() {
	e.idx = make([]int, len(e.c.slots))
	e.done = false
	for _, s := range e.c.slots {
		if len(s.alts) == 0 {
			// an ambiguous token made only of delimiters has no alternatives
			e.done = true
		}
	}
}

// Next returns the next concrete sequence, or false once exhausted.
func (e *Expansion) Next() (string, bool) {
	if e.done {
		return "", false
	}
	if e.c.delim == "" {
		e.done = true
		return e.c.seq, true
	}
	copy(e.buf, e.c.tokens)
	for i, s := range e.c.slots {
		e.buf[s.pos] = s.alts[e.idx[i]]
	}
	out := strings.Join(e.buf, "")
	e.advance()
	return out, true
}

func (e *Expansion) advance() {
	for i := len(e.idx) - 1; i >= 0; i-- {
		e.idx[i]++
		if e.idx[i] < len(e.c.slots[i].alts) {
			return
		}
		e.idx[i] = 0
	}
	e.done = true
}

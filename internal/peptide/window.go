package peptide

// WindowIter yields every contiguous substring of a sequence for each window
// length in [low, high], shortest windows first and left to right within a
// length.
type WindowIter struct {
	seq       string
	low, high int

	n, i int
}

// Windows slides windows of length nLow..nHigh over seq. A non-positive nHigh
// means the full length of seq.
func Windows(seq string, nLow, nHigh int) *WindowIter {
	if nHigh <= 0 {
		nHigh = len(seq)
	}
	if nLow < 1 {
		nLow = 1
	}
	w := &WindowIter{seq: seq, low: nLow, high: nHigh}
	w.Reset()
	return w
}

// Reset rewinds the iterator.
func (w *WindowIter) Reset() {
	w.n = w.low
	w.i = 0
}

// Next returns the next window, or false once every length is exhausted.
func (w *WindowIter) Next() (string, bool) {
	for w.n <= w.high {
		if w.n <= len(w.seq) && w.i+w.n <= len(w.seq) {
			s := w.seq[w.i : w.i+w.n]
			w.i++
			return s, true
		}
		w.n++
		w.i = 0
		if w.n > len(w.seq) {
			// longer windows cannot fit either
			w.n = w.high + 1
		}
	}
	return "", false
}

// WindowsAll collects Windows into a slice.
func WindowsAll(seq string, nLow, nHigh int) []string {
	var out []string
	w := Windows(seq, nLow, nHigh)
	for s, ok := w.Next(); ok; s, ok = w.Next() {
		out = append(out, s)
	}
	return out
}

// WindowCount is the number of windows Windows yields for a sequence of
// length l.
func WindowCount(l, nLow, nHigh int) int {
	if nHigh <= 0 || nHigh > l {
		nHigh = l
	}
	if nLow < 1 {
		nLow = 1
	}
	total := 0
	for n := nLow; n <= nHigh; n++ {
		total += l - n + 1
	}
	return total
}

// WalkPeptideSpace expands every consensus sequence and feeds each window to
// fn in order. Duplicates across inputs are kept. It stops at the first error
// returned by fn.
func WalkPeptideSpace(cs []Consensus, nLow, nHigh int, fn func(string) error) error {
	for _, c := range cs {
		e := c.Expand()
		for seq, ok := e.Next(); ok; seq, ok = e.Next() {
			w := Windows(seq, nLow, nHigh)
			for p, ok := w.Next(); ok; p, ok = w.Next() {
				if err := fn(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// BuildPeptideSpace returns the flat, non-deduplicated peptide space of cs.
func BuildPeptideSpace(cs []Consensus, nLow, nHigh int) []string {
	var out []string
	_ = WalkPeptideSpace(cs, nLow, nHigh, func(p string) error {
		out = append(out, p)
		return nil
	})
	return out
}

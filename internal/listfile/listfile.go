package listfile

// Package listfile reads and writes newline-separated lists: peptides,
// alleles and consensus sequences.

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Read returns the non-blank lines of r, NFKC-normalised and trimmed, so
// lists pasted from spreadsheets (full-width letters, stray CR) come out
// clean.
func Read(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var out []string
	for sc.Scan() {
		line := strings.TrimSpace(norm.NFKC.String(sc.Text()))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// ReadFile reads the list at path.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Writer writes one item per line.
type Writer struct {
	bw *bufio.Writer
	n  int
}

func NewWriter(w io.Writer) *Writer { return &Writer{bw: bufio.NewWriter(w)} }

func (w *Writer) Write(item string) error {
	w.n++
	_, err := w.bw.WriteString(item + "\n")
	return err
}

// Count is the number of items written so far.
func (w *Writer) Count() int { return w.n }

func (w *Writer) Flush() error { return w.bw.Flush() }

// WriteFile writes items to path, one per line.
func WriteFile(path string, items []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := NewWriter(f)
	for _, it := range items {
		if err := w.Write(it); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

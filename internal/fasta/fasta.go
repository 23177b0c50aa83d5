package fasta

// Package fasta reads consensus sequence files. A file is either FASTA
// (">" headers, sequence lines joined) or plain, one sequence per line.

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"netmhc/internal/peptide"
)

// Record is a single named sequence.
type Record struct {
	Header   string
	Sequence string
}

// Parse reads records from r. Blank lines and ';' comment lines are skipped.
// When the first sequence line is not preceded by a header the input is
// treated as plain and every line becomes a record named "seq<n>".
// Continuation lines of a FASTA record are joined with a space so that
// whitespace-separated consensus tokens survive line wrapping.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var (
		records []Record
		current *Record
		plain   bool
		lines   []string
	)
	flush := func() {
		if current != nil {
			current.Sequence = strings.Join(lines, " ")
			records = append(records, *current)
		}
		current, lines = nil, nil
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if plain {
				return nil, fmt.Errorf("header %q after plain sequence lines", line)
			}
			flush()
			current = &Record{Header: strings.TrimSpace(line[1:])}
			continue
		}
		if current == nil && len(records) == 0 {
			plain = true
		}
		if plain {
			records = append(records, Record{Header: fmt.Sprintf("seq%d", len(records)+1), Sequence: line})
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return records, nil
}

// ReadFile parses the file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Consensus validates every record as a consensus sequence with delimiter
// delim. With no delimiter the sequence has no ambiguity, so spaces are
// removed.
func Consensus(recs []Record, delim string) ([]peptide.Consensus, error) {
	out := make([]peptide.Consensus, 0, len(recs))
	for _, r := range recs {
		seq := r.Sequence
		if delim == "" {
			seq = strings.Join(strings.Fields(seq), "")
		}
		c, err := peptide.NewConsensus(seq, delim)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Header, err)
		}
		out = append(out, c)
	}
	return out, nil
}

package table

import (
	"strings"

	"netmhc/internal/schema"
)

// Hit is a retained prediction keyed by its originating full sequence and
// the matched (possibly truncated) peptide.
type Hit struct {
	FullSequence string
	Matched      bool
	Peptide      string

	Allele   string
	ScoreBA  Value
	Affinity Value
}

// Hits keeps the rows of t whose affinity is at most threshold nM and
// associates each with the first sequence in full that contains its
// peptide. Rows with a null affinity are dropped. t is not modified.
func Hits(t *Table, threshold float64, full []string) []Hit {
	if t == nil {
		return nil
	}
	s := t.Schema
	affIdx := s.Index(s.AffinityColumn())
	pepIdx := s.Index(schema.ColPeptide)
	mhcIdx := s.Index(schema.ColMHC)
	scoreIdx := s.Index(schema.ColScoreBA)

	var out []Hit
	for _, row := range t.Rows {
		aff, ok := row[affIdx].Number()
		if !ok || aff > threshold {
			continue
		}
		// Class I declares the peptide column as an integer, so match on
		// the raw token rather than the coerced value.
		pep := row[pepIdx].Raw
		h := Hit{
			Peptide:  pep,
			Allele:   row[mhcIdx].String(),
			ScoreBA:  row[scoreIdx],
			Affinity: row[affIdx],
		}
		h.FullSequence, h.Matched = originOf(pep, full)
		out = append(out, h)
	}
	return out
}

func originOf(pep string, full []string) (string, bool) {
	if pep == "" || pep == NullMarker {
		return "", false
	}
	for _, f := range full {
		if strings.Contains(f, pep) {
			return f, true
		}
	}
	return "", false
}

package schema

import "testing"

func TestSchemaShapes(t *testing.T) {
	cases := []struct {
		class    Class
		cols     int
		affinity string
		peptide  Kind
	}{
		{ClassI, 17, "Aff(nM)", Int},
		{ClassII, 14, "Affinity(nM)", String},
	}
	for _, tc := range cases {
		s := For(tc.class)
		if s.Len() != tc.cols {
			t.Fatalf("class %s: expected %d columns, got %d", tc.class, tc.cols, s.Len())
		}
		if s.AffinityColumn() != tc.affinity {
			t.Fatalf("class %s: affinity column %q", tc.class, s.AffinityColumn())
		}
		if s.Index(tc.affinity) < 0 {
			t.Fatalf("class %s: affinity column missing from layout", tc.class)
		}
		if k := s.Column(s.Index(ColPeptide)).Kind; k != tc.peptide {
			t.Fatalf("class %s: peptide kind %s", tc.class, k)
		}
		if s.Class() != tc.class {
			t.Fatalf("class mismatch: %s", s.Class())
		}
	}
}

func TestColumnsIsACopy(t *testing.T) {
	cols := ClassISchema().Columns()
	cols[0].Name = "mutated"
	if ClassISchema().Column(0).Name != "Pos" {
		t.Fatalf("schema mutated through Columns()")
	}
}

func TestParseClass(t *testing.T) {
	for in, want := range map[string]Class{"I": ClassI, "ii": ClassII, " II ": ClassII} {
		got, err := ParseClass(in)
		if err != nil || got != want {
			t.Fatalf("ParseClass(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseClass("III"); err == nil {
		t.Fatalf("expected error for III")
	}
}

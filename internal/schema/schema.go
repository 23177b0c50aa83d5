package schema

// Package schema holds the column layouts of the NetMHCpan and NetMHCIIpan
// result tables. Both layouts are fixed values; callers select one through
// an explicit Class and never mutate it.

import (
	"fmt"
	"strings"
)

// Kind is the semantic type of a result column.
type Kind int

const (
	String Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// Column is a single named, typed column.
type Column struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of columns.
type Schema struct {
	class    Class
	columns  []Column
	affinity string
}

// Class returns the MHC class this schema belongs to.
func (s Schema) Class() Class { return s.class }

// Len returns the number of columns.
func (s Schema) Len() int { return len(s.columns) }

// Column returns the i-th column.
func (s Schema) Column(i int) Column { return s.columns[i] }

// Columns returns a copy of the column list.
func (s Schema) Columns() []Column {
	out := make([]Column, len(s.columns))
	copy(out, s.columns)
	return out
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// AffinityColumn is the name of the nM affinity column, which differs by class.
func (s Schema) AffinityColumn() string { return s.affinity }

// Class selects one of the two result layouts.
type Class int

const (
	ClassI Class = iota + 1
	ClassII
)

func (c Class) String() string {
	switch c {
	case ClassI:
		return "I"
	case ClassII:
		return "II"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// ParseClass accepts "I" or "II" (case-insensitive).
func ParseClass(s string) (Class, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I":
		return ClassI, nil
	case "II":
		return ClassII, nil
	}
	return 0, fmt.Errorf("unknown MHC class %q (want I or II)", s)
}

// Shared column names used outside this package.
const (
	ColPos       = "Pos"
	ColMHC       = "MHC"
	ColPeptide   = "Peptide"
	ColScoreBA   = "Score_BA"
	ColBindLevel = "BindLevel"
)

var classI = Schema{
	class:    ClassI,
	affinity: "Aff(nM)",
	columns: []Column{
		{"Pos", String},
		{"MHC", String},
		{"Peptide", Int},
		{"Core", String},
		{"Of", Int},
		{"Gp", Int},
		{"Gl", Int},
		{"Ip", Int},
		{"Il", Int},
		{"Icore", String},
		{"Identity", Float},
		{"Score_EL", Float},
		{"%Rank_EL", Float},
		{"Score_BA", Float},
		{"%Rank_BA", Float},
		{"Aff(nM)", Float},
		{"BindLevel", String},
	},
}

var classII = Schema{
	class:    ClassII,
	affinity: "Affinity(nM)",
	columns: []Column{
		{"Pos", String},
		{"MHC", String},
		{"Peptide", String},
		{"Of", Int},
		{"Core", String},
		{"Core_Rel", String},
		{"Identity", Float},
		{"Score_EL", Float},
		{"%Rank_EL", Float},
		{"Exp_Bind", Float},
		{"Score_BA", Float},
		{"Affinity(nM)", Float},
		{"%Rank_BA", Float},
		{"BindLevel", String},
	},
}

// ClassISchema returns the 17-column NetMHCpan layout.
func ClassISchema() Schema { return classI }

// ClassIISchema returns the 14-column NetMHCIIpan layout.
func ClassIISchema() Schema { return classII }

// For returns the schema of class c. Unknown classes fall back to Class I.
func For(c Class) Schema {
	if c == ClassII {
		return classII
	}
	return classI
}

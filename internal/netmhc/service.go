package netmhc

import (
	"context"
	"time"

	"netmhc/internal/schema"
)

const (
	MaxPeptides = 5000
	MaxAlleles  = 20

	DefaultPageLoadTimeout = 200 * time.Second
	DefaultPollInterval    = 5 * time.Second
	DefaultPollCeiling     = 500 * time.Minute
	DefaultRequestTimeout  = 30 * time.Second

	// server-side wait requested on every results query
	resultsWaitSeconds = 20
)

// Service describes the DTU web form and results endpoint for one MHC class.
type Service struct {
	Class      schema.Class
	JobURL     string
	ResultsURL string
	// BAField is the name of the binding-affinity prediction checkbox.
	BAField string
}

// Form field names shared by both classes.
const (
	FieldInputFormat = "inp"
	FieldPeptides    = "PEPPASTE"
	FieldAlleles     = "allele"
	SubmitSelector   = `input[type="submit"]`

	peptideInputFormat = "1"
)

// ServiceFor returns the public DTU endpoints for class c.
func ServiceFor(c schema.Class) Service {
	if c == schema.ClassII {
		return Service{
			Class:      schema.ClassII,
			JobURL:     "https://services.healthtech.dtu.dk/services/NetMHCIIpan-4.0/",
			ResultsURL: "https://services.healthtech.dtu.dk/cgi-bin/webface2.cgi",
			BAField:    "BA",
		}
	}
	return Service{
		Class:      schema.ClassI,
		JobURL:     "https://services.healthtech.dtu.dk/services/NetMHCpan-4.1/",
		ResultsURL: "https://services.healthtech.dtu.dk/cgi-bin/webface2.cgi",
		BAField:    "BApred",
	}
}

// Driver fills in and submits a web form. Implementations may drive a real
// browser or post the form directly; navigating calls must honour ctx.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	SelectOption(field, value string) error
	FillText(field, value string) error
	// Click toggles a checkbox by field name, or submits the form when given
	// a submit selector. Submitting navigates and must honour ctx.
	Click(ctx context.Context, selector string) error
	CurrentLocation() string
}

// JobHandle identifies a submitted batch. It is read-only after Submit.
type JobHandle struct {
	ID          string
	Class       schema.Class
	SubmittedAt time.Time
}

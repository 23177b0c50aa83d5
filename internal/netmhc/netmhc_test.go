package netmhc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/schema"
	"netmhc/internal/table"
)

var quiet = log.New(io.Discard)

// fakeDriver records form interactions and lands on location after submit.
type fakeDriver struct {
	location string
	fields   map[string]string
	clicked  []string
	calls    int

	// block makes navigation wait for ctx to expire
	block bool
}

func newFakeDriver(location string) *fakeDriver {
	return &fakeDriver{location: location, fields: map[string]string{}}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.calls++
	if d.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (d *fakeDriver) SelectOption(field, value string) error {
	d.calls++
	d.fields[field] = value
	return nil
}

func (d *fakeDriver) FillText(field, value string) error {
	d.calls++
	d.fields[field] = value
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	d.calls++
	d.clicked = append(d.clicked, selector)
	return nil
}

func (d *fakeDriver) CurrentLocation() string { return d.location }

func TestSubmit_FillsFormAndExtractsJobID(t *testing.T) {
	d := newFakeDriver("https://services.healthtech.dtu.dk/cgi-bin/webface2.cgi?jobid=64A1B2C3000012AB&wait=20")
	c := NewClient(d, schema.ClassI)
	c.Logger = quiet
	h, err := c.Submit(context.Background(), []string{"RLFIRTGSW", "LFIRTGSWW"}, []string{"HLA-A02:01", "HLA-B07:02"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.ID != "64A1B2C3000012AB" || h.Class != schema.ClassI || h.SubmittedAt.IsZero() {
		t.Fatalf("unexpected handle %+v", h)
	}
	if d.fields[FieldInputFormat] != "1" {
		t.Fatalf("input format not selected: %v", d.fields)
	}
	if d.fields[FieldPeptides] != "RLFIRTGSW\nLFIRTGSWW" {
		t.Fatalf("peptides field %q", d.fields[FieldPeptides])
	}
	if d.fields[FieldAlleles] != "HLA-A02:01,HLA-B07:02" {
		t.Fatalf("alleles field %q", d.fields[FieldAlleles])
	}
	if len(d.clicked) != 2 || d.clicked[0] != "BApred" || d.clicked[1] != SubmitSelector {
		t.Fatalf("unexpected clicks %v", d.clicked)
	}
}

func TestSubmit_ClassIIToggle(t *testing.T) {
	d := newFakeDriver("x?jobid=ABC&wait=20")
	c := NewClient(d, schema.ClassII)
	c.Logger = quiet
	if _, err := c.Submit(context.Background(), []string{"P"}, []string{"DRB1_0101"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.clicked[0] != "BA" {
		t.Fatalf("expected BA toggle, got %v", d.clicked)
	}
}

func TestSubmit_LimitsCheckedBeforeDriver(t *testing.T) {
	d := newFakeDriver("x?jobid=ABC&")
	c := NewClient(d, schema.ClassI)
	c.Logger = quiet

	peps := make([]string, MaxPeptides+1)
	if _, err := c.Submit(context.Background(), peps, []string{"A"}); !errors.Is(err, ErrTooManyPeptides) {
		t.Fatalf("expected ErrTooManyPeptides, got %v", err)
	}
	alleles := make([]string, MaxAlleles+1)
	if _, err := c.Submit(context.Background(), []string{"P"}, alleles); !errors.Is(err, ErrTooManyAlleles) {
		t.Fatalf("expected ErrTooManyAlleles, got %v", err)
	}
	if d.calls != 0 {
		t.Fatalf("driver used before validation: %d calls", d.calls)
	}
	// exactly at the limits is fine
	if _, err := c.Submit(context.Background(), make([]string, MaxPeptides), make([]string, MaxAlleles)); err != nil {
		t.Fatalf("limits are inclusive: %v", err)
	}
}

func TestSubmit_JobIDNotFound(t *testing.T) {
	d := newFakeDriver("https://services.healthtech.dtu.dk/services/NetMHCpan-4.1/")
	c := NewClient(d, schema.ClassI)
	c.Logger = quiet
	_, err := c.Submit(context.Background(), []string{"P"}, []string{"A"})
	if !errors.Is(err, ErrJobIDNotFound) {
		t.Fatalf("expected ErrJobIDNotFound, got %v", err)
	}
}

func TestSubmit_PageLoadTimeout(t *testing.T) {
	d := newFakeDriver("")
	d.block = true
	c := NewClient(d, schema.ClassI)
	c.Logger = quiet
	c.PageLoadTimeout = 20 * time.Millisecond
	_, err := c.Submit(context.Background(), []string{"P"}, []string{"A"})
	if !errors.Is(err, ErrPageLoadTimeout) {
		t.Fatalf("expected ErrPageLoadTimeout, got %v", err)
	}
	var je *JobError
	if !errors.As(err, &je) || je.Op != "navigate" {
		t.Fatalf("expected JobError from navigate, got %#v", err)
	}
}

func TestExtractJobID(t *testing.T) {
	cases := map[string]string{
		"https://h/cgi-bin/webface2.cgi?jobid=ABC123&wait=20": "ABC123",
		"?foo=1&jobid=Z9&":                                    "Z9",
	}
	for in, want := range cases {
		got, err := ExtractJobID(in)
		if err != nil || got != want {
			t.Fatalf("ExtractJobID(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"jobid=abc&", "jobid=ABC", "nothing"} {
		if _, err := ExtractJobID(in); !errors.Is(err, ErrJobIDNotFound) {
			t.Fatalf("ExtractJobID(%q): expected ErrJobIDNotFound, got %v", in, err)
		}
	}
}

// scriptedFetcher returns bodies/errors in order, repeating the last one.
type scriptedFetcher struct {
	steps []func() (string, error)
	calls int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, jobID string) (string, error) {
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	return f.steps[i]()
}

func body(s string) func() (string, error) { return func() (string, error) { return s, nil } }

func fail(msg string) func() (string, error) {
	return func() (string, error) { return "", errors.New(msg) }
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return ctx.Err()
}

func testPoller(f Fetcher, ceiling time.Duration) (*Poller, *[]State) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var states []State
	p := &Poller{
		Fetcher:  f,
		Interval: 5 * time.Second,
		Ceiling:  ceiling,
		Logger:   quiet,
		OnState:  func(_ JobHandle, s State) { states = append(states, s) },
		now:      clk.now,
		sleep:    clk.sleep,
	}
	return p, &states
}

const pending = "<html><body>Job is running</body></html>"

const ready = "<html><body><pre>\n   1 HLA-A*02:01 RLFIRTGSW RLFIRTGSW 0 0 0 0 0 RLFIRTGSW PEPLIST 0.1 1.0 0.2 2.0 40.0 SB\n</pre></body></html>"

func TestPoll_ReadyAfterRetries(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (string, error){body(pending), fail("connection reset"), body(ready)}}
	p, states := testPoller(f, time.Minute)
	tbl, err := p.Poll(context.Background(), JobHandle{ID: "J1", Class: schema.ClassI})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if tbl.Len() != 1 || f.calls != 3 {
		t.Fatalf("expected 1 row after 3 calls, got %d rows / %d calls", tbl.Len(), f.calls)
	}
	if fmt.Sprint(*states) != "[polling ready]" {
		t.Fatalf("unexpected states %v", *states)
	}
}

func TestPoll_EmptyTableIsReady(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (string, error){body("<pre>\n# nothing\n</pre>")}}
	p, _ := testPoller(f, time.Minute)
	tbl, err := p.Poll(context.Background(), JobHandle{ID: "J1", Class: schema.ClassI})
	if err != nil || tbl == nil || tbl.Len() != 0 {
		t.Fatalf("expected empty table, got %v, %v", tbl, err)
	}
}

func TestPoll_TimesOutAndStops(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (string, error){body(pending)}}
	p, states := testPoller(f, 20*time.Second)
	_, err := p.Poll(context.Background(), JobHandle{ID: "J2", Class: schema.ClassI})
	if !errors.Is(err, ErrPollTimedOut) || !Retryable(err) {
		t.Fatalf("expected ErrPollTimedOut, got %v", err)
	}
	// fetches at 0s, 5s, 10s, 15s; the ceiling is reached after the 4th sleep
	if f.calls != 4 {
		t.Fatalf("expected 4 fetches, got %d", f.calls)
	}
	if last := (*states)[len(*states)-1]; last != StateTimedOut {
		t.Fatalf("expected timed_out, got %v", last)
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	f := &scriptedFetcher{steps: []func() (string, error){body(pending)}}
	p, _ := testPoller(f, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Poll(ctx, JobHandle{ID: "J3", Class: schema.ClassI}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestHTTPFetcher(t *testing.T) {
	var gotURL string
	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(ready)),
			Header:     make(http.Header),
		}, nil
	})}
	f := &HTTPFetcher{ResultsURL: "https://services.healthtech.dtu.dk/cgi-bin/webface2.cgi"}
	got, err := f.Fetch(context.Background(), "ABC")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotURL != "https://services.healthtech.dtu.dk/cgi-bin/webface2.cgi?jobid=ABC&wait=20" {
		t.Fatalf("unexpected url %s", gotURL)
	}
	if _, ok := table.Parse(got, schema.ClassISchema(), table.ModeStrict); !ok {
		t.Fatalf("expected parsable body")
	}

	httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 502, Status: "502 Bad Gateway", Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header)}, nil
	})}
	if _, err := f.Fetch(context.Background(), "ABC"); err == nil {
		t.Fatalf("expected error on 502")
	}
}

package netmhc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/schema"
)

var jobIDRe = regexp.MustCompile(`jobid=([A-Z0-9]+?)&`)

// Client submits prediction jobs through a form Driver.
type Client struct {
	Driver  Driver
	Service Service
	// PageLoadTimeout bounds every navigation. Zero means DefaultPageLoadTimeout.
	PageLoadTimeout time.Duration
	Logger          *log.Logger

	now func() time.Time
}

// NewClient returns a client for class c against the public DTU service.
func NewClient(d Driver, c schema.Class) *Client {
	return &Client{Driver: d, Service: ServiceFor(c)}
}

func (c *Client) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// Submit validates the batch, fills in the form and returns the handle of the
// job the service created. Batch limits are checked before any network call.
func (c *Client) Submit(ctx context.Context, peptides, alleles []string) (JobHandle, error) {
	if len(peptides) > MaxPeptides {
		return JobHandle{}, jobErr(ErrTooManyPeptides, "submit", "", fmt.Errorf("%d peptides, limit %d", len(peptides), MaxPeptides))
	}
	if len(alleles) > MaxAlleles {
		return JobHandle{}, jobErr(ErrTooManyAlleles, "submit", "", fmt.Errorf("%d alleles, limit %d", len(alleles), MaxAlleles))
	}
	d := c.Driver
	if d == nil {
		return JobHandle{}, errors.New("submit: no form driver configured")
	}
	lg := c.logger()

	lg.Debug("opening job form", "url", c.Service.JobURL, "class", c.Service.Class)
	if err := c.navigate(ctx, "navigate", func(ctx context.Context) error {
		return d.Navigate(ctx, c.Service.JobURL)
	}); err != nil {
		return JobHandle{}, err
	}
	if err := d.SelectOption(FieldInputFormat, peptideInputFormat); err != nil {
		return JobHandle{}, fmt.Errorf("submit: select input format: %w", err)
	}
	if err := d.FillText(FieldPeptides, strings.Join(peptides, "\n")); err != nil {
		return JobHandle{}, fmt.Errorf("submit: fill peptides: %w", err)
	}
	if err := d.FillText(FieldAlleles, strings.Join(alleles, ",")); err != nil {
		return JobHandle{}, fmt.Errorf("submit: fill alleles: %w", err)
	}
	if err := d.Click(ctx, c.Service.BAField); err != nil {
		return JobHandle{}, fmt.Errorf("submit: toggle %s: %w", c.Service.BAField, err)
	}
	if err := c.navigate(ctx, "submit", func(ctx context.Context) error {
		return d.Click(ctx, SubmitSelector)
	}); err != nil {
		return JobHandle{}, err
	}

	loc := d.CurrentLocation()
	id, err := ExtractJobID(loc)
	if err != nil {
		return JobHandle{}, err
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	h := JobHandle{ID: id, Class: c.Service.Class, SubmittedAt: now()}
	lg.Info("submitted job", "job_id", id, "class", h.Class, "peptides", len(peptides), "alleles", len(alleles))
	return h, nil
}

// navigate runs one page load under the page-load deadline. On expiry the
// derived context is cancelled, which aborts the in-flight load.
func (c *Client) navigate(ctx context.Context, op string, load func(context.Context) error) error {
	timeout := c.PageLoadTimeout
	if timeout <= 0 {
		timeout = DefaultPageLoadTimeout
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := load(lctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(lctx.Err(), context.DeadlineExceeded) {
		if ctx.Err() == nil {
			c.logger().Warn("page load timed out; try again later", "op", op, "timeout", timeout)
			return jobErr(ErrPageLoadTimeout, op, "", err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ExtractJobID pulls the job id out of the post-submit location.
func ExtractJobID(location string) (string, error) {
	m := jobIDRe.FindStringSubmatch(location)
	if m == nil {
		return "", jobErr(ErrJobIDNotFound, "submit", "", fmt.Errorf("location %q", location))
	}
	return m[1], nil
}

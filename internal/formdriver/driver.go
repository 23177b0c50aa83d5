package formdriver

// Package formdriver implements the form Driver over plain HTTP: it loads a
// page, scrapes its first form, lets the caller set fields and posts the form
// the way a browser would, following redirects.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoForm is returned when the loaded page has no <form>.
var ErrNoForm = errors.New("page has no form")

// Driver posts HTML forms over HTTP. It is not safe for concurrent use.
type Driver struct {
	client    *http.Client
	userAgent string

	location string
	form     *form
}

// New returns a driver with its own cookie jar.
func New(userAgent string) *Driver {
	jar, _ := cookiejar.New(nil)
	return &Driver{client: &http.Client{Jar: jar}, userAgent: userAgent}
}

// NewWithClient uses c for every request; c's Jar and redirect policy are kept.
func NewWithClient(c *http.Client, userAgent string) *Driver {
	return &Driver{client: c, userAgent: userAgent}
}

// Navigate loads url and scrapes its first form.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return d.load(req)
}

// SelectOption sets a <select> field. The value must be one of its options.
func (d *Driver) SelectOption(field, value string) error {
	f, err := d.field(field)
	if err != nil {
		return err
	}
	if f.kind != kindSelect {
		return fmt.Errorf("field %q is not a select", field)
	}
	for _, o := range f.options {
		if o == value {
			f.value = value
			f.enabled = true
			return nil
		}
	}
	return fmt.Errorf("select %q has no option %q", field, value)
}

// FillText sets a text, textarea or hidden field.
func (d *Driver) FillText(field, value string) error {
	f, err := d.field(field)
	if err != nil {
		return err
	}
	if f.kind == kindSelect || f.kind == kindCheckbox {
		return fmt.Errorf("field %q is not a text input", field)
	}
	f.value = value
	f.enabled = true
	return nil
}

// Click toggles the named checkbox, or submits the form when selector names
// a submit control (`input[type="submit"]` or the submit button's name).
func (d *Driver) Click(ctx context.Context, selector string) error {
	if d.form == nil {
		return ErrNoForm
	}
	if selector == `input[type="submit"]` || selector == "submit" {
		return d.submit(ctx, "")
	}
	f, err := d.field(selector)
	if err != nil {
		return err
	}
	switch f.kind {
	case kindCheckbox:
		f.enabled = !f.enabled
		return nil
	case kindSubmit:
		return d.submit(ctx, f.name)
	}
	return fmt.Errorf("field %q is not clickable", selector)
}

// CurrentLocation is the final URL of the last page load.
func (d *Driver) CurrentLocation() string { return d.location }

func (d *Driver) field(name string) (*field, error) {
	if d.form == nil {
		return nil, ErrNoForm
	}
	for _, f := range d.form.fields {
		if f.name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("form has no field %q", name)
}

func (d *Driver) submit(ctx context.Context, button string) error {
	action, err := url.Parse(d.location)
	if err != nil {
		return err
	}
	if d.form.action != "" {
		ref, err := url.Parse(d.form.action)
		if err != nil {
			return fmt.Errorf("form action: %w", err)
		}
		action = action.ResolveReference(ref)
	}

	var req *http.Request
	if d.form.method == http.MethodGet {
		q := action.Query()
		for _, kv := range d.form.values(button) {
			q.Add(kv[0], kv[1])
		}
		action.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
	} else if strings.HasPrefix(d.form.enctype, "multipart/") {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		for _, kv := range d.form.values(button) {
			_ = mw.WriteField(kv[0], kv[1])
		}
		_ = mw.Close()
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), buf)
		if err == nil {
			req.Header.Set("Content-Type", mw.FormDataContentType())
		}
	} else {
		vals := url.Values{}
		for _, kv := range d.form.values(button) {
			vals.Add(kv[0], kv[1])
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(vals.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}
	return d.load(req)
}

// load performs req, records the final URL and scrapes the first form of the
// resulting page (which may have none).
func (d *Driver) load(req *http.Request) error {
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s returned %s", req.Method, req.URL.Redacted(), resp.Status)
	}
	d.location = resp.Request.URL.String()
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", d.location, err)
	}
	d.form = scrapeForm(doc)
	// meta refresh pages carry the job link without an HTTP redirect
	if d.form == nil {
		if target := metaRefresh(doc); target != "" {
			if base, err := url.Parse(d.location); err == nil {
				if ref, err := url.Parse(target); err == nil {
					d.location = base.ResolveReference(ref).String()
				}
			}
		}
	}
	return nil
}

package netmhc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// httpClient performs results queries; tests may replace it with a mock transport.
var httpClient = &http.Client{Timeout: DefaultRequestTimeout}

// Fetcher returns the current results page for a job.
type Fetcher interface {
	Fetch(ctx context.Context, jobID string) (string, error)
}

// HTTPFetcher queries GET {ResultsURL}?jobid={id}&wait=20.
type HTTPFetcher struct {
	ResultsURL string
	UserAgent  string
	// Client overrides the package client when set.
	Client *http.Client
}

// Fetch returns the body of the results page. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, jobID string) (string, error) {
	u, err := ResultsURL(f.ResultsURL, jobID)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	cli := f.Client
	if cli == nil {
		cli = httpClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("results query returned %s", resp.Status)
	}
	return string(data), nil
}

// ResultsURL builds the results query for jobID on base.
func ResultsURL(base, jobID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("results url: %w", err)
	}
	q := u.Query()
	q.Set("jobid", jobID)
	q.Set("wait", strconv.Itoa(resultsWaitSeconds))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

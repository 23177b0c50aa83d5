//go:build integration
// +build integration

package netmhc_test

import (
	"context"
	"testing"
	"time"

	"netmhc/internal/formdriver"
	"netmhc/internal/netmhc"
	"netmhc/internal/schema"
)

// These tests submit a real job to the public service. They are excluded by
// default; run with `go test -tags=integration ./...`.

func TestIntegrationSubmitAndPoll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	c := netmhc.NewClient(formdriver.New("netmhc-integration"), schema.ClassI)
	h, err := c.Submit(ctx, []string{"RLFIRTGSW", "LFIRTGSWW"}, []string{"HLA-A02:01"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	t.Logf("submitted job %s", h.ID)

	svc := netmhc.ServiceFor(schema.ClassI)
	p := netmhc.NewPoller(&netmhc.HTTPFetcher{ResultsURL: svc.ResultsURL, UserAgent: "netmhc-integration"})
	p.Ceiling = 10 * time.Minute
	tbl, err := p.Poll(ctx, h)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
}

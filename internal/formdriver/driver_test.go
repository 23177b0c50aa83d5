package formdriver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/formdriver"
	"netmhc/internal/netmhc"
	"netmhc/internal/schema"
)

const formPage = `<html><body>
<form action="/cgi-bin/webface2.fcgi" method="post" enctype="multipart/form-data">
<input type="hidden" name="configfile" value="/var/www/services/NetMHCpan-4.1/webface.cf">
<select name="inp">
  <option value="0" selected>FASTA</option>
  <option value="1">PEPTIDE</option>
</select>
<textarea name="PEPPASTE"></textarea>
<input type="text" name="allele" value="HLA-A02:01">
<input type="checkbox" name="BApred">
<input type="checkbox" name="sort" checked>
<input type="submit" value="Submit">
</form>
</body></html>`

func newService(t *testing.T, received *map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/services/NetMHCpan-4.1/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, formPage)
	})
	mux.HandleFunc("/cgi-bin/webface2.fcgi", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		*received = got
		http.Redirect(w, r, "/cgi-bin/webface2.fcgi/result?jobid=6A1F2B9C00004D2E&wait=20", http.StatusFound)
	})
	mux.HandleFunc("/cgi-bin/webface2.fcgi/result", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body>Your job is queued</body></html>")
	})
	return httptest.NewServer(mux)
}

func TestDriver_SubmitsFormThroughClient(t *testing.T) {
	var received map[string]string
	srv := newService(t, &received)
	defer srv.Close()

	c := netmhc.NewClient(formdriver.NewWithClient(srv.Client(), "netmhc-test"), schema.ClassI)
	c.Service.JobURL = srv.URL + "/services/NetMHCpan-4.1/"
	c.Logger = log.New(io.Discard)

	h, err := c.Submit(context.Background(), []string{"RLFIRTGSW", "LFIRTGSWW"}, []string{"HLA-A01:01", "HLA-B07:02"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.ID != "6A1F2B9C00004D2E" {
		t.Fatalf("unexpected job id %q", h.ID)
	}
	want := map[string]string{
		"configfile": "/var/www/services/NetMHCpan-4.1/webface.cf",
		"inp":        "1",
		"PEPPASTE":   "RLFIRTGSW\nLFIRTGSWW",
		"allele":     "HLA-A01:01,HLA-B07:02",
		"BApred":     "on",
		"sort":       "on",
	}
	for k, v := range want {
		if received[k] != v {
			t.Fatalf("field %s = %q, want %q (all: %v)", k, received[k], v, received)
		}
	}
}

func TestDriver_Errors(t *testing.T) {
	var received map[string]string
	srv := newService(t, &received)
	defer srv.Close()

	d := formdriver.NewWithClient(srv.Client(), "")
	if err := d.FillText("PEPPASTE", "x"); err == nil {
		t.Fatalf("expected error before navigation")
	}
	if err := d.Navigate(context.Background(), srv.URL+"/services/NetMHCpan-4.1/"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := d.SelectOption("inp", "7"); err == nil {
		t.Fatalf("expected unknown option error")
	}
	if err := d.FillText("inp", "1"); err == nil {
		t.Fatalf("expected select used as text to fail")
	}
	if err := d.Click(context.Background(), "nope"); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestDriver_NavigateHonoursContext(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d := formdriver.NewWithClient(slow.Client(), "")
	if err := d.Navigate(ctx, slow.URL); err == nil {
		t.Fatalf("expected timeout error")
	}
}

package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/config"
	"netmhc/internal/netmhc"
	"netmhc/internal/schema"
	"netmhc/internal/store"
)

const jobForm = `<html><body>
<form action="/cgi-bin/webface2.fcgi" method="post" enctype="multipart/form-data">
<select name="inp"><option value="0" selected>FASTA</option><option value="1">PEPTIDE</option></select>
<textarea name="PEPPASTE"></textarea>
<input type="text" name="allele" value="">
<input type="checkbox" name="BApred">
<input type="submit" value="Submit">
</form>
</body></html>`

const resultPage = `<html><body><pre>
---------------------------------------------------------------------------------------------------------------------------
 Pos         MHC        Peptide      Core Of Gp Gl Ip Il        Icore        Identity  Score_EL %Rank_EL Score_BA %Rank_BA  Aff(nM) BindLevel
---------------------------------------------------------------------------------------------------------------------------
   1 HLA-A*02:01      RLFIRTGSW RLFIRTGSW  0  0  0  0  0    RLFIRTGSW         PEPLIST 0.0123450    5.123 0.123456    8.456  2345.67
   2 HLA-A*02:01      LFIRTGSWW LFIRTGSWW  0  0  0  0  0    LFIRTGSWW         PEPLIST 0.8123450    0.123 0.723456    0.256    23.45 &lt;= SB
</pre></body></html>`

// fakeService serves the job form, accepts the post and answers the results
// query with a queued page until readyAfter queries have been made.
func fakeService(t *testing.T, readyAfter int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var queries atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/services/NetMHCpan-4.1/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, jobForm)
	})
	mux.HandleFunc("/cgi-bin/webface2.fcgi", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cgi-bin/webface2.fcgi/wait?jobid=JOB42AB&wait=20", http.StatusFound)
	})
	mux.HandleFunc("/cgi-bin/webface2.fcgi/wait", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body>queued</body></html>")
	})
	mux.HandleFunc("/cgi-bin/webface2.cgi", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("jobid") != "JOB42AB" {
			http.NotFound(w, r)
			return
		}
		if queries.Add(1) < readyAfter {
			_, _ = io.WriteString(w, "<html><body>Job is running</body></html>")
			return
		}
		_, _ = io.WriteString(w, resultPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &queries
}

func newRunner(t *testing.T, srv *httptest.Server, st store.Store) *Runner {
	t.Helper()
	cfg := config.Defaults()
	cfg.JobURL = srv.URL + "/services/NetMHCpan-4.1/"
	cfg.ResultsURL = srv.URL + "/cgi-bin/webface2.cgi"
	cfg.ResultsDir = filepath.Join(t.TempDir(), "results")
	r := New(&cfg, schema.ClassI, st, log.New(io.Discard))
	r.Poller.Interval = time.Millisecond
	return r
}

func TestRunner_RunRecordsAndPersists(t *testing.T) {
	srv, queries := fakeService(t, 3)
	st, err := store.Open("json", filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	r := newRunner(t, srv, st)
	ctx := context.Background()

	h, tbl, err := r.Run(ctx, []string{"RLFIRTGSW", "LFIRTGSWW"}, []string{"HLA-A02:01"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.ID != "JOB42AB" || tbl.Len() != 2 {
		t.Fatalf("unexpected result %q with %d rows", h.ID, tbl.Len())
	}
	if got := queries.Load(); got != 3 {
		t.Fatalf("expected 3 results queries, got %d", got)
	}
	if _, err := os.Stat(r.ResultPath(h.ID)); err != nil {
		t.Fatalf("table not persisted: %v", err)
	}

	j, err := st.Get(ctx, "JOB42AB")
	if err != nil {
		t.Fatalf("job not recorded: %v", err)
	}
	if j.State != store.StateReady || j.Peptides != 2 || j.Class != "I" {
		t.Fatalf("unexpected job record %+v", j)
	}

	// a second wait is served from the persisted table
	again, err := r.Await(ctx, r.Handle(ctx, "JOB42AB"))
	if err != nil {
		t.Fatalf("await cached: %v", err)
	}
	if again.Len() != 2 || queries.Load() != 3 {
		t.Fatalf("expected cached table without new queries, rows=%d queries=%d", again.Len(), queries.Load())
	}
}

func TestRunner_TimeoutMarksJob(t *testing.T) {
	srv, _ := fakeService(t, 1<<30)
	st, err := store.Open("json", filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	r := newRunner(t, srv, st)
	r.Poller.Ceiling = 20 * time.Millisecond
	ctx := context.Background()

	h, err := r.Submit(ctx, []string{"RLFIRTGSW"}, []string{"HLA-A02:01"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.Await(ctx, h); !errors.Is(err, netmhc.ErrPollTimedOut) {
		t.Fatalf("expected poll timeout, got %v", err)
	}
	j, _ := st.Get(ctx, h.ID)
	if j.State != store.StateTimedOut {
		t.Fatalf("expected timed_out, got %+v", j)
	}
}

func TestRunner_HandleWithoutStore(t *testing.T) {
	srv, _ := fakeService(t, 1)
	r := newRunner(t, srv, nil)
	h := r.Handle(context.Background(), "XYZ")
	if h.ID != "XYZ" || h.Class != schema.ClassI {
		t.Fatalf("unexpected handle %+v", h)
	}
}

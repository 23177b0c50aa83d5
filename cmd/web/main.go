package main

import (
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/config"
	"netmhc/internal/listfile"
	"netmhc/internal/logging"
	"netmhc/internal/schema"
	"netmhc/internal/store"
	"netmhc/internal/table"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultThreshold = 500

// JobsPage is the data behind the index page.
type JobsPage struct {
	Jobs      []store.Job
	Threshold float64
}

// HitJSON is one hit as served by /jobs/{id}/hits.
type HitJSON struct {
	Peptide      string   `json:"peptide"`
	Allele       string   `json:"allele"`
	AffinityNM   float64  `json:"affinity_nm"`
	ScoreBA      *float64 `json:"score_ba,omitempty"`
	FullSequence string   `json:"full_sequence,omitempty"`
}

type server struct {
	store     store.Store
	templates *template.Template
	logger    *log.Logger
	// full sequences used to report hit origins
	full []string
}

func newServer(st store.Store, logger *log.Logger, full []string) (*server, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return &server{store: st, templates: t, logger: logger, full: full}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /jobs", s.jobsHandler)
	mux.HandleFunc("GET /jobs/{id}", s.jobHandler)
	mux.HandleFunc("GET /jobs/{id}/hits", s.hitsHandler)
	mux.HandleFunc("GET /jobs/{id}/table", s.tableHandler)
	return loggingMiddleware(s.logger, mux)
}

// statusResponseWriter captures status and bytes written for logging
type statusResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// loggingMiddleware logs each request with method, path, status, size and duration
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(srw, r)
		if srw.status == 0 {
			srw.status = http.StatusOK
		}
		logger.Info("request", "remote", r.RemoteAddr, "method", r.Method, "uri", r.URL.RequestURI(),
			"status", srw.status, "bytes", srw.written, "duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) indexHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Warn("failed to list jobs for index", "err", err)
	}
	page := JobsPage{Jobs: jobs, Threshold: defaultThreshold}
	if err := s.templates.ExecuteTemplate(w, "jobs.html", page); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := jobs[:0]
		for _, j := range jobs {
			if j.State == state {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, jobs)
}

// lookup resolves the {id} path value, writing the error response itself.
func (s *server) lookup(w http.ResponseWriter, r *http.Request) (store.Job, bool) {
	j, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
		} else {
			http.Error(w, "failed to read job store", http.StatusInternalServerError)
		}
		return store.Job{}, false
	}
	return j, true
}

func (s *server) jobHandler(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, j)
}

// loadTable reads the persisted table of j, writing the error response
// itself. A job without a table yet is a conflict, not a missing resource.
func (s *server) loadTable(w http.ResponseWriter, j store.Job) (*table.Table, bool) {
	class, err := schema.ParseClass(j.Class)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	t, ok, err := table.LoadFile(j.ResultPath, schema.For(class))
	if err != nil {
		s.logger.Warn("failed to read persisted table", "job_id", j.RemoteID, "path", j.ResultPath, "err", err)
		http.Error(w, "failed to read results", http.StatusInternalServerError)
		return nil, false
	}
	if !ok {
		http.Error(w, fmt.Sprintf("no results for job %s (state %s)", j.RemoteID, j.State), http.StatusConflict)
		return nil, false
	}
	return t, true
}

func (s *server) hitsHandler(w http.ResponseWriter, r *http.Request) {
	threshold := float64(defaultThreshold)
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			http.Error(w, "threshold must be a positive number", http.StatusBadRequest)
			return
		}
		threshold = f
	}
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	t, ok := s.loadTable(w, j)
	if !ok {
		return
	}
	hits := table.Hits(t, threshold, s.full)
	out := make([]HitJSON, 0, len(hits))
	for _, h := range hits {
		aff, _ := h.Affinity.Number()
		hj := HitJSON{Peptide: h.Peptide, Allele: h.Allele, AffinityNM: aff, FullSequence: h.FullSequence}
		if sc, ok := h.ScoreBA.Number(); ok {
			hj.ScoreBA = &sc
		}
		out = append(out, hj)
	}
	writeJSON(w, out)
}

func (s *server) tableHandler(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(w, r)
	if !ok {
		return
	}
	t, ok := s.loadTable(w, j)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.RemoteID+".csv"))
	if err := table.WriteCSV(w, t); err != nil {
		s.logger.Warn("failed to stream table", "job_id", j.RemoteID, "err", err)
	}
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	fullFlag := flag.String("full", "", "file of full sequences, one per line, for hit origins")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger, closeLog := logging.New(logging.Options{LogFile: cfg.LogFile, Level: cfg.LogLevel, Verbose: *verbose, Prefix: "web"})
	defer closeLog()

	st, err := store.Open(cfg.JobStore, cfg.JobStorePath)
	if err != nil {
		logger.Fatal("failed to open job store", "kind", cfg.JobStore, "path", cfg.JobStorePath, "err", err)
	}
	defer st.Close()

	var full []string
	if *fullFlag != "" {
		if full, err = listfile.ReadFile(*fullFlag); err != nil {
			logger.Fatal("failed to read full sequences", "path", *fullFlag, "err", err)
		}
	}

	s, err := newServer(st, logger, full)
	if err != nil {
		logger.Fatal("failed to start", "err", err)
	}
	srv := &http.Server{Addr: *addr, Handler: s.routes(), ReadTimeout: 5 * time.Second, WriteTimeout: 30 * time.Second}
	logger.Info("serving jobs", "addr", *addr, "job_store", cfg.JobStore, "job_store_path", cfg.JobStorePath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", "err", err)
	}
}

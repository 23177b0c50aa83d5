package app

// Package app wires the job client, poller, job store and results cache
// together for the command-line tools.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/config"
	"netmhc/internal/formdriver"
	"netmhc/internal/netmhc"
	"netmhc/internal/schema"
	"netmhc/internal/store"
	"netmhc/internal/table"
)

// Runner submits a batch and waits for its table.
type Runner struct {
	Class  schema.Class
	Client *netmhc.Client
	Poller *netmhc.Poller
	// Store may be nil, in which case jobs are not recorded.
	Store      store.Store
	ResultsDir string
	// Overwrite replaces an existing persisted table.
	Overwrite bool
	Logger    *log.Logger
}

// New builds a runner for class from cfg, talking to the live service over
// HTTP.
func New(cfg *config.Config, class schema.Class, st store.Store, logger *log.Logger) *Runner {
	svc := netmhc.ServiceFor(class)
	if cfg.JobURL != "" {
		svc.JobURL = cfg.JobURL
	}
	if cfg.ResultsURL != "" {
		svc.ResultsURL = cfg.ResultsURL
	}
	client := &netmhc.Client{
		Driver:          formdriver.New(cfg.UserAgent),
		Service:         svc,
		PageLoadTimeout: cfg.PageLoadTimeout(),
		Logger:          logger,
	}
	poller := &netmhc.Poller{
		Fetcher: &netmhc.HTTPFetcher{
			ResultsURL: svc.ResultsURL,
			UserAgent:  cfg.UserAgent,
			Client:     &http.Client{Timeout: cfg.RequestTimeout()},
		},
		Interval: cfg.PollInterval(),
		Ceiling:  cfg.PollCeiling(),
		Mode:     table.ParseMode(cfg.ParseMode),
		Logger:   logger,
	}
	return &Runner{
		Class:      class,
		Client:     client,
		Poller:     poller,
		Store:      st,
		ResultsDir: cfg.ResultsDir,
		Logger:     logger,
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// ResultPath is where the table of jobID is persisted.
func (r *Runner) ResultPath(jobID string) string {
	return filepath.Join(r.ResultsDir, jobID+".csv")
}

// Submit sends the batch and records the job.
func (r *Runner) Submit(ctx context.Context, peptides, alleles []string) (netmhc.JobHandle, error) {
	h, err := r.Client.Submit(ctx, peptides, alleles)
	if err != nil {
		return netmhc.JobHandle{}, err
	}
	if r.Store != nil {
		j := store.NewJob(h.ID, h.Class.String(), len(peptides), alleles, h.SubmittedAt)
		j.ResultPath = r.ResultPath(h.ID)
		if err := r.Store.Put(ctx, j); err != nil {
			r.logger().Warn("failed to record job", "job_id", h.ID, "err", err)
		}
	}
	return h, nil
}

// Handle returns the handle of a previously submitted job. Jobs unknown to
// the store are assumed to be of the runner's class.
func (r *Runner) Handle(ctx context.Context, jobID string) netmhc.JobHandle {
	h := netmhc.JobHandle{ID: jobID, Class: r.Class}
	if r.Store == nil {
		return h
	}
	j, err := r.Store.Get(ctx, jobID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.logger().Warn("job store lookup failed", "job_id", jobID, "err", err)
		}
		return h
	}
	if c, err := schema.ParseClass(j.Class); err == nil {
		h.Class = c
	}
	h.ID = j.RemoteID
	h.SubmittedAt = j.SubmittedAt
	return h
}

// Await returns the table of h: from the persisted file when present,
// otherwise by polling the service and persisting the result.
func (r *Runner) Await(ctx context.Context, h netmhc.JobHandle) (*table.Table, error) {
	lg := r.logger()
	path := r.ResultPath(h.ID)
	if !r.Overwrite {
		t, ok, err := table.LoadFile(path, schema.For(h.Class))
		if err != nil {
			lg.Warn("ignoring unreadable persisted table", "path", path, "err", err)
		} else if ok {
			lg.Info("using persisted table", "job_id", h.ID, "path", path, "rows", t.Len())
			return t, nil
		}
	}

	p := *r.Poller
	p.OnState = func(h netmhc.JobHandle, s netmhc.State) {
		r.setState(ctx, h.ID, s.String(), "")
	}
	start := time.Now()
	t, err := p.Poll(ctx, h)
	if err != nil {
		if netmhc.Retryable(err) {
			r.setState(ctx, h.ID, store.StateTimedOut, err.Error())
		} else {
			r.setState(ctx, h.ID, store.StateFailed, err.Error())
		}
		return nil, err
	}
	lg.Debug("poll finished", "job_id", h.ID, "duration_ms", time.Since(start).Milliseconds())

	wrote, err := table.SaveFile(path, t, r.Overwrite)
	if err != nil {
		return t, fmt.Errorf("persist table: %w", err)
	}
	if wrote {
		lg.Info("wrote table", "path", path, "rows", t.Len())
	}
	return t, nil
}

// Run submits peptides × alleles and waits for the table.
func (r *Runner) Run(ctx context.Context, peptides, alleles []string) (netmhc.JobHandle, *table.Table, error) {
	h, err := r.Submit(ctx, peptides, alleles)
	if err != nil {
		return netmhc.JobHandle{}, nil, err
	}
	t, err := r.Await(ctx, h)
	return h, t, err
}

func (r *Runner) setState(ctx context.Context, jobID, state, msg string) {
	if r.Store == nil {
		return
	}
	if err := store.SetState(ctx, r.Store, jobID, state, msg); err != nil && !errors.Is(err, store.ErrNotFound) {
		r.logger().Warn("failed to update job state", "job_id", jobID, "state", state, "err", err)
	}
}

package netmhc

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"netmhc/internal/schema"
	"netmhc/internal/table"
)

// State is a step of the poll state machine.
type State int

const (
	StateSubmitted State = iota
	StatePolling
	StateReady
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateReady:
		return "ready"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Poller queries the results endpoint until a table appears or the ceiling
// is reached. Polls are spaced by a fixed interval; there is no backoff growth
// and no retry limit other than the ceiling.
type Poller struct {
	Fetcher  Fetcher
	Interval time.Duration
	Ceiling  time.Duration
	Mode     table.Mode
	Logger   *log.Logger
	// OnState, if set, is called on every state change.
	OnState func(h JobHandle, s State)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a poller with the default interval and ceiling.
func NewPoller(f Fetcher) *Poller {
	return &Poller{Fetcher: f, Interval: DefaultPollInterval, Ceiling: DefaultPollCeiling}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll returns the job's table. A returned table may be empty: the job
// finished without rows. When the ceiling passes first Poll returns an error
// matching ErrPollTimedOut and makes no further requests. Transport errors
// during a tick are logged and the loop continues.
func (p *Poller) Poll(ctx context.Context, h JobHandle) (*table.Table, error) {
	now, sleep := p.now, p.sleep
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepCtx
	}
	interval, ceiling := p.Interval, p.Ceiling
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if ceiling <= 0 {
		ceiling = DefaultPollCeiling
	}
	lg := p.Logger
	if lg == nil {
		lg = log.Default()
	}
	s := schema.For(h.Class)

	p.transition(h, StatePolling)
	start := now()
	for tick := 1; ; tick++ {
		body, err := p.Fetcher.Fetch(ctx, h.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lg.Warn("results query failed; will retry", "job_id", h.ID, "tick", tick, "err", err)
		} else if t, ok := table.Parse(body, s, p.Mode); ok {
			p.transition(h, StateReady)
			lg.Info("results ready", "job_id", h.ID, "rows", t.Len(), "waited", now().Sub(start).Round(time.Second))
			return t, nil
		}

		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		// measured from the first tick, not from the last sleep
		elapsed := now().Sub(start)
		if elapsed >= ceiling {
			p.transition(h, StateTimedOut)
			lg.Warn("no results before poll ceiling", "job_id", h.ID, "waited", elapsed.Round(time.Second), "ceiling", ceiling)
			return nil, jobErr(ErrPollTimedOut, "poll", h.ID, nil)
		}
		lg.Debug("waiting for results", "job_id", h.ID, "waited", elapsed.Round(time.Second))
	}
}

func (p *Poller) transition(h JobHandle, s State) {
	if p.OnState != nil {
		p.OnState(h, s)
	}
}

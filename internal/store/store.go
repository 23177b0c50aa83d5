package store

// Package store keeps a local record of submitted prediction jobs and their
// poll state, so a poll that ran out of time can be resumed later.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no job matches.
var ErrNotFound = errors.New("job not found")

// Job states mirror the poll state machine.
const (
	StateSubmitted = "submitted"
	StatePolling   = "polling"
	StateReady     = "ready"
	StateTimedOut  = "timed_out"
	StateFailed    = "failed"
)

// Job is one submitted batch.
type Job struct {
	ID          string    `json:"id"`
	RemoteID    string    `json:"remote_id"`
	Class       string    `json:"class"`
	State       string    `json:"state"`
	Message     string    `json:"message,omitempty"`
	Peptides    int       `json:"peptides"`
	Alleles     string    `json:"alleles"`
	ResultPath  string    `json:"result_path,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists jobs.
type Store interface {
	Put(ctx context.Context, j Job) error
	// Get looks a job up by local id or remote job id.
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context) ([]Job, error)
	Close() error
}

// NewJob returns a job record with a fresh local id.
func NewJob(remoteID, class string, peptides int, alleles []string, submittedAt time.Time) Job {
	return Job{
		ID:          uuid.NewString(),
		RemoteID:    remoteID,
		Class:       class,
		State:       StateSubmitted,
		Peptides:    peptides,
		Alleles:     strings.Join(alleles, ","),
		SubmittedAt: submittedAt.UTC(),
		UpdatedAt:   submittedAt.UTC(),
	}
}

// SetState updates the state of job id (local or remote) and stamps it.
func SetState(ctx context.Context, s Store, id, state, message string) error {
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	j.State = state
	j.Message = message
	j.UpdatedAt = time.Now().UTC()
	return s.Put(ctx, j)
}

// Open returns a store of the given kind ("sqlite" or "json") at path.
func Open(kind, path string) (Store, error) {
	switch strings.ToLower(kind) {
	case "sqlite", "":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "json":
		return OpenJSON(path), nil
	}
	return nil, fmt.Errorf("unknown job store %q (want sqlite or json)", kind)
}

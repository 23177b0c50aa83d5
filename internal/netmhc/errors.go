package netmhc

import (
	"errors"
	"fmt"
)

var (
	ErrTooManyPeptides = errors.New("too many peptides")
	ErrTooManyAlleles  = errors.New("too many alleles")
	ErrPageLoadTimeout = errors.New("page load timed out")
	ErrJobIDNotFound   = errors.New("job id not found in redirect")
	// ErrPollTimedOut is recoverable: the job may still finish, poll again later.
	ErrPollTimedOut = errors.New("no result before poll ceiling")
)

// JobError wraps one of the sentinel errors above with the operation and job
// that produced it.
type JobError struct {
	Kind  error
	Op    string
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op + ": " + e.Kind.Error()
	if e.JobID != "" {
		msg = fmt.Sprintf("%s (job %s)", msg, e.JobID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *JobError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func jobErr(kind error, op, jobID string, cause error) error {
	return &JobError{Kind: kind, Op: op, JobID: jobID, Err: cause}
}

// Retryable reports whether err means "poll again later" rather than
// "resubmit" or "give up".
func Retryable(err error) bool {
	return errors.Is(err, ErrPollTimedOut)
}

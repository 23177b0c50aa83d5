package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// JSON keeps jobs in a single JSON file, rewritten on every Put.
type JSON struct {
	mu   sync.Mutex
	path string
}

// OpenJSON uses the file at path; it is created on first Put.
func OpenJSON(path string) *JSON {
	return &JSON{path: path}
}

func (s *JSON) load() ([]Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return jobs, nil
}

func (s *JSON) save(jobs []Job) error {
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (s *JSON) Put(_ context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range jobs {
		if jobs[i].ID == j.ID {
			jobs[i] = j
			replaced = true
			break
		}
	}
	if !replaced {
		jobs = append(jobs, j)
	}
	return s.save(jobs)
}

func (s *JSON) Get(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return Job{}, err
	}
	var found *Job
	for i := range jobs {
		j := &jobs[i]
		if j.ID != id && j.RemoteID != id {
			continue
		}
		if found == nil || j.SubmittedAt.After(found.SubmittedAt) {
			found = j
		}
	}
	if found == nil {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *found, nil
}

func (s *JSON) List(_ context.Context) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(a, b int) bool { return jobs[a].SubmittedAt.After(jobs[b].SubmittedAt) })
	return jobs, nil
}

func (s *JSON) Close() error { return nil }

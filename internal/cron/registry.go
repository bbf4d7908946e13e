package cron

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Job is a scheduled task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in registration order. Names label metrics and log
// lines, so they must be unique and non-blank.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry registers every job and reports all rejected ones together.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{index: map[string]int{}}
	var errs error
	for _, job := range jobs {
		errs = multierr.Append(errs, r.Register(job))
	}
	return r, errs
}

// Register adds job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if r.index == nil {
		r.index = map[string]int{}
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron job %q already registered", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Lookup(name string) (Job, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.jobs[i], true
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

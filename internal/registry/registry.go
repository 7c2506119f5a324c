// Package registry owns the in-memory collection of scraping job definitions.
package registry

import (
	"sync"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Registry maps job IDs to job definitions. All access goes through the
// exported methods; the map is never shared. Reads take the read lock only,
// so lookups from the API surface and the trigger engine never contend with
// each other.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]property.ScrapingJob
	idGen property.IDGenerator
	clock property.Clock
}

// New constructs an empty Registry.
func New(idGen property.IDGenerator, clock property.Clock) *Registry {
	return &Registry{
		jobs:  make(map[string]property.ScrapingJob),
		idGen: idGen,
		clock: clock,
	}
}

// Add inserts a job, generating an ID when the caller supplied none, and
// returns the assigned ID. Adding an ID that already exists fails with
// property.ErrJobExists.
func (r *Registry) Add(job property.ScrapingJob) (string, error) {
	if job.ID == "" {
		id, err := r.idGen.NewID()
		if err != nil {
			return "", err
		}
		job.ID = id
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return "", property.ErrJobExists
	}
	r.jobs[job.ID] = job
	return job.ID, nil
}

// Get returns the job for the given ID.
func (r *Registry) Get(id string) (property.ScrapingJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return property.ScrapingJob{}, property.ErrJobNotFound
	}
	return job, nil
}

// List returns all jobs, inactive ones included. Deactivation is not
// deletion.
func (r *Registry) List() []property.ScrapingJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]property.ScrapingJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out
}

// Update replaces the stored job wholesale. There is no partial field merge.
func (r *Registry) Update(id string, job property.ScrapingJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return property.ErrJobNotFound
	}
	job.ID = id
	r.jobs[id] = job
	return nil
}

// Deactivate clears the active flag. The job stays listed and its definition
// is untouched otherwise.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return property.ErrJobNotFound
	}
	job.Active = false
	r.jobs[id] = job
	return nil
}

// RecordRun stamps LastRun for the given job. Missing jobs are ignored; a
// run may legitimately outlive its definition.
func (r *Registry) RecordRun(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	now := r.clock.Now()
	job.LastRun = &now
	r.jobs[id] = job
}

// Counts reports the total and active job counts for the stats surface.
func (r *Registry) Counts() (total, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total = len(r.jobs)
	for _, job := range r.jobs {
		if job.Active {
			active++
		}
	}
	return total, active
}

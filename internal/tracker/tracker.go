// Package tracker records run results and aggregate counters in memory.
package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Tracker holds the most recent result per job plus a bounded per-job
// history. Results are published as complete values under the write lock, so
// a reader never observes a half-written entry. History entries are ordered
// by run start time; when a manual trigger overlaps a scheduled tick for the
// same job, "latest" is last-writer-wins but both runs survive in history.
type Tracker struct {
	mu         sync.RWMutex
	latest     map[string]property.ScrapingResult
	history    map[string][]property.ScrapingResult
	keepPerJob int

	totalRuns      int
	successfulRuns int
}

// DefaultKeepPerJob bounds per-job history when no retention is configured.
const DefaultKeepPerJob = 20

// New constructs a Tracker retaining up to keepPerJob results per job.
func New(keepPerJob int) *Tracker {
	if keepPerJob <= 0 {
		keepPerJob = DefaultKeepPerJob
	}
	return &Tracker{
		latest:     make(map[string]property.ScrapingResult),
		history:    make(map[string][]property.ScrapingResult),
		keepPerJob: keepPerJob,
	}
}

// Publish records a terminal run result. The run counters are monotonic, so
// pruning history never distorts the stats surface.
func (t *Tracker) Publish(result property.ScrapingResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest[result.JobID] = result
	hist := append(t.history[result.JobID], result)
	sort.SliceStable(hist, func(i, j int) bool {
		return hist[i].StartedAt.Before(hist[j].StartedAt)
	})
	if len(hist) > t.keepPerJob {
		hist = hist[len(hist)-t.keepPerJob:]
	}
	t.history[result.JobID] = hist

	t.totalRuns++
	if result.Status == property.RunStatusCompleted {
		t.successfulRuns++
	}
}

// Result returns the most recent result for a job.
func (t *Tracker) Result(jobID string) (property.ScrapingResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result, ok := t.latest[jobID]
	if !ok {
		return property.ScrapingResult{}, property.ErrResultNotFound
	}
	return result, nil
}

// History returns the retained results for a job, oldest first.
func (t *Tracker) History(jobID string) []property.ScrapingResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	hist := t.history[jobID]
	out := make([]property.ScrapingResult, len(hist))
	copy(out, hist)
	return out
}

// Results returns the latest result of every job, most recently finished
// first, optionally capped at limit (limit <= 0 means no cap).
func (t *Tracker) Results(limit int) []property.ScrapingResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]property.ScrapingResult, 0, len(t.latest))
	for _, result := range t.latest {
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool {
		return finishedAt(out[i]).After(finishedAt(out[j]))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RunCounts reports the monotonic run counters.
func (t *Tracker) RunCounts() (total, successful int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalRuns, t.successfulRuns
}

// Prune trims every job's history down to keepPerJob entries, dropping the
// oldest. Latest results and run counters are untouched.
func (t *Tracker) Prune(keepPerJob int) {
	if keepPerJob <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for jobID, hist := range t.history {
		if len(hist) > keepPerJob {
			t.history[jobID] = hist[len(hist)-keepPerJob:]
		}
	}
}

func finishedAt(result property.ScrapingResult) time.Time {
	if result.CompletedAt != nil {
		return *result.CompletedAt
	}
	return result.StartedAt
}

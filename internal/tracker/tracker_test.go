package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quseop/property-ci-scraper/internal/property"
)

func resultAt(jobID string, status property.RunStatus, started time.Time) property.ScrapingResult {
	completed := started.Add(time.Second)
	return property.ScrapingResult{
		JobID:       jobID,
		Status:      status,
		StartedAt:   started,
		CompletedAt: &completed,
	}
}

func TestTracker_PublishAndResult(t *testing.T) {
	t.Parallel()

	trk := New(0)
	base := time.Unix(1000, 0).UTC()

	trk.Publish(resultAt("job-a", property.RunStatusCompleted, base))
	trk.Publish(resultAt("job-a", property.RunStatusFailed, base.Add(time.Minute)))

	latest, err := trk.Result("job-a")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if latest.Status != property.RunStatusFailed {
		t.Errorf("latest status = %q, want failed", latest.Status)
	}

	if _, err := trk.Result("unknown"); !errors.Is(err, property.ErrResultNotFound) {
		t.Fatalf("err = %v, want ErrResultNotFound", err)
	}
}

func TestTracker_HistoryOrderedByStart(t *testing.T) {
	t.Parallel()

	trk := New(0)
	base := time.Unix(1000, 0).UTC()

	// Published out of order: an overlapping manual run can finish first.
	trk.Publish(resultAt("job-a", property.RunStatusCompleted, base.Add(2*time.Minute)))
	trk.Publish(resultAt("job-a", property.RunStatusCompleted, base))
	trk.Publish(resultAt("job-a", property.RunStatusCompleted, base.Add(time.Minute)))

	hist := trk.History("job-a")
	if len(hist) != 3 {
		t.Fatalf("history = %d entries, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].StartedAt.Before(hist[i-1].StartedAt) {
			t.Fatalf("history not ordered by start time: %v before %v",
				hist[i].StartedAt, hist[i-1].StartedAt)
		}
	}
}

func TestTracker_HistoryBounded(t *testing.T) {
	t.Parallel()

	trk := New(3)
	base := time.Unix(1000, 0).UTC()
	for i := 0; i < 5; i++ {
		trk.Publish(resultAt("job-a", property.RunStatusCompleted, base.Add(time.Duration(i)*time.Minute)))
	}

	hist := trk.History("job-a")
	if len(hist) != 3 {
		t.Fatalf("history = %d entries, want 3", len(hist))
	}
	if !hist[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("oldest retained = %v, want the 3rd run", hist[0].StartedAt)
	}

	// Counters survive pruning.
	total, successful := trk.RunCounts()
	if total != 5 || successful != 5 {
		t.Fatalf("counts = %d/%d, want 5/5", total, successful)
	}
}

func TestTracker_RunCounts(t *testing.T) {
	t.Parallel()

	trk := New(0)
	base := time.Unix(1000, 0).UTC()
	trk.Publish(resultAt("job-a", property.RunStatusCompleted, base))
	trk.Publish(resultAt("job-a", property.RunStatusFailed, base.Add(time.Minute)))
	trk.Publish(resultAt("job-b", property.RunStatusCompleted, base))

	total, successful := trk.RunCounts()
	if total != 3 || successful != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", total, successful)
	}
}

func TestTracker_ResultsSortedAndLimited(t *testing.T) {
	t.Parallel()

	trk := New(0)
	base := time.Unix(1000, 0).UTC()
	for i := 0; i < 4; i++ {
		trk.Publish(resultAt(fmt.Sprintf("job-%d", i), property.RunStatusCompleted, base.Add(time.Duration(i)*time.Minute)))
	}

	results := trk.Results(2)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].JobID != "job-3" || results[1].JobID != "job-2" {
		t.Fatalf("results order = %s, %s", results[0].JobID, results[1].JobID)
	}

	all := trk.Results(0)
	if len(all) != 4 {
		t.Fatalf("results uncapped = %d, want 4", len(all))
	}
}

func TestTracker_Prune(t *testing.T) {
	t.Parallel()

	trk := New(10)
	base := time.Unix(1000, 0).UTC()
	for i := 0; i < 6; i++ {
		trk.Publish(resultAt("job-a", property.RunStatusCompleted, base.Add(time.Duration(i)*time.Minute)))
	}

	trk.Prune(2)
	if got := len(trk.History("job-a")); got != 2 {
		t.Fatalf("history after prune = %d, want 2", got)
	}
	if _, err := trk.Result("job-a"); err != nil {
		t.Fatalf("latest lost after prune: %v", err)
	}
}

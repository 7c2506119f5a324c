package property

import "errors"

// Sentinel errors surfaced across component boundaries. Run-level and
// per-record failures inside the pipeline are carried in ScrapingResult
// instead; these cover the caller-visible lookup and admission paths.
var (
	// ErrJobNotFound is returned for lookups of unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when adding a job whose ID is already taken.
	ErrJobExists = errors.New("job already exists")

	// ErrResultNotFound is returned when no run has been recorded for a job.
	ErrResultNotFound = errors.New("result not found")

	// ErrListingNotFound is returned by Store lookups for unknown listing IDs.
	ErrListingNotFound = errors.New("listing not found")

	// ErrDuplicateSourceURL signals that a listing with the same source URL
	// is already persisted. The pipeline treats it as success, not failure.
	ErrDuplicateSourceURL = errors.New("duplicate source url")

	// ErrInvalidSchedule rejects malformed cron expressions at job-add time,
	// before any timer is installed.
	ErrInvalidSchedule = errors.New("invalid cron schedule")
)

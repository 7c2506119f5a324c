// Package property defines core types shared across subsystems.
package property

import "time"

// RunStatus represents the lifecycle state of a scraping run.
type RunStatus string

// Run status values published to the result tracker.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SelectorSet holds the CSS selectors used to pull listing fields out of a
// page. Title and Address are required; everything else is optional and a
// missing or non-matching selector simply leaves the field absent.
type SelectorSet struct {
	Title        string  `json:"title" mapstructure:"title"`
	Address      string  `json:"address" mapstructure:"address"`
	Price        *string `json:"price,omitempty" mapstructure:"price"`
	PropertyType *string `json:"property_type,omitempty" mapstructure:"property_type"`
	Bedrooms     *string `json:"bedrooms,omitempty" mapstructure:"bedrooms"`
	Bathrooms    *string `json:"bathrooms,omitempty" mapstructure:"bathrooms"`
	LandSize     *string `json:"land_size,omitempty" mapstructure:"land_size"`
	FloorSize    *string `json:"floor_size,omitempty" mapstructure:"floor_size"`
}

// ScrapingJob is one configured, schedulable unit of work pointing at a
// single target page. The registry owns the canonical copy; executions work
// on value snapshots, so a job edited mid-run never affects an in-flight run.
type ScrapingJob struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	TargetURL string      `json:"target_url"`
	Selectors SelectorSet `json:"selectors"`
	Schedule  string      `json:"schedule"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	LastRun   *time.Time  `json:"last_run,omitempty"`
}

// ScrapingResult is the terminal record of one pipeline run. It is built once
// and immutable after publication.
type ScrapingResult struct {
	JobID             string     `json:"job_id"`
	Status            RunStatus  `json:"status"`
	ListingsPersisted int        `json:"listings_persisted"`
	Errors            []string   `json:"errors"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	SnapshotURI       string     `json:"snapshot_uri,omitempty"`
}

// NewListing is the unpersisted candidate record produced by extraction.
// Optional fields stay nil when the page did not yield them, so downstream
// consumers can tell "not observed" from an observed sentinel.
type NewListing struct {
	Title        string    `json:"title"`
	Price        *int64    `json:"price,omitempty"`
	Address      string    `json:"address"`
	Province     string    `json:"province"`
	City         string    `json:"city"`
	Suburb       *string   `json:"suburb,omitempty"`
	PropertyType string    `json:"property_type"`
	Bedrooms     *int      `json:"bedrooms,omitempty"`
	Bathrooms    *int      `json:"bathrooms,omitempty"`
	GarageSpaces *int      `json:"garage_spaces,omitempty"`
	LandSize     *float64  `json:"land_size,omitempty"`
	FloorSize    *float64  `json:"floor_size,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
	SourceURL    string    `json:"source_url"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
}

// Listing is a persisted property record as returned by a Store.
type Listing struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Price        *int64    `json:"price,omitempty"`
	Address      string    `json:"address"`
	Province     string    `json:"province"`
	City         string    `json:"city"`
	Suburb       *string   `json:"suburb,omitempty"`
	PropertyType string    `json:"property_type"`
	Bedrooms     *int      `json:"bedrooms,omitempty"`
	Bathrooms    *int      `json:"bathrooms,omitempty"`
	GarageSpaces *int      `json:"garage_spaces,omitempty"`
	LandSize     *float64  `json:"land_size,omitempty"`
	FloorSize    *float64  `json:"floor_size,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
	SourceURL    string    `json:"source_url"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
}

// Stats aggregates registry and tracker counters for the reporting surface.
type Stats struct {
	TotalJobs      int `json:"total_jobs"`
	ActiveJobs     int `json:"active_jobs"`
	TotalRuns      int `json:"total_runs"`
	SuccessfulRuns int `json:"successful_runs"`
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// RunEvent is published after each run so downstream consumers (export,
// feature pipelines) can react without polling the tracker.
type RunEvent struct {
	JobID             string    `json:"job_id"`
	JobName           string    `json:"job_name"`
	Status            RunStatus `json:"status"`
	ListingsPersisted int       `json:"listings_persisted"`
	Trigger           string    `json:"trigger"`
	StartedAt         time.Time `json:"started_at"`
}

package property

import (
	"context"
	"time"
)

// Store persists listings. Create returns ErrDuplicateSourceURL when a
// listing with the same source URL already exists; callers treat that as a
// no-op, not a failure.
type Store interface {
	Create(ctx context.Context, listing NewListing) (Listing, error)
	FindAll(ctx context.Context) ([]Listing, error)
	FindByID(ctx context.Context, id string) (Listing, error)
}

// Fetcher retrieves raw markup for a target URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Geocoder resolves an address to coordinates. Implementations may return
// (nil, nil, nil) when no coordinates are available.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon *float64, err error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for snapshot naming and deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and listing IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

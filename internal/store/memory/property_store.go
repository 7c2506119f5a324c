// Package memory provides an in-memory Store implementation for development
// and testing.
package memory

import (
	"context"
	"sync"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Store keeps listings in a map with a source-URL unique index, mirroring
// the unique constraint the Postgres store relies on.
type Store struct {
	mu          sync.RWMutex
	listings    map[string]property.Listing
	bySourceURL map[string]string
	idGen       property.IDGenerator
}

// New constructs a Store.
func New(idGen property.IDGenerator) *Store {
	return &Store{
		listings:    make(map[string]property.Listing),
		bySourceURL: make(map[string]string),
		idGen:       idGen,
	}
}

// Create persists a listing, assigning it an ID. A listing whose source URL
// is already indexed fails with property.ErrDuplicateSourceURL.
func (s *Store) Create(_ context.Context, listing property.NewListing) (property.Listing, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return property.Listing{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySourceURL[listing.SourceURL]; exists {
		return property.Listing{}, property.ErrDuplicateSourceURL
	}

	persisted := property.Listing{
		ID:           id,
		Title:        listing.Title,
		Price:        listing.Price,
		Address:      listing.Address,
		Province:     listing.Province,
		City:         listing.City,
		Suburb:       listing.Suburb,
		PropertyType: listing.PropertyType,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		GarageSpaces: listing.GarageSpaces,
		LandSize:     listing.LandSize,
		FloorSize:    listing.FloorSize,
		ScrapedAt:    listing.ScrapedAt,
		SourceURL:    listing.SourceURL,
		Latitude:     listing.Latitude,
		Longitude:    listing.Longitude,
	}
	s.listings[id] = persisted
	s.bySourceURL[listing.SourceURL] = id
	return persisted, nil
}

// FindAll returns every persisted listing.
func (s *Store) FindAll(_ context.Context) ([]property.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]property.Listing, 0, len(s.listings))
	for _, listing := range s.listings {
		out = append(out, listing)
	}
	return out, nil
}

// FindByID fetches one listing.
func (s *Store) FindByID(_ context.Context, id string) (property.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.listings[id]
	if !ok {
		return property.Listing{}, property.ErrListingNotFound
	}
	return listing, nil
}

// Package export renders stored listings as CSV or JSON, including an
// ML-ready dataset with engineered features.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Format selects the export encoding.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ContentType returns the HTTP content type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Service exports listings read from a property.Store.
type Service struct {
	store  property.Store
	logger *zap.Logger
}

// New constructs a Service.
func New(store property.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Export renders all stored listings in the requested format.
func (s *Service) Export(ctx context.Context, format Format) ([]byte, error) {
	listings, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("no listings to export")
	}
	s.logger.Info("exporting listings", zap.Int("count", len(listings)), zap.String("format", string(format)))

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(listings, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal listings: %w", err)
		}
		return data, nil
	case FormatCSV:
		return listingsCSV(listings)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func listingsCSV(listings []property.Listing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id", "title", "price", "address", "province", "city", "suburb",
		"property_type", "bedrooms", "bathrooms", "garage_spaces",
		"land_size", "floor_size", "source_url", "latitude", "longitude",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, l := range listings {
		record := []string{
			l.ID,
			l.Title,
			int64String(l.Price),
			l.Address,
			l.Province,
			l.City,
			stringOrEmpty(l.Suburb),
			l.PropertyType,
			intString(l.Bedrooms),
			intString(l.Bathrooms),
			intString(l.GarageSpaces),
			floatString(l.LandSize),
			floatString(l.FloorSize),
			l.SourceURL,
			floatString(l.Latitude),
			floatString(l.Longitude),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// MLDataset renders a feature-engineered CSV suitable for model training.
// Listings without a price are skipped; there is nothing to train on.
func (s *Service) MLDataset(ctx context.Context) ([]byte, error) {
	listings, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id", "price", "price_per_sqm_floor", "price_per_sqm_land",
		"bedrooms", "bathrooms", "garage_spaces", "land_size", "floor_size",
		"property_type_encoded", "province_encoded", "city_encoded",
		"has_suburb", "latitude", "longitude", "price_category",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	rows := 0
	for _, l := range listings {
		if l.Price == nil {
			continue
		}
		price := *l.Price
		record := []string{
			l.ID,
			strconv.FormatInt(price, 10),
			floatString(pricePerSqm(price, l.FloorSize)),
			floatString(pricePerSqm(price, l.LandSize)),
			strconv.Itoa(intOrZero(l.Bedrooms)),
			strconv.Itoa(intOrZero(l.Bathrooms)),
			strconv.Itoa(intOrZero(l.GarageSpaces)),
			floatString(l.LandSize),
			floatString(l.FloorSize),
			strconv.FormatUint(hashEncode(l.PropertyType), 10),
			strconv.FormatUint(hashEncode(l.Province), 10),
			strconv.FormatUint(hashEncode(l.City), 10),
			boolFlag(l.Suburb != nil),
			floatString(l.Latitude),
			floatString(l.Longitude),
			priceCategory(price),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
		rows++
	}
	if rows == 0 {
		return nil, fmt.Errorf("no priced listings for ml dataset export")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	s.logger.Info("exported ml dataset", zap.Int("rows", rows))
	return buf.Bytes(), nil
}

// Stats summarizes export coverage over the stored listings.
type Stats struct {
	TotalListings           int `json:"total_listings"`
	ListingsWithPrice       int `json:"listings_with_price"`
	ListingsWithCoordinates int `json:"listings_with_coordinates"`
	UniqueCities            int `json:"unique_cities"`
	UniqueProvinces         int `json:"unique_provinces"`
}

// GetStats computes export coverage statistics.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	listings, err := s.store.FindAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load listings: %w", err)
	}

	cities := make(map[string]struct{})
	provinces := make(map[string]struct{})
	stats := Stats{TotalListings: len(listings)}
	for _, l := range listings {
		if l.Price != nil {
			stats.ListingsWithPrice++
		}
		if l.Latitude != nil && l.Longitude != nil {
			stats.ListingsWithCoordinates++
		}
		cities[l.City] = struct{}{}
		provinces[l.Province] = struct{}{}
	}
	stats.UniqueCities = len(cities)
	stats.UniqueProvinces = len(provinces)
	return stats, nil
}

// pricePerSqm derives price density; a missing or zero size yields nil.
func pricePerSqm(price int64, size *float64) *float64 {
	if size == nil || *size <= 0 {
		return nil
	}
	v := float64(price) / *size
	return &v
}

// hashEncode maps a categorical value to a stable numeric code.
func hashEncode(value string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(value))
	return h.Sum64()
}

func priceCategory(price int64) string {
	switch {
	case price <= 500_000:
		return "low"
	case price <= 1_000_000:
		return "medium"
	case price <= 2_000_000:
		return "high"
	default:
		return "premium"
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func int64String(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func floatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

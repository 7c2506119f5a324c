// Package extractor turns raw page markup into candidate listings using a
// job's selector set. Extraction is a pure function of (markup, selectors);
// there is no shared state between calls.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	systemclock "github.com/quseop/property-ci-scraper/internal/clock/system"
	"github.com/quseop/property-ci-scraper/internal/property"
)

// UnknownPropertyType is recorded when no property-type selector is
// configured or the element is missing.
const UnknownPropertyType = "unknown"

// UnknownProvince is the sentinel used when an address has no separable
// province component.
const UnknownProvince = "Unknown"

// Extractor parses markup and applies a SelectorSet per container fragment.
type Extractor struct {
	policy   ContainerPolicy
	geocoder property.Geocoder
	clock    property.Clock
	logger   *zap.Logger
}

// New constructs an Extractor. A nil logger is replaced with a nop logger
// and a nil clock with the system clock.
func New(policy ContainerPolicy, geocoder property.Geocoder, clock property.Clock, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = systemclock.New()
	}
	if len(policy.Selectors) == 0 {
		policy = DefaultContainerPolicy()
	}
	return &Extractor{
		policy:   policy,
		geocoder: geocoder,
		clock:    clock,
		logger:   logger,
	}
}

// Extract produces zero or more candidate listings from the markup. A
// container missing its title or address is skipped silently; it is neither
// a record nor an error.
func (e *Extractor) Extract(
	ctx context.Context,
	markup []byte,
	selectors property.SelectorSet,
	sourceURL string,
) ([]property.NewListing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	containers, usedSelector := e.policy.Containers(doc)
	e.logger.Debug("located listing containers",
		zap.Int("count", len(containers)),
		zap.String("selector", usedSelector),
	)

	listings := make([]property.NewListing, 0, len(containers))
	for _, container := range containers {
		listing, ok := e.extractOne(ctx, container, selectors, sourceURL)
		if !ok {
			continue
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (e *Extractor) extractOne(
	ctx context.Context,
	container *goquery.Selection,
	selectors property.SelectorSet,
	sourceURL string,
) (property.NewListing, bool) {
	title := selectText(container, selectors.Title)
	address := selectText(container, selectors.Address)
	if title == "" || address == "" {
		return property.NewListing{}, false
	}

	propertyType := UnknownPropertyType
	if selectors.PropertyType != nil {
		if text := selectText(container, *selectors.PropertyType); text != "" {
			propertyType = text
		}
	}

	province, city, suburb := ParseAddress(address)
	lat, lon := e.geocode(ctx, address)

	return property.NewListing{
		Title:        title,
		Price:        selectInt64(container, selectors.Price),
		Address:      address,
		Province:     province,
		City:         city,
		Suburb:       suburb,
		PropertyType: propertyType,
		Bedrooms:     selectInt(container, selectors.Bedrooms),
		Bathrooms:    selectInt(container, selectors.Bathrooms),
		LandSize:     selectFloat(container, selectors.LandSize),
		FloorSize:    selectFloat(container, selectors.FloorSize),
		ScrapedAt:    e.clock.Now(),
		SourceURL:    sourceURL,
		Latitude:     lat,
		Longitude:    lon,
	}, true
}

func (e *Extractor) geocode(ctx context.Context, address string) (*float64, *float64) {
	if e.geocoder == nil {
		return nil, nil
	}
	lat, lon, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		e.logger.Debug("geocode failed", zap.Error(err))
		return nil, nil
	}
	return lat, lon
}

// selectText concatenates the text content of the first element matched by
// the selector, trimmed. An empty selector or no match yields "".
func selectText(container *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(container.Find(selector).First().Text())
}

// selectInt64 keeps only ASCII digits from the matched text and parses the
// remainder. Prices like "R 1,250,000" become 1250000; unparseable text
// leaves the field absent.
func selectInt64(container *goquery.Selection, selector *string) *int64 {
	if selector == nil {
		return nil
	}
	digits := filterDigits(selectText(container, *selector), false)
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func selectInt(container *goquery.Selection, selector *string) *int {
	if selector == nil {
		return nil
	}
	digits := filterDigits(selectText(container, *selector), false)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

func selectFloat(container *goquery.Selection, selector *string) *float64 {
	if selector == nil {
		return nil
	}
	cleaned := filterDigits(selectText(container, *selector), true)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

func filterDigits(text string, keepDot bool) string {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || (keepDot && r == '.') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAddress splits a free-form address on commas into province, city and
// suburb. One part means only a city, two mean city then province, three or
// more mean suburb first, city second-to-last, province last. Best-effort
// heuristic, not a verified postal parser.
func ParseAddress(address string) (province, city string, suburb *string) {
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		return UnknownProvince, parts[0], nil
	case 2:
		return parts[1], parts[0], nil
	default:
		s := parts[0]
		return parts[len(parts)-1], parts[len(parts)-2], &s
	}
}

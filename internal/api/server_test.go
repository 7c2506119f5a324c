package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/config"
	"github.com/quseop/property-ci-scraper/internal/export"
	"github.com/quseop/property-ci-scraper/internal/extractor"
	"github.com/quseop/property-ci-scraper/internal/pipeline"
	"github.com/quseop/property-ci-scraper/internal/property"
	"github.com/quseop/property-ci-scraper/internal/registry"
	"github.com/quseop/property-ci-scraper/internal/scheduler"
	memorystore "github.com/quseop/property-ci-scraper/internal/store/memory"
	"github.com/quseop/property-ci-scraper/internal/tracker"
)

type fakeIDGen struct {
	prefix string
	next   int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (property.FetchResponse, error) {
	if f.err != nil {
		return property.FetchResponse{}, f.err
	}
	return property.FetchResponse{URL: url, StatusCode: 200, Body: f.body}, nil
}

const listingsPage = `<html><body>
	<div class="property-item">
		<span class="title">Sea View Apartment</span>
		<span class="address">Green Point, Cape Town, Western Cape</span>
		<span class="price">R 2,450,000</span>
	</div>
</body></html>`

type serverFixture struct {
	server  *Server
	store   *memorystore.Store
	fetcher *fakeFetcher
}

func newServerFixture(cfg config.Config) *serverFixture {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	fetcher := &fakeFetcher{body: []byte(listingsPage)}
	store := memorystore.New(&fakeIDGen{prefix: "listing"})
	ext := extractor.New(extractor.ContainerPolicy{}, nil, clock, nil)
	pipe := pipeline.New(fetcher, ext, store, nil, nil, clock, pipeline.Config{}, nil)
	reg := registry.New(&fakeIDGen{prefix: "job"}, clock)
	trk := tracker.New(10)
	sched := scheduler.New(reg, pipe, trk, nil, "", nil)
	exporter := export.New(store, nil)

	return &serverFixture{
		server:  NewServer(reg, sched, trk, store, exporter, cfg, zap.NewNop()),
		store:   store,
		fetcher: fetcher,
	}
}

func (fx *serverFixture) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (fx *serverFixture) createJob(t *testing.T) string {
	t.Helper()
	body := []byte(`{
		"name": "cape-town-listings",
		"target_url": "https://example.com/listings",
		"schedule": "0 0 2 * * *",
		"selectors": {"title": ".title", "address": ".address", "price": ".price"}
	}`)
	rec := fx.do(t, http.MethodPost, "/v1/scraping/jobs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	return resp["job_id"]
}

func TestServer_CreateAndGetJob(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job property.ScrapingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "cape-town-listings", job.Name)
	assert.True(t, job.Active)
}

func TestServer_CreateJobValidation(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})

	rec := fx.do(t, http.MethodPost, "/v1/scraping/jobs", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/scraping/jobs", []byte(`{"schedule":"@hourly","selectors":{"title":".t","address":".a"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "target_url")

	rec = fx.do(t, http.MethodPost, "/v1/scraping/jobs", []byte(`{"target_url":"https://x.example","schedule":"@hourly","selectors":{"title":".t"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "selectors")

	rec = fx.do(t, http.MethodPost, "/v1/scraping/jobs", []byte(`{"target_url":"https://x.example","schedule":"whenever","selectors":{"title":".t","address":".a"}}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid schedule")
}

func TestServer_ListJobs(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	fx.createJob(t)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs []property.ScrapingJob `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
}

func TestServer_GetJobNotFound(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	rec := fx.do(t, http.MethodGet, "/v1/scraping/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeleteJobDeactivates(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)

	rec := fx.do(t, http.MethodDelete, "/v1/scraping/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/v1/scraping/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job property.ScrapingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.False(t, job.Active)

	rec = fx.do(t, http.MethodDelete, "/v1/scraping/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RunJobAndFetchResult(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/jobs/"+jobID+"/result", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result property.ScrapingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, property.RunStatusCompleted, result.Status)
	assert.Equal(t, 1, result.ListingsPersisted)

	rec = fx.do(t, http.MethodGet, "/v1/scraping/jobs/"+jobID+"/result", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodPost, "/v1/scraping/jobs/ghost/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListResults(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)
	fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/results?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []property.ScrapingResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)

	rec = fx.do(t, http.MethodGet, "/v1/scraping/results?limit=banana", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Stats(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)
	fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)
	fx.fetcher.err = fmt.Errorf("target down")
	fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats property.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalJobs)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessfulRuns)
}

func TestServer_Properties(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	jobID := fx.createJob(t)
	fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)

	rec := fx.do(t, http.MethodGet, "/v1/properties", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Listings []property.Listing `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Listings, 1)
	assert.Equal(t, "Sea View Apartment", resp.Listings[0].Title)

	rec = fx.do(t, http.MethodGet, "/v1/properties/"+resp.Listings[0].ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = fx.do(t, http.MethodGet, "/v1/properties/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Export(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})

	rec := fx.do(t, http.MethodPost, "/v1/export", []byte(`{"format":"csv"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	jobID := fx.createJob(t)
	fx.do(t, http.MethodPost, "/v1/scraping/jobs/"+jobID+"/run", nil)

	rec = fx.do(t, http.MethodPost, "/v1/export", []byte(`{"format":"csv"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Sea View Apartment")

	rec = fx.do(t, http.MethodPost, "/v1/export", []byte(`{"format":"json"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = fx.do(t, http.MethodGet, "/v1/export/ml-dataset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ml_dataset.csv")

	rec = fx.do(t, http.MethodGet, "/v1/export/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats export.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalListings)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	rec := fx.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")

	rec = fx.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekrit"
	fx := newServerFixture(cfg)

	rec := fx.do(t, http.MethodGet, "/v1/scraping/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/scraping/jobs", nil)
	req.Header.Set("X-Api-Key", "sekrit")
	rr := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Probes stay open without a key.
	rec = fx.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestIDPropagated(t *testing.T) {
	t.Parallel()

	fx := newServerFixture(config.Config{})
	rec := fx.do(t, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))
}

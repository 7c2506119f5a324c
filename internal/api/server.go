// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/config"
	"github.com/quseop/property-ci-scraper/internal/export"
	"github.com/quseop/property-ci-scraper/internal/metrics"
	"github.com/quseop/property-ci-scraper/internal/property"
	"github.com/quseop/property-ci-scraper/internal/registry"
	"github.com/quseop/property-ci-scraper/internal/scheduler"
	"github.com/quseop/property-ci-scraper/internal/tracker"
)

// Server wires HTTP handlers to the scheduler, registry and stores.
type Server struct {
	router    chi.Router
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	tracker   *tracker.Tracker
	store     property.Store
	exporter  *export.Service
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	reg *registry.Registry,
	sched *scheduler.Scheduler,
	trk *tracker.Tracker,
	store property.Store,
	exporter *export.Service,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:  reg,
		scheduler: sched,
		tracker:   trk,
		store:     store,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scraping", func(r chi.Router) {
			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.listJobs)
				r.Post("/", s.createJob)
				r.Route("/{job_id}", func(r chi.Router) {
					r.Get("/", s.getJob)
					r.Delete("/", s.deleteJob)
					r.Post("/run", s.runJob)
					r.Get("/result", s.getJobResult)
				})
			})
			r.Get("/results", s.listResults)
			r.Get("/stats", s.getStats)
		})
		r.Route("/properties", func(r chi.Router) {
			r.Get("/", s.listProperties)
			r.Get("/{listing_id}", s.getProperty)
		})
		r.Route("/export", func(r chi.Router) {
			r.Post("/", s.exportListings)
			r.Get("/ml-dataset", s.exportMLDataset)
			r.Get("/stats", s.exportStats)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; in future check the DB pool.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.registry.List()})
}

type createJobRequest struct {
	Name      string               `json:"name"`
	TargetURL string               `json:"target_url"`
	Schedule  string               `json:"schedule"`
	Selectors property.SelectorSet `json:"selectors"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.TargetURL == "" {
		writeError(w, http.StatusBadRequest, "target_url required")
		return
	}
	if req.Selectors.Title == "" || req.Selectors.Address == "" {
		writeError(w, http.StatusBadRequest, "title and address selectors required")
		return
	}

	job := property.ScrapingJob{
		Name:      req.Name,
		TargetURL: req.TargetURL,
		Selectors: req.Selectors,
		Schedule:  req.Schedule,
		Active:    true,
	}
	jobID, err := s.scheduler.AddJob(job)
	if err != nil {
		if errors.Is(err, property.ErrInvalidSchedule) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": jobID})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.registry.Get(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.scheduler.RemoveJob(jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "deactivated"})
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := s.scheduler.RunNow(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, property.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := s.tracker.Result(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no results found for job")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": s.tracker.Results(limit)})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Stats())
}

func (s *Server) listProperties(w http.ResponseWriter, r *http.Request) {
	listings, err := s.store.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch listings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *Server) getProperty(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listing_id")
	listing, err := s.store.FindByID(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, property.ErrListingNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

type exportRequest struct {
	Format string `json:"format"`
}

func (s *Server) exportListings(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	format := export.Format(req.Format)
	if format == "" {
		format = export.FormatCSV
	}

	data, err := s.exporter.Export(r.Context(), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write export failed", zap.Error(err))
	}
}

func (s *Server) exportMLDataset(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.MLDataset(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=ml_dataset.csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write ml dataset failed", zap.Error(err))
	}
}

func (s *Server) exportStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.exporter.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch export statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Command scraperd runs the property scraping service: the cron scheduler,
// the execution pipeline and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/quseop/property-ci-scraper/internal/api"
	systemclock "github.com/quseop/property-ci-scraper/internal/clock/system"
	"github.com/quseop/property-ci-scraper/internal/config"
	"github.com/quseop/property-ci-scraper/internal/export"
	"github.com/quseop/property-ci-scraper/internal/extractor"
	collyfetcher "github.com/quseop/property-ci-scraper/internal/fetcher/colly"
	"github.com/quseop/property-ci-scraper/internal/geo"
	sha256hash "github.com/quseop/property-ci-scraper/internal/hash/sha256"
	uuidgen "github.com/quseop/property-ci-scraper/internal/id/uuid"
	"github.com/quseop/property-ci-scraper/internal/logging"
	"github.com/quseop/property-ci-scraper/internal/metrics"
	"github.com/quseop/property-ci-scraper/internal/pipeline"
	"github.com/quseop/property-ci-scraper/internal/property"
	memorypublisher "github.com/quseop/property-ci-scraper/internal/publisher/memory"
	pubsubpublisher "github.com/quseop/property-ci-scraper/internal/publisher/pubsub"
	"github.com/quseop/property-ci-scraper/internal/registry"
	"github.com/quseop/property-ci-scraper/internal/scheduler"
	gcssnapshot "github.com/quseop/property-ci-scraper/internal/snapshot/gcs"
	localsnapshot "github.com/quseop/property-ci-scraper/internal/snapshot/local"
	memorysnapshot "github.com/quseop/property-ci-scraper/internal/snapshot/memory"
	memorystore "github.com/quseop/property-ci-scraper/internal/store/memory"
	postgresstore "github.com/quseop/property-ci-scraper/internal/store/postgres"
	"github.com/quseop/property-ci-scraper/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "scraperd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	idGen := uuidgen.Generator{}
	clock := systemclock.Clock{}
	hasher := sha256hash.Hasher{}

	store, closeStore, err := buildStore(ctx, cfg, idGen)
	if err != nil {
		return err
	}
	defer closeStore()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	ext := extractor.New(extractor.ContainerPolicy{}, geo.NewNoop(), clock, logger)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	pipe := pipeline.New(fetcher, ext, store, blobStore, hasher, clock,
		pipeline.Config{SnapshotContentType: cfg.Snapshot.ContentType}, logger)

	reg := registry.New(idGen, clock)
	trk := tracker.New(cfg.Scheduler.ResultsPerJob)
	sched := scheduler.New(reg, pipe, trk, publisher, cfg.PubSub.TopicName, logger)

	for _, jc := range cfg.Jobs {
		jobID, err := sched.AddJob(property.ScrapingJob{
			Name:      jc.Name,
			TargetURL: jc.TargetURL,
			Selectors: jc.Selectors,
			Schedule:  jc.Schedule,
			Active:    true,
		})
		if err != nil {
			return fmt.Errorf("install job %q: %w", jc.Name, err)
		}
		logger.Info("job installed",
			zap.String("job_id", jobID),
			zap.String("name", jc.Name),
			zap.String("schedule", jc.Schedule))
	}

	sched.Start(ctx)
	defer sched.Stop()

	exporter := export.New(store, logger)
	server := api.NewServer(reg, sched, trk, store, exporter, cfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, idGen property.IDGenerator) (property.Store, func(), error) {
	if cfg.DB.DSN == "" {
		return memorystore.New(idGen), func() {}, nil
	}
	store, err := postgresstore.New(ctx, postgresstore.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, idGen)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	return store, store.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (property.BlobStore, error) {
	switch cfg.Snapshot.Provider {
	case "":
		return nil, nil
	case "memory":
		return memorysnapshot.New(), nil
	case "local":
		return localsnapshot.New(localsnapshot.Config{BaseDir: cfg.Snapshot.BaseDir})
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcssnapshot.New(client, gcssnapshot.Config{Bucket: cfg.Snapshot.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown snapshot provider %q", cfg.Snapshot.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (property.Publisher, func(), error) {
	if !cfg.PubSub.Enabled {
		return nil, func() {}, nil
	}
	if cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.TopicName)
	closeFn := func() {
		topic.Stop()
		_ = client.Close()
	}
	return pubsubpublisher.New(topic), closeFn, nil
}

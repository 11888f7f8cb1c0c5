package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"job_harvester/internal/api"
	"job_harvester/internal/cache"
	"job_harvester/internal/config"
	"job_harvester/internal/extractor"
	"job_harvester/internal/llm"
	"job_harvester/internal/publisher"
	"job_harvester/internal/scheduler"
	"job_harvester/internal/service"
	"job_harvester/internal/source/apify"
	"job_harvester/internal/storage/mongo"
	"job_harvester/internal/storage/postgres"
)

type jobStore interface {
	service.JobStore
	api.JobReader
}

type sourceStore interface {
	service.SourceStore
	api.SourceReader
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("harvester stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	jobs, sources, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	gemini, err := llm.NewGemini(ctx, llm.Config{
		APIKey:            cfg.Gemini.APIKey,
		BaseURL:           cfg.Gemini.BaseURL,
		Model:             cfg.Gemini.Model,
		Timeout:           cfg.Gemini.Timeout,
		Temperature:       *cfg.Gemini.Temperature,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
	}, logger)
	if err != nil {
		return err
	}

	var ext service.Extractor = extractor.New(
		gemini,
		extractor.NewHTTPImageFetcher(cfg.Image.Timeout, cfg.Image.MaxBytes),
		logger,
	)
	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		ext = extractor.NewCached(ext, cache.NewExtractionCache(rdb, cfg.Redis.TTL, cfg.Redis.KeyPrefix), logger)
		logger.Info("extraction cache enabled", "ttl", cfg.Redis.TTL)
	}

	src := apify.New(apify.Config{
		Token:             cfg.Apify.Token,
		BaseURL:           cfg.Apify.BaseURL,
		ActorID:           cfg.Apify.ActorID,
		Timeout:           cfg.Apify.Timeout,
		ViewOption:        cfg.Apify.ViewOption,
		MaxRequestRetries: cfg.Apify.MaxRequestRetries,
	}, logger)

	pipeline := service.NewPipeline(src, ext, jobs, sources, pub, logger, cfg.Pipeline)

	perPost := cfg.Image.Timeout + cfg.Gemini.Timeout
	ceiling := max(
		service.Ceiling(cfg.Pipeline, cfg.Pipeline.MaxSources, cfg.Pipeline.MaxLimit,
			cfg.Pipeline.DefaultConcurrency, cfg.Pipeline.BatchSize, cfg.Apify.Timeout, perPost),
		service.Ceiling(cfg.Pipeline, 1, cfg.Pipeline.MaxLimit,
			1, cfg.Pipeline.SingleBatchSize, cfg.Apify.Timeout, perPost),
	)
	if ceiling > cfg.Server.WriteTimeout {
		logger.Warn("longest run may outlast the response write timeout",
			"ceiling", ceiling,
			"write_timeout", cfg.Server.WriteTimeout,
		)
	}

	if cfg.Schedule.Cron != "" {
		sched := scheduler.NewScheduler(pipeline, scheduler.Config{
			Spec:        cfg.Schedule.Cron,
			Sources:     cfg.Schedule.Sources,
			Limit:       cfg.Schedule.Limit,
			Concurrency: cfg.Schedule.Concurrency,
		}, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewHandler(pipeline, jobs, sources, logger).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting job harvester",
			"addr", cfg.Server.Addr,
			"source", src.Name(),
			"storage", cfg.Storage.Driver,
			"model", cfg.Gemini.Model,
			"publisher", cfg.RabbitMQ.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("job harvester stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (jobStore, sourceStore, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, cfg.Storage.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }

		db := client.Database(cfg.Storage.Mongo.Database)
		jobs := mongo.NewJobStore(db.Collection(cfg.Storage.Mongo.JobsCollection))
		if err := jobs.EnsureIndexes(connectCtx); err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		logger.Info("connected to mongo", "database", cfg.Storage.Mongo.Database)

		return jobs, mongo.NewSourceStore(db.Collection(cfg.Storage.Mongo.SourcesCollection)), closeFn, nil

	default:
		db, err := sqlx.Connect("postgres", cfg.Storage.Postgres.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("connected to database")

		return postgres.NewJobStore(db),
			postgres.NewSourceStore(db, postgres.NewTransactionManager(db)),
			func() { db.Close() },
			nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

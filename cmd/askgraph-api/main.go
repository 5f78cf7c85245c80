package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askgraph/askgraph/internal/api"
	"github.com/askgraph/askgraph/internal/auth"
	"github.com/askgraph/askgraph/internal/config"
	"github.com/askgraph/askgraph/internal/exemplar"
	exemplarpostgres "github.com/askgraph/askgraph/internal/exemplar/postgres"
	"github.com/askgraph/askgraph/internal/graph"
	duckdbengine "github.com/askgraph/askgraph/internal/graph/duckdb"
	"github.com/askgraph/askgraph/internal/graph/httpapi"
	"github.com/askgraph/askgraph/internal/observability"
	"github.com/askgraph/askgraph/internal/pipeline"
	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/querycache/snapshot"
	"github.com/askgraph/askgraph/internal/schema"
	s3store "github.com/askgraph/askgraph/internal/storage/s3"
	"github.com/askgraph/askgraph/internal/synth"
	"github.com/askgraph/askgraph/internal/synth/rewrite"
	"github.com/askgraph/askgraph/internal/text2cypher"
)

func main() {
	cfg, err := config.LoadFromEnv("askgraph-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	pool, readiness, err := loadExemplarPool(cfg, logger)
	if err != nil {
		logger.Error("failed to load exemplar pool", slog.Any("error", err))
		os.Exit(1)
	}
	index, err := exemplar.NewIndex(pool)
	if err != nil {
		logger.Error("failed to build exemplar index", slog.Any("error", err))
		os.Exit(1)
	}

	executor, validator, schemaSource, err := buildGraphBackend(cfg)
	if err != nil {
		logger.Error("failed to initialize graph backend", slog.Any("error", err))
		os.Exit(1)
	}

	aiClient, err := text2cypher.New(text2cypher.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
		Dialect:     text2cypher.Dialect(cfg.Synthesis.Dialect),
	})
	if err != nil {
		logger.Error("failed to initialize ai client", slog.Any("error", err))
		os.Exit(1)
	}

	synthesizer, err := synth.New(aiClient, validator, synth.Config{MaxIterations: cfg.Synthesis.MaxIterations})
	if err != nil {
		logger.Error("failed to initialize synthesizer", slog.Any("error", err))
		os.Exit(1)
	}

	cache, err := querycache.NewCache(cfg.Cache.Capacity)
	if err != nil {
		logger.Error("failed to initialize cache", slog.Any("error", err))
		os.Exit(1)
	}

	var snapshots *snapshot.Manager
	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		snapshots, err = snapshot.NewManager(cache, objectStore, cfg.Service.Name, logger)
		if err != nil {
			logger.Error("failed to initialize snapshot manager", slog.Any("error", err))
			os.Exit(1)
		}
		if cfg.Cache.RestoreOnStart {
			restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := snapshots.Restore(restoreCtx); err != nil {
				logger.Warn("cache restore failed, starting cold", slog.Any("error", err))
			}
			cancel()
		}
	}

	var reducer schema.Reducer
	if cfg.AI.ReduceEnabled {
		reducer = aiClient
	}

	orchestrator, err := pipeline.New(pipeline.Dependencies{
		Logger:      logger,
		Reducer:     reducer,
		Exemplars:   index,
		ExemplarK:   cfg.Synthesis.ExemplarK,
		Synthesizer: synthesizer,
		Rewriter:    rewrite.DefaultChain(),
		Executor:    executor,
		Cache:       cache,
	})
	if err != nil {
		logger.Error("failed to initialize pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		SchemaSource:      schemaSource,
		Orchestrator:      orchestrator,
		Cache:             cache,
		Readiness:         api.CombineReadinessChecks(readiness, api.CheckSchemaSource(schemaSource)),
		DependencyTimeout: time.Second,
	}
	if snapshots != nil {
		deps.Snapshots = snapshots
	}
	if cfg.AI.ComposeEnabled {
		deps.Composer = aiClient
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if snapshots != nil && cfg.Cache.SnapshotOnStop {
		if _, err := snapshots.Export(shutdownCtx); err != nil {
			logger.Error("cache snapshot on shutdown failed", slog.Any("error", err))
		}
	}

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func loadExemplarPool(cfg config.Config, logger *slog.Logger) ([]exemplar.Exemplar, api.ReadinessCheck, error) {
	switch cfg.Exemplars.Source {
	case "postgres":
		db, err := exemplarpostgres.Open(context.Background(), exemplarpostgres.DBConfig{
			DSN:             cfg.Exemplars.DSN,
			MaxOpenConns:    cfg.Exemplars.MaxOpenConns,
			MaxIdleConns:    cfg.Exemplars.MaxIdleConns,
			ConnMaxIdleTime: cfg.Exemplars.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Exemplars.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		repo := exemplarpostgres.NewRepository(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cfg.Exemplars.SeedDefaults {
			seeded, err := repo.SeedDefaults(ctx)
			if err != nil {
				return nil, nil, err
			}
			if seeded > 0 {
				logger.Info("seeded default exemplars", slog.Int("count", seeded))
			}
		}
		pool, err := repo.ListExemplars(ctx)
		if err != nil {
			return nil, nil, err
		}
		return pool, repo.HealthCheck, nil
	default:
		if cfg.Exemplars.Path == "" {
			return exemplar.DefaultPool(), nil, nil
		}
		pool, err := exemplar.LoadFile(cfg.Exemplars.Path)
		if err != nil {
			return nil, nil, err
		}
		return pool, nil, nil
	}
}

func buildGraphBackend(cfg config.Config) (graph.Executor, graph.Validator, schema.Source, error) {
	switch cfg.Graph.Backend {
	case "duckdb":
		engine, err := duckdbengine.Open(cfg.Graph.DuckDBPath, cfg.Graph.MaxRows)
		if err != nil {
			return nil, nil, nil, err
		}
		full, err := schema.LoadFile(cfg.Graph.SchemaFile)
		if err != nil {
			return nil, nil, nil, err
		}
		return engine, engine, schema.StaticSource{Graph: full}, nil
	default:
		client, err := httpapi.New(httpapi.Config{
			BaseURL: cfg.Graph.BaseURL,
			APIKey:  cfg.Graph.APIKey,
			Timeout: cfg.Graph.Timeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		var source schema.Source = client
		if cfg.Graph.SchemaFile != "" {
			full, err := schema.LoadFile(cfg.Graph.SchemaFile)
			if err != nil {
				return nil, nil, nil, err
			}
			source = schema.StaticSource{Graph: full}
		}
		return client, client, source, nil
	}
}

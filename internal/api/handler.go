package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askgraph/askgraph/internal/config"
	"github.com/askgraph/askgraph/internal/graph"
	"github.com/askgraph/askgraph/internal/observability"
	"github.com/askgraph/askgraph/internal/pipeline"
	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// Orchestrator answers one question end to end.
type Orchestrator interface {
	Answer(ctx context.Context, question string, full schema.Graph) (pipeline.Answer, error)
}

// Composer phrases result rows as a natural language answer.
type Composer interface {
	Compose(ctx context.Context, question, query string, result graph.Result) (string, error)
}

// SnapshotManager exports and restores cache snapshots on demand.
type SnapshotManager interface {
	Export(ctx context.Context) (int, error)
	Restore(ctx context.Context) (int, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	SchemaSource      schema.Source
	Orchestrator      Orchestrator
	Composer          Composer
	Cache             *querycache.Cache
	Snapshots         SnapshotManager
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})
	protected.HandleFunc("GET /v1/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		handleCacheStats(deps, w, r)
	})
	protected.HandleFunc("POST /v1/cache/snapshot", func(w http.ResponseWriter, r *http.Request) {
		handleCacheSnapshot(deps, w, r)
	})
	protected.HandleFunc("POST /v1/cache/restore", func(w http.ResponseWriter, r *http.Request) {
		handleCacheRestore(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/ask", protectedHandler)
	mux.Handle("GET /v1/cache/stats", protectedHandler)
	mux.Handle("POST /v1/cache/snapshot", protectedHandler)
	mux.Handle("POST /v1/cache/restore", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckSchemaSource(source schema.Source) ReadinessCheck {
	return func(ctx context.Context) error {
		if source == nil {
			return errors.New("schema source is not configured")
		}
		graph, err := source.Schema(ctx)
		if err != nil {
			return err
		}
		if graph.IsEmpty() {
			return errors.New("schema source returned an empty schema")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/reviewpulse/reviewpulse/config"
	"github.com/reviewpulse/reviewpulse/internal/cache"
	"github.com/reviewpulse/reviewpulse/internal/chunker"
	"github.com/reviewpulse/reviewpulse/internal/extract"
	"github.com/reviewpulse/reviewpulse/internal/llm/anthropic"
	"github.com/reviewpulse/reviewpulse/internal/rag"
	"github.com/reviewpulse/reviewpulse/internal/store"
	"github.com/reviewpulse/reviewpulse/internal/telemetry"
	"github.com/reviewpulse/reviewpulse/internal/vectorstore/pinecone"
)

// namespaceHeader selects the active namespace per request, overriding the
// configured default. Isolated demo/test sessions run concurrently against
// the same backing index this way.
const namespaceHeader = "x-rp-namespace"

// Run wires all dependencies once at startup and serves the API.
func Run(cfg *config.Config) error {
	ctx := context.Background()
	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)

	tele := telemetry.New(cfg.Telemetry.Enabled)
	index := pinecone.New(cfg.VectorStore)
	provider := anthropic.New(cfg.LLM)
	if cfg.LLM.APIKey == "" {
		logger.Printf("warning: llm.api_key is not set; queries will report a configuration error")
	}

	var registry *store.Store
	if cfg.Storage.Postgres.Enabled() {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return err
		}
		if err := store.Migrate("file://migrations", dsn, "up", 0); err != nil {
			return fmt.Errorf("registry migrations failed: %w", err)
		}
		st, err := store.NewWithDSN(ctx, dsn)
		if err != nil {
			return err
		}
		registry = st
		logger.Printf("document registry enabled")
	} else {
		logger.Printf("document registry disabled (storage.postgres not configured)")
	}

	var answers *cache.AnswerCache
	if cfg.Cache.Enabled() {
		ac, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		answers = ac
		logger.Printf("answer cache enabled (%s, ttl %s)", cfg.Cache.Addr(), cfg.Cache.TTL)
	}

	extractor := extract.New(cfg.Ingest.PdftotextBin)
	ch := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	pipeline := rag.NewPipeline(index, provider, answers, tele)
	decomposer := rag.NewDecomposer(index, provider, tele)
	comparer := rag.NewComparer(index, provider, tele)
	ingestor := rag.NewIngestor(index, extractor, ch, registry)

	e := newEcho(cfg, tele)

	qh := &QueryHandler{Pipeline: pipeline, Decomposer: decomposer, Comparer: comparer, Namespace: cfg.VectorStore.Namespace}
	ih := &IngestHandler{Ingestor: ingestor, Registry: registry, Namespace: cfg.VectorStore.Namespace, DataDir: cfg.Ingest.DataDir}
	ah := &AdminHandler{Index: index, Registry: registry, Namespace: cfg.VectorStore.Namespace, AdminToken: cfg.General.AdminToken}

	api := e.Group("/api")
	qh.Register(api)
	ih.Register(api)
	ah.Register(api)

	addr := cfg.General.Listen
	if addr == "" {
		addr = ":8080"
	}
	logger.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with the shared middleware stack.
func newEcho(cfg *config.Config, tele *telemetry.Telemetry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", namespaceHeader, "x-admin-token"},
	}))

	if cfg.General.RequestTimeout > 0 {
		e.Use(requestTimeout(cfg.General.RequestTimeout))
	}
	e.Use(observe(tele))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tele.Handler()))
	return e
}

// requestTimeout bounds every request's context so stuck upstream calls
// cannot pin handlers forever.
func requestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// observe records request counts and latency per route.
func observe(tele *telemetry.Telemetry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			tele.ObserveRequest(route, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}

// namespaceFrom resolves the active namespace for one request.
func namespaceFrom(c echo.Context, fallback string) string {
	if ns := c.Request().Header.Get(namespaceHeader); ns != "" {
		return ns
	}
	return fallback
}

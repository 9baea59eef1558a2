package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/content"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/sources"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

// Run wires the full system and serves the HTTP API until the server
// stops.
func Run(ctx context.Context, cfg *config.Config) error {
	chunker, err := content.NewChunker(cfg.Content.ChunkSize, cfg.Content.OverlapSize)
	if err != nil {
		return err
	}
	index := content.NewIndex()
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	llm, err := core.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}

	regs, refreshers := sources.NewAgents(cfg, chunker, index, tele)
	orch, err := core.NewOrchestrator(tele, llm, regs)
	if err != nil {
		return err
	}

	sched, err := sources.NewRefreshScheduler(cfg.Content.RefreshSchedule, refreshers)
	if err != nil {
		return err
	}
	if sched != nil {
		go sched.Run(ctx)
	}

	e := newEcho()
	registerRoutes(e, orch, index, tele)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with recovery, CORS and a unified
// JSON error handler.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

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
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	return e
}

func registerRoutes(e *echo.Echo, orch *core.Orchestrator, index *content.Index, tele *telemetry.Telemetry) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(tele.Registry(), promhttp.HandlerOpts{})))

	api := e.Group("/api")

	api.POST("/query", func(c echo.Context) error {
		var dto QueryRequestDTO
		if err := c.Bind(&dto); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if strings.TrimSpace(dto.Prompt) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
		}
		req, err := dto.ToCore()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, orch.ProcessQuery(c.Request().Context(), req))
	})

	api.GET("/health", func(c echo.Context) error {
		statuses := orch.HealthCheck(c.Request().Context())
		overall := "ok"
		for _, h := range statuses {
			if !h.Healthy {
				overall = "degraded"
				break
			}
		}
		return c.JSON(http.StatusOK, HealthResponseDTO{Status: overall, Sources: statuses})
	})

	api.GET("/capabilities", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"sources": orch.Capabilities(),
		})
	})

	api.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"index":     index.Stats(),
			"telemetry": tele.GetSnapshot(),
		})
	})
}

// Package server exposes the operational HTTP surface: starting runs,
// polling their status, and reading shortlists, plus health and metrics.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/store"
)

// Server wires the echo app, its handlers, and the optional scheduler.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	store     *store.Store
	runs      *RunsHandler
	scheduler *Scheduler
	logger    *log.Logger
}

// New builds the HTTP server. registry carries the engine metrics exposed
// on /metrics; pass prometheus.DefaultRegisterer-backed gatherer or a
// dedicated one.
func New(cfg *config.Config, st *store.Store, runner Runner, gatherer prometheus.Gatherer) (*Server, error) {
	if cfg.Server.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret not configured (server.jwt_secret or RADAR_JWT_SECRET)")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
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
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	secret := []byte(cfg.Server.JWTSecret)
	auth := &AuthHandler{Store: st, Secret: secret}
	runs := NewRunsHandler(runner, st)

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	protected := api.Group("/runs")
	protected.Use(authMiddleware(secret))
	runs.Register(protected)

	s := &Server{
		echo:   e,
		cfg:    cfg,
		store:  st,
		runs:   runs,
		logger: log.New(log.Writer(), "[SERVER] ", log.LstdFlags),
	}
	if cfg.Server.Schedule != "" {
		s.scheduler = NewScheduler(cfg.Server.Schedule, st, runs)
	}
	return s, nil
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	if s.scheduler != nil {
		s.scheduler.Start()
		defer s.scheduler.StopNow()
	}
	addr := s.cfg.Server.Listen
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Printf("listening on %s", addr)
	return s.echo.Start(addr)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

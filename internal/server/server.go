package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/gemsearch/config"
	"github.com/mohammad-safakhou/gemsearch/internal/metrics"
	"github.com/mohammad-safakhou/gemsearch/internal/search"
)

const defaultShutdownTimeout = 10 * time.Second

// Server is the HTTP boundary of the search service.
type Server struct {
	echo *echo.Echo
	cfg  config.ServerConfig
}

// New wires routes and middleware. A nil m disables /metrics.
func New(cfg config.ServerConfig, svc *search.Service, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(observeRequests(m))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowOrigins(cfg.CORSAllowOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(stampStart)
	e.Use(requestLog())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	h := &SearchHandler{Service: svc}
	h.Register(e.Group("/api"))

	if cfg.StaticDir != "" {
		e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
			Root:    cfg.StaticDir,
			Index:   "index.html",
			HTML5:   true,
			Skipper: func(c echo.Context) bool { return isAPI(c.Request().URL.Path) },
		}))
	}

	return &Server{echo: e, cfg: cfg}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is done, then shuts down gracefully. Each
// background task runs alongside the listener and gets a context that is
// cancelled when either side stops.
func (s *Server) Run(ctx context.Context, addr string, background ...func(context.Context) error) error {
	if addr == "" {
		addr = s.cfg.Address()
	}
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range background {
		g.Go(func() error { return task(gctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("serving on")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		log.Info().Msg("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}

func allowOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func isAPI(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// observeRequests counts every response by route and final status. Errors
// are rendered here so the status is known.
func observeRequests(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				c.Error(err)
			}
			m.ObserveRequest(c.Path(), c.Response().Status)
			return nil
		}
	}
}

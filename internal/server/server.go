// Package server exposes task operations and the GitHub push webhook over
// HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nibzard/mdtasks/internal/logging"
	"github.com/nibzard/mdtasks/internal/service"
	"github.com/nibzard/mdtasks/internal/webhook"
)

const (
	maxBodySize     = 1 << 20
	maxWebhookSize  = 25 << 20
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP front end.
type Server struct {
	echo   *echo.Echo
	logger *log.Logger
}

// New builds the server. hook may be nil, in which case the webhook route
// answers 503.
func New(svc *service.Service, hook *webhook.Handler, logger *log.Logger) *Server {
	logger = logging.OrDiscard(logger)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	Register(e, svc, hook, logger)
	return &Server{echo: e, logger: logger}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Register wires all routes on e.
func Register(e *echo.Echo, svc *service.Service, hook *webhook.Handler, logger *log.Logger) {
	e.GET("/healthz", healthz())
	e.POST("/webhook/github", githubWebhook(hook, logger))

	e.GET("/api/tasks", listTasks(svc))
	e.GET("/api/tasks/today", todayTasks(svc))
	e.POST("/api/tasks", addTask(svc))
	e.POST("/api/tasks/complete", completeTask(svc))
	e.POST("/api/tasks/sort", sortTasks(svc))
	e.DELETE("/api/tasks/:name", removeTask(svc))

	e.POST("/api/sessions", newSession(svc))
	e.POST("/api/sessions/:id/edit", beginEdit(svc))
	e.POST("/api/sessions/:id/field", selectField(svc))
	e.POST("/api/sessions/:id/value", applyEdit(svc))
	e.DELETE("/api/sessions/:id", cancelEdit(svc))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Debug("request",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

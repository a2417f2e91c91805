// Package server assembles the HTTP query server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/openjuris/lexvec/internal/profile"
	apiv1 "github.com/openjuris/lexvec/server/router/api/v1"
	"github.com/openjuris/lexvec/server/retrieval"
	"github.com/openjuris/lexvec/store"
)

// Server is the lexvec query server.
type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
	store      *store.Store
}

// NewServer creates the query server with routes and middleware attached.
func NewServer(profile *profile.Profile, st *store.Store, retrievalService *retrieval.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Int64("duration_ms", v.Latency.Milliseconds()))
			return nil
		},
	}))

	apiv1.NewAPIV1Service(profile, st, retrievalService).Register(e)

	return &Server{
		echoServer: e,
		profile:    profile,
		store:      st,
	}
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("query server listening", slog.String("address", address))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echoServer.Shutdown(shutdownCtx)
	}
}

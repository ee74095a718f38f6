// Package server assembles the HTTP server: echo instance, middleware and
// the v1 API routes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/usetaskchat/taskchat/internal/profile"
	"github.com/usetaskchat/taskchat/plugin/ai"
	"github.com/usetaskchat/taskchat/plugin/ai/agent"
	apiv1 "github.com/usetaskchat/taskchat/server/router/api/v1"
	"github.com/usetaskchat/taskchat/server/service/conversation"
	"github.com/usetaskchat/taskchat/store"
)

// Server is the taskchat HTTP server.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer creates the server and wires every layer together.
func NewServer(ctx context.Context, p *profile.Profile, st *store.Store, logger *slog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PATCH, echo.DELETE, echo.OPTIONS},
	}))

	gateway := ai.NewGateway(&ai.Config{
		APIKey:  p.AIAPIKey,
		BaseURL: p.AIBaseURL,
		Model:   p.AIModel,
	})

	conversations := conversation.NewService(st)
	registry := agent.NewRegistry()
	if err := agent.RegisterTaskTools(registry, st); err != nil {
		return nil, err
	}
	orchestrator := agent.NewOrchestrator(gateway, registry, conversations, p.HistoryLimit)

	apiService := apiv1.NewAPIV1Service(p, st, conversations, orchestrator, logger)
	apiService.RegisterRoutes(e)

	return &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
	}, nil
}

// Start begins serving requests. It blocks until the listener fails.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	return s.echoServer.Start(address)
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", slog.String("error", err.Error()))
	}
}

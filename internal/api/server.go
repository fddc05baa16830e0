// Package api exposes the webhook HTTP boundary.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/remarkbridge/internal/hook"
)

// Server represents the API server
type Server struct {
	echo      *echo.Echo
	port      int
	processor *hook.Processor
	schemas   *schemaSet
	logger    zerolog.Logger
}

// NewServer creates a new API server. ratePerSec bounds inbound webhook
// deliveries per client IP.
func NewServer(port int, ratePerSec float64, processor *hook.Processor, logger zerolog.Logger) (*Server, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load payload schemas: %w", err)
	}

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(ratePerSec))))

	server := &Server{
		echo:      e,
		port:      port,
		processor: processor,
		schemas:   schemas,
		logger:    logger,
	}

	// Setup routes
	server.setupRoutes()

	return server, nil
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	s.echo.POST("/webhook", s.handleWebhook)
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cowriepay/cowrie/internal/config"
	"github.com/cowriepay/cowrie/internal/outbox"
	"github.com/cowriepay/cowrie/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to
// routes.Setup. The outbox queue arrives pre-built so main can run its
// worker alongside the listener.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client,
	queue *outbox.Queue, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	err := routes.Setup(app, routes.Deps{
		Cfg:    cfg,
		DB:     db,
		Cache:  cache,
		Queue:  queue,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

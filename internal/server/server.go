// Package server собирает HTTP сервер контента: маршруты, middleware и ленту изменений.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/sitekeeper/internal/server/config"
	"github.com/iudanet/sitekeeper/internal/server/feed"
	"github.com/iudanet/sitekeeper/internal/server/handlers"
	"github.com/iudanet/sitekeeper/internal/server/jwt"
	"github.com/iudanet/sitekeeper/internal/server/middleware"
	"github.com/iudanet/sitekeeper/internal/server/storage"
)

// Store хранилище, которым пользуется сервер
type Store interface {
	storage.ContentStorage
	storage.OperatorStorage
	handlers.Pinger
}

// Server HTTP сервер контента
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	hub     *feed.Hub
	limiter *middleware.RateLimiter
	handler http.Handler
}

// New создает сервер; secret подписывает access token операторов
func New(cfg *config.Config, store Store, secret []byte, version string, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		hub:    feed.NewHub(cfg.FeedBuffer, logger),
	}

	tokens := jwt.NewService(secret, cfg.TokenTTL)

	health := handlers.NewHealthHandler(logger, store, version)
	auth := handlers.NewAuthHandler(logger, store, tokens)
	content := handlers.NewContentHandler(logger, store, s.hub)
	feedHandler := handlers.NewFeedHandler(logger, s.hub, cfg.PingInterval)

	var login http.Handler = http.HandlerFunc(auth.Login)
	if cfg.LoginRateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute, logger)
		login = s.limiter.Middleware(login)
	}

	authed := middleware.AuthMiddleware(logger, tokens)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.Handle("POST /api/v1/auth/login", login)
	mux.Handle("GET /api/v1/content", authed(http.HandlerFunc(content.List)))
	mux.Handle("GET /api/v1/content/{key}", authed(http.HandlerFunc(content.Get)))
	mux.Handle("PUT /api/v1/content/{key}", authed(http.HandlerFunc(content.Put)))
	mux.Handle("DELETE /api/v1/content/{key}", authed(http.HandlerFunc(content.Delete)))
	mux.Handle("GET /api/v1/feed", authed(http.HandlerFunc(feedHandler.Feed)))

	s.handler = middleware.Chain(mux,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger, "/api/v1/health"),
	)

	return s
}

// Handler возвращает корневой http.Handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub возвращает ленту изменений сервера
func (s *Server) Hub() *feed.Hub {
	return s.hub
}

// Run слушает cfg.Address до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем выполняет graceful shutdown.
// Websocket соединения закрываются через закрытие ленты.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "address", ln.Addr().String())
		errC <- srv.Serve(ln)
	}()

	select {
	case err := <-errC:
		s.stop()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server", "timeout", s.cfg.ShutdownTimeout)
	s.stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) stop() {
	s.hub.Close()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

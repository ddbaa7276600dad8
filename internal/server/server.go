// Package server exposes games, accounts and the leaderboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/abhisek/anamnesis/internal/auth"
	"github.com/abhisek/anamnesis/internal/session"
	"github.com/abhisek/anamnesis/internal/store"
	"github.com/abhisek/anamnesis/internal/users"
)

// Games is the game lifecycle the server drives.
type Games interface {
	Create(ctx context.Context, actorID int64, difficulty string) (*store.Chat, error)
	Get(ctx context.Context, actorID, chatID int64) (*store.Chat, error)
	History(ctx context.Context, actorID, chatID int64) ([]store.Message, error)
	List(ctx context.Context, actorID int64, limit int) ([]store.Chat, error)
	Delete(ctx context.Context, actorID, chatID int64) error
	SendMessage(ctx context.Context, actorID, chatID int64, text string) (*store.Message, error)
	EndGame(ctx context.Context, actorID, chatID int64, answer string) (*session.Result, error)
}

// Accounts manages users and the leaderboard.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (*store.User, error)
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
	Profile(ctx context.Context, userID int64) (*store.User, error)
	TopUsers(ctx context.Context, n int) ([]users.Entry, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	Games    Games
	Accounts Accounts
	Issuer   *auth.Issuer
	DB       Pinger
	Logger   zerolog.Logger

	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
}

// Server is the HTTP API.
type Server struct {
	echo     *echo.Echo
	games    Games
	accounts Accounts
	issuer   *auth.Issuer
	db       Pinger
	logger   zerolog.Logger
}

const maxBodySize = "64K"

// New builds the router and middleware chain.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		games:    opts.Games,
		accounts: opts.Accounts,
		issuer:   opts.Issuer,
		db:       opts.DB,
		logger:   opts.Logger,
	}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(Recovery(s.logger))
	e.Use(RequestID())
	e.Use(Logger(s.logger))
	e.Use(echomw.BodyLimit(maxBodySize))
	if len(opts.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, RequestIDHeader},
		}))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", s.health)

	api := e.Group("/api")
	api.POST("/users/register", s.register)
	api.POST("/token", s.login)
	api.GET("/users/top", s.topUsers)

	authed := api.Group("", auth.Middleware(s.issuer))
	authed.POST("/token/refresh", s.refresh)
	authed.GET("/users/profile", s.profile)

	authed.GET("/chats", s.listChats)
	authed.POST("/chats", s.createChat)
	authed.GET("/chats/:id", s.getChat)
	authed.DELETE("/chats/:id", s.deleteChat)
	authed.GET("/chats/:id/messages", s.history)
	authed.POST("/chats/:id/messages", s.sendMessage)
	authed.POST("/chats/:id/end", s.endGame)
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting server")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("health check failed")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

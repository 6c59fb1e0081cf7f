// Package server exposes the read-only status API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/superjcast/showwatch/pkg/storage"
)

type Server struct {
	DB *storage.DB
	// Metrics is served on /metrics when set.
	Metrics  http.Handler
	Username string
	Password string
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func New(db *storage.DB, metrics http.Handler, user, pass string, log logrus.FieldLogger) *Server {
	return &Server{
		DB:       db,
		Metrics:  metrics,
		Username: user,
		Password: pass,
		Log:      log,
		Now:      time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.Log.WithFields(logrus.Fields{"method": v.Method, "uri": v.URI, "status": v.Status}).Debug("request")
			return nil
		},
	}))

	e.GET("/health", s.handleHealth)

	api := e.Group("", s.basicAuth())
	api.GET("/", s.handleIndex)
	api.GET("/api/stats", s.handleStats)
	api.GET("/api/shows", s.handleShows)
	api.GET("/api/embargoes", s.handleEmbargoes)
	api.GET("/schedule.ics", s.handleCalendar)
	if s.Metrics != nil {
		api.GET("/metrics", echo.WrapHandler(s.Metrics))
	}
	return e
}

func (s *Server) basicAuth() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(echo.Context) bool { return s.Username == "" && s.Password == "" },
		Validator: func(user, pass string, _ echo.Context) (bool, error) {
			return user == s.Username && pass == s.Password, nil
		},
		Realm: "Restricted",
	})
}

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	e := s.Handler()
	errc := make(chan error, 1)
	go func() {
		s.Log.Infof("Starting server on %s", addr)
		errc <- e.Start(addr)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

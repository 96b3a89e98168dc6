// Package server exposes the chat API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/store"
)

// Options carries the dependencies of the HTTP server.
type Options struct {
	Server    config.ServerConfig
	WordDelay time.Duration
	Store     *store.Store
	Turner    Turner
	Logger    logrus.FieldLogger
}

// New builds the echo instance with every route registered.
func New(opts Options) *echo.Echo {
	log := logging.Component(opts.Logger, "server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			}).Debug("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.HTTPErrorHandler = errorHandler(log)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if opts.Store != nil {
		ch := &ChatsHandler{Store: opts.Store}
		ch.Register(e.Group("/api/chats"))
	}
	if opts.Turner != nil {
		th := &ChatHandler{Turner: opts.Turner, WordDelay: opts.WordDelay, Logger: log}
		e.POST("/chat", th.chat)
	}

	if dir := opts.Server.StaticDir; dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
				Root:  dir,
				Index: "index.html",
				HTML5: true,
			}))
		} else {
			log.WithField("static_dir", dir).Warn("static directory not found; UI disabled")
		}
	}
	return e
}

// errorHandler writes every failure as {"error": message}.
func errorHandler(log *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		entry := log.WithFields(logrus.Fields{"status": code, "method": req.Method, "path": req.URL.Path})
		if code >= http.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
		} else {
			entry.Debug(msg)
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func Run(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Package gateway serves the interaction webhook over HTTP. It exposes a
// liveness page, the signed interactions endpoint and, optionally,
// Prometheus metrics. Every other route answers 404.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"

	"guildwarden/pkg/config"
	"guildwarden/pkg/logger"
	"guildwarden/pkg/metrics"
	"guildwarden/pkg/router"
	"guildwarden/pkg/verify"
	"guildwarden/pkg/version"
)

// Liveness texts for GET /.
const (
	statusKeyLoaded  = "guildwarden is running (public key loaded)"
	statusKeyMissing = "guildwarden is running (public key NOT loaded: interactions rejected)"
)

// InteractionsPath is the webhook endpoint configured in the developer portal.
const InteractionsPath = "/interactions"

// Server is the HTTP front of the bot.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	router     *router.Router
	metrics    *metrics.Metrics
	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer creates the gateway server. m may be nil.
func NewServer(cfg *config.Config, log *logger.Logger, r *router.Router, m *metrics.Metrics) *Server {
	s := &Server{
		config:  cfg,
		logger:  log,
		router:  r,
		metrics: m,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()
	e.Use(middleware.Recover())

	// Routes take every method and check it themselves so a wrong method
	// gets the same 404 as an unknown path.
	e.Any("/", s.handleStatus)
	e.Any(InteractionsPath, s.handleInteraction)
	if s.config.Metrics.Enabled && s.metrics != nil {
		h := echo.WrapHandler(s.metrics.Handler())
		e.Any(s.config.Metrics.Path, func(c *echo.Context) error {
			if c.Request().Method != http.MethodGet {
				return s.handleNotFound(c)
			}
			return h(c)
		})
	}
	e.Any("/*", s.handleNotFound)

	s.echo = e
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	addr := s.config.Server.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("Gateway server starting",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("public_key_loaded", s.router.KeyLoaded()),
		zap.Bool("metrics", s.config.Metrics.Enabled),
	)

	// Use http.Server directly so shutdown is driven by the fx lifecycle.
	s.httpServer = &http.Server{
		Handler:      s.echo,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Gateway server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Gateway server stopping")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(c *echo.Context) error {
	if c.Request().Method != http.MethodGet {
		return s.handleNotFound(c)
	}
	c.Response().Header().Set("X-Guildwarden-Version", version.GetVersion())
	if s.router.KeyLoaded() {
		return c.String(http.StatusOK, statusKeyLoaded)
	}
	return c.String(http.StatusOK, statusKeyMissing)
}

func (s *Server) handleInteraction(c *echo.Context) error {
	req := c.Request()
	if req.Method != http.MethodPost {
		return s.handleNotFound(c)
	}

	// The signature covers the full body. A body we cannot read in full
	// cannot be verified, so it is handed on empty and rejected with 401.
	body, tooLarge, err := readBody(req.Body, s.config.Server.MaxBodyBytes)
	switch {
	case err != nil:
		s.logger.Warn("Failed to read interaction body", zap.Error(err))
		body = nil
	case tooLarge:
		s.logger.Warn("Interaction body exceeds limit", zap.Int64("max_body_bytes", s.config.Server.MaxBodyBytes))
		body = nil
	}

	res := s.router.Handle(req.Context(), router.Request{
		Signature: req.Header.Get(verify.HeaderSignature),
		Timestamp: req.Header.Get(verify.HeaderTimestamp),
		Body:      body,
	})
	return c.Blob(res.Status, echo.MIMEApplicationJSON, res.Body)
}

func (s *Server) handleNotFound(c *echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
}

// readBody reads at most limit bytes. tooLarge reports whether more remained.
func readBody(r io.Reader, limit int64) (body []byte, tooLarge bool, err error) {
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err = io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return nil, true, nil
	}
	return body, false, nil
}

// shutdownTimeout falls back to ten seconds when unset.
func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// Package httpapi serves the admin and query API over gin.
//
// Every /admin route requires the X-Admin-Token header when an admin
// token is configured. Read-only /referrals routes and /healthz are open;
// /metrics exposes the Prometheus registry.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/referral/internal/app"
)

// AdminTokenHeader carries the admin token.
const AdminTokenHeader = "X-Admin-Token"

// Options configures a Server.
type Options struct {
	// AdminToken guards /admin routes. Empty disables the check.
	AdminToken string
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP API.
type Server struct {
	app    *app.App
	opts   Options
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the router.
func New(a *app.App, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		app:    a,
		opts:   opts,
		engine: gin.New(),
		logger: a.Logger.With("component", "http"),
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	admin := r.Group("/admin", s.adminAuth())
	{
		admin.POST("/sweep", s.sweep)
		admin.POST("/tokens/reset", s.resetTokens)
		admin.POST("/tokens/grant", s.grantTokens)
		admin.GET("/config", s.listConfig)
		admin.PUT("/config/:key", s.setConfig)
		admin.POST("/referrals/:invitee/fail", s.failReferral)
		admin.POST("/members/:user/validate", s.validate)
	}

	refs := r.Group("/referrals")
	{
		refs.GET("/stats/:user", s.stats)
		refs.GET("/leaderboard", s.leaderboard)
		refs.GET("/invitee/:user", s.whoInvited)
		refs.GET("/inviter/:user", s.invited)
		refs.GET("/holding", s.holding)
		refs.POST("/link/:user", s.link)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.AdminToken == "" {
			c.Next()
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		took := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.app.Metrics.HTTPRequest(c.Request.Method, route, c.Writer.Status(), took)
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", took)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.app.Store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes an error response.
func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// Package server exposes the pricing library and the analysis engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"

	"github.com/souvik131/options-analyser/engine"
	"github.com/souvik131/options-analyser/marketdata"
)

const (
	MaxGridPoints        = 10000
	MaxMonteCarloSamples = 1000000
	shutdownTimeout      = 10 * time.Second
)

type Server struct {
	Engine *engine.Engine
	// Cache is the market-data cache behind the engine's provider; nil disables the invalidate route.
	Cache *marketdata.Cache

	router *gin.Engine
	cron   *cron.Cron
	now    func() time.Time
}

func New(e *engine.Engine, cache *marketdata.Cache) *Server {
	s := &Server{Engine: e, Cache: cache, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	api.GET("/price", s.price)
	api.GET("/greeks", s.greeks)
	api.GET("/implied-vol", s.impliedVol)
	api.GET("/sweep", s.sweep)
	api.GET("/monte-carlo", s.monteCarlo)
	api.GET("/analysis", s.analysis)
	api.POST("/cache/invalidate", s.invalidate)

	s.router = r
	return s
}

// WithClock fixes the date used to turn expiry query parameters into a time to expiry.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

func (s *Server) Handler() http.Handler {
	return ZstdMiddleware(s.router)
}

// StartCacheRefresh drops every cached market-data entry on the given cron schedule.
func (s *Server) StartCacheRefresh(spec string) error {
	if s.Cache == nil || spec == "" {
		return nil
	}
	c := cron.New()
	err := c.AddFunc(spec, func() {
		n := s.Cache.Len()
		s.Cache.Purge()
		log.WithField("entries", n).Info("market data cache purged")
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.stopCron()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down HTTP server")
	s.stopCron()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) stopCron() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StatusFunc reports the live state shown on /healthz.
type StatusFunc func() map[string]any

// Server exposes /metrics and /healthz while a long-running command is active.
type Server struct {
	node   string
	router *gin.Engine
	http   *http.Server
	ready  atomic.Bool
}

// NewServer builds the router. Browser dashboards on origins may read both
// endpoints; an empty origins list disables CORS.
func NewServer(node string, origins []string, status StatusFunc) *Server {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger))
	r.Use(RequestMetricsMiddleware(node))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{node: node, router: r}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"node": node, "ready": s.ready.Load()}
		if status != nil {
			for k, v := range status() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves in the background. It returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	s.ready.Store(true)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("node", s.node).Err(err).Msg("observability server stopped")
		}
	}()
	log.Info().Str("node", s.node).Str("addr", ln.Addr().String()).Msg("observability server listening")
	return ln.Addr().String(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

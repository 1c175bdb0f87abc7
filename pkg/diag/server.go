// Package diag serves a read-only HTTP view of a running device
package diag

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"avaneesh/pnio-go/pkg/channel"
	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/discovery"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/pnio"
	"avaneesh/pnio-go/pkg/types"
)

// RequestTimeout bounds how long a handler waits for the device goroutine
const RequestTimeout = 2 * time.Second

// Source is the device view the server reads. *pnio.Runner implements it.
type Source interface {
	Identity(ctx context.Context) (types.StationIdentity, error)
	DCPState(ctx context.Context) (discovery.State, error)
	Sessions(ctx context.Context) ([]cyclic.Session, error)
	Statistics() pnio.DeviceStatistics
	Dropped() uint64
}

// ChannelSource exposes the counters of the Ethernet medium. *channel.Channel implements it.
type ChannelSource interface {
	Statistics() channel.StatsSnapshot
	PhysicalStatistics() channel.TransportStats
	State() channel.ChannelState
}

type Server struct {
	router  *gin.Engine
	src     Source
	ch      ChannelSource
	logger  logger.Logger
	server  *http.Server
	started time.Time
}

// Option configures a Server
type Option func(*Server)

// WithChannel adds channel counters to /api/v1/stats
func WithChannel(ch ChannelSource) Option { return func(s *Server) { s.ch = ch } }

// WithLogger sets the request logger
func WithLogger(l logger.Logger) Option { return func(s *Server) { s.logger = logger.OrNoOp(l) } }

// NewServer builds the router. addr is used by Start.
func NewServer(addr string, src Source, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		src:     src,
		logger:  logger.OrNoOp(logger.GetDefault()),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. It
// returns the bound address, which differs from the configured one
// when the port is 0.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Diagnostics listening on %s", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Diagnostics server failed: %v", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))

	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/identity", s.getIdentity)
		v1.GET("/dcp", s.getDCP)
		v1.GET("/sessions", s.listSessions)
		v1.GET("/sessions/:handle", s.getSession)
		v1.GET("/stats", s.getStats)
	}
}

func requestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("%s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// deviceError answers a request the device goroutine could not serve
func deviceError(c *gin.Context, err error) {
	c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "DEVICE_503", Message: err.Error()})
}

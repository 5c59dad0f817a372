package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"ledgerd/blockchain"
)

// Core is the node surface the API exposes. *node.Node satisfies it.
type Core interface {
	ChainSnapshot() *blockchain.Chain
	Height() uint64
	PeerList() []peer.ID
	CreateBlock(ctx context.Context, data string) (*blockchain.Block, error)
}

// Server is the optional HTTP read/submit surface.
type Server struct {
	core   Core
	log    zerolog.Logger
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router. Start binds and serves.
func NewServer(core Core, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		core:   core,
		log:    logger,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(logger))
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	{
		api.GET("/chain", s.handleChain)
		api.GET("/chain/head", s.handleChainHead)
		api.GET("/chain/height", s.handleChainHeight)
		api.GET("/peers", s.handlePeers)
		api.POST("/blocks", s.handleCreateBlock)
	}
}

// Start serves HTTP on addr in a background goroutine.
func (s *Server) Start(addr string) {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	go func() {
		s.log.Info().Str("addr", addr).Msg("http api listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("http api stopped")
		}
	}()
}

// Shutdown stops the HTTP server, waiting briefly for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgerd/node"
)

func (s *Server) handleChain(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.ChainSnapshot())
}

func (s *Server) handleChainHead(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.ChainSnapshot().Tip())
}

func (s *Server) handleChainHeight(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"height": s.core.Height()})
}

func (s *Server) handlePeers(c *gin.Context) {
	peers := s.core.PeerList()
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.String())
	}
	c.JSON(http.StatusOK, gin.H{"peers": ids})
}

type createBlockRequest struct {
	Data string `json:"data" binding:"required"`
}

// handleCreateBlock mines and broadcasts a block. Mining can take a while,
// so the request runs as long as the client keeps the connection open.
func (s *Server) handleCreateBlock(c *gin.Context) {
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	block, err := s.core.CreateBlock(c.Request.Context(), req.Data)
	if err != nil {
		if errors.Is(err, node.ErrStaleTip) {
			c.JSON(http.StatusConflict, gin.H{"error": "block not accepted: tip advanced during mining"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, block)
}

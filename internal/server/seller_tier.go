package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetSellerTier(c *gin.Context) {
	sellerID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	state, err := s.tierSvc.GetState(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (s *Server) RecomputeSellerTier(c *gin.Context) {
	sellerID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	outcome, err := s.tierSvc.RecomputeSeller(c.Request.Context(), sellerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rateconfigdomain "github.com/smallbiznis/settlekit/internal/rateconfig/domain"
)

const headerActor = "X-Actor"

type rateHistoryQuery struct {
	Limit int `form:"limit,default=20" binding:"gte=1,lte=100"`
}

func (s *Server) GetCurrentRates(c *gin.Context) {
	cfg, err := s.rates.Current()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) UpdateRates(c *gin.Context) {
	var cfg rateconfigdomain.RateConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	actor := strings.TrimSpace(c.GetHeader(headerActor))
	if actor == "" {
		AbortWithError(c, newValidationError("actor", "required", "X-Actor header is required"))
		return
	}

	updated, err := s.rates.Update(c.Request.Context(), cfg, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}

func (s *Server) ListRateHistory(c *gin.Context) {
	var q rateHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, newValidationError("limit", "out_of_range", "limit must be between 1 and 100"))
		return
	}

	items, err := s.rates.History(c.Request.Context(), q.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

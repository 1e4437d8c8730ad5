package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	revenuedomain "github.com/smallbiznis/settlekit/internal/revenue/domain"
)

type revenueChurnQuery struct {
	Month string `form:"month"`
}

func (s *Server) GetRevenueOverview(c *gin.Context) {
	var q revenuedomain.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.revenueSvc.GetOverview(c.Request.Context(), q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRevenueTimeSeries(c *gin.Context) {
	var q revenuedomain.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.revenueSvc.GetTimeSeries(c.Request.Context(), q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRevenueMRR(c *gin.Context) {
	resp, err := s.revenueSvc.GetMRR(c.Request.Context(), strings.TrimSpace(c.Query("currency")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRevenueChurn(c *gin.Context) {
	var q revenueChurnQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	month, err := parseMonth(q.Month)
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "month must be YYYY-MM"))
		return
	}

	resp, err := s.revenueSvc.GetChurn(c.Request.Context(), month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRevenueBreakdown(c *gin.Context) {
	var q revenuedomain.BreakdownQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.revenueSvc.GetBreakdown(c.Request.Context(), q)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Rows, "page_info": resp.PageInfo, "meta": gin.H{
		"currency":    resp.Currency,
		"entity_type": resp.EntityType,
		"coverage":    resp.Coverage,
	}})
}

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	settlementdomain "github.com/smallbiznis/settlekit/internal/settlement/domain"
)

type statusChangeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

func (s *Server) Settle(c *gin.Context) {
	var event settlementdomain.PaymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	res, err := s.settlementSvc.Settle(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": res.Settlement, "created": res.Created})
}

func (s *Server) GetSettlement(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.settlementSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) GetSettlementByGatewayID(c *gin.Context) {
	gatewayID := strings.TrimSpace(c.Param("gateway_id"))
	if gatewayID == "" {
		AbortWithError(c, newValidationError("gateway_id", "required", "gateway_id is required"))
		return
	}

	detail, err := s.settlementSvc.GetByGatewayTransactionID(c.Request.Context(), gatewayID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) RefundSettlement(c *gin.Context) {
	s.changeSettlementStatus(c, s.settlementSvc.MarkRefunded)
}

func (s *Server) DisputeSettlement(c *gin.Context) {
	s.changeSettlementStatus(c, s.settlementSvc.MarkDisputed)
}

func (s *Server) changeSettlementStatus(c *gin.Context, apply func(ctx context.Context, id snowflake.ID, reason string) (settlementdomain.Detail, error)) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("reason", "required", "reason is required"))
		return
	}

	detail, err := apply(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

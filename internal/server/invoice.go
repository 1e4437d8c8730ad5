package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
)

type getOrCreateInvoiceRequest struct {
	Buyer *invoicedomain.BuyerOverrides `json:"buyer"`
}

func (s *Server) GetOrCreateInvoice(c *gin.Context) {
	settlementID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req getOrCreateInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	res, err := s.invoiceSvc.GetOrCreate(c.Request.Context(), settlementID, req.Buyer)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": res.Invoice, "created": res.Created, "delivery": res.Delivery})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RenderInvoice(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	html, err := s.invoiceSvc.RenderHTML(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
)

type updateFeeComponentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (s *Server) UpdateFeeComponent(c *gin.Context) {
	var req updateFeeComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Amount == nil {
		AbortWithError(c, newValidationError("amount", "required", "amount is required"))
		return
	}

	resp, err := s.structureSvc.UpdateFeeComponentAmount(c.Request.Context(), tenantFromContext(c), feedomain.UpdateFeeComponentRequest{
		ID:     c.Param("id"),
		Amount: *req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
)

type createDiscountRequest struct {
	FeeComponent  string          `json:"fee_component"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	AcademicYear  string          `json:"academic_year"`
	Reason        string          `json:"reason"`
}

type updateDiscountRequest struct {
	FeeComponent  *string          `json:"fee_component"`
	DiscountType  *string          `json:"discount_type"`
	DiscountValue *decimal.Decimal `json:"discount_value"`
	AcademicYear  *string          `json:"academic_year"`
	Reason        *string          `json:"reason"`
}

func (s *Server) CreateDiscount(c *gin.Context) {
	var req createDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.discountSvc.CreateDiscount(c.Request.Context(), tenantFromContext(c), feedomain.CreateDiscountRequest{
		StudentID:     c.Param("id"),
		FeeComponent:  req.FeeComponent,
		DiscountType:  feedomain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		AcademicYear:  req.AcademicYear,
		Reason:        req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateDiscount(c *gin.Context) {
	var req updateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := feedomain.UpdateDiscountRequest{
		ID:            c.Param("id"),
		FeeComponent:  req.FeeComponent,
		DiscountValue: req.DiscountValue,
		AcademicYear:  req.AcademicYear,
		Reason:        req.Reason,
	}
	if req.DiscountType != nil {
		t := feedomain.DiscountType(*req.DiscountType)
		update.DiscountType = &t
	}

	resp, err := s.discountSvc.UpdateDiscount(c.Request.Context(), tenantFromContext(c), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateDiscount(c *gin.Context) {
	resp, err := s.discountSvc.DeactivateDiscount(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/pkg/tenantctx"
)

func (s *Server) GetStudentFees(c *gin.Context) {
	opts := feedomain.DefaultDetailOptions()
	opts.IncludePaymentHistory = queryBool(c, "include_payment_history", opts.IncludePaymentHistory)
	opts.IncludeFeeBreakdown = queryBool(c, "include_fee_breakdown", opts.IncludeFeeBreakdown)

	writeResult(c, s.feeSvc.GetStudentFeeDetails(c.Request.Context(), tenantFromContext(c), pathID(c, "id"), opts))
}

func (s *Server) GetStudentFeeSummary(c *gin.Context) {
	writeResult(c, s.feeSvc.GetStudentFeeSummary(c.Request.Context(), tenantFromContext(c), pathID(c, "id")))
}

func (s *Server) ValidateStudentFees(c *gin.Context) {
	writeResult(c, s.feeSvc.ValidateFeeConsistency(c.Request.Context(), tenantFromContext(c), pathID(c, "id")))
}

func (s *Server) GetClassFeeStructure(c *gin.Context) {
	year := strings.TrimSpace(c.Query("academic_year"))
	writeResult(c, s.feeSvc.GetClassFeeStructure(c.Request.Context(), tenantFromContext(c), pathID(c, "id"), year))
}

func (s *Server) SyncClassFees(c *gin.Context) {
	writeResult(c, s.feeSvc.SyncClassFees(c.Request.Context(), tenantFromContext(c), pathID(c, "id")))
}

func (s *Server) GetParentFees(c *gin.Context) {
	writeResult(c, s.feeSvc.GetChildrenFeeDetails(c.Request.Context(), tenantFromContext(c), pathID(c, "id")))
}

func (s *Server) GetStudentFeeStatement(c *gin.Context) {
	doc, err := s.documentSvc.RenderStatement(c.Request.Context(), tenantFromContext(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	writeDocument(c, doc)
}

// writeResult writes the read envelope with a status derived from its error.
func writeResult[T any](c *gin.Context, result feedomain.Result[T]) {
	status := http.StatusOK
	if !result.Success {
		switch {
		case isNotFoundError(result.Err):
			status = http.StatusNotFound
		case isValidationError(result.Err):
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
		if result.Err != nil {
			_ = c.Error(result.Err)
		}
	}
	c.JSON(status, result)
}

func writeDocument(c *gin.Context, doc *feedomain.Document) {
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func tenantFromContext(c *gin.Context) snowflake.ID {
	id, _ := tenantctx.TenantID(c.Request.Context())
	return id
}

// pathID parses a snowflake path parameter. Malformed ids become 0 and are
// rejected by the service.
func pathID(c *gin.Context, name string) snowflake.ID {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		return 0
	}
	return id
}

func queryBool(c *gin.Context, key string, def bool) bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

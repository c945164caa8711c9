package server

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/feeledger/internal/authorization"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	HeaderTenant    = "X-Tenant-ID"
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"
)

// TenantContext resolves the tenant of every API request.
func TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderTenant))
		if raw == "" {
			AbortWithError(c, ErrTenantRequired)
			return
		}
		tenantID, err := snowflake.ParseString(raw)
		if err != nil || tenantID == 0 {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant id"))
			return
		}
		c.Request = c.Request.WithContext(tenantctx.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

// ActorContext records the caller asserted by the upstream gateway.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		if role != "" {
			c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), role, id))
		}
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, id := obscontext.ActorFromContext(ctx)
		if role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		tenantID, ok := tenantctx.TenantID(ctx)
		if !ok {
			AbortWithError(c, ErrTenantRequired)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}

		err := s.authzSvc.Authorize(ctx, authorization.Actor{Role: role, ID: id}, tenantID.String(), object, action)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, authorization.ErrInvalidActor):
			AbortWithError(c, ErrUnauthorized)
		case errors.Is(err, authorization.ErrForbidden):
			AbortWithError(c, ErrForbidden)
		default:
			AbortWithError(c, err)
		}
	}
}

// WriteRateLimit throttles fee writes per tenant when a limiter is configured.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.writeLimiter == nil || !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tenantID, ok := tenantctx.TenantID(ctx)
		if !ok {
			AbortWithError(c, ErrTenantRequired)
			return
		}

		result, err := s.writeLimiter.AllowTenant(ctx, tenantID)
		if err != nil {
			logger.FromContext(ctx).Warn("fee write rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("fee write rate limit exceeded", zap.String("route", c.FullPath()))
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

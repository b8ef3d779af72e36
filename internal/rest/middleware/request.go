package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/renewly/renewly/internal/types"
)

func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// TenantMiddleware copies the identity headers into the request
// context. The engine trusts the upstream identity provider; absent
// headers fall back to the default tenant for local development.
func TenantMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	tenantID := c.GetHeader(types.HeaderTenantID)
	if tenantID == "" {
		tenantID = types.DefaultTenantID
	}
	userID := c.GetHeader(types.HeaderUserID)
	if userID == "" {
		userID = types.DefaultUserID
	}

	ctx = types.SetTenantID(ctx, tenantID)
	ctx = types.SetUserID(ctx, userID)
	if role := c.GetHeader(types.HeaderUserRole); role != "" {
		ctx = types.SetUserRole(ctx, types.UserRole(role))
	}

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

package types

import "context"

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID     ContextKey = "ctx_request_id"
	CtxTenantID      ContextKey = "ctx_tenant_id"
	CtxUserID        ContextKey = "ctx_user_id"
	CtxUserRole      ContextKey = "ctx_user_role"
	CtxDBTransaction ContextKey = "ctx_db_transaction"

	// Default values
	DefaultTenantID = "00000000-0000-0000-0000-000000000000"
	DefaultUserID   = "00000000-0000-0000-0000-000000000000"
)

// Headers the identity provider sets on every request
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTenantID  = "X-Tenant-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
)

// UserRole is the role supplied by the identity provider. The engine
// trusts it as-is and performs no authentication of its own.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleInternal UserRole = "internal"
	UserRolePortal   UserRole = "portal"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(CtxTenantID).(string); ok {
		return tenantID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetUserRole(ctx context.Context) UserRole {
	if role, ok := ctx.Value(CtxUserRole).(UserRole); ok {
		return role
	}
	return UserRolePortal
}

// SetTenantID sets the tenant ID in the context
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, CtxTenantID, tenantID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// SetUserRole sets the identity provider role in the context
func SetUserRole(ctx context.Context, role UserRole) context.Context {
	return context.WithValue(ctx, CtxUserRole, role)
}

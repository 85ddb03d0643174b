package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxRole      contextKey = "actor_role"
	ctxPartnerID contextKey = "partner_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// PartnerIDFromContext is empty unless the caller authenticated as a partner.
func PartnerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxPartnerID).(string); ok {
		return v
	}
	return ""
}

// UserUUID parses the authenticated user id; uuid.Nil when absent.
func UserUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func PartnerUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(PartnerIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// WithIdentity seeds the caller identity. Used by Auth and by handler tests.
func WithIdentity(ctx context.Context, userID, role, partnerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxRole, role)
	if partnerID != "" {
		ctx = context.WithValue(ctx, ctxPartnerID, partnerID)
	}
	return ctx
}

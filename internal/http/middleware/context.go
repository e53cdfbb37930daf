package middleware

import (
	"context"
	"log/slog"

	"vidtube/internal/domain/models"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeyLogger
	ctxKeyRequestID
)

// UserFromContext returns the account attached by Authenticate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(models.User)
	return user, ok
}

func withUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// Logger returns the request-scoped logger, or fallback outside a request.
func Logger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return fallback
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

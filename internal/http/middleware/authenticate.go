package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/api"
	"vidtube/internal/lib/jwt"
	"vidtube/internal/lib/sl"
	"vidtube/internal/storage"
)

// AccessCookie is the cookie carrying the access token.
const AccessCookie = "accessToken"

type AccessVerifier interface {
	VerifyAccessToken(token string) (*jwt.AccessClaims, error)
}

type UserProvider interface {
	UserByID(ctx context.Context, userID string) (models.User, error)
}

// Authenticate rejects requests without a valid access token. On success the
// account, without password hash or refresh token, is attached to the
// request context.
func Authenticate(verifier AccessVerifier, users UserProvider, base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := Logger(ctx, base)

			raw := accessToken(r)
			if raw == "" {
				api.WriteError(w, api.Unauthorized("unauthorized access"))
				return
			}

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				log.Warn("access token rejected", sl.Err(err))
				api.WriteError(w, api.Unauthorized("invalid access token"))
				return
			}

			user, err := users.UserByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					log.Warn("access token for unknown user", slog.String("userID", claims.UserID))
					api.WriteError(w, api.Unauthorized("invalid access token"))
					return
				}
				log.Error("failed to load user", sl.Err(err))
				api.WriteError(w, api.Internal(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(ctx, user.Sanitize())))
		})
	}
}

// accessToken reads the cookie first and falls back to a bearer header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
}

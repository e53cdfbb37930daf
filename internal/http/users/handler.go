// Package users serves the account API under /api/v1/users.
package users

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidtube/internal/domain/models"
	"vidtube/internal/services/auth"
)

const basePath = "/api/v1/users"

type Sessions interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.User, error)
	Login(ctx context.Context, identity, password string) (auth.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type Profiles interface {
	UpdateAvatar(ctx context.Context, userID, localPath string) (models.User, error)
	Channel(ctx context.Context, username, viewerID string) (models.Channel, error)
	WatchHistory(ctx context.Context, userID string) ([]models.Video, error)
}

type Options struct {
	SecureCookies bool
	BodyLimit     int64
	UploadDir     string
	MaxUploadSize int64
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Handler struct {
	logger   *slog.Logger
	sessions Sessions
	profiles Profiles
	opts     Options
}

func New(logger *slog.Logger, sessions Sessions, profiles Profiles, opts Options) *Handler {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 16 << 10
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 10 << 20
	}

	return &Handler{
		logger:   logger,
		sessions: sessions,
		profiles: profiles,
		opts:     opts,
	}
}

// Routes registers every endpoint on mux. guard protects the routes that
// need an authenticated caller.
func (h *Handler) Routes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.HandleFunc("POST "+basePath+"/register", h.register)
	mux.HandleFunc("POST "+basePath+"/login", h.login)
	mux.HandleFunc("POST "+basePath+"/refresh-token", h.refreshToken)

	mux.Handle("POST "+basePath+"/logout", guard(http.HandlerFunc(h.logout)))
	mux.Handle("POST "+basePath+"/change-password", guard(http.HandlerFunc(h.changePassword)))
	mux.Handle("PATCH "+basePath+"/update-avatar", guard(http.HandlerFunc(h.updateAvatar)))
	mux.Handle("GET "+basePath+"/current-user", guard(http.HandlerFunc(h.currentUser)))
	mux.Handle("GET "+basePath+"/channel/{username}", guard(http.HandlerFunc(h.channel)))
	mux.Handle("GET "+basePath+"/history", guard(http.HandlerFunc(h.history)))
}

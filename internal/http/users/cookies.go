package users

import (
	"net/http"
	"time"

	"vidtube/internal/domain/models"
	"vidtube/internal/http/middleware"
)

const refreshCookie = "refreshToken"

func (h *Handler) setSessionCookies(w http.ResponseWriter, tokens models.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessCookie, tokens.AccessToken, h.opts.AccessTTL))
	http.SetCookie(w, h.cookie(refreshCookie, tokens.RefreshToken, h.opts.RefreshTTL))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, refreshCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

package users

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"vidtube/internal/domain/models"
	"vidtube/internal/http/middleware"
	"vidtube/internal/lib/api"
	"vidtube/internal/lib/sl"
	"vidtube/internal/services/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatarPath, err := h.saveUpload(r, "avatar")
	defer removeUpload(avatarPath)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	coverPath, err := h.saveUpload(r, "coverImage")
	defer removeUpload(coverPath)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.sessions.Register(r.Context(), auth.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Username:       r.FormValue("username"),
		Email:          r.FormValue("email"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Write(w, http.StatusCreated, user, "User registered successfully")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	var identities []string
	for _, id := range []string{req.Username, req.Email} {
		if id = strings.TrimSpace(id); id != "" {
			identities = append(identities, id)
		}
	}
	if len(identities) == 0 {
		h.fail(w, r, api.BadRequest("username or email is required"))
		return
	}

	// Either field may name the account; the email is tried when the
	// username matches nobody.
	var (
		res auth.LoginResult
		err error
	)
	for _, identity := range identities {
		res, err = h.sessions.Login(r.Context(), identity, req.Password)
		if !errors.Is(err, auth.ErrUserNotFound) {
			break
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookies(w, res.Tokens)
	api.Write(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	if err := h.sessions.Logout(r.Context(), user.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	api.Write(w, http.StatusOK, struct{}{}, "User logged out")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := h.decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			h.fail(w, r, err)
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookies(w, tokens)
	api.Write(w, http.StatusOK, tokens, "Access token refreshed")
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req changePasswordRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}

	api.Write(w, http.StatusOK, struct{}{}, "Password changed successfully")
}

func (h *Handler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	if err := h.parseMultipart(w, r); err != nil {
		h.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	avatarPath, err := h.saveUpload(r, "avatar")
	defer removeUpload(avatarPath)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.profiles.UpdateAvatar(r.Context(), user.ID, avatarPath)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Write(w, http.StatusOK, updated, "Avatar image updated successfully")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	api.Write(w, http.StatusOK, user, "Current user fetched successfully")
}

func (h *Handler) channel(w http.ResponseWriter, r *http.Request) {
	viewer, _ := middleware.UserFromContext(r.Context())

	ch, err := h.profiles.Channel(r.Context(), r.PathValue("username"), viewer.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Write(w, http.StatusOK, ch, "User channel fetched successfully")
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	videos, err := h.profiles.WatchHistory(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.Write(w, http.StatusOK, videos, "Watch history fetched successfully")
}

// decodeJSON reads a bounded JSON body into v. The error for an empty body
// wraps io.EOF so callers with optional bodies can tell it apart.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.BodyLimit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &api.Error{Status: http.StatusBadRequest, Message: "request body is empty", Err: io.EOF}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return api.NewError(http.StatusRequestEntityTooLarge, "request body is too large")
		}
		middleware.Logger(r.Context(), h.logger).Debug("bad request body", sl.Err(err))
		return api.BadRequest("invalid request body")
	}

	return nil
}

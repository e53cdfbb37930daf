package users

import (
	"errors"
	"log/slog"
	"net/http"

	"vidtube/internal/http/middleware"
	"vidtube/internal/lib/api"
	"vidtube/internal/lib/sl"
	"vidtube/internal/services/auth"
	"vidtube/internal/services/credentials"
	"vidtube/internal/services/profile"
)

// toAPIError maps service errors onto the response taxonomy. Anything not
// listed is an internal error.
func toAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, auth.ErrAvatarRequired), errors.Is(err, profile.ErrAvatarRequired):
		return api.BadRequest("avatar is required")
	case errors.Is(err, credentials.ErrPasswordTooLong):
		e := api.BadRequest("invalid input")
		e.Errors = []string{credentials.ErrPasswordTooLong.Error()}
		return e
	case errors.Is(err, auth.ErrInvalidInput):
		return api.BadRequest("all fields are required")
	case errors.Is(err, profile.ErrInvalidInput):
		return api.BadRequest("username is missing")
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return api.Conflict("user with email or username already exists")
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, profile.ErrUserNotFound):
		return api.NotFound("user does not exist")
	case errors.Is(err, profile.ErrChannelMissing):
		return api.NotFound("channel does not exist")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.Unauthorized("invalid user credentials")
	case errors.Is(err, auth.ErrRefreshTokenMissing):
		return api.Unauthorized("unauthorized request")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return api.Unauthorized("refresh token is expired or used")
	case errors.Is(err, auth.ErrUploadFailed), errors.Is(err, profile.ErrUploadFailed):
		return &api.Error{Status: http.StatusInternalServerError, Message: "error while uploading file", Err: err}
	}

	return api.Internal(err)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		middleware.Logger(r.Context(), h.logger).Error("request failed",
			slog.Int("status", apiErr.Status),
			sl.Err(err),
		)
	}
	api.WriteError(w, apiErr)
}

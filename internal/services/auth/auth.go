package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/jwt"
	"vidtube/internal/lib/sl"
	"vidtube/internal/services/credentials"
	"vidtube/internal/storage"
)

type Auth struct {
	logger      *slog.Logger
	credentials CredentialStore
	tokens      TokenIssuer
	uploader    Uploader
}

type CredentialStore interface {
	Create(ctx context.Context, candidate models.NewUser) (models.User, error)
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
	UserByID(ctx context.Context, userID string) (models.User, error)
	VerifyPassword(user models.User, candidate string) bool
	SetPassword(ctx context.Context, userID, newPassword string) error
	SetRefreshToken(ctx context.Context, userID, token string) error
	ValidatePassword(password string) error
}

type TokenIssuer interface {
	IssuePair(user models.User) (models.TokenPair, error)
	VerifyRefreshToken(token string) (*jwt.RefreshClaims, error)
}

// Uploader puts a local file into object storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAvatarRequired      = errors.New("avatar is required")
	ErrUploadFailed        = errors.New("file upload failed")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRefreshTokenMissing = errors.New("refresh token is required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// New returns a new instance of the Auth service.
func New(
	logger *slog.Logger,
	creds CredentialStore,
	tokens TokenIssuer,
	uploader Uploader,
) *Auth {
	return &Auth{
		logger:      logger,
		credentials: creds,
		tokens:      tokens,
		uploader:    uploader,
	}
}

// RegisterInput holds the registration form. File fields are local paths
// of already received uploads; CoverImagePath may be empty.
type RegisterInput struct {
	FullName       string
	Username       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// LoginResult is a sanitized account plus a fresh token pair.
type LoginResult struct {
	User   models.User
	Tokens models.TokenPair
}

// Register uploads the media files and creates the account.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("username", in.Username),
	)
	log.Info("register request")

	for _, field := range []string{in.FullName, in.Username, in.Email, in.Password} {
		if strings.TrimSpace(field) == "" {
			return models.User{}, fmt.Errorf("%s: %w: all fields are required", op, ErrInvalidInput)
		}
	}

	// Nothing is uploaded for a request that is going to be refused. The
	// unique indexes still catch a concurrent registration.
	if err := a.ensureAvailable(ctx, in.Username, in.Email); err != nil {
		if !errors.Is(err, ErrUserAlreadyExists) {
			log.Error("failed to check existing user", sl.Err(err))
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := a.credentials.ValidatePassword(in.Password); err != nil {
		return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
	}
	if in.AvatarPath == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrAvatarRequired)
	}

	avatarURL, err := a.uploader.Upload(ctx, in.AvatarPath)
	if err != nil {
		log.Error("failed to upload avatar", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: avatar: %w: %w", op, ErrUploadFailed, err)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		coverURL, err = a.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			log.Error("failed to upload cover image", sl.Err(err))
			return models.User{}, fmt.Errorf("%s: cover image: %w: %w", op, ErrUploadFailed, err)
		}
	}

	user, err := a.credentials.Create(ctx, models.NewUser{
		Username:   in.Username,
		Email:      in.Email,
		FullName:   in.FullName,
		Password:   in.Password,
		Avatar:     avatarURL,
		CoverImage: coverURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			log.Warn("user already exists", sl.Err(err))
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserAlreadyExists)
		case errors.Is(err, credentials.ErrPasswordTooLong):
			return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
		}
		log.Error("failed to create user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("userID", user.ID))

	return user, nil
}

// Login verifies the credential and starts a new session. The stored refresh
// token is overwritten, which ends any earlier session.
func (a *Auth) Login(ctx context.Context, identity, password string) (LoginResult, error) {
	const op = "auth.Login"
	log := a.logger.With(slog.String("op", op))
	log.Info("login request")

	user, err := a.credentials.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return LoginResult{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.credentials.VerifyPassword(user, password) {
		log.Warn("invalid password", slog.String("userID", user.ID))
		return LoginResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tokens, err := a.startSession(ctx, user)
	if err != nil {
		log.Error("failed to start session", sl.Err(err))
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("userID", user.ID))

	return LoginResult{User: user.Sanitize(), Tokens: tokens}, nil
}

// Logout clears the stored refresh token. Calling it twice is harmless.
func (a *Auth) Logout(ctx context.Context, userID string) error {
	const op = "auth.Logout"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if err := a.credentials.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged out")

	return nil
}

// Refresh exchanges a valid refresh token for a new pair (rotation). Every
// rejection reads as ErrInvalidRefreshToken; the cause only goes to the log.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"
	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrRefreshTokenMissing)
	}

	claims, err := a.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		log.Warn("refresh token rejected", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	user, err := a.credentials.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh token for unknown user", slog.String("userID", claims.UserID))
		} else {
			log.Error("failed to get user", sl.Err(err))
		}
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	// A superseded or logged-out token no longer matches the stored one.
	if !user.HasSession() || subtle.ConstantTimeCompare([]byte(refreshToken), []byte(user.RefreshToken)) != 1 {
		log.Warn("refresh token is stale", slog.String("userID", user.ID))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidRefreshToken)
	}

	tokens, err := a.startSession(ctx, user)
	if err != nil {
		log.Error("failed to rotate tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed", slog.String("userID", user.ID))

	return tokens, nil
}

// ChangePassword re-hashes the password after checking the old one. The
// current session stays valid.
func (a *Auth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"
	log := a.logger.With(slog.String("op", op), slog.String("userID", userID))

	if newPassword == "" {
		return fmt.Errorf("%s: %w: new password is required", op, ErrInvalidInput)
	}

	user, err := a.credentials.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if !a.credentials.VerifyPassword(user, oldPassword) {
		log.Warn("invalid old password")
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := a.credentials.SetPassword(ctx, userID, newPassword); err != nil {
		if errors.Is(err, credentials.ErrPasswordTooLong) {
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
		}
		log.Error("failed to set password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password changed")

	return nil
}

// ensureAvailable fails with ErrUserAlreadyExists when the username or the
// email already belongs to an account.
func (a *Auth) ensureAvailable(ctx context.Context, username, email string) error {
	for _, identity := range []string{username, email} {
		_, err := a.credentials.FindByIdentity(ctx, identity)
		switch {
		case err == nil:
			return ErrUserAlreadyExists
		case !errors.Is(err, storage.ErrUserNotFound):
			return err
		}
	}
	return nil
}

// startSession mints a pair and stores its refresh token.
func (a *Auth) startSession(ctx context.Context, user models.User) (models.TokenPair, error) {
	tokens, err := a.tokens.IssuePair(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := a.credentials.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return models.TokenPair{}, err
	}

	return tokens, nil
}

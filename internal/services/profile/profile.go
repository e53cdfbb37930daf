package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/sl"
	"vidtube/internal/storage"
)

type ChannelProvider interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.Channel, error)
	WatchHistory(ctx context.Context, userID string) ([]models.Video, error)
}

type AccountStore interface {
	UserByID(ctx context.Context, userID string) (models.User, error)
	SetAvatar(ctx context.Context, userID, avatar string) error
}

type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrAvatarRequired = errors.New("avatar file is missing")
	ErrUploadFailed   = errors.New("file upload failed")
	ErrUserNotFound   = errors.New("user not found")
	ErrChannelMissing = errors.New("channel does not exist")
)

type Profile struct {
	logger   *slog.Logger
	channels ChannelProvider
	accounts AccountStore
	uploader Uploader
}

func New(logger *slog.Logger, channels ChannelProvider, accounts AccountStore, uploader Uploader) *Profile {
	return &Profile{
		logger:   logger,
		channels: channels,
		accounts: accounts,
		uploader: uploader,
	}
}

// UpdateAvatar uploads a new avatar and returns the updated account.
func (p *Profile) UpdateAvatar(ctx context.Context, userID, localPath string) (models.User, error) {
	const op = "profile.UpdateAvatar"
	log := p.logger.With(slog.String("op", op), slog.String("userID", userID))

	if localPath == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrAvatarRequired)
	}

	url, err := p.uploader.Upload(ctx, localPath)
	if err != nil {
		log.Error("failed to upload avatar", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrUploadFailed, err)
	}

	if err := p.accounts.SetAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to save avatar", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := p.accounts.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("avatar updated")

	return user.Sanitize(), nil
}

// Channel returns the public profile of username as seen by viewerID.
// viewerID may be empty for anonymous viewers.
func (p *Profile) Channel(ctx context.Context, username, viewerID string) (models.Channel, error) {
	const op = "profile.Channel"

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.Channel{}, fmt.Errorf("%s: %w: username is missing", op, ErrInvalidInput)
	}

	ch, err := p.channels.ChannelProfile(ctx, username, viewerID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Channel{}, fmt.Errorf("%s: %w", op, ErrChannelMissing)
		}
		p.logger.Error("failed to load channel", slog.String("op", op), sl.Err(err))
		return models.Channel{}, fmt.Errorf("%s: %w", op, err)
	}

	return ch, nil
}

func (p *Profile) WatchHistory(ctx context.Context, userID string) ([]models.Video, error) {
	const op = "profile.WatchHistory"

	videos, err := p.channels.WatchHistory(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		p.logger.Error("failed to load watch history", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if videos == nil {
		videos = []models.Video{}
	}

	return videos, nil
}

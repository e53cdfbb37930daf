// Package seed fills a fresh backend with a demo channel so the profile and
// history read models have something to return.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
	"vidtube/internal/storage"
)

type Accounts interface {
	Create(ctx context.Context, candidate models.NewUser) (models.User, error)
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
}

type Catalog interface {
	SaveVideo(ctx context.Context, video models.Video) error
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	AddToWatchHistory(ctx context.Context, userID, videoID string) error
}

// Result names what was created so it can be reported.
type Result struct {
	Channel models.User
	Viewer  models.User
	Videos  []models.Video
	Created bool
}

const (
	ChannelUsername = "demo-channel"
	ViewerUsername  = "demo-viewer"
	DemoPassword    = "demo-password"
)

// Run creates the demo channel, a viewer subscribed to it and a short watch
// history. A second run finds the accounts and changes nothing.
func Run(ctx context.Context, log *slog.Logger, accounts Accounts, catalog Catalog) (Result, error) {
	const op = "seed.Run"
	log = log.With(slog.String("op", op))

	channel, created, err := ensureAccount(ctx, accounts, models.NewUser{
		Username: ChannelUsername,
		Email:    "channel@vidtube.local",
		FullName: "Demo Channel",
		Password: DemoPassword,
		Avatar:   "https://placehold.co/256x256?text=channel",
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: channel: %w", op, err)
	}

	viewer, _, err := ensureAccount(ctx, accounts, models.NewUser{
		Username: ViewerUsername,
		Email:    "viewer@vidtube.local",
		FullName: "Demo Viewer",
		Password: DemoPassword,
		Avatar:   "https://placehold.co/256x256?text=viewer",
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: viewer: %w", op, err)
	}

	res := Result{Channel: channel, Viewer: viewer}
	if !created {
		log.Info("demo data already present")
		return res, nil
	}

	titles := []string{"Welcome to the channel", "Second upload", "Behind the scenes"}
	for i, title := range titles {
		v := models.Video{
			ID:          ids.New(),
			VideoFile:   fmt.Sprintf("https://placehold.co/video-%d.mp4", i+1),
			Thumbnail:   fmt.Sprintf("https://placehold.co/640x360?text=%d", i+1),
			Title:       title,
			Description: "Seeded demo video.",
			Duration:    float64(60 * (i + 1)),
			IsPublished: true,
			OwnerID:     channel.ID,
		}
		if err := catalog.SaveVideo(ctx, v); err != nil {
			return Result{}, fmt.Errorf("%s: video: %w", op, err)
		}
		res.Videos = append(res.Videos, v)
	}

	if err := catalog.Subscribe(ctx, viewer.ID, channel.ID); err != nil {
		return Result{}, fmt.Errorf("%s: subscribe: %w", op, err)
	}
	for _, v := range res.Videos[:2] {
		if err := catalog.AddToWatchHistory(ctx, viewer.ID, v.ID); err != nil {
			return Result{}, fmt.Errorf("%s: history: %w", op, err)
		}
	}

	res.Created = true
	log.Info("demo data seeded",
		slog.String("channel", channel.Username),
		slog.String("viewer", viewer.Username),
		slog.Int("videos", len(res.Videos)),
	)

	return res, nil
}

func ensureAccount(ctx context.Context, accounts Accounts, candidate models.NewUser) (models.User, bool, error) {
	user, err := accounts.Create(ctx, candidate)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, storage.ErrUserExists) {
		return models.User{}, false, err
	}

	user, err = accounts.FindByIdentity(ctx, candidate.Username)
	if err != nil {
		return models.User{}, false, err
	}

	return user.Sanitize(), false, nil
}

// Package memory is an in-process storage backend. It enforces the same
// uniqueness rules as the database backends and is used for local runs and
// tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"vidtube/internal/domain/models"
	"vidtube/internal/storage"
)

type Storage struct {
	mu            sync.RWMutex
	users         map[string]models.User
	byUsername    map[string]string
	byEmail       map[string]string
	videos        map[string]models.Video
	subscriptions map[subscription]struct{}
	now           func() time.Time
}

type subscription struct {
	subscriber string
	channel    string
}

func New() *Storage {
	return &Storage{
		users:         make(map[string]models.User),
		byUsername:    make(map[string]string),
		byEmail:       make(map[string]string),
		videos:        make(map[string]models.Video),
		subscriptions: make(map[subscription]struct{}),
		now:           time.Now,
	}
}

// SaveUser inserts a new account; duplicate username or email fails with
// storage.ErrUserExists.
func (s *Storage) SaveUser(_ context.Context, user models.User) error {
	const op = "storage.memory.SaveUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}
	if _, ok := s.byUsername[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.PassHash = slices.Clone(user.PassHash)
	user.WatchHistory = slices.Clone(user.WatchHistory)

	s.users[user.ID] = user
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID

	return nil
}

// User looks an account up by username or email.
func (s *Storage) User(_ context.Context, identity string) (models.User, error) {
	const op = "storage.memory.User"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[identity]
	if !ok {
		id, ok = s.byEmail[identity]
	}
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return cloneUser(s.users[id]), nil
}

func (s *Storage) UserByID(_ context.Context, userID string) (models.User, error) {
	const op = "storage.memory.UserByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return cloneUser(user), nil
}

func (s *Storage) UpdateUser(_ context.Context, userID string, upd storage.UserUpdate) error {
	const op = "storage.memory.UpdateUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	if upd.PassHash != nil {
		user.PassHash = slices.Clone(upd.PassHash)
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	if upd.CoverImage != nil {
		user.CoverImage = *upd.CoverImage
	}
	if upd.RefreshToken != nil {
		user.RefreshToken = *upd.RefreshToken
	}
	user.UpdatedAt = s.now().UTC()

	s.users[userID] = user

	return nil
}

// ChannelProfile joins the account with its subscription edges.
func (s *Storage) ChannelProfile(_ context.Context, username, viewerID string) (models.Channel, error) {
	const op = "storage.memory.ChannelProfile"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return models.Channel{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	user := s.users[id]

	ch := models.Channel{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FullName:   user.FullName,
		Avatar:     user.Avatar,
		CoverImage: user.CoverImage,
	}
	for sub := range s.subscriptions {
		if sub.channel == id {
			ch.SubscribersCount++
			if sub.subscriber == viewerID {
				ch.IsSubscribed = true
			}
		}
		if sub.subscriber == id {
			ch.ChannelsSubscribedToCount++
		}
	}

	return ch, nil
}

// WatchHistory resolves the account's history ids into videos with owners.
// Ids that no longer resolve are skipped.
func (s *Storage) WatchHistory(_ context.Context, userID string) ([]models.Video, error) {
	const op = "storage.memory.WatchHistory"

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	videos := make([]models.Video, 0, len(user.WatchHistory))
	for _, videoID := range user.WatchHistory {
		v, ok := s.videos[videoID]
		if !ok {
			continue
		}
		if owner, ok := s.users[v.OwnerID]; ok {
			v.Owner = models.VideoOwner{
				ID:       owner.ID,
				Username: owner.Username,
				FullName: owner.FullName,
				Avatar:   owner.Avatar,
			}
		}
		videos = append(videos, v)
	}

	return videos, nil
}

func (s *Storage) SaveVideo(_ context.Context, video models.Video) error {
	const op = "storage.memory.SaveVideo"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[video.OwnerID]; !ok {
		return fmt.Errorf("%s: owner: %w", op, storage.ErrUserNotFound)
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = s.now().UTC()
	}
	s.videos[video.ID] = video

	return nil
}

// Subscribe records subscriberID following channelID. Repeats are no-ops.
func (s *Storage) Subscribe(_ context.Context, subscriberID, channelID string) error {
	const op = "storage.memory.Subscribe"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{subscriberID, channelID} {
		if _, ok := s.users[id]; !ok {
			return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
	}
	s.subscriptions[subscription{subscriber: subscriberID, channel: channelID}] = struct{}{}

	return nil
}

func (s *Storage) AddToWatchHistory(_ context.Context, userID, videoID string) error {
	const op = "storage.memory.AddToWatchHistory"

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}
	user.WatchHistory = append(slices.Clone(user.WatchHistory), videoID)
	s.users[userID] = user

	return nil
}

// DeleteUser removes an account. Only tests need it; accounts are never
// deleted by the service.
func (s *Storage) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, userID)
	delete(s.byUsername, user.Username)
	delete(s.byEmail, user.Email)

	return nil
}

func (s *Storage) Close(context.Context) error { return nil }

func cloneUser(u models.User) models.User {
	u.PassHash = slices.Clone(u.PassHash)
	u.WatchHistory = slices.Clone(u.WatchHistory)
	return u
}

package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
	"vidtube/internal/storage"
)

func newUser() models.User {
	return models.User{
		ID:       ids.New(),
		Username: gofakeit.Username(),
		Email:    gofakeit.Email(),
		FullName: gofakeit.Name(),
		PassHash: []byte("hash"),
		Avatar:   gofakeit.URL(),
	}
}

func TestSaveUser_ConcurrentSameUsername(t *testing.T) {
	ctx := context.Background()
	s := New()

	const workers = 16
	username := gofakeit.Username()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := newUser()
			u.Username = username
			err := s.SaveUser(ctx, u)
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, storage.ErrUserExists):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
}

func TestUser_ByUsernameOrEmail(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser()
	require.NoError(t, s.SaveUser(ctx, u))

	byName, err := s.User(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := s.User(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.User(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := newUser()
	require.NoError(t, s.SaveUser(ctx, u))

	token := "refresh"
	require.NoError(t, s.UpdateUser(ctx, u.ID, storage.UserUpdate{RefreshToken: &token}))

	got, err := s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, token, got.RefreshToken)
	assert.Equal(t, u.PassHash, got.PassHash)

	empty := ""
	require.NoError(t, s.UpdateUser(ctx, u.ID, storage.UserUpdate{RefreshToken: &empty}))
	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.HasSession())

	err = s.UpdateUser(ctx, ids.New(), storage.UserUpdate{RefreshToken: &token})
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestReadModels(t *testing.T) {
	ctx := context.Background()
	s := New()

	channel, viewer, other := newUser(), newUser(), newUser()
	for _, u := range []models.User{channel, viewer, other} {
		require.NoError(t, s.SaveUser(ctx, u))
	}

	require.NoError(t, s.Subscribe(ctx, viewer.ID, channel.ID))
	require.NoError(t, s.Subscribe(ctx, other.ID, channel.ID))
	require.NoError(t, s.Subscribe(ctx, other.ID, channel.ID))
	require.NoError(t, s.Subscribe(ctx, channel.ID, other.ID))

	profile, err := s.ChannelProfile(ctx, channel.Username, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.SubscribersCount)
	assert.Equal(t, int64(1), profile.ChannelsSubscribedToCount)
	assert.True(t, profile.IsSubscribed)

	profile, err = s.ChannelProfile(ctx, channel.Username, channel.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsSubscribed)

	_, err = s.ChannelProfile(ctx, "missing", viewer.ID)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	video := models.Video{ID: ids.New(), Title: gofakeit.Sentence(3), OwnerID: channel.ID, IsPublished: true}
	require.NoError(t, s.SaveVideo(ctx, video))
	require.NoError(t, s.AddToWatchHistory(ctx, viewer.ID, video.ID))
	require.NoError(t, s.AddToWatchHistory(ctx, viewer.ID, ids.New()))

	history, err := s.WatchHistory(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, video.Title, history[0].Title)
	assert.Equal(t, channel.Username, history[0].Owner.Username)
}

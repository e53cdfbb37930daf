package mongodb

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
	"vidtube/internal/storage"
)

// setupMongo starts a disposable mongod and returns a connected Storage.
func setupMongo(t *testing.T) (context.Context, *Storage) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	s, err := New(ctx, uri, "vidtube_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return ctx, s
}

func newUser() models.User {
	return models.User{
		ID:       ids.New(),
		Username: gofakeit.Username(),
		Email:    gofakeit.Email(),
		FullName: gofakeit.Name(),
		PassHash: []byte("$2a$10$hash"),
		Avatar:   gofakeit.URL(),
	}
}

func TestStorage_Integration(t *testing.T) {
	ctx, s := setupMongo(t)

	t.Run("save and find by identity", func(t *testing.T) {
		u := newUser()
		require.NoError(t, s.SaveUser(ctx, u))

		byName, err := s.User(ctx, u.Username)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)
		assert.Equal(t, u.PassHash, byName.PassHash)
		assert.False(t, byName.HasSession())

		byEmail, err := s.User(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)

		_, err = s.UserByID(ctx, ids.New())
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("duplicate username or email", func(t *testing.T) {
		u := newUser()
		require.NoError(t, s.SaveUser(ctx, u))

		sameName := newUser()
		sameName.Username = u.Username
		assert.ErrorIs(t, s.SaveUser(ctx, sameName), storage.ErrUserExists)

		sameEmail := newUser()
		sameEmail.Email = u.Email
		assert.ErrorIs(t, s.SaveUser(ctx, sameEmail), storage.ErrUserExists)
	})

	t.Run("concurrent registrations", func(t *testing.T) {
		username := gofakeit.Username() + "x"
		var (
			wg sync.WaitGroup
			ok atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				u := newUser()
				u.Username = username
				if s.SaveUser(ctx, u) == nil {
					ok.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), ok.Load())
	})

	t.Run("update sets and clears refresh token", func(t *testing.T) {
		u := newUser()
		require.NoError(t, s.SaveUser(ctx, u))

		token := "refresh-token"
		require.NoError(t, s.UpdateUser(ctx, u.ID, storage.UserUpdate{RefreshToken: &token}))
		got, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, token, got.RefreshToken)

		empty := ""
		require.NoError(t, s.UpdateUser(ctx, u.ID, storage.UserUpdate{RefreshToken: &empty}))
		got, err = s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, got.HasSession())
		assert.Equal(t, u.PassHash, got.PassHash)

		err = s.UpdateUser(ctx, ids.New(), storage.UserUpdate{RefreshToken: &token})
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("channel profile and watch history", func(t *testing.T) {
		channel, viewer := newUser(), newUser()
		require.NoError(t, s.SaveUser(ctx, channel))
		require.NoError(t, s.SaveUser(ctx, viewer))
		require.NoError(t, s.Subscribe(ctx, viewer.ID, channel.ID))
		require.NoError(t, s.Subscribe(ctx, viewer.ID, channel.ID))

		profile, err := s.ChannelProfile(ctx, channel.Username, viewer.ID)
		require.NoError(t, err)
		assert.Equal(t, channel.ID, profile.ID)
		assert.Equal(t, int64(1), profile.SubscribersCount)
		assert.Equal(t, int64(0), profile.ChannelsSubscribedToCount)
		assert.True(t, profile.IsSubscribed)

		_, err = s.ChannelProfile(ctx, "no-such-channel", viewer.ID)
		assert.ErrorIs(t, err, storage.ErrUserNotFound)

		first := models.Video{ID: ids.New(), Title: "first", OwnerID: channel.ID, IsPublished: true}
		second := models.Video{ID: ids.New(), Title: "second", OwnerID: channel.ID, IsPublished: true}
		require.NoError(t, s.SaveVideo(ctx, first))
		require.NoError(t, s.SaveVideo(ctx, second))
		require.NoError(t, s.AddToWatchHistory(ctx, viewer.ID, second.ID))
		require.NoError(t, s.AddToWatchHistory(ctx, viewer.ID, first.ID))

		history, err := s.WatchHistory(ctx, viewer.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "second", history[0].Title)
		assert.Equal(t, "first", history[1].Title)
		assert.Equal(t, channel.Username, history[0].Owner.Username)
		assert.Equal(t, channel.ID, history[0].Owner.ID)
	})
}

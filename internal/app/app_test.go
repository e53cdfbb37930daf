package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidtube/internal/config"
	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
)

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)

	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: config.DriverMemory}},
		{name: "sqlite", cfg: config.StorageConfig{
			Driver:     config.DriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "nested", "vidtube.db"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := OpenStorage(ctx, log, &config.Config{Storage: tt.cfg})
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close(ctx) })

			user := models.User{
				ID:       ids.New(),
				Username: "channel",
				Email:    "channel@example.com",
				FullName: "Channel",
				PassHash: []byte("hash"),
			}
			require.NoError(t, st.SaveUser(ctx, user))

			got, err := st.User(ctx, "channel@example.com")
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
		})
	}

	_, err := OpenStorage(ctx, log, &config.Config{Storage: config.StorageConfig{Driver: "postgres"}})
	assert.Error(t, err)
}

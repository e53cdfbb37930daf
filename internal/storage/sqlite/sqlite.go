package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"vidtube/internal/domain/models"
	"vidtube/internal/storage"
)

type Storage struct {
	db *sql.DB
}

// New opens the database at storagePath. The schema must already be in
// place, see Migrate.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", storagePath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close(context.Context) error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.sqlite.SaveUser"

	now := time.Now().UTC()
	var refresh sql.NullString
	if user.RefreshToken != "" {
		refresh = sql.NullString{String: user.RefreshToken, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, full_name, pass_hash, avatar, cover_image, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.FullName, user.PassHash,
		user.Avatar, user.CoverImage, refresh, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

const userColumns = `id, username, email, full_name, pass_hash, avatar, cover_image, refresh_token, created_at, updated_at`

// User retrieves an account by username or email.
func (s *Storage) User(ctx context.Context, identity string) (models.User, error) {
	const op = "storage.sqlite.User"

	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ? OR email = ? LIMIT 1",
		identity, identity,
	)
	user, err := s.scanUser(ctx, row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, userID string) (models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID)
	user, err := s.scanUser(ctx, row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) scanUser(ctx context.Context, row *sql.Row) (models.User, error) {
	var (
		user    models.User
		refresh sql.NullString
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.PassHash,
		&user.Avatar, &user.CoverImage, &refresh, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}
	user.RefreshToken = refresh.String

	history, err := s.historyIDs(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	user.WatchHistory = history

	return user, nil
}

func (s *Storage) historyIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT video_id FROM watch_history WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UpdateUser writes only the columns present in upd.
func (s *Storage) UpdateUser(ctx context.Context, userID string, upd storage.UserUpdate) error {
	const op = "storage.sqlite.UpdateUser"

	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.PassHash != nil {
		sets = append(sets, "pass_hash = ?")
		args = append(args, upd.PassHash)
	}
	if upd.Avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, *upd.Avatar)
	}
	if upd.CoverImage != nil {
		sets = append(sets, "cover_image = ?")
		args = append(args, *upd.CoverImage)
	}
	if upd.RefreshToken != nil {
		sets = append(sets, "refresh_token = ?")
		args = append(args, sql.NullString{String: *upd.RefreshToken, Valid: *upd.RefreshToken != ""})
	}
	args = append(args, userID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (s *Storage) ChannelProfile(ctx context.Context, username, viewerID string) (models.Channel, error) {
	const op = "storage.sqlite.ChannelProfile"

	row := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image,
			(SELECT COUNT(*) FROM subscriptions WHERE channel_id = u.id),
			(SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = u.id),
			EXISTS (SELECT 1 FROM subscriptions WHERE channel_id = u.id AND subscriber_id = ?)
		FROM users u
		WHERE u.username = ?`,
		viewerID, username,
	)

	var ch models.Channel
	err := row.Scan(
		&ch.ID, &ch.Username, &ch.Email, &ch.FullName, &ch.Avatar, &ch.CoverImage,
		&ch.SubscribersCount, &ch.ChannelsSubscribedToCount, &ch.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Channel{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.Channel{}, fmt.Errorf("%s: %w", op, err)
	}

	return ch, nil
}

func (s *Storage) WatchHistory(ctx context.Context, userID string) ([]models.Video, error) {
	const op = "storage.sqlite.WatchHistory"

	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.video_file, v.thumbnail, v.title, v.description, v.duration,
			v.views, v.is_published, v.created_at,
			o.id, o.username, o.full_name, o.avatar
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		JOIN users o ON o.id = v.owner_id
		WHERE h.user_id = ?
		ORDER BY h.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		err := rows.Scan(
			&v.ID, &v.VideoFile, &v.Thumbnail, &v.Title, &v.Description, &v.Duration,
			&v.Views, &v.IsPublished, &v.CreatedAt,
			&v.Owner.ID, &v.Owner.Username, &v.Owner.FullName, &v.Owner.Avatar,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		v.OwnerID = v.Owner.ID
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return videos, nil
}

func (s *Storage) SaveVideo(ctx context.Context, video models.Video) error {
	const op = "storage.sqlite.SaveVideo"

	now := time.Now().UTC()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (id, video_file, thumbnail, title, description, duration, views, is_published, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.ID, video.VideoFile, video.Thumbnail, video.Title, video.Description,
		video.Duration, video.Views, video.IsPublished, video.OwnerID, video.CreatedAt, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: owner: %w", op, storage.ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	const op = "storage.sqlite.Subscribe"

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO subscriptions (subscriber_id, channel_id, created_at) VALUES (?, ?, ?)",
		subscriberID, channelID, time.Now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) AddToWatchHistory(ctx context.Context, userID, videoID string) error {
	const op = "storage.sqlite.AddToWatchHistory"

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO watch_history (user_id, video_id, watched_at) VALUES (?, ?, ?)",
		userID, videoID, time.Now().UTC(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

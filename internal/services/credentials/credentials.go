// Package credentials is the persistence and verification boundary for
// account and password data. It is the only place that hashes passwords.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vidtube/internal/domain/models"
	"vidtube/internal/lib/ids"
	"vidtube/internal/lib/sl"
	"vidtube/internal/storage"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

const maxPasswordBytes = 72

var (
	ErrInvalidCost     = errors.New("bcrypt cost out of range")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrEmptyPassword   = errors.New("password is empty")
)

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) error
}

type UserProvider interface {
	User(ctx context.Context, identity string) (models.User, error)
	UserByID(ctx context.Context, userID string) (models.User, error)
}

type UserUpdater interface {
	UpdateUser(ctx context.Context, userID string, upd storage.UserUpdate) error
}

type Store struct {
	logger       *slog.Logger
	userSaver    UserSaver
	userProvider UserProvider
	userUpdater  UserUpdater
	cost         int
}

// New returns a credential store hashing with the given bcrypt cost.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	userUpdater UserUpdater,
	cost int,
) (*Store, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("credentials.New: %w: %d", ErrInvalidCost, cost)
	}

	return &Store{
		logger:       logger,
		userSaver:    userSaver,
		userProvider: userProvider,
		userUpdater:  userUpdater,
		cost:         cost,
	}, nil
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizeIdentity prepares a username-or-email for lookup.
func NormalizeIdentity(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Create hashes the password, persists a new account and reads it back
// without secrets. Duplicates fail with storage.ErrUserExists.
func (s *Store) Create(ctx context.Context, candidate models.NewUser) (models.User, error) {
	const op = "credentials.Create"
	log := s.logger.With(slog.String("op", op))

	passHash, err := s.hash(candidate.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		ID:           ids.New(),
		Username:     NormalizeUsername(candidate.Username),
		Email:        NormalizeEmail(candidate.Email),
		FullName:     strings.TrimSpace(candidate.FullName),
		PassHash:     passHash,
		Avatar:       candidate.Avatar,
		CoverImage:   candidate.CoverImage,
		WatchHistory: []string{},
	}

	if err := s.userSaver.SaveUser(ctx, user); err != nil {
		if !errors.Is(err, storage.ErrUserExists) {
			log.Error("failed to save user", sl.Err(err))
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.userProvider.UserByID(ctx, user.ID)
	if err != nil {
		log.Error("failed to read back created user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: read back: %w", op, err)
	}

	return created.Sanitize(), nil
}

// FindByIdentity matches on username or email. The returned user carries
// the password hash so it can be verified.
func (s *Store) FindByIdentity(ctx context.Context, identity string) (models.User, error) {
	const op = "credentials.FindByIdentity"

	user, err := s.userProvider.User(ctx, NormalizeIdentity(identity))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID returns the stored account including secrets.
func (s *Store) UserByID(ctx context.Context, userID string) (models.User, error) {
	const op = "credentials.UserByID"

	user, err := s.userProvider.UserByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// VerifyPassword reports whether candidate matches the user's hash. A
// mismatch is a normal false, never an error.
func (s *Store) VerifyPassword(user models.User, candidate string) bool {
	if len(user.PassHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(user.PassHash, []byte(candidate)) == nil
}

// SetPassword re-hashes and stores a new password. The refresh token is
// left alone.
func (s *Store) SetPassword(ctx context.Context, userID, newPassword string) error {
	return s.Update(ctx, userID, models.UserPatch{Password: &newPassword})
}

// SetRefreshToken overwrites the stored refresh token; "" clears it.
func (s *Store) SetRefreshToken(ctx context.Context, userID, token string) error {
	return s.Update(ctx, userID, models.UserPatch{RefreshToken: &token})
}

func (s *Store) SetAvatar(ctx context.Context, userID, avatar string) error {
	return s.Update(ctx, userID, models.UserPatch{Avatar: &avatar})
}

// Update applies a partial write. The password is hashed only when the patch
// changes it, so unrelated updates never touch the stored hash.
func (s *Store) Update(ctx context.Context, userID string, patch models.UserPatch) error {
	const op = "credentials.Update"

	upd := storage.UserUpdate{
		Avatar:       patch.Avatar,
		CoverImage:   patch.CoverImage,
		RefreshToken: patch.RefreshToken,
	}

	if patch.Password != nil {
		passHash, err := s.hash(*patch.Password)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		upd.PassHash = passHash
	}

	if upd.IsEmpty() {
		return nil
	}

	if err := s.userUpdater.UpdateUser(ctx, userID, upd); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ValidatePassword reports whether password can be hashed. bcrypt only
// looks at the first 72 bytes, so longer input is refused.
func (s *Store) ValidatePassword(password string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case len(password) > maxPasswordBytes:
		return ErrPasswordTooLong
	}
	return nil
}

func (s *Store) hash(password string) ([]byte, error) {
	if err := s.ValidatePassword(password); err != nil {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, err
	}

	return passHash, nil
}

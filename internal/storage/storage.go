package storage

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// UserUpdate is a write against a stored account. It is already in storage
// form: PassHash is a hash, never a plaintext password.
type UserUpdate struct {
	PassHash   []byte
	Avatar     *string
	CoverImage *string
	// RefreshToken overwrites the stored token; a pointer to "" removes it.
	RefreshToken *string
}

// IsEmpty reports whether the update changes nothing.
func (u UserUpdate) IsEmpty() bool {
	return u.PassHash == nil && u.Avatar == nil && u.CoverImage == nil && u.RefreshToken == nil
}

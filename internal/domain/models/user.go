package models

import "time"

// User is a stored account. PassHash and RefreshToken never leave the service;
// use Sanitize before handing a User to anything outside the core.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PassHash     []byte    `json:"-"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	WatchHistory []string  `json:"watchHistory"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitize returns a copy of u without the password hash and refresh token.
func (u User) Sanitize() User {
	u.PassHash = nil
	u.RefreshToken = ""
	if u.WatchHistory == nil {
		u.WatchHistory = []string{}
	}
	return u
}

// HasSession reports whether the account holds an active refresh token.
func (u User) HasSession() bool {
	return u.RefreshToken != ""
}

// NewUser carries normalized registration fields. Password is plaintext and is
// hashed by the credential store before anything is persisted.
type NewUser struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     string
	CoverImage string
}

// UserPatch describes a partial update. Nil fields are left untouched.
type UserPatch struct {
	Password   *string
	Avatar     *string
	CoverImage *string
	// RefreshToken replaces the stored token; a pointer to "" clears it.
	RefreshToken *string
}

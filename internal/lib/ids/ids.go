// Package ids generates the opaque identifiers used for accounts, videos and
// requests. IDs are ULIDs: lexicographically sortable by creation time.
package ids

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalid = errors.New("ids: invalid id")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string for the current time.
func New() string {
	return NewAt(time.Now().UTC())
}

// NewAt returns a ULID string for t. Safe for concurrent use.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Parse validates s as a canonical ULID.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", ErrInvalid
	}
	return s, nil
}

package wardrobe

import (
	"context"
	"errors"
	"regexp"
)

// ErrInvalidSessionID is returned for session ids that are not safe to use as
// storage keys
var ErrInvalidSessionID = errors.New("invalid session id")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Store persists one wardrobe per session
type Store interface {
	// Load returns the session's collection, or an empty one if nothing was saved
	Load(ctx context.Context, sessionID string) (*Collection, error)
	// Save replaces the session's persisted collection
	Save(ctx context.Context, sessionID string, c *Collection) error
	// Delete removes everything persisted for the session
	Delete(ctx context.Context, sessionID string) error
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}

// ValidateSessionID rejects ids that could escape a storage namespace
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return ErrInvalidSessionID
	}
	return nil
}

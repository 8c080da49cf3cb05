package imagestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when no image is stored under a key
	ErrNotFound = errors.New("image not found")
	// ErrInvalidKey is returned for keys that are not safe storage names
	ErrInvalidKey = errors.New("invalid image key")
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Object is one stored image
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store keeps uploaded image bytes. Keys are one or two path segments
// ("ref" or "session/ref").
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey namespaces an image reference under its session
func ObjectKey(sessionID, ref string) string {
	return sessionID + "/" + ref
}

// ValidateKey checks key segments contain only safe characters
func ValidateKey(key string) error {
	segments := strings.Split(key, "/")
	if len(segments) > 2 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, segment := range segments {
		if !segmentPattern.MatchString(segment) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

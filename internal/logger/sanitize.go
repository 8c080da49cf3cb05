package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxSessionIDLength is the maximum length for session IDs in logs
	MaxSessionIDLength = 128
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
)

// SanitizePath sanitizes a URL path for safe logging. Unlike SanitizeString
// it also drops line breaks, which never belong in a path.
func SanitizePath(path string) string {
	return sanitize(path, MaxPathLength, false)
}

// SanitizeString sanitizes a general string for safe logging: invalid UTF-8
// and control characters other than whitespace are removed and the result is
// cut to maxLength bytes on a rune boundary
func SanitizeString(s string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	return sanitize(s, maxLength, true)
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeSessionID sanitizes a session ID for safe logging
func SanitizeSessionID(sessionID string) string {
	return SanitizeString(sessionID, MaxSessionIDLength)
}

func sanitize(s string, maxLength int, keepLineBreaks bool) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	var builder strings.Builder
	builder.Grow(len(s))
	truncated := false
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			if !keepLineBreaks {
				continue
			}
		case r == '\t' || r == ' ':
		case !unicode.IsPrint(r):
			continue
		}
		if builder.Len()+utf8.RuneLen(r) > maxLength {
			truncated = true
			break
		}
		builder.WriteRune(r)
	}
	if truncated {
		builder.WriteString("...")
	}
	return builder.String()
}

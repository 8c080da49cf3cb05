package middleware

import (
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Accepted request body media types
const (
	MediaTypeJSON      = "application/json"
	MediaTypeMultipart = "multipart/form-data"
	MediaTypeImage     = "image/*"
)

// ContentType validates Content-Type headers for requests with bodies.
// allowed entries are exact media types or a "type/*" wildcard.
func ContentType(logger *zap.Logger, allowed ...string) func(http.Handler) http.Handler {
	if len(allowed) == 0 {
		allowed = []string{MediaTypeJSON}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only validate Content-Type for methods that typically have bodies
			if r.Method != http.MethodPost && r.Method != http.MethodPatch && r.Method != http.MethodPut {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 && r.Header.Get("Content-Type") == "" {
				// Bodiless actions such as creating a session
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is required", logger)
				return
			}
			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || !mediaTypeAllowed(strings.ToLower(mediaType), allowed) {
				respondErrorJSON(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type",
					"Content-Type must be one of: "+strings.Join(allowed, ", "), logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func mediaTypeAllowed(mediaType string, allowed []string) bool {
	for _, a := range allowed {
		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
			continue
		}
		if mediaType == a {
			return true
		}
	}
	return false
}

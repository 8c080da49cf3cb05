package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/benvon/stylesync/internal/services/stylist"
)

// UploadField is the multipart form field that carries the image
const UploadField = "image"

// readUpload returns the uploaded image bytes, either from the "image" part
// of a multipart form or from a raw image body. At most maxBytes are read.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return nil, &stylist.ValidationError{Message: "Multipart upload is missing a boundary"}
	}
	reader := multipart.NewReader(r.Body, boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, &stylist.ValidationError{Message: "Multipart upload has no '" + UploadField + "' field"}
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, &stylist.ValidationError{Message: "Malformed multipart upload"}
		}
		if part.FormName() != UploadField {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		return data, err
	}
}

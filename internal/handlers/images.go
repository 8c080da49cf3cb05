package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ImageLoader returns a session's stored images
type ImageLoader interface {
	Image(ctx context.Context, sessionID, imageRef string) (*imagestore.Object, error)
}

// ImageHandler serves stored wardrobe images
type ImageHandler struct {
	images        ImageLoader
	thumbnailEdge int
	logger        *zap.Logger
}

// NewImageHandler creates a new image handler. A thumbnailEdge of zero uses
// ingest.DefaultThumbnailSize.
func NewImageHandler(images ImageLoader, thumbnailEdge int, logger *zap.Logger) *ImageHandler {
	if thumbnailEdge <= 0 {
		thumbnailEdge = ingest.DefaultThumbnailSize
	}
	return &ImageHandler{images: images, thumbnailEdge: thumbnailEdge, logger: logger}
}

// RegisterRoutes registers image routes
func (h *ImageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/images/{ref}", h.GetImage).Methods("GET")
}

// GetImage returns the original image bytes, or a PNG thumbnail with
// ?thumb=true
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	thumb := false
	if v := r.URL.Query().Get("thumb"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid thumb parameter")
			return
		}
		thumb = parsed
	}

	obj, err := h.images.Image(r.Context(), sid, mux.Vars(r)["ref"])
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	data, contentType := obj.Data, obj.ContentType
	if thumb {
		data, err = ingest.Thumbnail(obj.Data, h.thumbnailEdge)
		if err != nil {
			respondServiceError(w, r, h.logger, err)
			return
		}
		contentType = "image/png"
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("image_write_failed", zap.Error(err))
	}
}

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/stylesync/internal/middleware"
	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/request"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WardrobeHandler serves the wardrobe item and document endpoints
type WardrobeHandler struct {
	service        *stylist.Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewWardrobeHandler creates a new wardrobe handler. A maxUploadBytes of zero
// uses middleware.DefaultMaxRequestSize.
func NewWardrobeHandler(service *stylist.Service, maxUploadBytes int64, logger *zap.Logger) *WardrobeHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = middleware.DefaultMaxRequestSize
	}
	return &WardrobeHandler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes registers wardrobe routes
func (h *WardrobeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/wardrobe/items", h.ListItems).Methods("GET")
	r.HandleFunc("/api/v1/wardrobe/items", h.UploadItem).Methods("POST")
	r.HandleFunc("/api/v1/wardrobe/items/{id}", h.GetItem).Methods("GET")
	r.HandleFunc("/api/v1/wardrobe/items/{id}", h.DeleteItem).Methods("DELETE")
	r.HandleFunc("/api/v1/wardrobe/items/{id}/tags", h.UpdateTags).Methods("PATCH")
	r.HandleFunc("/api/v1/wardrobe", h.ClearWardrobe).Methods("DELETE")
	r.HandleFunc("/api/v1/wardrobe/export", h.ExportWardrobe).Methods("GET")
	r.HandleFunc("/api/v1/wardrobe/import", h.ImportWardrobe).Methods("POST")
	r.HandleFunc("/api/v1/wardrobe/stats", h.Stats).Methods("GET")
}

// ItemListResponse is the body of the list endpoint
type ItemListResponse struct {
	Items []*models.WardrobeItem `json:"items"`
	Total int                    `json:"total"`
}

// UpdateTagsRequest replaces an item's occasion tags
type UpdateTagsRequest struct {
	Tags []string `json:"tags"`
}

// AsyncUploadResponse is returned when analysis was queued
type AsyncUploadResponse struct {
	ImageRef string `json:"image_ref"`
	Status   string `json:"status"`
}

// sessionID returns the authenticated session or responds 401
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := request.SessionIDFromContext(r)
	if id == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "A session token is required")
		return "", false
	}
	return id, true
}

// ListItems returns every item in the session's wardrobe
func (h *WardrobeHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), sid)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// UploadItem analyzes an uploaded image and adds it to the wardrobe. With
// ?async=true the image is stored and analysis is queued instead.
func (h *WardrobeHandler) UploadItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	async := false
	if v := r.URL.Query().Get("async"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid async parameter")
			return
		}
		async = parsed
	}

	data, err := readUpload(w, r, h.maxUploadBytes)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	if async {
		stored, err := h.service.EnqueueImage(r.Context(), sid, data)
		if err != nil {
			respondServiceError(w, r, h.logger, err)
			return
		}
		respondJSON(w, http.StatusAccepted, AsyncUploadResponse{ImageRef: stored.ImageRef, Status: "queued"})
		return
	}

	result, err := h.service.AddFromImage(r.Context(), sid, data)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// GetItem returns one item
func (h *WardrobeHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, err := itemIDFromPath(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	item, err := h.service.Get(r.Context(), sid, id)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// UpdateTags replaces an item's occasion tags
func (h *WardrobeHandler) UpdateTags(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, err := itemIDFromPath(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	var req UpdateTagsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	if req.Tags == nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Field 'tags' is required")
		return
	}

	item, err := h.service.SetTags(r.Context(), sid, id, req.Tags)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DeleteItem removes an item and its image
func (h *WardrobeHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, err := itemIDFromPath(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	if err := h.service.Remove(r.Context(), sid, id); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearWardrobe removes every item of the session
func (h *WardrobeHandler) ClearWardrobe(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	removed, err := h.service.Clear(r.Context(), sid)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ExportedAtHeader carries the time a wardrobe export was produced
const ExportedAtHeader = "X-Exported-At"

// ExportWardrobe downloads the session's wardrobe document. The body is the
// document itself, without the response envelope, so it can be imported
// again unchanged. The export time travels in the X-Exported-At header.
func (h *WardrobeHandler) ExportWardrobe(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	data, err := h.service.Export(r.Context(), sid)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="wardrobe-%s.json"`, sid))
	w.Header().Set(ExportedAtHeader, time.Now().UTC().Format(time.RFC3339))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("export_write_failed", zap.Error(err))
	}
}

// ImportWardrobe replaces the session's wardrobe with an exported document
func (h *WardrobeHandler) ImportWardrobe(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	imported, err := h.service.Import(r.Context(), sid, data)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

// Stats returns the session's wardrobe statistics
func (h *WardrobeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), sid)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

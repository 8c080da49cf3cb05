package handlers

import (
	"net/http"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RecommendationHandler serves outfit suggestions
type RecommendationHandler struct {
	service *stylist.Service
	logger  *zap.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service *stylist.Service, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{service: service, logger: logger}
}

// RegisterRoutes registers recommendation routes
func (h *RecommendationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/recommendations", h.Recommend).Methods("POST")
}

// Recommend suggests an outfit from the session's wardrobe
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var query models.RecommendationQuery
	if err := decodeJSONBody(r, &query); err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Recommend(r.Context(), sid, query)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

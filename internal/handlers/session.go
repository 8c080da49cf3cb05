package handlers

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TokenIssuer mints session tokens
type TokenIssuer interface {
	Issue(sessionID string) (string, *session.Claims, error)
}

// SessionHandler creates anonymous wardrobe sessions
type SessionHandler struct {
	issuer TokenIssuer
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(issuer TokenIssuer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{issuer: issuer, logger: logger}
}

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegisterRoutes registers session routes. They are public.
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/sessions", h.CreateSession).Methods("POST")
}

// CreateSession starts a new, empty wardrobe session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := session.NewSessionID()
	token, claims, err := h.issuer.Issue(sessionID)
	if err != nil {
		h.logger.Error("session_issue_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create session")
		return
	}

	logpkg.WithSession(h.logger, sessionID).Info("session_created")
	respondJSON(w, http.StatusCreated, SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
	})
}

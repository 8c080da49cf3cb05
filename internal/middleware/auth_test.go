package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/stylesync/internal/request"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/session"
	"go.uber.org/zap"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*session.Claims, error) {
	if token != "good" {
		return nil, session.ErrInvalidToken
	}
	return &session.Claims{SessionID: "sess-1"}, nil
}

func TestSessionAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer good"}, http.StatusOK},
		{"lowercase scheme", map[string]string{"Authorization": "bearer good"}, http.StatusOK},
		{"session header", map[string]string{SessionHeader: "good"}, http.StatusOK},
		{"missing", nil, http.StatusUnauthorized},
		{"bad token", map[string]string{"Authorization": "Bearer bad"}, http.StatusUnauthorized},
		{"malformed header", map[string]string{"Authorization": "Token good extra"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotSession, gotAISession string
			handler := SessionAuth(fakeVerifier{}, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSession = request.SessionIDFromContext(r)
				gotAISession = ai.ExtractSessionID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/v1/wardrobe/items", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus == http.StatusOK && (gotSession != "sess-1" || gotAISession != "sess-1") {
				t.Errorf("Expected session in context, got %q / %q", gotSession, gotAISession)
			}
		})
	}
}

func TestSessionAuth_RealIssuer(t *testing.T) {
	t.Parallel()

	issuer, err := session.NewIssuer("0123456789abcdef0123456789abcdef", 0)
	if err != nil {
		t.Fatalf("NewIssuer() unexpected error: %v", err)
	}
	token, _, err := issuer.Issue("sess-42")
	if err != nil {
		t.Fatalf("Issue() unexpected error: %v", err)
	}

	var got string
	handler := SessionAuth(issuer, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = request.SessionIDFromContext(r)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "sess-42" {
		t.Errorf("Expected sess-42, got %q", got)
	}
}

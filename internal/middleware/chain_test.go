package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestContentType(t *testing.T) {
	t.Parallel()

	handler := ContentType(zap.NewNop(), MediaTypeJSON, MediaTypeMultipart, MediaTypeImage)(okHandler())

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{"json", "POST", "application/json; charset=utf-8", "{}", http.StatusOK},
		{"multipart", "POST", "multipart/form-data; boundary=x", "--x--", http.StatusOK},
		{"raw png", "POST", "image/png", "png", http.StatusOK},
		{"text", "POST", "text/plain", "hi", http.StatusUnsupportedMediaType},
		{"missing with body", "PATCH", "", "{}", http.StatusBadRequest},
		{"empty post", "POST", "", "", http.StatusOK},
		{"get ignored", "GET", "text/plain", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	handler := MaxRequestSize(4, zap.NewNop())(okHandler())

	req := httptest.NewRequest("POST", "/", strings.NewReader("too large"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/", strings.NewReader("ok"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	handler := RequestID(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "bad id with spaces")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got == "bad id with spaces" {
		t.Error("Expected a malformed request id to be replaced")
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	handler := SecurityHeaders(true)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/images/img_1", nil))
	if w.Header().Get("Cross-Origin-Resource-Policy") != "cross-origin" {
		t.Error("Expected images to be embeddable cross-origin")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("Expected no HSTS over plain HTTP")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff")
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Parallel()

	got := AllowedOrigins(" https://a.example/, https://b.example,https://a.example ,")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("AllowedOrigins() = %v", got)
	}
	if def := AllowedOrigins(""); len(def) != 1 || def[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins(\"\") = %v", def)
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	handler := CORS("https://app.example", zap.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/wardrobe/items", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS header for unknown origin, got %q", got)
	}
}

func TestRateLimit_MemoryStore(t *testing.T) {
	t.Parallel()

	mw, err := RateLimit(nil, "2-M", zap.NewNop())
	if err != nil {
		t.Fatalf("RateLimit() unexpected error: %v", err)
	}
	handler := mw(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Unexpected status sequence %v", codes)
	}

	if _, err := RateLimit(nil, "lots", zap.NewNop()); err == nil {
		t.Error("Expected an invalid rate to fail")
	}
}

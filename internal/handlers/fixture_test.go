package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	"github.com/benvon/stylesync/internal/request"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// fakeProvider answers by operation
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
}

func (p *fakeProvider) Generate(ctx context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[req.Operation]; err != nil {
		return "", err
	}
	return p.responses[req.Operation], nil
}

func (p *fakeProvider) set(op, response string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[op] = response
	if err != nil {
		p.errs[op] = err
	} else {
		delete(p.errs, op)
	}
}

type recordingQueue struct {
	mu   sync.Mutex
	refs []string
}

func (q *recordingQueue) EnqueueAnalysis(ctx context.Context, sessionID, imageRef string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs = append(q.refs, imageRef)
	return nil
}

type apiFixture struct {
	router   *mux.Router
	service  *stylist.Service
	provider *fakeProvider
	queue    *recordingQueue
}

func newAPIFixture(t *testing.T, withQueue bool) *apiFixture {
	t.Helper()

	f := &apiFixture{
		provider: &fakeProvider{
			responses: map[string]string{
				ingest.OperationAnalyzeImage: `{"category":"shirt","color":"white","fabric":"cotton","occasion":["work"],"season":["spring"]}`,
			},
			errs: map[string]error{},
		},
	}
	opts := stylist.ServiceOptions{}
	if withQueue {
		f.queue = &recordingQueue{}
		opts.Queue = f.queue
	}
	ing := ingest.NewIngester(imagestore.NewMemoryStore(), f.provider, ingest.Options{})
	f.service = stylist.NewService(wardrobe.NewMemoryStore(), ing,
		stylist.NewRecommender(f.provider, stylist.RecommenderOptions{}), opts)

	f.router = mux.NewRouter()
	logger := zap.NewNop()
	NewWardrobeHandler(f.service, 1<<20, logger).RegisterRoutes(f.router)
	NewRecommendationHandler(f.service, logger).RegisterRoutes(f.router)
	NewImageHandler(f.service, 4, logger).RegisterRoutes(f.router)
	return f
}

// do sends a request as the given session; an empty session sends none
func (f *apiFixture) do(t *testing.T, sessionID string, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if sessionID != "" {
		r = r.WithContext(request.WithSessionID(r.Context(), sessionID))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

// decodeData unwraps the response envelope into dst
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Fatal("Expected success to be true")
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func testPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		img.Set(x, x, color.RGBA{B: 180, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

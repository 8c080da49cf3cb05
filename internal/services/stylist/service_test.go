package stylist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/wardrobe"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs [][2]string
	err  error
}

func (q *fakeQueue) EnqueueAnalysis(ctx context.Context, sessionID, imageRef string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, [2]string{sessionID, imageRef})
	return nil
}

type serviceFixture struct {
	service  *Service
	store    *wardrobe.MemoryStore
	images   *imagestore.MemoryStore
	provider *scriptedProvider
	queue    *fakeQueue
}

func newServiceFixture(t *testing.T, analysis string) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		store:  wardrobe.NewMemoryStore(),
		images: imagestore.NewMemoryStore(),
		provider: &scriptedProvider{responses: map[string]string{
			ingest.OperationAnalyzeImage: analysis,
		}},
		queue: &fakeQueue{},
	}
	ing := ingest.NewIngester(f.images, f.provider, ingest.Options{})
	f.service = NewService(f.store, ing, NewRecommender(f.provider, RecommenderOptions{}), ServiceOptions{
		Queue: f.queue,
		Now:   func() time.Time { return testNow },
	})
	return f
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func TestService_AddFromImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"shirt","color":"blue","occasion":["work"]}`)

	added, err := f.service.AddFromImage(ctx, "sess", testPNG(t))
	if err != nil {
		t.Fatalf("AddFromImage() unexpected error: %v", err)
	}
	if added.Warning != "" || added.Item.Category != models.CategoryShirt || added.Image.Format != "png" {
		t.Errorf("Unexpected result: %+v", added)
	}

	items, err := f.service.List(ctx, "sess")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != added.Item.ID {
		t.Fatalf("Expected the item to be persisted, got %v", items)
	}
	if _, err := f.service.Image(ctx, "sess", added.Item.ImageRef); err != nil {
		t.Errorf("Image() unexpected error: %v", err)
	}
}

func TestService_AddFromImage_UnparsedAnalysisIsWarning(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, "")

	added, err := f.service.AddFromImage(context.Background(), "sess", testPNG(t))
	if err != nil {
		t.Fatalf("AddFromImage() unexpected error: %v", err)
	}
	if added.Warning == "" {
		t.Error("Expected a parse warning")
	}
	if added.Item.Category != models.CategoryUnknown || added.Item.Color != models.Unknown {
		t.Errorf("Expected unknown attributes, got %+v", added.Item)
	}
	if _, ok := f.store.Raw("sess"); !ok {
		t.Error("Expected the unknown item to be saved")
	}
}

func TestService_AddFromImage_FailuresDoNotSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("decode error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, `{"category":"shirt"}`)
		_, err := f.service.AddFromImage(ctx, "sess", []byte("not an image"))
		var decodeErr *ingest.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("Expected DecodeError, got %v", err)
		}
		if f.provider.calls(ingest.OperationAnalyzeImage) != 0 {
			t.Error("Expected no AI call for an invalid image")
		}
		if _, ok := f.store.Raw("sess"); ok {
			t.Error("Expected nothing to be saved")
		}
	})

	t.Run("external service error", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, "")
		f.provider.errs = map[string]error{ingest.OperationAnalyzeImage: errors.New("upstream unavailable")}

		_, err := f.service.AddFromImage(ctx, "sess", testPNG(t))
		var ese *ai.ExternalServiceError
		if !errors.As(err, &ese) {
			t.Fatalf("Expected ExternalServiceError, got %v", err)
		}
		if _, ok := f.store.Raw("sess"); ok {
			t.Error("Expected nothing to be saved")
		}
		if f.images.Len() != 0 {
			t.Errorf("Expected the stored image to be removed, %d left", f.images.Len())
		}
	})

	t.Run("invalid session", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t, "")
		if _, err := f.service.AddFromImage(ctx, "../etc", testPNG(t)); !errors.Is(err, wardrobe.ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
	})
}

func TestService_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"dress"}`)

	added, err := f.service.AddFromImage(ctx, "alice", testPNG(t))
	if err != nil {
		t.Fatalf("AddFromImage() unexpected error: %v", err)
	}

	items, err := f.service.List(ctx, "bob")
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected bob's wardrobe to be empty, got %d items", len(items))
	}
	if _, err := f.service.Get(ctx, "bob", added.Item.ID); !errors.Is(err, wardrobe.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound across sessions, got %v", err)
	}
	if _, err := f.service.Image(ctx, "bob", added.Item.ImageRef); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("Expected image to be invisible to other sessions, got %v", err)
	}
}

func TestService_ConcurrentAddsAreAllRecorded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"t-shirt"}`)
	data := testPNG(t)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.AddFromImage(ctx, "sess", data); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddFromImage() unexpected error: %v", err)
	}

	items, _ := f.service.List(ctx, "sess")
	if len(items) != n {
		t.Errorf("Expected %d items, got %d", n, len(items))
	}
}

func TestService_Recommend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"shirt","occasion":["work"]}`)

	var empty *EmptyWardrobeError
	if _, err := f.service.Recommend(ctx, "sess", models.RecommendationQuery{Occasion: "work"}); !errors.As(err, &empty) {
		t.Fatalf("Expected EmptyWardrobeError, got %v", err)
	}

	added, err := f.service.AddFromImage(ctx, "sess", testPNG(t))
	if err != nil {
		t.Fatalf("AddFromImage() unexpected error: %v", err)
	}
	f.provider.mu.Lock()
	f.provider.responses[OperationRecommendOutfit] = fmt.Sprintf(`{"selected_item_ids":["%s"],"rationale":"Sharp","style_tips":[]}`, added.Item.ID)
	f.provider.mu.Unlock()

	result, err := f.service.Recommend(ctx, "sess", models.RecommendationQuery{Occasion: "work"})
	if err != nil {
		t.Fatalf("Recommend() unexpected error: %v", err)
	}
	if len(result.SelectedItemIDs) != 1 || result.SelectedItemIDs[0] != added.Item.ID || result.Rationale != "Sharp" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestService_EditOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"jeans","season":"fall"}`)

	first, _ := f.service.AddFromImage(ctx, "sess", testPNG(t))
	second, _ := f.service.AddFromImage(ctx, "sess", testPNG(t))
	if first == nil || second == nil {
		t.Fatal("Expected both uploads to succeed")
	}

	tagged, err := f.service.SetTags(ctx, "sess", first.Item.ID, []string{"Weekend", "casual"})
	if err != nil {
		t.Fatalf("SetTags() unexpected error: %v", err)
	}
	if !tagged.HasTag("weekend") || !tagged.HasTag("casual") {
		t.Errorf("Unexpected tags: %v", tagged.OccasionTags)
	}
	var verr *ValidationError
	if _, err := f.service.SetTags(ctx, "sess", first.Item.ID, []string{}); err != nil {
		t.Errorf("Expected clearing tags to succeed, got %v", err)
	}
	if _, err := f.service.SetTags(ctx, "sess", first.Item.ID, []string{strings.Repeat("x", 80)}); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for an over-long tag, got %v", err)
	}

	stats, err := f.service.Stats(ctx, "sess")
	if err != nil || stats.TotalItems != 2 {
		t.Fatalf("Stats() = %+v, %v", stats, err)
	}

	if err := f.service.Remove(ctx, "sess", first.Item.ID); err != nil {
		t.Fatalf("Remove() unexpected error: %v", err)
	}
	if err := f.service.Remove(ctx, "sess", first.Item.ID); !errors.Is(err, wardrobe.ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound on second remove, got %v", err)
	}
	if f.images.Len() != 1 {
		t.Errorf("Expected the removed item's image to be deleted, %d images left", f.images.Len())
	}

	removed, err := f.service.Clear(ctx, "sess")
	if err != nil || removed != 1 {
		t.Fatalf("Clear() = %d, %v", removed, err)
	}
	if f.images.Len() != 0 {
		t.Errorf("Expected Clear to delete images, %d left", f.images.Len())
	}
}

func TestService_ExportImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"coat","color":"camel"}`)

	added, _ := f.service.AddFromImage(ctx, "source", testPNG(t))
	data, err := f.service.Export(ctx, "source")
	if err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"version": 1`)) || bytes.Contains(data, []byte(`"exported_at"`)) {
		t.Errorf("Unexpected export document:\n%s", data)
	}

	n, err := f.service.Import(ctx, "target", data)
	if err != nil || n != 1 {
		t.Fatalf("Import() = %d, %v", n, err)
	}
	got, err := f.service.Get(ctx, "target", added.Item.ID)
	if err != nil || got.Color != "camel" {
		t.Errorf("Get() after import = %+v, %v", got, err)
	}

	var verr *ValidationError
	if _, err := f.service.Import(ctx, "target", []byte(`{"version": 9, "items": []}`)); !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError for unsupported version, got %v", err)
	}
	if items, _ := f.service.List(ctx, "target"); len(items) != 1 {
		t.Errorf("Expected a failed import to leave the wardrobe untouched, got %d items", len(items))
	}
}

func TestService_ExportIsStable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	provider := &scriptedProvider{responses: map[string]string{
		ingest.OperationAnalyzeImage: `{"category":"shirt","color":"blue"}`,
	}}
	ing := ingest.NewIngester(imagestore.NewMemoryStore(), provider, ingest.Options{})
	svc := NewService(wardrobe.NewMemoryStore(), ing, NewRecommender(provider, RecommenderOptions{}), ServiceOptions{})

	if _, err := svc.AddFromImage(ctx, "sess", testPNG(t)); err != nil {
		t.Fatalf("AddFromImage() unexpected error: %v", err)
	}
	first, err := svc.Export(ctx, "sess")
	if err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Export(ctx, "sess")
	if err != nil {
		t.Fatalf("Export() unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("Expected repeated exports to match:\n%s\n%s", first, second)
	}
}

func TestService_EnqueueAndAnalyzeStored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newServiceFixture(t, `{"category":"skirt"}`)

	stored, err := f.service.EnqueueImage(ctx, "sess", testPNG(t))
	if err != nil {
		t.Fatalf("EnqueueImage() unexpected error: %v", err)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0] != [2]string{"sess", stored.ImageRef} {
		t.Fatalf("Unexpected jobs: %v", f.queue.jobs)
	}
	if items, _ := f.service.List(ctx, "sess"); len(items) != 0 {
		t.Error("Expected no item before analysis")
	}

	first, err := f.service.AnalyzeStored(ctx, "sess", stored.ImageRef)
	if err != nil {
		t.Fatalf("AnalyzeStored() unexpected error: %v", err)
	}
	again, err := f.service.AnalyzeStored(ctx, "sess", stored.ImageRef)
	if err != nil {
		t.Fatalf("AnalyzeStored() second call unexpected error: %v", err)
	}
	if first.Item.ID != again.Item.ID {
		t.Error("Expected repeated analysis to return the same item")
	}
	if calls := f.provider.calls(ingest.OperationAnalyzeImage); calls != 1 {
		t.Errorf("Expected one AI call, got %d", calls)
	}

	if _, err := f.service.AnalyzeStored(ctx, "sess", "img_missing"); !errors.Is(err, imagestore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown image, got %v", err)
	}
}

func TestService_EnqueueImage_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, "")
	f.queue.err = errors.New("broker down")
	if _, err := f.service.EnqueueImage(ctx, "sess", testPNG(t)); err == nil {
		t.Fatal("Expected enqueue failure")
	}
	if f.images.Len() != 0 {
		t.Error("Expected the image to be discarded when enqueueing fails")
	}

	plain := NewService(wardrobe.NewMemoryStore(), ingest.NewIngester(imagestore.NewMemoryStore(), &scriptedProvider{}, ingest.Options{}), nil, ServiceOptions{})
	if plain.AsyncEnabled() {
		t.Error("Expected async to be disabled without a queue")
	}
	if _, err := plain.EnqueueImage(ctx, "sess", testPNG(t)); !errors.Is(err, ErrAsyncUnavailable) {
		t.Errorf("Expected ErrAsyncUnavailable, got %v", err)
	}
}

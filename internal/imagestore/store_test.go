package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestValidateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key   string
		valid bool
	}{
		{"img_123", true},
		{"session-1/img_123", true},
		{"", false},
		{"../secret", false},
		{"a/b/c", false},
		{"a/", false},
		{"a b", false},
	}
	for _, tt := range tests {
		if err := ValidateKey(tt.key); (err == nil) != tt.valid {
			t.Errorf("ValidateKey(%q) error = %v, valid %v", tt.key, err, tt.valid)
		}
	}
}

func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	key := ObjectKey("session-1", "img_abc")

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before Put, got %v", err)
	}
	if err := store.Put(ctx, key, "image/png", pngHeader); err != nil {
		t.Fatalf("Put() unexpected error: %v", err)
	}
	obj, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if !bytes.Equal(obj.Data, pngHeader) {
		t.Error("Stored bytes were modified")
	}
	if obj.ContentType != "image/png" {
		t.Errorf("ContentType = %q, want image/png", obj.ContentType)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Delete, got %v", err)
	}
	if err := store.Put(ctx, "../escape", "image/png", pngHeader); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	storeContract(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() unexpected error: %v", err)
	}
	storeContract(t, store)
}

type fakeS3 struct {
	objects map[string]*s3.PutObjectInput
	bodies  map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]*s3.PutObjectInput{}, bodies: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = in
	f.bodies[key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	put, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(f.bodies[key])),
		ContentType: put.ContentType,
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	delete(f.objects, key)
	delete(f.bodies, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	t.Parallel()

	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "wardrobe-images", "uploads/")
	storeContract(t, store)

	_ = store.Put(context.Background(), "s/img_1", "image/jpeg", []byte("x"))
	put, ok := fake.objects["uploads/s/img_1"]
	if !ok {
		t.Fatal("Expected object under prefixed key")
	}
	if aws.ToString(put.Bucket) != "wardrobe-images" {
		t.Errorf("Bucket = %q", aws.ToString(put.Bucket))
	}
}

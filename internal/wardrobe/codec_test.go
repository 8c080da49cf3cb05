package wardrobe

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/benvon/stylesync/internal/models"
)

func TestEncode_Deterministic(t *testing.T) {
	t.Parallel()

	c := NewCollection()
	_ = c.Add(newItem(models.CategoryShirt, "work"))
	_ = c.Add(newItem(models.CategoryDress, "party", "date night"))

	first, err := Encode(NewDocument("session-1", c))
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	second, err := Encode(NewDocument("session-1", c))
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("Encoding is not byte-identical:\n%s\n---\n%s", first, second)
	}
	if strings.Contains(string(first), "exported_at") {
		t.Error("Canonical encoding should not carry exported_at")
	}
}

func TestEncodeDecode_RoundTripIsStable(t *testing.T) {
	t.Parallel()

	c := NewCollection()
	_ = c.Add(newItem(models.CategoryJacket, "outdoor"))

	encoded, err := Encode(NewDocument("s", c))
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	doc, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}
	reencoded, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("Decode/Encode changed the document:\n%s\n---\n%s", encoded, reencoded)
	}
}

func TestEncode_EmptyCollection(t *testing.T) {
	t.Parallel()

	encoded, err := Encode(NewDocument("s", NewCollection()))
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if !strings.Contains(string(encoded), `"items": []`) {
		t.Errorf("Expected empty items array, got %s", encoded)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	const id = "6f1c2a8e-5d0b-4c8e-9a57-1f2e3d4c5b6a"
	tests := []struct {
		name    string
		input   string
		wantErr error
		check   func(*testing.T, *models.WardrobeDocument)
	}{
		{
			name:  "current version",
			input: `{"version":1,"session_id":"s","items":[{"id":"` + id + `","image_ref":"img_1","category":"shirt","color":"blue"}]}`,
			check: func(t *testing.T, doc *models.WardrobeDocument) {
				item := doc.Items[0]
				if item.Color != "blue" || item.Fabric != models.Unknown {
					t.Errorf("Unexpected item: %+v", item)
				}
				if item.OccasionTags == nil {
					t.Error("Expected non-nil occasion tags")
				}
			},
		},
		{
			name:  "legacy bare array",
			input: `[{"id":"` + id + `","image_ref":"img_1","category":"Trousers"}]`,
			check: func(t *testing.T, doc *models.WardrobeDocument) {
				if doc.Version != models.WardrobeDocumentVersion {
					t.Errorf("Expected upgraded version, got %d", doc.Version)
				}
				if doc.Items[0].Category != models.CategoryPants {
					t.Errorf("Expected category normalized to pants, got %q", doc.Items[0].Category)
				}
			},
		},
		{
			name:    "unknown version",
			input:   `{"version":7,"items":[]}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "missing version",
			input:   `{"items":[]}`,
			wantErr: ErrUnsupportedVersion,
		},
		{
			name:    "duplicate ids",
			input:   `{"version":1,"items":[{"id":"` + id + `"},{"id":"` + id + `"}]}`,
			wantErr: ErrDuplicateItem,
		},
		{name: "empty", input: "  "},
		{name: "garbage", input: "{not json"},
		{name: "null item", input: `{"version":1,"items":[null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Decode([]byte(tt.input))
			if tt.check == nil {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			tt.check(t, doc)
		})
	}
}

package wardrobe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benvon/stylesync/internal/models"
)

// ErrUnsupportedVersion is returned when a document carries an unknown version
var ErrUnsupportedVersion = errors.New("unsupported wardrobe document version")

// NewDocument builds the persisted form of a collection. ExportedAt is left
// unset so the encoding depends only on the collection contents.
func NewDocument(sessionID string, c *Collection) *models.WardrobeDocument {
	return &models.WardrobeDocument{
		Version:   models.WardrobeDocumentVersion,
		SessionID: sessionID,
		Items:     c.Items(),
	}
}

// Encode renders a document as indented JSON with a trailing newline.
// Encoding the same document twice yields identical bytes.
func Encode(doc *models.WardrobeDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot encode nil document")
	}
	out := *doc
	if out.Items == nil {
		out.Items = []*models.WardrobeItem{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode wardrobe document: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a wardrobe document. A bare JSON array of items, the layout
// written before documents were versioned, is accepted and upgraded.
func Decode(data []byte) (*models.WardrobeDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty wardrobe document")
	}

	doc := &models.WardrobeDocument{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &doc.Items); err != nil {
			return nil, fmt.Errorf("failed to decode wardrobe items: %w", err)
		}
		doc.Version = models.WardrobeDocumentVersion
	} else if err := json.Unmarshal(trimmed, doc); err != nil {
		return nil, fmt.Errorf("failed to decode wardrobe document: %w", err)
	}

	if doc.Version != models.WardrobeDocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	c, err := FromDocument(doc)
	if err != nil {
		return nil, err
	}
	doc.Items = c.Items()
	return doc, nil
}

// FromDocument rebuilds a collection from a decoded document, filling any
// attribute an older document left out with the unknown sentinel.
func FromDocument(doc *models.WardrobeDocument) (*Collection, error) {
	c := NewCollection()
	for i, item := range doc.Items {
		if item == nil {
			return nil, fmt.Errorf("item %d is null", i)
		}
		if err := c.Add(fillMissing(item)); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return c, nil
}

func fillMissing(item *models.WardrobeItem) *models.WardrobeItem {
	out := item.Clone()
	if out.Category == "" {
		out.Category = models.CategoryUnknown
	} else if !out.Category.Valid() {
		out.Category = models.ParseCategory(string(out.Category))
	}
	for _, field := range []*string{&out.Color, &out.Fabric, &out.Description, &out.Pattern, &out.Fit, &out.Gender} {
		if *field == "" {
			*field = models.Unknown
		}
	}
	return out
}

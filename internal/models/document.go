package models

import "time"

// WardrobeDocumentVersion is the version written into every persisted document
const WardrobeDocumentVersion = 1

// WardrobeDocument is the persisted and exported form of a session's wardrobe
type WardrobeDocument struct {
	Version    int             `json:"version"`
	SessionID  string          `json:"session_id"`
	ExportedAt *time.Time      `json:"exported_at,omitempty"`
	Items      []*WardrobeItem `json:"items"`
}

// CategoryCount is one row of the category distribution
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// WardrobeStats summarizes a wardrobe
type WardrobeStats struct {
	TotalItems int             `json:"total_items"`
	Categories []CategoryCount `json:"categories"`
	Seasons    map[Season]int  `json:"seasons"`
	Tags       map[string]int  `json:"tags"`
}

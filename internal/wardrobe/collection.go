package wardrobe

import (
	"errors"
	"fmt"

	"github.com/benvon/stylesync/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrItemNotFound is returned when an item id is not in the collection
	ErrItemNotFound = errors.New("wardrobe item not found")
	// ErrDuplicateItem is returned when an id is added twice
	ErrDuplicateItem = errors.New("duplicate wardrobe item id")
)

// Collection is the ordered list of items in one wardrobe. Order is the order
// items were added. A Collection is not safe for concurrent use; callers
// serialize access per session with a Locker.
type Collection struct {
	items []*models.WardrobeItem
	index map[uuid.UUID]int
}

// NewCollection returns an empty collection
func NewCollection() *Collection {
	return &Collection{index: make(map[uuid.UUID]int)}
}

// Add appends an item. The collection keeps its own copy.
func (c *Collection) Add(item *models.WardrobeItem) error {
	if item == nil {
		return fmt.Errorf("cannot add nil item")
	}
	if item.ID == uuid.Nil {
		return fmt.Errorf("item id is required")
	}
	if _, exists := c.index[item.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
	}

	stored := item.Clone()
	stored.OccasionTags = models.NormalizeTags(stored.OccasionTags)
	c.index[stored.ID] = len(c.items)
	c.items = append(c.items, stored)
	return nil
}

// Get returns a copy of the item with the given id
func (c *Collection) Get(id uuid.UUID) (*models.WardrobeItem, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return c.items[i].Clone(), nil
}

// Items returns copies of every item in insertion order
func (c *Collection) Items() []*models.WardrobeItem {
	out := make([]*models.WardrobeItem, len(c.items))
	for i, item := range c.items {
		out[i] = item.Clone()
	}
	return out
}

// IDs returns the item ids in insertion order
func (c *Collection) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(c.items))
	for i, item := range c.items {
		out[i] = item.ID
	}
	return out
}

// Contains reports whether id is in the collection
func (c *Collection) Contains(id uuid.UUID) bool {
	_, ok := c.index[id]
	return ok
}

// FindByImageRef returns a copy of the first item created from the image
func (c *Collection) FindByImageRef(ref string) (*models.WardrobeItem, bool) {
	for _, item := range c.items {
		if item.ImageRef == ref {
			return item.Clone(), true
		}
	}
	return nil, false
}

// Len returns the number of items
func (c *Collection) Len() int {
	return len(c.items)
}

// SetTags replaces an item's occasion tags. It is the only mutation allowed on
// an item once it has been added.
func (c *Collection) SetTags(id uuid.UUID, tags []string) (*models.WardrobeItem, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	c.items[i].OccasionTags = models.NormalizeTags(tags)
	return c.items[i].Clone(), nil
}

// Remove deletes an item, keeping the order of the rest
func (c *Collection) Remove(id uuid.UUID) error {
	i, ok := c.index[id]
	if !ok {
		return ErrItemNotFound
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindex()
	return nil
}

// Clear removes every item and returns how many were removed
func (c *Collection) Clear() int {
	n := len(c.items)
	c.items = nil
	c.index = make(map[uuid.UUID]int)
	return n
}

// Stats counts items per category, season and tag
func (c *Collection) Stats() models.WardrobeStats {
	stats := models.WardrobeStats{
		TotalItems: len(c.items),
		Categories: []models.CategoryCount{},
		Seasons:    map[models.Season]int{},
		Tags:       map[string]int{},
	}

	perCategory := make(map[models.Category]int)
	for _, item := range c.items {
		perCategory[item.Category]++
		for _, s := range item.Seasons {
			stats.Seasons[s]++
		}
		for _, t := range item.OccasionTags {
			stats.Tags[t]++
		}
	}

	for _, category := range models.Categories {
		if n := perCategory[category]; n > 0 {
			stats.Categories = append(stats.Categories, models.CategoryCount{Category: category, Count: n})
		}
	}
	return stats
}

func (c *Collection) reindex() {
	c.index = make(map[uuid.UUID]int, len(c.items))
	for i, item := range c.items {
		c.index[item.ID] = i
	}
}

// Session is the wardrobe owned by one session. It is loaded from a Store,
// passed explicitly through each pipeline call and saved afterwards.
type Session struct {
	ID         string
	Collection *Collection
}

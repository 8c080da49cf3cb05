package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unknown is the sentinel stored in any attribute the AI capability did not
// describe in a usable shape.
const Unknown = "unknown"

// Category represents the clothing type of a wardrobe item
type Category string

const (
	CategoryTShirt     Category = "t-shirt"
	CategoryShirt      Category = "shirt"
	CategoryBlouse     Category = "blouse"
	CategorySweater    Category = "sweater"
	CategoryHoodie     Category = "hoodie"
	CategoryJacket     Category = "jacket"
	CategoryCoat       Category = "coat"
	CategoryDress      Category = "dress"
	CategorySkirt      Category = "skirt"
	CategoryPants      Category = "pants"
	CategoryJeans      Category = "jeans"
	CategoryShorts     Category = "shorts"
	CategorySuit       Category = "suit"
	CategoryActivewear Category = "activewear"
	CategorySwimwear   Category = "swimwear"
	CategoryShoes      Category = "shoes"
	CategoryAccessory  Category = "accessory"
	CategoryUnknown    Category = Unknown
)

// Categories lists every known category in display order, unknown last.
var Categories = []Category{
	CategoryTShirt, CategoryShirt, CategoryBlouse, CategorySweater, CategoryHoodie,
	CategoryJacket, CategoryCoat, CategoryDress, CategorySkirt, CategoryPants,
	CategoryJeans, CategoryShorts, CategorySuit, CategoryActivewear, CategorySwimwear,
	CategoryShoes, CategoryAccessory, CategoryUnknown,
}

// categoryAliases maps normalized free text to a category
var categoryAliases = map[string]Category{
	"t-shirt": CategoryTShirt, "tshirt": CategoryTShirt, "tee": CategoryTShirt, "t shirt": CategoryTShirt,
	"tank top": CategoryTShirt, "top": CategoryTShirt, "polo": CategoryShirt, "polo shirt": CategoryShirt,
	"shirt": CategoryShirt, "button-down": CategoryShirt, "button down": CategoryShirt, "dress shirt": CategoryShirt,
	"blouse": CategoryBlouse,
	"sweater": CategorySweater, "jumper": CategorySweater, "cardigan": CategorySweater, "pullover": CategorySweater,
	"hoodie": CategoryHoodie, "sweatshirt": CategoryHoodie,
	"jacket": CategoryJacket, "blazer": CategoryJacket, "windbreaker": CategoryJacket,
	"coat": CategoryCoat, "overcoat": CategoryCoat, "trench coat": CategoryCoat, "parka": CategoryCoat,
	"dress": CategoryDress, "gown": CategoryDress,
	"skirt": CategorySkirt,
	"pants": CategoryPants, "trousers": CategoryPants, "chinos": CategoryPants, "slacks": CategoryPants,
	"leggings": CategoryPants, "joggers": CategoryPants,
	"jeans": CategoryJeans, "denim": CategoryJeans,
	"shorts": CategoryShorts,
	"suit": CategorySuit,
	"activewear": CategoryActivewear, "sportswear": CategoryActivewear, "athletic": CategoryActivewear,
	"swimwear": CategorySwimwear, "swimsuit": CategorySwimwear, "bikini": CategorySwimwear, "swim trunks": CategorySwimwear,
	"shoes": CategoryShoes, "shoe": CategoryShoes, "sneakers": CategoryShoes, "boots": CategoryShoes,
	"sandals": CategoryShoes, "heels": CategoryShoes, "loafers": CategoryShoes,
	"accessory": CategoryAccessory, "accessories": CategoryAccessory, "hat": CategoryAccessory, "cap": CategoryAccessory,
	"scarf": CategoryAccessory, "belt": CategoryAccessory, "bag": CategoryAccessory, "tie": CategoryAccessory,
}

// ParseCategory maps free-form text to a Category. Anything it cannot place
// becomes CategoryUnknown.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.Join(strings.Fields(key), " ")
	if key == "" {
		return CategoryUnknown
	}
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	// Plurals ("shirts", "dresses")
	for _, suffix := range []string{"es", "s"} {
		if trimmed := strings.TrimSuffix(key, suffix); trimmed != key {
			if c, ok := categoryAliases[trimmed]; ok {
				return c
			}
		}
	}
	// Qualified names ("denim jacket", "long sleeve shirt"): last word decides
	if fields := strings.Fields(key); len(fields) > 1 {
		return ParseCategory(fields[len(fields)-1])
	}
	return CategoryUnknown
}

// Valid reports whether c is one of the enumerated categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// WardrobeItem represents one analyzed clothing entry
type WardrobeItem struct {
	ID           uuid.UUID `json:"id"`
	ImageRef     string    `json:"image_ref"`
	Category     Category  `json:"category"`
	Color        string    `json:"color"`
	Fabric       string    `json:"fabric"`
	OccasionTags []string  `json:"occasion_tags"`
	Description  string    `json:"description"`
	Pattern      string    `json:"pattern"`
	Fit          string    `json:"fit"`
	Gender       string    `json:"gender"`
	Seasons      []Season  `json:"seasons"`
	Features     []string  `json:"features"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewUnknownItem returns an item whose every attribute is the Unknown sentinel
func NewUnknownItem(imageRef string, createdAt time.Time) *WardrobeItem {
	return &WardrobeItem{
		ID:           uuid.New(),
		ImageRef:     imageRef,
		Category:     CategoryUnknown,
		Color:        Unknown,
		Fabric:       Unknown,
		OccasionTags: []string{},
		Description:  Unknown,
		Pattern:      Unknown,
		Fit:          Unknown,
		Gender:       Unknown,
		Seasons:      []Season{},
		Features:     []string{},
		CreatedAt:    createdAt.UTC(),
	}
}

// Clone returns a deep copy of the item
func (i *WardrobeItem) Clone() *WardrobeItem {
	if i == nil {
		return nil
	}
	c := *i
	c.OccasionTags = append([]string{}, i.OccasionTags...)
	c.Seasons = append([]Season{}, i.Seasons...)
	c.Features = append([]string{}, i.Features...)
	return &c
}

// HasTag reports whether the item carries the given occasion tag
func (i *WardrobeItem) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range i.OccasionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SuitsSeason reports whether the item is marked for the season. Items with
// no season information, and the "any" season, match everything.
func (i *WardrobeItem) SuitsSeason(s Season) bool {
	if s == SeasonAny || s == "" || len(i.Seasons) == 0 {
		return true
	}
	for _, own := range i.Seasons {
		if own == s || own == SeasonAny {
			return true
		}
	}
	return false
}

// NormalizeTag lower-cases and trims a tag, collapsing inner whitespace
func NormalizeTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), " ")
}

// NormalizeTags returns the set of tags sorted, lower-cased and without
// duplicates or empty entries. The result is never nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

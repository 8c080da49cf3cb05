package models

import (
	"reflect"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Category
	}{
		{"Shirt", CategoryShirt},
		{"  T-Shirt ", CategoryTShirt},
		{"tee", CategoryTShirt},
		{"Trousers", CategoryPants},
		{"dresses", CategoryDress},
		{"sneakers", CategoryShoes},
		{"Denim Jacket", CategoryJacket},
		{"long sleeve shirt", CategoryShirt},
		{"", CategoryUnknown},
		{"spaceship", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := ParseCategory(tt.input); got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCategory_Valid(t *testing.T) {
	t.Parallel()

	for _, c := range Categories {
		if !c.Valid() {
			t.Errorf("Expected %q to be valid", c)
		}
	}
	if Category("cape").Valid() {
		t.Error("Expected 'cape' to be invalid")
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	got := NormalizeTags([]string{"Work", " casual ", "work", "", "Date  Night"})
	want := []string{"casual", "date night", "work"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}

	if empty := NormalizeTags(nil); empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", empty)
	}
}

func TestNewUnknownItem(t *testing.T) {
	t.Parallel()

	item := NewUnknownItem("img_1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	for name, v := range map[string]string{
		"category":    string(item.Category),
		"color":       item.Color,
		"fabric":      item.Fabric,
		"description": item.Description,
		"pattern":     item.Pattern,
		"fit":         item.Fit,
		"gender":      item.Gender,
	} {
		if v != Unknown {
			t.Errorf("Expected %s to be %q, got %q", name, Unknown, v)
		}
	}
	if item.OccasionTags == nil || item.Seasons == nil || item.Features == nil {
		t.Error("Expected list attributes to be empty, not nil")
	}
}

func TestWardrobeItem_CloneIsDeep(t *testing.T) {
	t.Parallel()

	item := NewUnknownItem("img_1", time.Now())
	item.OccasionTags = []string{"work"}
	clone := item.Clone()
	clone.OccasionTags[0] = "party"

	if item.OccasionTags[0] != "work" {
		t.Errorf("Mutating the clone changed the original: %v", item.OccasionTags)
	}
}

func TestWardrobeItem_SuitsSeason(t *testing.T) {
	t.Parallel()

	item := &WardrobeItem{Seasons: []Season{SeasonWinter}}
	if !item.SuitsSeason(SeasonWinter) {
		t.Error("Expected winter item to suit winter")
	}
	if item.SuitsSeason(SeasonSummer) {
		t.Error("Expected winter item not to suit summer")
	}
	if !item.SuitsSeason(SeasonAny) {
		t.Error("Expected every item to suit 'any'")
	}
	if !(&WardrobeItem{}).SuitsSeason(SeasonSummer) {
		t.Error("Expected item without seasons to suit every season")
	}
}

func TestParseSeasons(t *testing.T) {
	t.Parallel()

	got := ParseSeasons([]string{"Autumn", "fall", "Summer", "monsoon"})
	want := []Season{SeasonFall, SeasonSummer}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSeasons() = %v, want %v", got, want)
	}
}

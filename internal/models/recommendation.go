package models

import (
	"strings"

	"github.com/google/uuid"
)

// Season represents the season an outfit is requested for
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
	SeasonAny    Season = "any"
)

// ParseSeason maps free text to a Season. ok is false when nothing matches.
func ParseSeason(s string) (Season, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spring":
		return SeasonSpring, true
	case "summer":
		return SeasonSummer, true
	case "fall", "autumn":
		return SeasonFall, true
	case "winter":
		return SeasonWinter, true
	case "any", "all", "all seasons", "all-season", "year-round", "year round":
		return SeasonAny, true
	default:
		return "", false
	}
}

// ParseSeasons maps a list of free-text seasons, dropping anything unknown.
// The result is de-duplicated, preserves first-seen order and is never nil.
func ParseSeasons(values []string) []Season {
	out := make([]Season, 0, len(values))
	seen := make(map[Season]struct{}, len(values))
	for _, v := range values {
		s, ok := ParseSeason(v)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// RecommendationQuery is the input of one outfit-suggestion request
type RecommendationQuery struct {
	Occasion       string   `json:"occasion" validate:"required,max=100"`
	Season         Season   `json:"season,omitempty" validate:"omitempty,season"`
	PreferenceTags []string `json:"preference_tags,omitempty" validate:"max=20,dive,max=50"`
	TimeOfDay      string   `json:"time_of_day,omitempty" validate:"max=50"`
	Style          string   `json:"style,omitempty" validate:"max=50"`
	Notes          string   `json:"notes,omitempty" validate:"max=1000"`
}

// NoSuitableItemsRationale is the rationale returned when the model selected
// nothing that exists in the wardrobe
const NoSuitableItemsRationale = "no suitable items found"

// RecommendationResult is the output of one outfit-suggestion request.
// Every id in SelectedItemIDs exists in the collection the query ran against.
type RecommendationResult struct {
	SelectedItemIDs []uuid.UUID `json:"selected_item_ids"`
	Rationale       string      `json:"rationale"`
	StyleTips       []string    `json:"style_tips"`
	DroppedIDs      []string    `json:"dropped_ids,omitempty"`
}

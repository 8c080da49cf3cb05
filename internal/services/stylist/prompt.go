package stylist

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/benvon/stylesync/internal/models"
	"github.com/google/uuid"
)

const (
	// DefaultMaxCandidates is the maximum number of items listed in a prompt
	DefaultMaxCandidates = 60
	// DefaultMaxCandidateTokens caps the estimated size of the item list
	DefaultMaxCandidateTokens = 3000

	// Candidate scoring weights
	occasionTagWeight     = 10.0
	occasionTextWeight    = 4.0
	preferenceTagWeight   = 3.0
	seasonMatchWeight     = 2.0
	seasonMismatchPenalty = 5.0
)

// RecommendationSystemPrompt frames the model as a stylist
const RecommendationSystemPrompt = `You are an expert fashion stylist. Based on the user's request and the wardrobe items listed, recommend one complete outfit.
Consider color coordination, style compatibility, occasion appropriateness and seasonal suitability.
Only use item ids that appear in the wardrobe list. If nothing in the wardrobe suits the request, return an empty selected_item_ids list.
Respond with a single JSON object and nothing else.`

// PromptOptions bounds the size of the candidate list
type PromptOptions struct {
	MaxCandidates      int
	MaxCandidateTokens int
}

// Prompt is a built recommendation prompt
type Prompt struct {
	System string
	User   string
	// Candidates lists the item ids in prompt order; position n is shown as #n+1
	Candidates []uuid.UUID
}

type candidate struct {
	item  *models.WardrobeItem
	order int
	score float64
}

// BuildRecommendationPrompt enumerates the best matching items and the query
// constraints. Items are ranked by occasion, preference tags and season and
// listed until the candidate or token limits are reached; at least one item
// is always listed.
func BuildRecommendationPrompt(items []*models.WardrobeItem, query models.RecommendationQuery, opts PromptOptions) Prompt {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.MaxCandidateTokens <= 0 {
		opts.MaxCandidateTokens = DefaultMaxCandidateTokens
	}

	ranked := rankCandidates(items, query)

	var list strings.Builder
	ids := make([]uuid.UUID, 0, len(ranked))
	tokens := 0
	for _, c := range ranked {
		if len(ids) >= opts.MaxCandidates {
			break
		}
		line := describeCandidate(len(ids)+1, c.item)
		lineTokens := estimateTokenCount(line)
		if len(ids) > 0 && tokens+lineTokens > opts.MaxCandidateTokens {
			break
		}
		list.WriteString(line)
		ids = append(ids, c.item.ID)
		tokens += lineTokens
	}

	var prompt strings.Builder
	prompt.WriteString("User request:\n")
	fmt.Fprintf(&prompt, "- Occasion: %s\n", query.Occasion)
	season := query.Season
	if season == "" {
		season = models.SeasonAny
	}
	fmt.Fprintf(&prompt, "- Season: %s\n", season)
	if query.TimeOfDay != "" {
		fmt.Fprintf(&prompt, "- Time of day: %s\n", query.TimeOfDay)
	}
	if query.Style != "" {
		fmt.Fprintf(&prompt, "- Style preference: %s\n", query.Style)
	}
	if tags := models.NormalizeTags(query.PreferenceTags); len(tags) > 0 {
		fmt.Fprintf(&prompt, "- Preferred tags: %s\n", strings.Join(tags, ", "))
	}
	if query.Notes != "" {
		fmt.Fprintf(&prompt, "- Additional notes: %s\n", query.Notes)
	}

	fmt.Fprintf(&prompt, "\nWardrobe items (%d of %d shown):\n", len(ids), len(items))
	prompt.WriteString(list.String())

	prompt.WriteString(`
Guidelines:
1. Build a complete outfit; include both top and bottom wear when applicable
2. Keep colors harmonious and the style coherent
3. Match the occasion and season
4. Use only ids from the list above

Respond with a JSON object in this format:
{
  "selected_item_ids": ["<id>", "<id>"],
  "rationale": "why this outfit works",
  "style_tips": ["tip", "tip"]
}`)

	return Prompt{System: RecommendationSystemPrompt, User: prompt.String(), Candidates: ids}
}

// rankCandidates orders items by score, keeping wardrobe order among ties
func rankCandidates(items []*models.WardrobeItem, query models.RecommendationQuery) []candidate {
	occasion := models.NormalizeTag(query.Occasion)
	prefs := models.NormalizeTags(query.PreferenceTags)

	ranked := make([]candidate, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		score := 0.0
		if occasion != "" {
			if item.HasTag(occasion) {
				score += occasionTagWeight
			}
			best := 0.0
			for _, tag := range item.OccasionTags {
				if sim := calculateStringSimilarity(tag, occasion); sim > best {
					best = sim
				}
			}
			score += best * occasionTextWeight
		}
		for _, pref := range prefs {
			if item.HasTag(pref) {
				score += preferenceTagWeight
			}
		}
		if query.Season != "" && query.Season != models.SeasonAny && len(item.Seasons) > 0 {
			if item.SuitsSeason(query.Season) {
				score += seasonMatchWeight
			} else {
				score -= seasonMismatchPenalty
			}
		}
		ranked = append(ranked, candidate{item: item, order: i, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

func describeCandidate(n int, item *models.WardrobeItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d id=%s | category: %s | color: %s | fabric: %s", n, item.ID, item.Category, item.Color, item.Fabric)
	if item.Pattern != models.Unknown && item.Pattern != "" {
		fmt.Fprintf(&b, " | pattern: %s", item.Pattern)
	}
	if item.Fit != models.Unknown && item.Fit != "" {
		fmt.Fprintf(&b, " | fit: %s", item.Fit)
	}
	if len(item.OccasionTags) > 0 {
		fmt.Fprintf(&b, " | occasions: %s", strings.Join(item.OccasionTags, ", "))
	}
	if len(item.Seasons) > 0 {
		seasons := make([]string, len(item.Seasons))
		for i, s := range item.Seasons {
			seasons[i] = string(s)
		}
		fmt.Fprintf(&b, " | seasons: %s", strings.Join(seasons, ", "))
	}
	if item.Description != models.Unknown && item.Description != "" {
		fmt.Fprintf(&b, " | %s", truncate(item.Description, 160))
	}
	b.WriteString("\n")
	return b.String()
}

// estimateTokenCount approximates tokens at four characters each
func estimateTokenCount(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / 4
}

// calculateStringSimilarity is the Jaccard similarity of the word sets
func calculateStringSimilarity(s1, s2 string) float64 {
	words1 := strings.Fields(strings.ToLower(s1))
	words2 := strings.Fields(strings.ToLower(s2))
	if len(words1) == 0 || len(words2) == 0 {
		return 0.0
	}

	word2Set := make(map[string]bool, len(words2))
	for _, word := range words2 {
		word2Set[word] = true
	}
	commonCount := 0
	for _, word := range words1 {
		if word2Set[word] {
			commonCount++
		}
	}

	union := len(words1) + len(words2) - commonCount
	if union == 0 {
		return 0.0
	}
	return float64(commonCount) / float64(union)
}

// truncate keeps the first n runes of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

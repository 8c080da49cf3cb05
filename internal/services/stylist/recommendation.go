package stylist

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/google/uuid"
)

var (
	selectionKeys = []string{"selected_item_ids", "selected_ids", "recommended_items", "item_ids", "items", "outfit"}
	rationaleKeys = []string{"rationale", "reasoning", "explanation", "reason"}
	tipsKeys      = []string{"style_tips", "tips", "styling_tips"}
	listKeys      = []string{"recommendations", "outfits"}

	uuidPattern      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	candidatePattern = regexp.MustCompile(`^#?(\d+)$`)
)

// ParseRecommendation reads a model response into a result containing only
// ids present in the collection. candidates resolves positional references
// ("#3" or 3) to the ids in prompt order. Ids that cannot be resolved, or
// that are not in the collection, are reported in DroppedIDs. When nothing
// valid remains the result has an empty selection and the
// NoSuitableItemsRationale.
func ParseRecommendation(response string, c *wardrobe.Collection, candidates []uuid.UUID) *models.RecommendationResult {
	raw, rationale, tips := decodeRecommendation(response)

	result := &models.RecommendationResult{
		SelectedItemIDs: make([]uuid.UUID, 0, len(raw)),
		StyleTips:       []string{},
	}

	seen := make(map[uuid.UUID]struct{}, len(raw))
	for _, ref := range raw {
		id, ok := resolveID(ref, candidates)
		if !ok || !c.Contains(id) {
			result.DroppedIDs = append(result.DroppedIDs, ref)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result.SelectedItemIDs = append(result.SelectedItemIDs, id)
	}

	if len(result.SelectedItemIDs) == 0 {
		result.Rationale = models.NoSuitableItemsRationale
		return result
	}

	result.Rationale = rationale
	if result.Rationale == "" {
		result.Rationale = "Outfit selected from your wardrobe."
	}
	if tips != nil {
		result.StyleTips = tips
	}
	return result
}

// decodeRecommendation extracts raw id references, rationale and tips from
// a JSON object or, failing that, from ids mentioned in plain text
func decodeRecommendation(response string) ([]string, string, []string) {
	text := stripCodeFences(strings.TrimSpace(response))
	if text == "" {
		return nil, "", nil
	}

	fields, ok := decodeRecommendationObject(text)
	if !ok {
		return uuidPattern.FindAllString(text, -1), "", nil
	}

	var refs []string
	for _, key := range selectionKeys {
		if v, present := fields[key]; present {
			refs = collectRefs(v)
			break
		}
	}

	rationale := ""
	for _, key := range rationaleKeys {
		if s, ok := asString(fields[key]); ok {
			rationale = s
			break
		}
	}

	var tips []string
	for _, key := range tipsKeys {
		if list, ok := asTips(fields[key]); ok {
			tips = list
			break
		}
	}
	return refs, rationale, tips
}

// decodeRecommendationObject decodes the outermost object, descending into
// the first entry of a list of recommendations
func decodeRecommendationObject(text string) (map[string]interface{}, bool) {
	fields, ok := extractJSONObject(text)
	if !ok {
		return nil, false
	}
	for _, key := range listKeys {
		if list, ok := fields[key].([]interface{}); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]interface{}); ok {
				return first, true
			}
		}
	}
	for _, key := range []string{"recommendation", "outfit_recommendation"} {
		if nested, ok := fields[key].(map[string]interface{}); ok {
			return nested, true
		}
	}
	return fields, true
}

// collectRefs flattens the id value forms models produce: strings, numbers
// and objects carrying an id field
func collectRefs(v interface{}) []string {
	switch val := v.(type) {
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case float64:
		return []string{formatNumber(val)}
	case map[string]interface{}:
		for _, key := range []string{"id", "item_id", "uuid"} {
			if inner, ok := val[key]; ok {
				return collectRefs(inner)
			}
		}
		return nil
	case []interface{}:
		var out []string
		for _, elem := range val {
			out = append(out, collectRefs(elem)...)
		}
		return out
	default:
		return nil
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprintf("%g", f)
}

// resolveID maps a reference to an item id. Positional references are
// 1-based indexes into candidates.
func resolveID(ref string, candidates []uuid.UUID) (uuid.UUID, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return id, true
	}
	if m := candidatePattern.FindStringSubmatch(ref); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(candidates) {
			return candidates[n-1], true
		}
	}
	if found := uuidPattern.FindString(ref); found != "" {
		if id, err := uuid.Parse(found); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// asTips accepts a list of tips or a single tip string
func asTips(value interface{}) ([]string, bool) {
	switch v := value.(type) {
	case string:
		if s, ok := asString(v); ok {
			return []string{s}, true
		}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := asString(elem); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

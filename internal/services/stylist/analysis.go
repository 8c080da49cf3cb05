package stylist

import (
	"bufio"
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/benvon/stylesync/internal/models"
)

// Analysis is the normalized form of one image analysis response. Attributes
// the response did not provide in a usable shape hold models.Unknown.
type Analysis struct {
	Category     models.Category
	Color        string
	Fabric       string
	Description  string
	Pattern      string
	Fit          string
	Gender       string
	OccasionTags []string
	Seasons      []models.Season
	Features     []string
	// Recognized counts the fields that were extracted successfully
	Recognized int
}

func newUnknownAnalysis() *Analysis {
	return &Analysis{
		Category:     models.CategoryUnknown,
		Color:        models.Unknown,
		Fabric:       models.Unknown,
		Description:  models.Unknown,
		Pattern:      models.Unknown,
		Fit:          models.Unknown,
		Gender:       models.Unknown,
		OccasionTags: []string{},
		Seasons:      []models.Season{},
		Features:     []string{},
	}
}

// fieldAliases maps normalized response keys to the attribute they fill
var fieldAliases = map[string]string{
	"category": "category", "type": "category", "item_type": "category", "clothing_type": "category",
	"garment": "category", "garment_type": "category",
	"color": "color", "colors": "color", "colour": "color", "colours": "color", "primary_color": "color",
	"fabric": "fabric", "material": "fabric", "materials": "fabric",
	"description": "description", "summary": "description",
	"pattern": "pattern",
	"fit": "fit", "fit_type": "fit",
	"gender": "gender", "gender_suitability": "gender",
	"occasion": "occasion", "occasions": "occasion", "occasion_tags": "occasion", "tags": "occasion",
	"season": "season", "seasons": "season",
	"features": "features", "special_features": "features",
	"sleeve_length": "sleeve_length", "sleeves": "sleeve_length",
	"neck_type": "neck_type", "neckline": "neck_type",
}

// wrapperKeys are object keys models sometimes nest the item under
var wrapperKeys = []string{"item", "clothing_item", "clothing", "analysis", "result", "garment_analysis"}

var (
	codeFencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	listSplitPattern = regexp.MustCompile(`\s*(?:,|;|/|\band\b)\s*`)
	lineKeyPattern   = regexp.MustCompile(`^[\s\-*•]*\**([A-Za-z][A-Za-z _-]{0,40}?)\**\s*[:=]\s*(.+)$`)
)

// ParseAnalysis normalizes a free-form or JSON analysis response. It never
// trusts the response shape: each field is type checked before use and any
// missing or mistyped field stays unknown. The returned Analysis is always
// usable; the *ParseError is non-nil only when nothing structured was found.
func ParseAnalysis(response string) (*Analysis, error) {
	analysis := newUnknownAnalysis()

	text := strings.TrimSpace(response)
	if text == "" {
		return analysis, &ParseError{Reason: "empty response"}
	}
	text = stripCodeFences(text)

	fields, ok := decodeObject(text)
	if !ok {
		fields = parseKeyValueLines(text)
	}
	if len(fields) == 0 {
		return analysis, &ParseError{Reason: "no structured content"}
	}

	// Sorted so that aliases and list merges resolve the same way every time
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target, known := fieldAliases[normalizeKey(key)]
		if !known {
			continue
		}
		if analysis.apply(target, fields[key]) {
			analysis.Recognized++
		}
	}

	if analysis.Recognized == 0 {
		return analysis, &ParseError{Reason: "no recognizable fields"}
	}
	return analysis, nil
}

// apply fills one attribute from a raw value and reports whether the value
// had a usable shape
func (a *Analysis) apply(target string, value interface{}) bool {
	switch target {
	case "category":
		s, ok := firstString(value)
		if !ok {
			return false
		}
		a.Category = models.ParseCategory(s)
		return a.Category != models.CategoryUnknown
	case "color":
		list, ok := asList(value)
		if !ok {
			return false
		}
		a.Color = strings.ToLower(strings.Join(list, ", "))
	case "fabric":
		list, ok := asList(value)
		if !ok {
			return false
		}
		a.Fabric = strings.ToLower(strings.Join(list, ", "))
	case "description":
		s, ok := asString(value)
		if !ok {
			return false
		}
		a.Description = s
	case "pattern":
		return setLower(&a.Pattern, value)
	case "fit":
		return setLower(&a.Fit, value)
	case "gender":
		return setLower(&a.Gender, value)
	case "occasion":
		list, ok := asList(value)
		if !ok {
			return false
		}
		a.OccasionTags = models.NormalizeTags(append(a.OccasionTags, list...))
	case "season":
		list, ok := asList(value)
		if !ok {
			return false
		}
		seasons := models.ParseSeasons(list)
		if len(seasons) == 0 {
			return false
		}
		a.Seasons = seasons
	case "features":
		list, ok := asList(value)
		if !ok {
			return false
		}
		a.Features = appendFeatures(a.Features, list...)
	case "sleeve_length":
		s, ok := asString(value)
		if !ok {
			return false
		}
		a.Features = appendFeatures(a.Features, "sleeve length: "+s)
	case "neck_type":
		s, ok := asString(value)
		if !ok {
			return false
		}
		a.Features = appendFeatures(a.Features, "neck type: "+s)
	default:
		return false
	}
	return true
}

// Apply copies the analysis onto an item, keeping the item's identity
func (a *Analysis) Apply(item *models.WardrobeItem) {
	item.Category = a.Category
	item.Color = a.Color
	item.Fabric = a.Fabric
	item.Description = a.Description
	item.Pattern = a.Pattern
	item.Fit = a.Fit
	item.Gender = a.Gender
	item.OccasionTags = models.NormalizeTags(a.OccasionTags)
	item.Seasons = append([]models.Season{}, a.Seasons...)
	item.Features = append([]string{}, a.Features...)
}

func setLower(dst *string, value interface{}) bool {
	s, ok := firstString(value)
	if !ok {
		return false
	}
	*dst = strings.ToLower(s)
	return true
}

func appendFeatures(features []string, values ...string) []string {
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range features {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			features = append(features, v)
		}
	}
	return features
}

// stripCodeFences returns the body of the first fenced block, if any
func stripCodeFences(text string) string {
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// decodeObject finds the outermost JSON object in text and decodes it. A
// single-element array or a wrapper key around the object is unwrapped.
func decodeObject(text string) (map[string]interface{}, bool) {
	fields, ok := extractJSONObject(text)
	if !ok {
		return nil, false
	}
	for _, key := range wrapperKeys {
		if nested, ok := fields[key].(map[string]interface{}); ok {
			return nested, true
		}
	}
	return fields, true
}

// extractJSONObject decodes the first balanced {...} span of text that is a
// JSON object. Spans that fail to decode, such as braces in surrounding
// prose, are skipped.
func extractJSONObject(text string) (map[string]interface{}, bool) {
	for offset := 0; offset < len(text); {
		i := strings.IndexByte(text[offset:], '{')
		if i == -1 {
			break
		}
		start := offset + i
		if raw, ok := balancedSpan(text[start:]); ok {
			var fields map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &fields); err == nil {
				return fields, true
			}
		}
		offset = start + 1
	}
	return nil, false
}

// balancedSpan returns the {...} span that opens at text[0]. Braces inside
// JSON strings are ignored.
func balancedSpan(text string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[:i+1], true
			}
		}
	}
	return "", false
}

// parseKeyValueLines reads "key: value" lines, the shape models fall back to
// when they ignore the JSON instruction
func parseKeyValueLines(text string) map[string]interface{} {
	fields := make(map[string]interface{})
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		m := lineKeyPattern.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		key := normalizeKey(m[1])
		if _, known := fieldAliases[key]; !known {
			continue
		}
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), `"'*`))
	}
	return fields
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.Trim(strings.TrimSpace(key), `"'*`))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return key
}

// asString accepts a non-empty string that is not a placeholder
func asString(value interface{}) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if isPlaceholder(s) {
		return "", false
	}
	return s, true
}

// firstString accepts a string or the first usable string of a list
func firstString(value interface{}) (string, bool) {
	if s, ok := asString(value); ok {
		return s, true
	}
	if list, ok := value.([]interface{}); ok {
		for _, v := range list {
			if s, ok := asString(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// asList accepts a list of strings (non-strings are skipped) or a comma
// separated string
func asList(value interface{}) ([]string, bool) {
	var out []string
	switch v := value.(type) {
	case string:
		if isPlaceholder(strings.TrimSpace(v)) {
			return nil, false
		}
		for _, part := range listSplitPattern.Split(v, -1) {
			if s, ok := asString(part); ok {
				out = append(out, s)
			}
		}
	case []interface{}:
		for _, elem := range v {
			if s, ok := asString(elem); ok {
				out = append(out, s)
			}
		}
	default:
		return nil, false
	}
	return out, len(out) > 0
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "", "n/a", "na", "none", "null", "unknown", "-", "?":
		return true
	}
	return false
}

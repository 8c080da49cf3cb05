package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/stylesync/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxTagLength is the maximum length of a single occasion tag
	MaxTagLength = 50
	// MaxTagsPerItem is the maximum number of occasion tags on one item
	MaxTagsPerItem = 20
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("season", validateSeason); err != nil {
		panic(fmt.Sprintf("failed to register season validator: %v", err))
	}
	if err := Validate.RegisterValidation("category", validateCategory); err != nil {
		panic(fmt.Sprintf("failed to register category validator: %v", err))
	}
}

func validateSeason(fl validator.FieldLevel) bool {
	return ValidateSeason(fl.Field().String()) == nil
}

func validateCategory(fl validator.FieldLevel) bool {
	return models.Category(fl.Field().String()).Valid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateSeason validates a Season string value
func ValidateSeason(value string) error {
	switch models.Season(value) {
	case models.SeasonSpring, models.SeasonSummer, models.SeasonFall, models.SeasonWinter, models.SeasonAny:
		return nil
	default:
		return fmt.Errorf("invalid season: %s (must be 'spring', 'summer', 'fall', 'winter', or 'any')", value)
	}
}

// CleanTags sanitizes and normalizes user supplied occasion tags, enforcing
// the per-item limits.
func CleanTags(tags []string) ([]string, error) {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = SanitizeText(tag)
		if len(tag) > MaxTagLength {
			return nil, fmt.Errorf("tag exceeds maximum length of %d characters", MaxTagLength)
		}
		cleaned = append(cleaned, tag)
	}
	normalized := models.NormalizeTags(cleaned)
	if len(normalized) > MaxTagsPerItem {
		return nil, fmt.Errorf("at most %d tags are allowed per item", MaxTagsPerItem)
	}
	return normalized, nil
}

// FirstError returns a readable message for the first validation failure
func FirstError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("Validation failed: field '%s' failed on '%s'", strings.ToLower(fe.Field()), fe.Tag())
	}
	return "Validation failed"
}

package stylist

import (
	"fmt"
	"time"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/wardrobe"
)

// Record turns an analysis response into a new item and appends it to the
// collection. Exactly one item is appended whenever the returned item is
// non-nil. A *ParseError alongside the item means every attribute the
// response failed to describe was recorded as unknown.
func Record(c *wardrobe.Collection, imageRef, response string, now time.Time) (*models.WardrobeItem, error) {
	analysis, parseErr := ParseAnalysis(response)

	item := models.NewUnknownItem(imageRef, now)
	analysis.Apply(item)

	if err := c.Add(item); err != nil {
		return nil, fmt.Errorf("failed to record wardrobe item: %w", err)
	}
	if parseErr != nil {
		return item, parseErr
	}
	return item, nil
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/lib/pq"
)

// itemAttributes holds the item fields stored in the attributes column
type itemAttributes struct {
	Description string          `json:"description"`
	Pattern     string          `json:"pattern"`
	Fit         string          `json:"fit"`
	Gender      string          `json:"gender"`
	Seasons     []models.Season `json:"seasons"`
	Features    []string        `json:"features"`
}

// PostgresStore keeps wardrobes as rows of wardrobe_items, one row per item
// ordered by position
type PostgresStore struct {
	db *DB
}

// NewPostgresStore creates a wardrobe store on db. Call Migrate first.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ wardrobe.Store = (*PostgresStore)(nil)

// Load returns the session's items in wardrobe order
func (s *PostgresStore) Load(ctx context.Context, sessionID string) (*wardrobe.Collection, error) {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_ref, category, color, fabric, occasion_tags, attributes, created_at
		FROM wardrobe_items
		WHERE session_id = $1
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wardrobe: %w", err)
	}
	defer func() { _ = rows.Close() }()

	doc := &models.WardrobeDocument{
		Version:   models.WardrobeDocumentVersion,
		SessionID: sessionID,
		Items:     []*models.WardrobeItem{},
	}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load wardrobe: %w", err)
	}

	return wardrobe.FromDocument(doc)
}

func scanItem(rows *sql.Rows) (*models.WardrobeItem, error) {
	item := &models.WardrobeItem{}
	var category string
	var attributesJSON []byte
	err := rows.Scan(
		&item.ID,
		&item.ImageRef,
		&category,
		&item.Color,
		&item.Fabric,
		pq.Array(&item.OccasionTags),
		&attributesJSON,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan wardrobe item: %w", err)
	}
	item.Category = models.Category(category)
	if err := decodeAttributes(attributesJSON, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Save replaces the session's rows in one transaction
func (s *PostgresStore) Save(ctx context.Context, sessionID string, c *wardrobe.Collection) error {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wardrobe_items WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to replace wardrobe: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wardrobe_items (session_id, position, id, image_ref, category, color, fabric, occasion_tags, attributes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for position, item := range c.Items() {
		attributesJSON, err := encodeAttributes(item)
		if err != nil {
			return err
		}
		tags := item.OccasionTags
		if tags == nil {
			tags = []string{}
		}
		_, err = stmt.ExecContext(ctx,
			sessionID,
			position,
			item.ID,
			item.ImageRef,
			string(item.Category),
			item.Color,
			item.Fabric,
			pq.Array(tags),
			attributesJSON,
			item.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert wardrobe item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wardrobe: %w", err)
	}
	return nil
}

// Delete removes the session's rows
func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wardrobe_items WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete wardrobe: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func encodeAttributes(item *models.WardrobeItem) ([]byte, error) {
	attrs := itemAttributes{
		Description: item.Description,
		Pattern:     item.Pattern,
		Fit:         item.Fit,
		Gender:      item.Gender,
		Seasons:     item.Seasons,
		Features:    item.Features,
	}
	if attrs.Seasons == nil {
		attrs.Seasons = []models.Season{}
	}
	if attrs.Features == nil {
		attrs.Features = []string{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return data, nil
}

func decodeAttributes(data []byte, item *models.WardrobeItem) error {
	if len(data) == 0 {
		return nil
	}
	var attrs itemAttributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	item.Description = attrs.Description
	item.Pattern = attrs.Pattern
	item.Fit = attrs.Fit
	item.Gender = attrs.Gender
	item.Seasons = attrs.Seasons
	item.Features = attrs.Features
	return nil
}

package stylist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/ingest"
	logpkg "github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/validation"
	"github.com/benvon/stylesync/internal/wardrobe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAsyncUnavailable is returned by EnqueueImage when no queue is configured
var ErrAsyncUnavailable = errors.New("asynchronous analysis is not configured")

// AnalysisQueue hands stored images to a background analyzer
type AnalysisQueue interface {
	EnqueueAnalysis(ctx context.Context, sessionID, imageRef string) error
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	// Queue enables EnqueueImage. Nil disables asynchronous analysis.
	Queue  AnalysisQueue
	Logger *zap.Logger
	Now    func() time.Time
}

// AddResult is the outcome of analyzing one image into the wardrobe
type AddResult struct {
	Item *models.WardrobeItem `json:"item"`
	// Warning is set when the analysis could not be parsed and the item was
	// recorded with unknown attributes
	Warning string      `json:"warning,omitempty"`
	Image   ingest.Info `json:"image"`
}

// Service runs the wardrobe pipelines for isolated sessions. Every mutation
// loads the session's collection, applies the change under the session lock
// and saves; a pipeline that fails does not save.
type Service struct {
	store       wardrobe.Store
	locker      *wardrobe.Locker
	ingester    *ingest.Ingester
	recommender *Recommender
	queue       AnalysisQueue
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a Service
func NewService(store wardrobe.Store, ingester *ingest.Ingester, recommender *Recommender, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:       store,
		locker:      wardrobe.NewLocker(),
		ingester:    ingester,
		recommender: recommender,
		queue:       opts.Queue,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// AsyncEnabled reports whether EnqueueImage is available
func (s *Service) AsyncEnabled() bool {
	return s.queue != nil
}

// AddFromImage validates, stores and analyzes an image and records the
// result as a new item
func (s *Service) AddFromImage(ctx context.Context, sessionID string, data []byte) (*AddResult, error) {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	ctx = ai.WithSessionID(ctx, sessionID)

	result, err := s.ingester.Ingest(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}

	added, err := s.record(ctx, sessionID, &result.Stored, result.Response)
	if err != nil {
		s.discard(ctx, sessionID, result.ImageRef)
		return nil, err
	}
	return added, nil
}

// EnqueueImage validates and stores an image and queues it for background
// analysis
func (s *Service) EnqueueImage(ctx context.Context, sessionID string, data []byte) (*ingest.Stored, error) {
	if s.queue == nil {
		return nil, ErrAsyncUnavailable
	}
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	stored, err := s.ingester.Store(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}
	if err := s.queue.EnqueueAnalysis(ctx, sessionID, stored.ImageRef); err != nil {
		s.discard(ctx, sessionID, stored.ImageRef)
		return nil, fmt.Errorf("failed to enqueue image analysis: %w", err)
	}

	s.logger.Info("image_analysis_enqueued",
		zap.String("session_id", logpkg.SanitizeSessionID(sessionID)),
		zap.String("image_ref", stored.ImageRef),
	)
	return stored, nil
}

// AnalyzeStored analyzes an image saved by EnqueueImage and records it. An
// image that is already in the wardrobe is not analyzed again.
func (s *Service) AnalyzeStored(ctx context.Context, sessionID, imageRef string) (*AddResult, error) {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	ctx = ai.WithSessionID(ctx, sessionID)

	if existing, err := s.findByImageRef(ctx, sessionID, imageRef); err != nil {
		return nil, err
	} else if existing != nil {
		return &AddResult{Item: existing}, nil
	}

	result, err := s.ingester.Describe(ctx, sessionID, imageRef)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, sessionID, &result.Stored, result.Response)
}

func (s *Service) findByImageRef(ctx context.Context, sessionID, imageRef string) (*models.WardrobeItem, error) {
	var found *models.WardrobeItem
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		if item, ok := c.FindByImageRef(imageRef); ok {
			found = item
		}
		return nil
	})
	return found, err
}

// record appends the analysis as a new item. A parse failure still records
// the item and is reported as a warning.
func (s *Service) record(ctx context.Context, sessionID string, stored *ingest.Stored, response string) (*AddResult, error) {
	added := &AddResult{Image: stored.Info}
	err := s.withSession(ctx, sessionID, true, func(c *wardrobe.Collection) error {
		if existing, ok := c.FindByImageRef(stored.ImageRef); ok {
			added.Item = existing
			return nil
		}
		item, err := Record(c, stored.ImageRef, response, s.now())
		if item == nil {
			return err
		}
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			added.Warning = parseErr.Error()
		}
		added.Item = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logpkg.WithSession(s.logger, sessionID)
	if added.Warning != "" {
		log.Warn("analysis_unparsed", zap.String("image_ref", stored.ImageRef), zap.String("reason", added.Warning))
	}
	log.Info("wardrobe_item_added",
		zap.String("item_id", added.Item.ID.String()),
		zap.String("image_ref", stored.ImageRef),
		zap.String("category", string(added.Item.Category)),
	)
	return added, nil
}

// Recommend asks for an outfit drawn from the session's current wardrobe
func (s *Service) Recommend(ctx context.Context, sessionID string, query models.RecommendationQuery) (*models.RecommendationResult, error) {
	var snapshot *wardrobe.Collection
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		snapshot = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.recommender.Recommend(ai.WithSessionID(ctx, sessionID), snapshot, query)
}

// List returns the session's items in insertion order
func (s *Service) List(ctx context.Context, sessionID string) ([]*models.WardrobeItem, error) {
	var items []*models.WardrobeItem
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		items = c.Items()
		return nil
	})
	return items, err
}

// Get returns one item
func (s *Service) Get(ctx context.Context, sessionID string, id uuid.UUID) (*models.WardrobeItem, error) {
	var item *models.WardrobeItem
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		var err error
		item, err = c.Get(id)
		return err
	})
	return item, err
}

// SetTags replaces an item's occasion tags
func (s *Service) SetTags(ctx context.Context, sessionID string, id uuid.UUID, tags []string) (*models.WardrobeItem, error) {
	cleaned, err := validation.CleanTags(tags)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	var item *models.WardrobeItem
	err = s.withSession(ctx, sessionID, true, func(c *wardrobe.Collection) error {
		var err error
		item, err = c.SetTags(id, cleaned)
		return err
	})
	if err != nil {
		return nil, err
	}
	logpkg.WithSession(s.logger, sessionID).Info("wardrobe_item_tagged",
		zap.String("item_id", id.String()),
		zap.Int("tags", len(item.OccasionTags)),
	)
	return item, nil
}

// Remove deletes an item and its stored image
func (s *Service) Remove(ctx context.Context, sessionID string, id uuid.UUID) error {
	var imageRef string
	err := s.withSession(ctx, sessionID, true, func(c *wardrobe.Collection) error {
		item, err := c.Get(id)
		if err != nil {
			return err
		}
		imageRef = item.ImageRef
		return c.Remove(id)
	})
	if err != nil {
		return err
	}

	s.discard(ctx, sessionID, imageRef)
	logpkg.WithSession(s.logger, sessionID).Info("wardrobe_item_removed", zap.String("item_id", id.String()))
	return nil
}

// Clear removes every item and its stored image, returning how many were
// removed
func (s *Service) Clear(ctx context.Context, sessionID string) (int, error) {
	var refs []string
	removed := 0
	err := s.withSession(ctx, sessionID, true, func(c *wardrobe.Collection) error {
		for _, item := range c.Items() {
			refs = append(refs, item.ImageRef)
		}
		removed = c.Clear()
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, ref := range refs {
		s.discard(ctx, sessionID, ref)
	}
	logpkg.WithSession(s.logger, sessionID).Info("wardrobe_cleared", zap.Int("removed", removed))
	return removed, nil
}

// Export returns the session's wardrobe as a versioned JSON document.
// Exporting an unchanged wardrobe yields the same bytes every time.
func (s *Service) Export(ctx context.Context, sessionID string) ([]byte, error) {
	var data []byte
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		var err error
		data, err = wardrobe.Encode(wardrobe.NewDocument(sessionID, c))
		return err
	})
	return data, err
}

// Import replaces the session's wardrobe with the items of an exported
// document and returns the number of items imported
func (s *Service) Import(ctx context.Context, sessionID string, data []byte) (int, error) {
	doc, err := wardrobe.Decode(data)
	if err != nil {
		return 0, validationErrorf("invalid wardrobe document: %v", err)
	}
	imported, err := wardrobe.FromDocument(doc)
	if err != nil {
		return 0, validationErrorf("invalid wardrobe document: %v", err)
	}

	err = s.withSession(ctx, sessionID, true, func(c *wardrobe.Collection) error {
		c.Clear()
		for _, item := range imported.Items() {
			if err := c.Add(item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logpkg.WithSession(s.logger, sessionID).Info("wardrobe_imported", zap.Int("items", imported.Len()))
	return imported.Len(), nil
}

// Stats summarizes the session's wardrobe
func (s *Service) Stats(ctx context.Context, sessionID string) (models.WardrobeStats, error) {
	var stats models.WardrobeStats
	err := s.withSession(ctx, sessionID, false, func(c *wardrobe.Collection) error {
		stats = c.Stats()
		return nil
	})
	return stats, err
}

// Image returns a stored image of the session
func (s *Service) Image(ctx context.Context, sessionID, imageRef string) (*imagestore.Object, error) {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.ingester.Image(ctx, sessionID, imageRef)
}

// Ping checks the wardrobe store
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// withSession loads the session's collection under its lock and runs fn.
// When save is set and fn succeeds the collection is persisted.
func (s *Service) withSession(ctx context.Context, sessionID string, save bool, fn func(*wardrobe.Collection) error) error {
	if err := wardrobe.ValidateSessionID(sessionID); err != nil {
		return err
	}

	unlock := s.locker.Lock(sessionID)
	defer unlock()

	session := wardrobe.Session{ID: sessionID}
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load wardrobe: %w", err)
	}
	session.Collection = c

	if err := fn(session.Collection); err != nil {
		return err
	}
	if !save {
		return nil
	}
	if err := s.store.Save(ctx, session.ID, session.Collection); err != nil {
		return fmt.Errorf("failed to save wardrobe: %w", err)
	}
	return nil
}

func (s *Service) discard(ctx context.Context, sessionID, imageRef string) {
	if imageRef == "" {
		return
	}
	err := s.ingester.Discard(context.WithoutCancel(ctx), sessionID, imageRef)
	if err != nil && !errors.Is(err, imagestore.ErrNotFound) {
		s.logger.Warn("image_cleanup_failed", zap.String("image_ref", imageRef), zap.Error(err))
	}
}

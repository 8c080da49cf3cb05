package stylist

import (
	"context"

	"github.com/benvon/stylesync/internal/models"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/benvon/stylesync/internal/validation"
	"github.com/benvon/stylesync/internal/wardrobe"
	"go.uber.org/zap"
)

// OperationRecommendOutfit names the recommendation call in logs and errors
const OperationRecommendOutfit = "recommend_outfit"

// RecommenderOptions configures a Recommender
type RecommenderOptions struct {
	Prompt PromptOptions
	Logger *zap.Logger
}

// Recommender asks the AI capability for an outfit drawn from a collection
type Recommender struct {
	provider ai.Provider
	prompt   PromptOptions
	logger   *zap.Logger
}

// NewRecommender creates a Recommender. The provider should already apply
// the call timeout (see ai.Guard).
func NewRecommender(provider ai.Provider, opts RecommenderOptions) *Recommender {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Recommender{provider: provider, prompt: opts.Prompt, logger: opts.Logger}
}

// Recommend validates query and returns a selection of items from c. It
// fails with *EmptyWardrobeError when c has no items and with
// *ai.ExternalServiceError when the capability fails. A response naming no
// usable items is not an error.
func (r *Recommender) Recommend(ctx context.Context, c *wardrobe.Collection, query models.RecommendationQuery) (*models.RecommendationResult, error) {
	query = cleanQuery(query)
	if err := validation.Validate.Struct(query); err != nil {
		return nil, &ValidationError{Message: validation.FirstError(err)}
	}
	if c.Len() == 0 {
		return nil, &EmptyWardrobeError{SessionID: ai.ExtractSessionID(ctx)}
	}

	prompt := BuildRecommendationPrompt(c.Items(), query, r.prompt)
	response, err := r.provider.Generate(ctx, ai.Request{
		Operation: OperationRecommendOutfit,
		System:    prompt.System,
		Prompt:    prompt.User,
		JSON:      true,
	})
	if err != nil {
		if !ai.IsExternalServiceError(err) {
			err = &ai.ExternalServiceError{Op: OperationRecommendOutfit, Err: err}
		}
		return nil, err
	}

	result := ParseRecommendation(response, c, prompt.Candidates)
	if len(result.DroppedIDs) > 0 {
		r.logger.Warn("recommendation_ids_dropped",
			zap.Int("dropped", len(result.DroppedIDs)),
			zap.Int("kept", len(result.SelectedItemIDs)),
		)
	}
	r.logger.Info("recommendation_completed",
		zap.String("occasion", query.Occasion),
		zap.Int("candidates", len(prompt.Candidates)),
		zap.Int("selected", len(result.SelectedItemIDs)),
	)
	return result, nil
}

func cleanQuery(q models.RecommendationQuery) models.RecommendationQuery {
	q.Occasion = validation.SanitizeText(q.Occasion)
	q.TimeOfDay = validation.SanitizeText(q.TimeOfDay)
	q.Style = validation.SanitizeText(q.Style)
	q.Notes = validation.SanitizeText(q.Notes)
	if s, ok := models.ParseSeason(string(q.Season)); ok {
		q.Season = s
	}
	if q.PreferenceTags != nil {
		tags := make([]string, len(q.PreferenceTags))
		for i, t := range q.PreferenceTags {
			tags[i] = validation.SanitizeText(t)
		}
		q.PreferenceTags = tags
	}
	return q
}

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/stylesync/internal/imagestore"
	"github.com/benvon/stylesync/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OperationAnalyzeImage names the analysis call in logs and errors
const OperationAnalyzeImage = "analyze_image"

// AnalysisSystemPrompt frames the model as a garment analyst
const AnalysisSystemPrompt = `You are an expert fashion analyst. Analyze the clothing item in the image and extract its properties.
Focus on the category, colors, fabric, pattern, fit and other relevant fashion attributes.
If an attribute is not clearly visible, make a reasonable inference from what you can see.
Respond with a single JSON object and nothing else.`

// AnalysisPrompt is sent with every uploaded image
const AnalysisPrompt = `Analyze this clothing item and return a JSON object with these keys:
{
  "category": "t-shirt | shirt | blouse | sweater | hoodie | jacket | coat | dress | skirt | pants | jeans | shorts | suit | activewear | swimwear | shoes | accessory",
  "description": "one sentence description",
  "color": ["primary color", "secondary color"],
  "fabric": "main fabric",
  "pattern": "solid | striped | checked | floral | printed | other",
  "fit": "regular | slim | loose | oversized",
  "gender": "unisex | male | female",
  "sleeve_length": "short | long | 3/4 | sleeveless | n/a",
  "neck_type": "round | v-neck | collar | other | n/a",
  "occasion": ["casual", "work", "formal", "party", "sport", "outdoor"],
  "season": ["spring", "summer", "fall", "winter"],
  "features": ["pockets", "hood", "zipper"]
}`

// Stored is an image that passed validation and was saved
type Stored struct {
	ImageRef string `json:"image_ref"`
	Info
}

// Result is a stored image together with the raw analysis response
type Result struct {
	Stored
	Response string `json:"-"`
}

// Options configures an Ingester
type Options struct {
	MaxPixels int
	Logger    *zap.Logger
}

// Ingester validates uploads, stores them and asks the AI capability to
// describe them
type Ingester struct {
	images    imagestore.Store
	provider  ai.Provider
	maxPixels int
	logger    *zap.Logger
}

// NewIngester creates an Ingester. The provider should already apply the
// call timeout (see ai.Guard).
func NewIngester(images imagestore.Store, provider ai.Provider, opts Options) *Ingester {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Ingester{
		images:    images,
		provider:  provider,
		maxPixels: opts.MaxPixels,
		logger:    opts.Logger,
	}
}

// NewImageRef returns a fresh opaque image reference
func NewImageRef() string {
	return "img_" + uuid.NewString()
}

// Store validates data and saves the unmodified bytes under a new reference
func (i *Ingester) Store(ctx context.Context, sessionID string, data []byte) (*Stored, error) {
	info, err := Decode(data, i.maxPixels)
	if err != nil {
		return nil, err
	}

	ref := NewImageRef()
	if err := i.images.Put(ctx, imagestore.ObjectKey(sessionID, ref), info.MIMEType, data); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	i.logger.Info("image_stored",
		zap.String("image_ref", ref),
		zap.String("format", info.Format),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Int("bytes", len(data)),
	)
	return &Stored{ImageRef: ref, Info: *info}, nil
}

// Ingest validates, stores and analyzes an upload. If the analysis fails the
// stored image is removed again.
func (i *Ingester) Ingest(ctx context.Context, sessionID string, data []byte) (*Result, error) {
	stored, err := i.Store(ctx, sessionID, data)
	if err != nil {
		return nil, err
	}

	response, err := i.analyze(ctx, stored, data)
	if err != nil {
		if delErr := i.images.Delete(context.WithoutCancel(ctx), imagestore.ObjectKey(sessionID, stored.ImageRef)); delErr != nil {
			i.logger.Warn("image_cleanup_failed", zap.String("image_ref", stored.ImageRef), zap.Error(delErr))
		}
		return nil, err
	}
	return &Result{Stored: *stored, Response: response}, nil
}

// Describe analyzes an image stored earlier by Store
func (i *Ingester) Describe(ctx context.Context, sessionID, ref string) (*Result, error) {
	obj, err := i.images.Get(ctx, imagestore.ObjectKey(sessionID, ref))
	if err != nil {
		if errors.Is(err, imagestore.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	info, err := Decode(obj.Data, i.maxPixels)
	if err != nil {
		return nil, err
	}
	stored := &Stored{ImageRef: ref, Info: *info}

	response, err := i.analyze(ctx, stored, obj.Data)
	if err != nil {
		return nil, err
	}
	return &Result{Stored: *stored, Response: response}, nil
}

// Image returns the stored bytes of an image
func (i *Ingester) Image(ctx context.Context, sessionID, ref string) (*imagestore.Object, error) {
	return i.images.Get(ctx, imagestore.ObjectKey(sessionID, ref))
}

// Discard removes a stored image
func (i *Ingester) Discard(ctx context.Context, sessionID, ref string) error {
	return i.images.Delete(ctx, imagestore.ObjectKey(sessionID, ref))
}

func (i *Ingester) analyze(ctx context.Context, stored *Stored, data []byte) (string, error) {
	response, err := i.provider.Generate(ctx, ai.Request{
		Operation: OperationAnalyzeImage,
		System:    AnalysisSystemPrompt,
		Prompt:    AnalysisPrompt,
		Image:     &ai.Image{MIMEType: stored.MIMEType, Data: data},
		JSON:      true,
	})
	if err != nil {
		if !ai.IsExternalServiceError(err) {
			err = &ai.ExternalServiceError{Op: OperationAnalyzeImage, Err: err}
		}
		return "", err
	}
	return response, nil
}
